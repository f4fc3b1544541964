package handler

import (
	"context"
	"fmt"
	"sosibot/internal/core/domain"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

// Telegram turns bot API updates into batches for a responder session.
type Telegram struct {
	batches chan<- domain.Batch
}

func NewTelegram(batches chan<- domain.Batch) *Telegram {
	return &Telegram{batches: batches}
}

// Handle is registered as the bot's default handler.
func (t *Telegram) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	batch, ok := ConvertTelegramUpdate(update)
	if !ok {
		return
	}

	log.Debug().Str("chat", batch.Messages[0].Key.ChatID).Str("id", batch.Messages[0].Key.MessageID).
		Msg("received telegram message")

	select {
	case t.batches <- batch:
	case <-ctx.Done():
	}
}

// ConvertTelegramUpdate maps message and edited-message updates; everything else is ignored.
func ConvertTelegramUpdate(update *models.Update) (domain.Batch, bool) {
	if update == nil {
		return domain.Batch{}, false
	}

	msg := update.Message
	edited := false

	if msg == nil && update.EditedMessage != nil {
		msg = update.EditedMessage
		edited = true
	}

	if msg == nil {
		return domain.Batch{}, false
	}

	envelope := &domain.Envelope{Content: convertTelegramContent(msg)}
	if edited {
		envelope = &domain.Envelope{Kind: domain.Edited, Inner: envelope}
	}

	messageID := strconv.Itoa(msg.ID)
	if edited {
		// edits keep the original message_id, so each revision needs its own key to get past dedup
		messageID = fmt.Sprintf("%d@%d", msg.ID, msg.EditDate)
	}

	var senderID string
	if msg.From != nil {
		senderID = strconv.FormatInt(msg.From.ID, 10)
	}

	chatType := string(msg.Chat.Type)

	return domain.Batch{
		Type: domain.BatchNotify,
		Messages: []domain.Message{{
			Key: domain.MessageKey{
				ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
				MessageID: messageID,
			},
			SenderID:  senderID,
			Broadcast: chatType == "channel",
			IsGroup:   chatType == "group" || chatType == "supergroup",
			Envelope:  envelope,
			Native:    msg,
		}},
	}, true
}

func convertTelegramContent(msg *models.Message) *domain.Content {
	var quote *domain.ReplyContext
	if msg.ReplyToMessage != nil {
		quote = &domain.ReplyContext{StanzaID: strconv.Itoa(msg.ReplyToMessage.ID)}
		if msg.ReplyToMessage.From != nil {
			quote.Participant = strconv.FormatInt(msg.ReplyToMessage.From.ID, 10)
		}
	}

	switch {
	case msg.Text != "" && quote != nil:
		return &domain.Content{Variant: domain.VariantExtendedText, Text: msg.Text, Context: quote}
	case msg.Text != "":
		return &domain.Content{Variant: domain.VariantConversation, Text: msg.Text}
	case len(msg.Photo) > 0:
		return &domain.Content{Variant: domain.VariantImage, Text: msg.Caption, Context: quote}
	case msg.Video != nil:
		return &domain.Content{Variant: domain.VariantVideo, Text: msg.Caption, Context: quote}
	case msg.Document != nil:
		return &domain.Content{Variant: domain.VariantDocument, Text: msg.Caption, Context: quote}
	case msg.Caption != "":
		return &domain.Content{Fields: []domain.Field{{Name: "media", Caption: msg.Caption, Context: quote}}}
	}

	return &domain.Content{}
}
