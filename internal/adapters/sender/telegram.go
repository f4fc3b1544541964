package sender

import (
	"context"
	"fmt"
	"sosibot/internal/core/domain"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

const TelegramMessageLimit = 4096

type TelegramBot interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type Telegram struct {
	bot TelegramBot
}

func NewTelegram(bot TelegramBot) *Telegram {
	return &Telegram{bot: bot}
}

// SendMessageReply replies to message, splitting text that exceeds the Telegram limit. One id is returned per chunk.
func (s *Telegram) SendMessageReply(ctx context.Context, message *domain.Message, text string) ([]string, error) {
	chatID, err := strconv.ParseInt(message.Key.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", message.Key.ChatID, err)
	}

	var replyTo *models.ReplyParameters
	if messageID, ok := replyTarget(message); ok {
		replyTo = &models.ReplyParameters{MessageID: messageID, ChatID: chatID}
	}

	var sentIDs []string
	for _, chunk := range chunkText(text, TelegramMessageLimit) {
		sent, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:          chatID,
			Text:            chunk,
			ReplyParameters: replyTo,
		})
		if err != nil {
			log.Error().Err(err).Int64("chatId", chatID).Msg("failed to send telegram message")
			return sentIDs, err
		}

		if sent != nil {
			sentIDs = append(sentIDs, strconv.Itoa(sent.ID))
		}
	}

	return sentIDs, nil
}

// replyTarget prefers the native message id, since edited messages carry a key that is not a plain message id.
func replyTarget(message *domain.Message) (int, bool) {
	if native, ok := message.Native.(*models.Message); ok && native != nil {
		return native.ID, true
	}

	id, err := strconv.Atoi(message.Key.MessageID)
	return id, err == nil
}

func chunkText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > 0 {
		n := min(limit, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}

	return chunks
}
