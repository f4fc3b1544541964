package sender

import (
	"context"
	"fmt"
	"sosibot/internal/core/domain"

	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

type WhatsAppClient interface {
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message,
		extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
}

type WhatsApp struct {
	client WhatsAppClient
}

func NewWhatsApp(client WhatsAppClient) *WhatsApp {
	return &WhatsApp{client: client}
}

// SendMessageReply sends text as an extended text message quoting the inbound message.
func (s *WhatsApp) SendMessageReply(ctx context.Context, message *domain.Message, text string) ([]string, error) {
	chat, err := types.ParseJID(message.Key.ChatID)
	if err != nil {
		return nil, fmt.Errorf("invalid whatsapp chat id %q: %w", message.Key.ChatID, err)
	}

	resp, err := s.client.SendMessage(ctx, chat, &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text:        proto.String(text),
			ContextInfo: quoteContext(message),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("chatId", message.Key.ChatID).Msg("failed to send whatsapp message")
		return nil, err
	}

	return []string{string(resp.ID)}, nil
}

func quoteContext(message *domain.Message) *waE2E.ContextInfo {
	if message.Key.MessageID == "" {
		return nil
	}

	ci := &waE2E.ContextInfo{StanzaID: proto.String(message.Key.MessageID)}

	if message.SenderID != "" {
		ci.Participant = proto.String(message.SenderID)
	}

	if evt, ok := message.Native.(*events.Message); ok && evt.Message != nil {
		ci.QuotedMessage = evt.Message
	}

	return ci
}
