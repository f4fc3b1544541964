package port

import (
	"context"
	"sosibot/internal/core/domain"
)

type TextSender interface {
	// SendMessageReply sends text to the chat of message, quoting it, and returns the identifiers of every message
	// sent, in order. Transports that split long text return one id per part.
	SendMessageReply(ctx context.Context, message *domain.Message, text string) ([]string, error)
}
