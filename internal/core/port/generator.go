package port

import "context"

type TextGenerator interface {
	// GenerateReply produces a reply for the given user text.
	GenerateReply(ctx context.Context, text string) (string, error)
}
