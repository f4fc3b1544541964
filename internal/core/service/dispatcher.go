package service

import (
	"context"
	"fmt"
	"sosibot/internal/core/domain"
	"sosibot/internal/core/port"
	"strings"

	"github.com/rs/zerolog/log"
)

// Dispatcher produces reply text from the primary backend when one is configured, otherwise from the secondary.
// Primary failures propagate; the secondary is expected to contain its own failures.
type Dispatcher struct {
	primary   port.TextGenerator
	secondary port.TextGenerator
}

// NewDispatcher takes a nil primary when no primary credential is configured.
func NewDispatcher(primary, secondary port.TextGenerator) *Dispatcher {
	return &Dispatcher{primary: primary, secondary: secondary}
}

func (d *Dispatcher) Generate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyPrompt
	}

	var reply string

	switch {
	case d.primary != nil:
		log.Debug().Msg("generating reply with primary backend")

		r, err := d.primary.GenerateReply(ctx, text)
		if err != nil {
			return "", fmt.Errorf("generating reply: %w", err)
		}
		reply = r
	case d.secondary != nil:
		log.Debug().Msg("generating reply with secondary backend")

		r, err := d.secondary.GenerateReply(ctx, text)
		if err != nil {
			log.Warn().Err(err).Msg("secondary backend returned an error")
		}
		reply = r
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return domain.EmptyReplySentinel, nil
	}

	return reply, nil
}
