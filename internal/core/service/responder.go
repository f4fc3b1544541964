package service

import (
	"context"
	"fmt"
	"sosibot/internal/core/domain"
	"sosibot/internal/core/port"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type ReplyGenerator interface {
	Generate(ctx context.Context, text string) (string, error)
}

type ResponderConfig struct {
	Transport     string
	Hotwords      []string
	ReplyToBot    bool
	ReplyTimeout  time.Duration
	DedupCapacity int
	DedupRetain   int
	SentHistory   int
}

// Responder is one bot session: it owns the dedup store and the sent-id ledger of a single transport connection
// and runs inbound batches through trigger evaluation, reply generation and sending.
type Responder struct {
	transport  string
	dedup      *DedupStore
	tracker    *SentTracker
	trigger    domain.Trigger
	replyToBot bool
	timeout    time.Duration
	generator  ReplyGenerator
	sender     port.TextSender
	selfID     func() string
	metrics    *Metrics
	inFlight   errgroup.Group
}

// NewResponder builds a session. selfID is consulted on every message since the account id may only be known once
// the transport has paired.
func NewResponder(cfg ResponderConfig, generator ReplyGenerator, sender port.TextSender, selfID func() string,
	metrics *Metrics) *Responder {
	if selfID == nil {
		selfID = func() string { return "" }
	}

	return &Responder{
		transport:  cfg.Transport,
		dedup:      NewDedupStore(cfg.DedupCapacity, cfg.DedupRetain),
		tracker:    NewSentTracker(cfg.SentHistory),
		trigger:    domain.NewTrigger(cfg.Hotwords),
		replyToBot: cfg.ReplyToBot,
		timeout:    cfg.ReplyTimeout,
		generator:  generator,
		sender:     sender,
		selfID:     selfID,
		metrics:    metrics,
	}
}

// Admit filters a batch down to the message that should be handled, if any. Only notify batches are considered,
// and only their first message; own, duplicate-flagged, broadcast, empty and already processed messages are dropped.
func (r *Responder) Admit(batch domain.Batch) (*domain.Message, bool) {
	if batch.Type != "" && batch.Type != domain.BatchNotify {
		return nil, false
	}

	if len(batch.Messages) == 0 {
		return nil, false
	}

	message := batch.Messages[0]
	if message.Envelope == nil || message.FromMe || message.Duplicate || message.Broadcast {
		return nil, false
	}

	r.metrics.Received(r.transport)

	if r.dedup.IsProcessed(message.Key) {
		r.metrics.Duplicate(r.transport)
		log.Debug().Str("transport", r.transport).Str("key", message.Key.String()).Msg("skipping processed message")
		return nil, false
	}

	return &message, true
}

// Respond evaluates the trigger for an admitted message and, if it fires, generates and sends a reply.
// Primary backend and send failures are returned; no reply is sent in that case.
func (r *Responder) Respond(ctx context.Context, message *domain.Message) error {
	return r.reply(ctx, message, r.logger(message))
}

func (r *Responder) reply(ctx context.Context, message *domain.Message, l zerolog.Logger) error {
	extracted := domain.Extract(message.Envelope)
	if !r.shouldReply(message, extracted) {
		l.Debug().Msg("no trigger")
		return nil
	}

	r.metrics.Triggered(r.transport)
	l.Info().Str("text", extracted.Text).Msg("message to respond")

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	reply, err := r.generator.Generate(ctx, extracted.Text)
	if err != nil {
		r.metrics.Failed(r.transport)
		return err
	}

	sentIDs, err := r.sender.SendMessageReply(ctx, message, reply)
	for _, id := range sentIDs {
		r.tracker.Remember(message.Key.ChatID, id)
	}

	if err != nil {
		r.metrics.Failed(r.transport)
		return fmt.Errorf("%w: %w", domain.ErrSendingReplyFailed, err)
	}

	r.metrics.Replied(r.transport)

	l.Info().Strs("sentIds", sentIDs).Msg("reply sent")

	return nil
}

// Handle runs one batch to completion. Failures are logged and never returned.
func (r *Responder) Handle(ctx context.Context, batch domain.Batch) {
	message, ok := r.Admit(batch)
	if !ok {
		return
	}

	r.respond(ctx, message)
}

// Run consumes batches until ctx is done or batches is closed. Admission happens in order on the consuming
// goroutine; replies run concurrently and are not cancelled by ctx. Run waits for replies in flight before
// returning.
func (r *Responder) Run(ctx context.Context, batches <-chan domain.Batch) error {
	log.Info().Str("transport", r.transport).Msg("responder listening")

	detached := context.WithoutCancel(ctx)

	defer func() {
		_ = r.inFlight.Wait()
		log.Info().Str("transport", r.transport).Msg("responder stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-batches:
			if !ok {
				return nil
			}

			message, admitted := r.Admit(batch)
			if !admitted {
				continue
			}

			r.inFlight.Go(func() error {
				r.respond(detached, message)
				return nil
			})
		}
	}
}

func (r *Responder) respond(ctx context.Context, message *domain.Message) {
	l := r.logger(message)

	defer func() {
		if rec := recover(); rec != nil {
			r.metrics.Failed(r.transport)
			l.Error().Interface("panic", rec).Msg("recovered while handling message")
		}
	}()

	if err := r.reply(ctx, message, l); err != nil {
		l.Error().Err(err).Msg("failed to respond to message")
	}
}

func (r *Responder) shouldReply(message *domain.Message, extracted domain.Extracted) bool {
	if extracted.Text == "" {
		return false
	}

	if r.trigger.Match(extracted.Text, r.selfID()) {
		return true
	}

	return r.replyToBot && extracted.ReplyContext != nil &&
		r.tracker.WasReplyToUs(message.Key.ChatID, extracted.ReplyContext.StanzaID)
}

func (r *Responder) logger(message *domain.Message) zerolog.Logger {
	c := log.With().
		Str("transport", r.transport).
		Str("chatId", message.Key.ChatID).
		Str("messageId", message.Key.MessageID).
		Bool("group", message.IsGroup)

	if id, err := uuid.NewV4(); err == nil {
		c = c.Str("trace", id.String())
	}

	return c.Logger()
}
