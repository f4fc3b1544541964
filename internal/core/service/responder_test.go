package service

import (
	"context"
	"errors"
	"sosibot/internal/core/domain"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTextSender struct {
	mock.Mock
	mutex sync.Mutex
}

func (m *MockTextSender) SendMessageReply(ctx context.Context, message *domain.Message, text string) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	args := m.Called(ctx, message, text)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func textMessage(chatID, id, text string) domain.Message {
	return domain.Message{
		Key:      domain.MessageKey{ChatID: chatID, MessageID: id},
		SenderID: "111@s.whatsapp.net",
		Envelope: &domain.Envelope{Content: &domain.Content{Variant: domain.VariantConversation, Text: text}},
	}
}

func notify(messages ...domain.Message) domain.Batch {
	return domain.Batch{Type: domain.BatchNotify, Messages: messages}
}

func newTestResponder(generator ReplyGenerator, sender *MockTextSender, cfg ResponderConfig) *Responder {
	if cfg.Transport == "" {
		cfg.Transport = "test"
	}
	if cfg.Hotwords == nil {
		cfg.Hotwords = domain.ParseHotwords("سوسي,يا سوسي")
	}

	return NewResponder(cfg, generator, sender, func() string { return "4915112345:7@s.whatsapp.net" },
		NewMetrics(prometheus.NewRegistry()))
}

func TestResponderEndToEnd(t *testing.T) {
	primary := &MockTextGenerator{response: "بلاك كلوفر"}
	sender := &MockTextSender{}
	sender.On("SendMessageReply", mock.Anything, mock.AnythingOfType("*domain.Message"), "بلاك كلوفر").
		Return([]string{"SENT1"}, nil).Once()

	r := newTestResponder(NewDispatcher(primary, nil), sender, ResponderConfig{})

	r.Handle(t.Context(), notify(textMessage("group@g.us", "IN1", "سوسي ما أفضل أنمي سحر")))

	sender.AssertExpectations(t)
	sender.AssertNumberOfCalls(t, "SendMessageReply", 1)
	assert.Equal(t, []string{"سوسي ما أفضل أنمي سحر"}, primary.prompts)
	assert.Equal(t, []string{"SENT1"}, r.tracker.Sent("group@g.us"))
	assert.InDelta(t, 1, testutil.ToFloat64(r.metrics.replies.WithLabelValues("test")), 0)

	// the same inbound message again is suppressed
	r.Handle(t.Context(), notify(textMessage("group@g.us", "IN1", "سوسي ما أفضل أنمي سحر")))
	sender.AssertNumberOfCalls(t, "SendMessageReply", 1)
	assert.InDelta(t, 1, testutil.ToFloat64(r.metrics.duplicates.WithLabelValues("test")), 0)
}

func TestResponderPrimaryFailureSendsNothing(t *testing.T) {
	primary := &MockTextGenerator{err: domain.ErrPrimaryBackend}
	sender := &MockTextSender{}

	r := newTestResponder(NewDispatcher(primary, nil), sender, ResponderConfig{})

	message := textMessage("chat", "IN1", "يا سوسي كيف حالك")

	err := r.Respond(t.Context(), &message)
	require.ErrorIs(t, err, domain.ErrPrimaryBackend)

	assert.NotPanics(t, func() {
		r.Handle(t.Context(), notify(textMessage("chat", "IN2", "يا سوسي كيف حالك")))
	})

	sender.AssertNotCalled(t, "SendMessageReply", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, r.tracker.Sent("chat"))
	assert.InDelta(t, 2, testutil.ToFloat64(r.metrics.failures.WithLabelValues("test")), 0)
}

func TestResponderSendFailure(t *testing.T) {
	sender := &MockTextSender{}
	sender.On("SendMessageReply", mock.Anything, mock.Anything, "ok").Return(nil, errors.New("offline"))

	r := newTestResponder(NewDispatcher(&MockTextGenerator{response: "ok"}, nil), sender, ResponderConfig{})

	message := textMessage("chat", "IN1", "سوسي")
	err := r.Respond(t.Context(), &message)

	require.ErrorIs(t, err, domain.ErrSendingReplyFailed)
	assert.Empty(t, r.tracker.Sent("chat"))
}

func TestResponderAdmit(t *testing.T) {
	fromMe := textMessage("chat", "1", "سوسي")
	fromMe.FromMe = true

	duplicate := textMessage("chat", "2", "سوسي")
	duplicate.Duplicate = true

	broadcast := textMessage("status@broadcast", "3", "سوسي")
	broadcast.Broadcast = true

	noPayload := textMessage("chat", "4", "")
	noPayload.Envelope = nil

	tests := []struct {
		name   string
		batch  domain.Batch
		wantOK bool
		wantID string
	}{
		{name: "notify batch", batch: notify(textMessage("chat", "5", "x")), wantOK: true, wantID: "5"},
		{name: "untyped batch", batch: domain.Batch{Messages: []domain.Message{textMessage("chat", "6", "x")}},
			wantOK: true, wantID: "6"},
		{name: "append batch", batch: domain.Batch{Type: domain.BatchAppend,
			Messages: []domain.Message{textMessage("chat", "7", "x")}}},
		{name: "empty batch", batch: notify()},
		{name: "only the first message counts", batch: notify(textMessage("chat", "8", "x"),
			textMessage("chat", "9", "y")), wantOK: true, wantID: "8"},
		{name: "own message", batch: notify(fromMe)},
		{name: "flagged duplicate", batch: notify(duplicate)},
		{name: "broadcast", batch: notify(broadcast)},
		{name: "no payload", batch: notify(noPayload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResponder(NewDispatcher(nil, nil), &MockTextSender{}, ResponderConfig{})

			message, ok := r.Admit(tt.batch)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, message.Key.MessageID)

				_, again := r.Admit(tt.batch)
				assert.False(t, again)
			}
		})
	}
}

func TestResponderTrigger(t *testing.T) {
	tests := []struct {
		name       string
		replyToBot bool
		sent       []string
		text       string
		context    *domain.ReplyContext
		wantSend   bool
	}{
		{name: "hotword", text: "يا سوسي كيف حالك", wantSend: true},
		{name: "no hotword", text: "مرحبا", wantSend: false},
		{name: "own number mention", text: "@4915112345 hi", wantSend: true},
		{
			name:     "reply to our message without hotword, path disabled",
			sent:     []string{"OUT1"},
			text:     "thanks",
			context:  &domain.ReplyContext{StanzaID: "OUT1"},
			wantSend: false,
		},
		{
			name:       "reply to our message without hotword, path enabled",
			replyToBot: true,
			sent:       []string{"OUT1"},
			text:       "thanks",
			context:    &domain.ReplyContext{StanzaID: "OUT1"},
			wantSend:   true,
		},
		{
			name:       "reply to someone else",
			replyToBot: true,
			sent:       []string{"OUT1"},
			text:       "thanks",
			context:    &domain.ReplyContext{StanzaID: "OTHER"},
			wantSend:   false,
		},
		{
			name:       "empty reply to our message",
			replyToBot: true,
			sent:       []string{"OUT1"},
			text:       "",
			context:    &domain.ReplyContext{StanzaID: "OUT1"},
			wantSend:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &MockTextSender{}
			sender.On("SendMessageReply", mock.Anything, mock.Anything, "reply").Return([]string{"OUT2"}, nil)

			r := newTestResponder(NewDispatcher(&MockTextGenerator{response: "reply"}, nil), sender,
				ResponderConfig{ReplyToBot: tt.replyToBot})
			for _, id := range tt.sent {
				r.tracker.Remember("chat", id)
			}

			message := domain.Message{
				Key: domain.MessageKey{ChatID: "chat", MessageID: "IN"},
				Envelope: &domain.Envelope{Content: &domain.Content{
					Variant: domain.VariantExtendedText, Text: tt.text, Context: tt.context,
				}},
			}

			r.Handle(t.Context(), notify(message))

			if tt.wantSend {
				sender.AssertNumberOfCalls(t, "SendMessageReply", 1)
			} else {
				sender.AssertNotCalled(t, "SendMessageReply", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestResponderRemembersEveryPartOfASplitReply(t *testing.T) {
	sender := &MockTextSender{}
	sender.On("SendMessageReply", mock.Anything, mock.Anything, "long reply").
		Return([]string{"PART1", "PART2"}, nil).Once()
	sender.On("SendMessageReply", mock.Anything, mock.Anything, "long reply").
		Return([]string{"PART3"}, nil).Once()

	r := newTestResponder(NewDispatcher(&MockTextGenerator{response: "long reply"}, nil), sender,
		ResponderConfig{ReplyToBot: true})

	r.Handle(t.Context(), notify(textMessage("chat", "IN1", "سوسي")))
	assert.Equal(t, []string{"PART1", "PART2"}, r.tracker.Sent("chat"))

	// replying to the first part, without a hotword, still reaches the bot
	reply := domain.Message{
		Key: domain.MessageKey{ChatID: "chat", MessageID: "IN2"},
		Envelope: &domain.Envelope{Content: &domain.Content{
			Variant: domain.VariantExtendedText, Text: "thanks", Context: &domain.ReplyContext{StanzaID: "PART1"},
		}},
	}
	r.Handle(t.Context(), notify(reply))

	sender.AssertNumberOfCalls(t, "SendMessageReply", 2)
	assert.Equal(t, []string{"PART1", "PART2", "PART3"}, r.tracker.Sent("chat"))
}

func TestResponderPartialSendKeepsSentParts(t *testing.T) {
	sender := &MockTextSender{}
	sender.On("SendMessageReply", mock.Anything, mock.Anything, "ok").Return([]string{"PART1"}, errors.New("flood wait"))

	r := newTestResponder(NewDispatcher(&MockTextGenerator{response: "ok"}, nil), sender, ResponderConfig{})

	message := textMessage("chat", "IN1", "سوسي")
	err := r.Respond(t.Context(), &message)

	require.ErrorIs(t, err, domain.ErrSendingReplyFailed)
	assert.Equal(t, []string{"PART1"}, r.tracker.Sent("chat"))
}

type blockingGenerator struct {
	release chan struct{}
}

func (b *blockingGenerator) Generate(ctx context.Context, text string) (string, error) {
	if text == "سوسي slow" {
		<-b.release
	}
	return "done", nil
}

func TestResponderRunDoesNotBlockOnSlowReplies(t *testing.T) {
	generator := &blockingGenerator{release: make(chan struct{})}

	fast := make(chan struct{})
	sender := &MockTextSender{}
	sender.On("SendMessageReply", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.Key.MessageID == "FAST"
	}), "done").Return([]string{"OUT-FAST"}, nil).Run(func(_ mock.Arguments) { close(fast) })
	sender.On("SendMessageReply", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.Key.MessageID == "SLOW"
	}), "done").Return([]string{"OUT-SLOW"}, nil)

	r := newTestResponder(generator, sender, ResponderConfig{})

	ctx, cancel := context.WithCancel(t.Context())
	batches := make(chan domain.Batch)
	done := make(chan error)

	go func() { done <- r.Run(ctx, batches) }()

	batches <- notify(textMessage("chat", "SLOW", "سوسي slow"))
	batches <- notify(textMessage("chat", "FAST", "سوسي fast"))

	select {
	case <-fast:
	case <-time.After(2 * time.Second):
		t.Fatal("fast reply was blocked by the slow one")
	}

	// cancelling does not abort the reply in flight
	cancel()
	close(generator.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}

	assert.ElementsMatch(t, []string{"OUT-SLOW", "OUT-FAST"}, r.tracker.Sent("chat"))
}

func TestResponderRunStopsOnClosedChannel(t *testing.T) {
	r := newTestResponder(NewDispatcher(nil, nil), &MockTextSender{}, ResponderConfig{})

	batches := make(chan domain.Batch)
	close(batches)

	require.NoError(t, r.Run(t.Context(), batches))
}
