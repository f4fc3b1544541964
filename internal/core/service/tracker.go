package service

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
)

const DefaultSentHistory = 50

type Tracker interface {
	Remember(chatID, messageID string)
	WasReplyToUs(chatID, stanzaID string) bool
}

// SentTracker keeps the most recent outbound message ids per chat.
type SentTracker struct {
	chats   map[string][]string
	history int
	mutex   *sync.Mutex
}

func NewSentTracker(history int) *SentTracker {
	if history <= 0 {
		history = DefaultSentHistory
	}

	return &SentTracker{
		chats:   make(map[string][]string),
		history: history,
		mutex:   &sync.Mutex{},
	}
}

func (t *SentTracker) Remember(chatID, messageID string) {
	if messageID == "" {
		return
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	ids := append(t.chats[chatID], messageID)
	if len(ids) > t.history {
		ids = slices.Clone(ids[len(ids)-t.history:])
	}
	t.chats[chatID] = ids

	log.Debug().Str("chatId", chatID).Str("messageId", messageID).Int("tracked", len(ids)).Msg("remembered sent id")
}

func (t *SentTracker) WasReplyToUs(chatID, stanzaID string) bool {
	if stanzaID == "" {
		return false
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	return slices.Contains(t.chats[chatID], stanzaID)
}

// Sent returns a copy of the ids tracked for chatID, oldest first.
func (t *SentTracker) Sent(chatID string) []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return slices.Clone(t.chats[chatID])
}
