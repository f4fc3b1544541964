package domain

import "strings"

// ParseHotwords splits a comma separated list, trimming blanks. Only an empty list falls back to DefaultHotwords;
// a list of separators yields no words, leaving the account id as the only trigger.
func ParseHotwords(list string) []string {
	if list == "" {
		list = DefaultHotwords
	}

	return splitHotwords(list)
}

func splitHotwords(list string) []string {
	var words []string

	for _, w := range strings.Split(list, ",") {
		w = strings.TrimSpace(w)
		if w != "" {
			words = append(words, w)
		}
	}

	return words
}

// NormalizeSelfID drops the device suffix and the server part of an account id, so "123:4@s.whatsapp.net"
// becomes "123".
func NormalizeSelfID(id string) string {
	id, _, _ = strings.Cut(id, ":")
	id, _, _ = strings.Cut(id, "@")

	return id
}

// Trigger decides whether a message warrants a reply.
type Trigger struct {
	hotwords []string
}

func NewTrigger(hotwords []string) Trigger {
	lowered := make([]string, 0, len(hotwords))
	for _, h := range hotwords {
		if h = strings.ToLower(h); h != "" {
			lowered = append(lowered, h)
		}
	}

	return Trigger{hotwords: lowered}
}

// Hotwords returns the active hotword set for the given account id, lower-cased.
func (t Trigger) Hotwords(selfID string) []string {
	words := append([]string(nil), t.hotwords...)

	if self := strings.ToLower(NormalizeSelfID(selfID)); self != "" {
		words = append(words, self, "@"+self)
	}

	return words
}

// Match reports whether text contains any active hotword. Matching is case-insensitive substring containment.
func (t Trigger) Match(text, selfID string) bool {
	if text == "" {
		return false
	}

	lower := strings.ToLower(text)
	for _, h := range t.Hotwords(selfID) {
		if strings.Contains(lower, h) {
			return true
		}
	}

	return false
}
