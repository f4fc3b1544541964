package domain

// MaxUnwrapDepth bounds how many wrapper layers Unwrap descends through.
const MaxUnwrapDepth = 16

// Unwrap descends through ephemeral, view-once and edited wrappers in any order and returns the innermost plain
// envelope. A nil input, a wrapper without inner payload or nesting deeper than MaxUnwrapDepth all yield an empty
// plain envelope.
func Unwrap(envelope *Envelope) *Envelope {
	current := envelope

	for range MaxUnwrapDepth + 1 {
		if current == nil {
			return &Envelope{}
		}

		switch current.Kind {
		case Ephemeral, ViewOnce, Edited:
			current = current.Inner
		default:
			return current
		}
	}

	return &Envelope{}
}

// Extract returns the text (or caption) and quote context of the unwrapped envelope.
func Extract(envelope *Envelope) Extracted {
	content := Unwrap(envelope).Content
	if content == nil {
		return Extracted{}
	}

	switch content.Variant {
	case VariantExtendedText, VariantConversation, VariantImage, VariantVideo, VariantDocument:
		return Extracted{Text: content.Text, ReplyContext: content.Context}
	}

	if len(content.Fields) == 0 {
		return Extracted{}
	}

	first := content.Fields[0]
	text := first.Text
	if text == "" {
		text = first.Caption
	}

	return Extracted{Text: text, ReplyContext: first.Context}
}
