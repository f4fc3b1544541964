package domain

// MessageKey identifies one inbound message instance.
type MessageKey struct {
	ChatID    string
	MessageID string
}

// Valid reports whether both halves of the key are present.
func (k MessageKey) Valid() bool {
	return k.ChatID != "" && k.MessageID != ""
}

// String renders the key for logs; it is not unique when ids contain "|".
func (k MessageKey) String() string {
	return k.ChatID + "|" + k.MessageID
}

type BatchType string

const (
	BatchNotify BatchType = "notify"
	BatchAppend BatchType = "append"
)

// Batch is one inbound event as delivered by a transport.
type Batch struct {
	Type     BatchType
	Messages []Message
}

type Message struct {
	Key       MessageKey
	SenderID  string
	FromMe    bool
	Duplicate bool
	Broadcast bool
	IsGroup   bool
	// Envelope is nil when the event carries no message payload.
	Envelope *Envelope
	// Native is the transport's own representation, used when quoting.
	Native any
}

type WrapperKind int

const (
	Plain WrapperKind = iota
	Ephemeral
	ViewOnce
	Edited
)

func (k WrapperKind) String() string {
	switch k {
	case Ephemeral:
		return "ephemeral"
	case ViewOnce:
		return "view_once"
	case Edited:
		return "edited"
	default:
		return "plain"
	}
}

// Envelope is either a wrapper around another envelope or a plain layer holding content.
type Envelope struct {
	Kind    WrapperKind
	Inner   *Envelope
	Content *Content
}

type Variant int

const (
	VariantUnknown Variant = iota
	VariantConversation
	VariantExtendedText
	VariantImage
	VariantVideo
	VariantDocument
)

// Content is the substantive payload of a message. Text holds the text or caption of known variants.
// Fields lists the populated fields of an unrecognized variant in declaration order.
type Content struct {
	Variant Variant
	Text    string
	Context *ReplyContext
	Fields  []Field
}

type Field struct {
	Name    string
	Text    string
	Caption string
	Context *ReplyContext
}

// ReplyContext references the message being quoted.
type ReplyContext struct {
	StanzaID    string
	Participant string
}

// Extracted is the text and optional quote context of a message.
type Extracted struct {
	Text         string
	ReplyContext *ReplyContext
}
