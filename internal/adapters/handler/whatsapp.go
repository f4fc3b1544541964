package handler

import (
	"context"
	"slices"
	"sosibot/internal/core/domain"

	"github.com/rs/zerolog/log"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// WhatsApp turns whatsmeow message events into batches for a responder session.
type WhatsApp struct {
	ctx     context.Context
	batches chan<- domain.Batch
}

func NewWhatsApp(ctx context.Context, batches chan<- domain.Batch) *WhatsApp {
	return &WhatsApp{ctx: ctx, batches: batches}
}

// HandleEvent is registered with the whatsmeow client's event handlers.
func (w *WhatsApp) HandleEvent(evt any) {
	e, ok := evt.(*events.Message)
	if !ok {
		return
	}

	batch := domain.Batch{Type: domain.BatchNotify, Messages: []domain.Message{ConvertWhatsAppMessage(e)}}

	log.Debug().Str("chat", e.Info.Chat.String()).Str("id", string(e.Info.ID)).Msg("received whatsapp message")

	select {
	case w.batches <- batch:
	case <-w.ctx.Done():
	}
}

func ConvertWhatsAppMessage(e *events.Message) domain.Message {
	raw := e.RawMessage
	if raw == nil {
		raw = e.Message
	}

	return domain.Message{
		Key: domain.MessageKey{
			ChatID:    e.Info.Chat.String(),
			MessageID: string(e.Info.ID),
		},
		SenderID:  e.Info.Sender.String(),
		FromMe:    e.Info.IsFromMe,
		Broadcast: e.Info.Chat.Server == types.BroadcastServer,
		IsGroup:   e.Info.IsGroup,
		Envelope:  convertEnvelope(raw, 0),
		Native:    e,
	}
}

func convertEnvelope(m *waE2E.Message, depth int) *domain.Envelope {
	if m == nil {
		return nil
	}

	if depth > domain.MaxUnwrapDepth {
		return &domain.Envelope{}
	}

	wrapped := func(kind domain.WrapperKind, inner *waE2E.FutureProofMessage) *domain.Envelope {
		return &domain.Envelope{Kind: kind, Inner: convertEnvelope(inner.GetMessage(), depth+1)}
	}

	switch {
	case m.GetEphemeralMessage() != nil:
		return wrapped(domain.Ephemeral, m.GetEphemeralMessage())
	case m.GetViewOnceMessage() != nil:
		return wrapped(domain.ViewOnce, m.GetViewOnceMessage())
	case m.GetViewOnceMessageV2() != nil:
		return wrapped(domain.ViewOnce, m.GetViewOnceMessageV2())
	case m.GetViewOnceMessageV2Extension() != nil:
		return wrapped(domain.ViewOnce, m.GetViewOnceMessageV2Extension())
	case m.GetEditedMessage() != nil:
		return wrapped(domain.Edited, m.GetEditedMessage())
	}

	return &domain.Envelope{Content: convertContent(m)}
}

func convertContent(m *waE2E.Message) *domain.Content {
	switch {
	case m.GetExtendedTextMessage() != nil:
		x := m.GetExtendedTextMessage()
		return &domain.Content{Variant: domain.VariantExtendedText, Text: x.GetText(),
			Context: convertContext(x.GetContextInfo())}
	case m.GetConversation() != "":
		return &domain.Content{Variant: domain.VariantConversation, Text: m.GetConversation()}
	case m.GetImageMessage() != nil:
		x := m.GetImageMessage()
		return &domain.Content{Variant: domain.VariantImage, Text: x.GetCaption(),
			Context: convertContext(x.GetContextInfo())}
	case m.GetVideoMessage() != nil:
		x := m.GetVideoMessage()
		return &domain.Content{Variant: domain.VariantVideo, Text: x.GetCaption(),
			Context: convertContext(x.GetContextInfo())}
	case m.GetDocumentMessage() != nil:
		x := m.GetDocumentMessage()
		return &domain.Content{Variant: domain.VariantDocument, Text: x.GetCaption(),
			Context: convertContext(x.GetContextInfo())}
	}

	return &domain.Content{Fields: populatedFields(m)}
}

func convertContext(ci *waE2E.ContextInfo) *domain.ReplyContext {
	if ci == nil {
		return nil
	}

	return &domain.ReplyContext{StanzaID: ci.GetStanzaID(), Participant: ci.GetParticipant()}
}

type contextCarrier interface {
	GetContextInfo() *waE2E.ContextInfo
}

// populatedFields lists the set fields of an unrecognized message in field number order, reading text, caption
// and context info off nested messages where present.
func populatedFields(m *waE2E.Message) []domain.Field {
	type numbered struct {
		number protoreflect.FieldNumber
		field  domain.Field
	}

	var found []numbered

	m.ProtoReflect().Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		field := domain.Field{Name: string(fd.Name())}

		switch {
		case fd.IsList() || fd.IsMap():
		case fd.Kind() == protoreflect.MessageKind:
			inner := v.Message()
			field.Text = stringField(inner, "text")
			field.Caption = stringField(inner, "caption")
			if carrier, ok := inner.Interface().(contextCarrier); ok {
				field.Context = convertContext(carrier.GetContextInfo())
			}
		}

		found = append(found, numbered{number: fd.Number(), field: field})
		return true
	})

	slices.SortFunc(found, func(a, b numbered) int { return int(a.number) - int(b.number) })

	fields := make([]domain.Field, len(found))
	for i, f := range found {
		fields[i] = f.field
	}

	return fields
}

func stringField(m protoreflect.Message, name protoreflect.Name) string {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil || fd.Kind() != protoreflect.StringKind || fd.IsList() {
		return ""
	}

	return m.Get(fd).String()
}
