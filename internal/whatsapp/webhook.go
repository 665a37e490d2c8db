// Package whatsapp adapts the WhatsApp Cloud API: it decodes webhook
// deliveries into normalized inbound messages and sends outbound messages
// through the Graph API.
package whatsapp

import (
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/sundaybot/internal/domain"
)

// WebhookPayload is the body of a webhook POST.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field update.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue carries messages and delivery statuses.
type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts"`
	Messages         []InboundMessage `json:"messages"`
}

// Metadata identifies the receiving business number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender's profile.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage is one user message as delivered by the provider.
type InboundMessage struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *TextBody    `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Button      *QuickReply  `json:"button,omitempty"`
}

// TextBody is a plain text message.
type TextBody struct {
	Body string `json:"body"`
}

// Interactive is a reply to a button or list message.
type Interactive struct {
	Type        string    `json:"type"`
	ButtonReply *ReplyRow `json:"button_reply,omitempty"`
	ListReply   *ReplyRow `json:"list_reply,omitempty"`
}

// ReplyRow is the option the user picked.
type ReplyRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// QuickReply is a template quick-reply button press.
type QuickReply struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// Messages flattens every user message in the payload.
func (p *WebhookPayload) Messages() []InboundMessage {
	var out []InboundMessage
	for _, e := range p.Entry {
		for _, c := range e.Changes {
			out = append(out, c.Value.Messages...)
		}
	}
	return out
}

// Normalize converts a provider message into an Inbound. It never fails:
// shapes it does not understand produce an empty Command.
func Normalize(m InboundMessage, received time.Time) domain.Inbound {
	in := domain.Inbound{
		UserID:     m.From,
		MessageID:  m.ID,
		Kind:       domain.InboundOther,
		ReceivedAt: received,
	}
	if ts, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil && ts > 0 {
		in.ReceivedAt = time.Unix(ts, 0)
	}

	switch {
	case m.Type == "text" && m.Text != nil:
		in.Kind = domain.InboundText
		in.Text = strings.TrimSpace(m.Text.Body)
	case m.Type == "interactive" && m.Interactive != nil && m.Interactive.ButtonReply != nil:
		in.Kind = domain.InboundButton
		in.Text = strings.TrimSpace(m.Interactive.ButtonReply.ID)
	case m.Type == "interactive" && m.Interactive != nil && m.Interactive.ListReply != nil:
		in.Kind = domain.InboundList
		in.Text = strings.TrimSpace(m.Interactive.ListReply.ID)
	case m.Type == "button" && m.Button != nil:
		in.Kind = domain.InboundButton
		in.Text = strings.TrimSpace(firstNonEmpty(m.Button.Payload, m.Button.Text))
	default:
		return in
	}

	in.Command = strings.ToLower(in.Text)
	return in
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
