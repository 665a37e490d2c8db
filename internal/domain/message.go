package domain

// MessageKind selects the outbound layout.
type MessageKind string

const (
	MessageText    MessageKind = "text"
	MessageButtons MessageKind = "buttons"
	MessageList    MessageKind = "list"
)

// Option is one selectable button or list row.
type Option struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Message is a transport-neutral outbound payload.
type Message struct {
	Kind    MessageKind `json:"kind"`
	Header  string      `json:"header,omitempty"`
	Body    string      `json:"body"`
	Footer  string      `json:"footer,omitempty"`
	Button  string      `json:"button,omitempty"`
	Section string      `json:"section,omitempty"`
	Options []Option    `json:"options,omitempty"`
}

// Text builds a plain text message.
func Text(body string) Message {
	return Message{Kind: MessageText, Body: body}
}

// Buttons builds a reply-button message.
func Buttons(body string, options ...Option) Message {
	return Message{Kind: MessageButtons, Body: body, Options: options}
}

// List builds a single-section list message.
func List(header, body, button, section string, options ...Option) Message {
	return Message{
		Kind:    MessageList,
		Header:  header,
		Body:    body,
		Button:  button,
		Section: section,
		Options: options,
	}
}

// OptionIDs returns the ids of the message's options in order.
func (m Message) OptionIDs() []string {
	ids := make([]string, 0, len(m.Options))
	for _, o := range m.Options {
		ids = append(ids, o.ID)
	}
	return ids
}
