package domain

import "time"

// InboundKind is the provider-level shape of an inbound message.
type InboundKind string

const (
	InboundText   InboundKind = "text"
	InboundButton InboundKind = "button"
	InboundList   InboundKind = "list"
	InboundOther  InboundKind = "other"
)

// Inbound is one normalized message from a user.
//
// Command is lowercased and trimmed and drives routing. Text keeps the
// original casing for literal answers such as names and dates. An empty
// Command means the shape was not understood.
type Inbound struct {
	UserID     string
	MessageID  string
	Kind       InboundKind
	Command    string
	Text       string
	ReceivedAt time.Time
}
