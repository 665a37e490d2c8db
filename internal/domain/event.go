// Package domain contains core domain types for the SundayBot application.
package domain

// EventType identifies which camp a registration belongs to.
type EventType string

const (
	EventYouths EventType = "youths"
	EventAnnual EventType = "annual"
)

// EventTypes lists every known event type in display order.
var EventTypes = []EventType{EventYouths, EventAnnual}

// Valid reports whether e is a known event type.
func (e EventType) Valid() bool {
	return e == EventYouths || e == EventAnnual
}

// ParseEventType returns the event type for s, or false if unknown.
func ParseEventType(s string) (EventType, bool) {
	e := EventType(s)
	return e, e.Valid()
}
