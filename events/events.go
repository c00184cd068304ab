// Package events carries the typed change notifications emitted by every
// mutating operation. Views and side-effect recorders subscribe to the types
// they care about instead of rescanning the store on any change.
package events

import "time"

// Type names a kind of change, following the "<entity>.<change>" convention.
type Type string

const (
	CaseCreated          Type = "case.created"
	CaseUpdated          Type = "case.updated"
	CaseStatusChanged    Type = "case.statusChanged"
	CaseDeleted          Type = "case.deleted"
	OfferSubmitted       Type = "offer.submitted"
	OfferStatusChanged   Type = "offer.statusChanged"
	ShowingRegistered    Type = "showing.registered"
	ShowingBooked        Type = "showing.booked"
	MessageSent          Type = "message.sent"
	MessagesArchived     Type = "message.archived"
	UserCreated          Type = "user.created"
	UserUpdated          Type = "user.updated"
	UserDeactivated      Type = "user.deactivated"
	UserDeleted          Type = "user.deleted"
	SessionStarted       Type = "session.started"
	SessionEnded         Type = "session.ended"
	AgentCaseChanged     Type = "agentcase.changed"
	EnvironmentReset     Type = "environment.reset"
	NotificationsChanged Type = "notification.changed"
)

// Event is an immutable record of one change. Seq and At are assigned by the
// bus on publish.
type Event struct {
	Seq      uint64
	Type     Type
	At       time.Time
	ActorID  string
	CaseID   string
	UserID   string
	SellerID string
	Payload  map[string]any
}

// String returns the payload value for key as a string, or "".
func (e Event) String(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}
