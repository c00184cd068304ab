package cases

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusDraft            Status = "draft"
	StatusActive           Status = "active"
	StatusShowingBooked    Status = "showing_booked"
	StatusShowingCompleted Status = "showing_completed"
	StatusOffersReceived   Status = "offers_received"
	StatusRealtorSelected  Status = "realtor_selected"
	StatusWithdrawn        Status = "withdrawn"
	StatusArchived         Status = "archived"
)

var allStatuses = []Status{
	StatusDraft,
	StatusActive,
	StatusShowingBooked,
	StatusShowingCompleted,
	StatusOffersReceived,
	StatusRealtorSelected,
	StatusWithdrawn,
	StatusArchived,
}

var statusLabels = map[Status]string{
	StatusDraft:            "kladde",
	StatusActive:           "aktiv",
	StatusShowingBooked:    "fremvisning booket",
	StatusShowingCompleted: "fremvisning afsluttet",
	StatusOffersReceived:   "tilbud modtaget",
	StatusRealtorSelected:  "mægler valgt",
	StatusArchived:         "arkiveret",
	StatusWithdrawn:        "trukket tilbage",
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the Danish text shown in the admin console.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Open reports whether the case still appears in active listings.
func (s Status) Open() bool {
	return s != StatusArchived && s != StatusWithdrawn
}

// AcceptsOffers reports whether agents may submit offers in this status.
func (s Status) AcceptsOffers() bool {
	switch s {
	case StatusActive, StatusShowingBooked, StatusShowingCompleted, StatusOffersReceived:
		return true
	default:
		return false
	}
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}
