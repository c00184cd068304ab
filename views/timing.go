package views

import (
	"fmt"
	"math"
	"time"
)

// AgentDeadline is how long a case stays open for offers after creation.
const AgentDeadline = 7 * 24 * time.Hour

type Urgency string

const (
	UrgencyExpired  Urgency = "expired"
	UrgencyCritical Urgency = "critical"
	UrgencyWarning  Urgency = "warning"
	UrgencyOK       Urgency = "ok"
)

type Remaining struct {
	Days    int     `json:"days"`
	Text    string  `json:"text"`
	Urgency Urgency `json:"urgency"`
}

// TimeRemaining counts whole days left until deadline, rounding up.
func TimeRemaining(deadline, now time.Time) Remaining {
	days := int(math.Ceil(float64(deadline.Sub(now)) / float64(24*time.Hour)))
	switch {
	case days < 0:
		return Remaining{Days: days, Text: "Udløbet", Urgency: UrgencyExpired}
	case days == 0:
		return Remaining{Days: 0, Text: "I dag", Urgency: UrgencyCritical}
	case days == 1:
		return Remaining{Days: 1, Text: "1 dag tilbage", Urgency: UrgencyWarning}
	case days == 2:
		return Remaining{Days: 2, Text: "2 dage tilbage", Urgency: UrgencyWarning}
	default:
		return Remaining{Days: days, Text: fmt.Sprintf("%d dage tilbage", days), Urgency: UrgencyOK}
	}
}

// TimeSince renders the age of t in the dashboards' Danish wording.
func TimeSince(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Lige nu"
	case d < time.Hour:
		return fmt.Sprintf("%d min siden", int(d/time.Minute))
	case d < 24*time.Hour:
		h := int(d / time.Hour)
		if h == 1 {
			return "1 time siden"
		}
		return fmt.Sprintf("%d timer siden", h)
	default:
		days := int(d / (24 * time.Hour))
		if days == 1 {
			return "1 dag siden"
		}
		return fmt.Sprintf("%d dage siden", days)
	}
}
