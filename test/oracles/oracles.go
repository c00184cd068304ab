// Package oracles checks store-wide invariants that must hold in every
// snapshot, even while concurrent writers lose updates to each other.
package oracles

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"househub/agentcase"
	"househub/auth"
	"househub/cases"
	"househub/kv"
	"househub/storage"
)

var sagsnummerPattern = regexp.MustCompile(`^HH-\d{4}-\d{7}$`)

// Snapshot is one read of every collection the oracles look at.
type Snapshot struct {
	Users  []auth.User
	Cases  []cases.Case
	States []agentcase.State
}

// Load reads a snapshot. A corrupt collection is an error, not a violation.
func Load(ctx context.Context, store kv.Store) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Users, err = storage.NewCollection[auth.User](store, storage.KeyUsers).Load(ctx); err != nil {
		return snap, err
	}
	if snap.Cases, err = storage.NewCollection[cases.Case](store, storage.KeyCases).Load(ctx); err != nil {
		return snap, err
	}
	if snap.States, err = storage.NewCollection[agentcase.State](store, storage.KeyAgentCaseStates).Load(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

type Oracle struct {
	Name  string
	Check func(Snapshot) string
}

func All() []Oracle {
	return []Oracle{
		{Name: "O1_unique_case_id", Check: uniqueCaseID},
		{Name: "O2_unique_sagsnummer", Check: uniqueSagsnummer},
		{Name: "O3_sagsnummer_format", Check: sagsnummerFormat},
		{Name: "O4_known_status", Check: knownStatus},
		{Name: "O5_single_accepted_offer", Check: singleAcceptedOffer},
		{Name: "O6_offer_case_link", Check: offerCaseLink},
		{Name: "O7_unique_agent_state", Check: uniqueAgentState},
		{Name: "O8_unique_user", Check: uniqueUser},
	}
}

// Run loads a snapshot and returns the first failing oracle and its detail,
// or an empty name when every oracle passes.
func Run(ctx context.Context, store kv.Store) (string, string, error) {
	snap, err := Load(ctx, store)
	if err != nil {
		return "", "", fmt.Errorf("oracles: load snapshot: %w", err)
	}
	for _, o := range All() {
		if detail := o.Check(snap); detail != "" {
			return o.Name, detail, nil
		}
	}
	return "", "", nil
}

func uniqueCaseID(s Snapshot) string {
	seen := map[string]bool{}
	for _, c := range s.Cases {
		if seen[c.ID] {
			return "duplicate case id " + c.ID
		}
		seen[c.ID] = true
	}
	return ""
}

func uniqueSagsnummer(s Snapshot) string {
	seen := map[string]string{}
	for _, c := range s.Cases {
		if other, ok := seen[c.Sagsnummer]; ok {
			return fmt.Sprintf("sagsnummer %s shared by %s and %s", c.Sagsnummer, other, c.ID)
		}
		seen[c.Sagsnummer] = c.ID
	}
	return ""
}

func sagsnummerFormat(s Snapshot) string {
	for _, c := range s.Cases {
		if !sagsnummerPattern.MatchString(c.Sagsnummer) {
			return fmt.Sprintf("case %s has sagsnummer %q", c.ID, c.Sagsnummer)
		}
	}
	return ""
}

func knownStatus(s Snapshot) string {
	for _, c := range s.Cases {
		if !c.Status.Valid() {
			return fmt.Sprintf("case %s has status %q", c.ID, c.Status)
		}
	}
	for _, st := range s.States {
		if !st.Status.Valid() {
			return fmt.Sprintf("agent state %s/%s has status %q", st.AgentID, st.CaseID, st.Status)
		}
	}
	return ""
}

func singleAcceptedOffer(s Snapshot) string {
	for _, c := range s.Cases {
		accepted := 0
		for _, o := range c.Offers {
			if o.Status == cases.OfferAccepted {
				accepted++
			}
		}
		if accepted > 1 {
			return fmt.Sprintf("case %s has %d accepted offers", c.ID, accepted)
		}
	}
	return ""
}

func offerCaseLink(s Snapshot) string {
	for _, c := range s.Cases {
		for _, o := range c.Offers {
			if o.CaseID != c.ID {
				return fmt.Sprintf("offer %s on case %s points at %s", o.ID, c.ID, o.CaseID)
			}
		}
	}
	return ""
}

func uniqueAgentState(s Snapshot) string {
	seen := map[string]bool{}
	for _, st := range s.States {
		key := st.AgentID + "/" + st.CaseID
		if seen[key] {
			return "duplicate agent state " + key
		}
		seen[key] = true
	}
	return ""
}

func uniqueUser(s Snapshot) string {
	ids := map[string]bool{}
	emails := map[string]bool{}
	for _, u := range s.Users {
		email := strings.ToLower(u.Email)
		if ids[u.ID] || emails[email] {
			return fmt.Sprintf("duplicate user %s <%s>", u.ID, u.Email)
		}
		ids[u.ID] = true
		emails[email] = true
	}
	return ""
}
