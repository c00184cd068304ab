package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"househub/agentcase"
	"househub/cases"
	"househub/messaging"
)

// Services are the entry points the actors drive.
type Services struct {
	Cases    *cases.Service
	Agents   *agentcase.Service
	Messages *messaging.Service
}

// expected reports errors that concurrent actors provoke in each other: a case
// deleted or lost to a concurrent write, or moved into a state that refuses
// the operation.
func expected(err error) bool {
	return errors.Is(err, cases.ErrNotFound) ||
		errors.Is(err, cases.ErrInvalidState) ||
		errors.Is(err, cases.ErrOfferNotFound) ||
		errors.Is(err, messaging.ErrCaseArchived)
}

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

func pause(rng *rand.Rand, base, jitter int) {
	time.Sleep(time.Duration(base+rng.Intn(jitter)) * time.Millisecond)
}

func pickCase(ctx context.Context, svc Services, rng *rand.Rand) (cases.Case, bool, error) {
	list, err := svc.Cases.List(ctx, cases.Filters{IncludeArchived: true})
	if err != nil || len(list) == 0 {
		return cases.Case{}, false, err
	}
	return list[rng.Intn(len(list))], true, nil
}

// Creator keeps creating cases for sellerID.
func Creator(ctx context.Context, svc Services, sellerID string, rng *rand.Rand, stop <-chan struct{}) error {
	for n := 0; ; n++ {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		_, err := svc.Cases.Create(ctx, cases.CreateParams{
			SellerID:   sellerID,
			Address:    fmt.Sprintf("Strandvejen %d", n+1),
			Postnummer: "2900",
			PriceValue: int64(2_000_000 + rng.Intn(6_000_000)),
		})
		if err != nil {
			return fmt.Errorf("creator %s: %w", sellerID, err)
		}
		pause(rng, 10, 20)
	}
}

// Bidder submits offers, registers for showings and rejects cases as agentID.
func Bidder(ctx context.Context, svc Services, agentID string, rng *rand.Rand, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		c, ok, err := pickCase(ctx, svc, rng)
		if err != nil {
			return fmt.Errorf("bidder list: %w", err)
		}
		if ok {
			switch rng.Intn(3) {
			case 0:
				_, _, err = svc.Agents.SubmitOffer(ctx, agentID, c.ID, cases.OfferParams{
					AgentID:    agentID,
					AgentName:  agentID,
					PriceValue: c.PriceValue,
				})
			case 1:
				_, err = svc.Cases.RegisterShowing(ctx, c.ID, cases.AgentRef{ID: agentID, Name: agentID})
			default:
				_, err = svc.Agents.Reject(ctx, agentID, c.ID)
			}
			if err != nil && !expected(err) {
				return fmt.Errorf("bidder %s on %s: %w", agentID, c.ID, err)
			}
		}
		pause(rng, 15, 30)
	}
}

// Decider accepts or rejects pending offers as the case seller.
func Decider(ctx context.Context, svc Services, rng *rand.Rand, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		c, ok, err := pickCase(ctx, svc, rng)
		if err != nil {
			return fmt.Errorf("decider list: %w", err)
		}
		if ok && len(c.Offers) > 0 {
			offer := c.Offers[rng.Intn(len(c.Offers))]
			status := cases.OfferAccepted
			if rng.Intn(2) == 0 {
				status = cases.OfferRejected
			}
			if _, err := svc.Cases.SetOfferStatus(ctx, c.ID, offer.ID, status, c.SellerID); err != nil && !expected(err) {
				return fmt.Errorf("decider on %s: %w", c.ID, err)
			}
		}
		pause(rng, 20, 40)
	}
}

// StatusFlipper moves random cases to random known statuses.
func StatusFlipper(ctx context.Context, svc Services, actorID string, rng *rand.Rand, stop <-chan struct{}) error {
	statuses := cases.Statuses()
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		c, ok, err := pickCase(ctx, svc, rng)
		if err != nil {
			return fmt.Errorf("flipper list: %w", err)
		}
		if ok {
			status := statuses[rng.Intn(len(statuses))]
			if _, err := svc.Cases.UpdateStatus(ctx, c.ID, status, actorID); err != nil && !expected(err) {
				return fmt.Errorf("flipper on %s: %w", c.ID, err)
			}
		}
		pause(rng, 30, 50)
	}
}

// Messenger writes to case threads as fromID.
func Messenger(ctx context.Context, svc Services, fromID string, rng *rand.Rand, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		c, ok, err := pickCase(ctx, svc, rng)
		if err != nil {
			return fmt.Errorf("messenger list: %w", err)
		}
		if ok {
			_, err := svc.Messages.Send(ctx, messaging.SendParams{
				CaseID:     c.ID,
				FromUserID: fromID,
				ToUserID:   c.SellerID,
				Message:    "Er boligen stadig til salg?",
			})
			if err != nil && !expected(err) {
				return fmt.Errorf("messenger on %s: %w", c.ID, err)
			}
		}
		pause(rng, 25, 50)
	}
}
