package chaos

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"househub/cases"
	"househub/kv"
	"househub/storage"
)

// InjectLegacyCases periodically writes cases in the old per-seller key
// layout, some of them unreadable, and migrates them while other actors use
// the unified collection.
func InjectLegacyCases(ctx context.Context, store kv.Store, migrator *cases.Migrator, sellerID string, rng *rand.Rand, stop <-chan struct{}) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
		}

		id := uuid.NewString()
		value := "{not json"
		if rng.Intn(4) != 0 {
			body, err := json.Marshal(map[string]any{
				"sellerId":       sellerID,
				"address":        fmt.Sprintf("Nørregade %d", rng.Intn(200)+1),
				"postalCode":     "1165",
				"size":           fmt.Sprint(60 + rng.Intn(140)),
				"estimatedPrice": "3.250.000 kr",
			})
			if err != nil {
				return err
			}
			value = string(body)
		}
		if err := store.Set(ctx, storage.LegacySellerCasePrefix+id, value); err != nil {
			return fmt.Errorf("chaos write legacy: %w", err)
		}
		if _, err := migrator.MigrateLegacy(ctx); err != nil {
			return fmt.Errorf("chaos migrate: %w", err)
		}
	}
}
