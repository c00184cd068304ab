package cases

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

var sagsnummerSpace = big.NewInt(10_000_000)

// GenerateSagsnummer returns "HH-<year>-<7 digits>" drawn from crypto/rand.
func GenerateSagsnummer(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, sagsnummerSpace)
	if err != nil {
		return "", fmt.Errorf("cases: sagsnummer entropy: %w", err)
	}
	return fmt.Sprintf("HH-%d-%07d", now.Year(), n.Int64()), nil
}
