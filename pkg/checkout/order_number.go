package checkout

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"
	"time"
)

const (
	orderNumberPrefix = "SRR"
	suffixLength      = 5
	base36Alphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var orderNumberPattern = regexp.MustCompile(`^SRR-\d+-[0-9A-Z]{5}$`)

// OrderNumberFunc produces a candidate order number for the given instant.
type OrderNumberFunc func(now time.Time) (string, error)

// NewOrderNumber returns SRR-<unix millis>-<5 random base36 characters>.
// Uniqueness is enforced by the database; callers retry on collision.
func NewOrderNumber(now time.Time) (string, error) {
	return newOrderNumber(now, rand.Reader)
}

func newOrderNumber(now time.Time, random io.Reader) (string, error) {
	var suffix strings.Builder
	suffix.Grow(suffixLength)
	limit := big.NewInt(int64(len(base36Alphabet)))
	for range suffixLength {
		n, err := rand.Int(random, limit)
		if err != nil {
			return "", fmt.Errorf("order number suffix: %w", err)
		}
		suffix.WriteByte(base36Alphabet[n.Int64()])
	}
	return fmt.Sprintf("%s-%d-%s", orderNumberPrefix, now.UnixMilli(), suffix.String()), nil
}

// IsOrderNumber reports whether value has the order number shape.
func IsOrderNumber(value string) bool {
	return orderNumberPattern.MatchString(value)
}
