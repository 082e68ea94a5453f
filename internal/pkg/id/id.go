package id

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// At returns a ULID whose time component is t. Record IDs therefore sort by
// issue time, including under an injected clock.
func At(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
