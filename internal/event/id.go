package event

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a new ULID. IDs generated within the same millisecond are
// strictly increasing, so a multi-event batch never repeats an ID.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now()), idEntropy)
	if err != nil {
		// Monotonic overflow within one millisecond: start a fresh sequence.
		idEntropy = ulid.Monotonic(rand.Reader, 0)
		id = ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy)
	}
	return id.String()
}
