// Package idgen generates session, room and site identifiers.
package idgen

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a monotonic ULID string.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), entropy).String()
}

// NewSessionID identifies one websocket connection.
func NewSessionID() string {
	return NewULID()
}

// NewRoomID returns a time-ordered UUIDv7 so room links sort by creation time.
func NewRoomID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewSiteID returns a short lowercase tag that namespaces ids minted by one client.
// The tail of a ULID is random, so it is used rather than the timestamp prefix.
func NewSiteID() string {
	id := NewULID()
	return strings.ToLower(id[len(id)-8:])
}
