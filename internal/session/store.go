package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

const DefaultTTL = 24 * time.Hour

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("session modified concurrently")
)

// UpdateFunc receives the current blob (nil when absent) and returns the blob
// to store. Returning a nil blob leaves the session untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// Store keeps one opaque blob per session id.
type Store interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, blob []byte) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, fn UpdateFunc) error
}

// HashID is the stable, non-reversible form of a session id used for keys and
// archive records.
func HashID(id string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(id)))
	return hex.EncodeToString(sum[:])
}
