// internal/store/store.go
//
// Persistence interface for game records.
//
// Every backend (memory, redis, sqlite) stores one JSON document per canonical
// game code and expires it after a fixed TTL that is refreshed on every write.
// Callers must treat game.ErrNotFound as a normal outcome: records silently
// disappear after prolonged inactivity.
//
// Error contract:
//   - game.ErrNotFound         record absent or expired.
//   - game.ErrStoreUnavailable backend could not be reached (wrapped).
//   - game.ErrConflict         Update lost the optimistic race MaxRetries times.
//   - any error returned by an Update callback is passed through unchanged,
//     except ErrUnchanged, which ends Update successfully without a write.

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robalobadob/wavelength/internal/game"
)

// Store defines the persistence interface for game records.
type Store interface {
	// Get returns the live record stored under id.
	Get(ctx context.Context, id string) (*game.Record, error)

	// Save unconditionally overwrites the record and refreshes its TTL.
	Save(ctx context.Context, r *game.Record) error

	// CreateIfAbsent atomically stores r only if no live record exists under its
	// code. It reports false, with a nil error, when the code is taken.
	CreateIfAbsent(ctx context.Context, r *game.Record) (bool, error)

	// Update loads the record, applies fn to a private copy and writes it back
	// only if nobody else wrote in between; otherwise the whole cycle is retried.
	// fn may run more than once and must not have side effects outside the record.
	// If fn returns ErrUnchanged nothing is written, the TTL is left alone and the
	// loaded record is returned with a nil error.
	Update(ctx context.Context, id string, fn func(r *game.Record) error) (*game.Record, error)

	// Clear deletes every game record and returns how many were removed.
	Clear(ctx context.Context) (int, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Sweeper is implemented by backends that need expired records removed
// explicitly; Redis expires keys on its own.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Options are shared by all backends.
type Options struct {
	TTL        time.Duration // record lifetime after its last write
	MaxRetries int           // optimistic Update attempts before ErrConflict
}

// DefaultOptions mirrors the one-hour expiry of the hosted game records.
func DefaultOptions() Options {
	return Options{TTL: time.Hour, MaxRetries: 5}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TTL <= 0 {
		o.TTL = d.TTL
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	return o
}

// ErrUnchanged is returned by an Update callback that decided the record needs no write.
var ErrUnchanged = errors.New("store: record unchanged")

// KeyPrefix namespaces game records in shared key spaces.
const KeyPrefix = "game:"

// Key returns the storage key for a game code.
func Key(id string) string { return KeyPrefix + game.NormalizeCode(id) }

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", game.ErrStoreUnavailable, op, err)
}

func conflict(id string, attempts int) error {
	return fmt.Errorf("%w: %s after %d attempts", game.ErrConflict, strings.ToUpper(id), attempts)
}
