// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for single-instance deployments, development and tests.
//
// Characteristics:
//   - Records are kept as serialized JSON documents keyed by canonical code, so
//     callers never share pointers with the store.
//   - Concurrency-safe via RWMutex; Update runs under the write lock and therefore
//     never conflicts.
//   - Expired entries read as absent and are dropped by Sweep.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/robalobadob/wavelength/internal/game"
)

type memEntry struct {
	data    []byte
	expires time.Time
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu    sync.RWMutex        // guards games
	games map[string]memEntry // keyed by Key(gameId)
	opts  Options
	now   func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore(opts Options) Store {
	return &memory{
		games: make(map[string]memEntry),
		opts:  opts.withDefaults(),
		now:   time.Now,
	}
}

func (m *memory) Get(ctx context.Context, id string) (*game.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load(Key(id))
}

func (m *memory) Save(ctx context.Context, r *game.Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(Key(r.GameID), data)
	return nil
}

func (m *memory) CreateIfAbsent(ctx context.Context, r *game.Record) (bool, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	key := Key(r.GameID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.games[key]; ok && m.now().Before(e.expires) {
		return false, nil
	}
	m.put(key, data)
	return true, nil
}

func (m *memory) Update(ctx context.Context, id string, fn func(r *game.Record) error) (*game.Record, error) {
	key := Key(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.load(key)
	if err != nil {
		return nil, err
	}
	if err := fn(r); errors.Is(err, ErrUnchanged) {
		return r, nil
	} else if err != nil {
		return nil, err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	m.put(key, data)
	return r, nil
}

func (m *memory) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for _, e := range m.games {
		if now.Before(e.expires) {
			n++
		}
	}
	m.games = make(map[string]memEntry)
	return n, nil
}

// Sweep drops expired entries.
func (m *memory) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for k, e := range m.games {
		if !now.Before(e.expires) {
			delete(m.games, k)
			n++
		}
	}
	return n, nil
}

func (m *memory) Ping(ctx context.Context) error { return nil }

func (m *memory) Close() error { return nil }

// load decodes a live entry; callers hold at least the read lock.
func (m *memory) load(key string) (*game.Record, error) {
	e, ok := m.games[key]
	if !ok || !m.now().Before(e.expires) {
		return nil, game.ErrNotFound
	}
	var r game.Record
	if err := json.Unmarshal(e.data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// put stores data with a fresh TTL; callers hold the write lock.
func (m *memory) put(key string, data []byte) {
	m.games[key] = memEntry{data: data, expires: m.now().Add(m.opts.TTL)}
}
