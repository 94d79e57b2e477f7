package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/robalobadob/wavelength/internal/game"
)

const testTTL = time.Hour

type harness struct {
	store   Store
	advance func(d time.Duration)
	// interfere writes to the stored record behind the store's back, simulating a
	// concurrent request from another process.
	interfere func(t *testing.T, id string)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newMemoryHarness(t *testing.T) harness {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := NewMemoryStore(Options{TTL: testTTL}).(*memory)
	m.now = clock.Now
	return harness{store: m, advance: clock.Add}
}

func newRedisHarness(t *testing.T) harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStore(rdb, Options{TTL: testTTL})
	t.Cleanup(func() { _ = st.Close() })
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })
	return harness{
		store:   st,
		advance: mr.FastForward,
		interfere: func(t *testing.T, id string) {
			t.Helper()
			interfereVia(t, st, id, func(ctx context.Context, r *game.Record) error {
				return NewRedisStore(other, Options{TTL: testTTL}).Save(ctx, r)
			})
		},
	}
}

func newSQLiteHarness(t *testing.T) harness {
	t.Helper()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "games.db"), Options{TTL: testTTL})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	clock := &fakeClock{t: time.Now()}
	st.(*sqliteStore).now = clock.Now
	return harness{
		store:   st,
		advance: clock.Add,
		interfere: func(t *testing.T, id string) {
			t.Helper()
			interfereVia(t, st, id, st.Save)
		},
	}
}

// interfereVia appends a marker chat message using a plain Get + Save.
func interfereVia(t *testing.T, st Store, id string, save func(context.Context, *game.Record) error) {
	t.Helper()
	ctx := context.Background()
	r, err := st.Get(ctx, id)
	if err != nil {
		t.Fatalf("interfere get: %v", err)
	}
	r.Chat = append(r.Chat, game.ChatMessage{Sender: "other", Message: "racing write"})
	if err := save(ctx, r); err != nil {
		t.Fatalf("interfere save: %v", err)
	}
}

func backends() map[string]func(t *testing.T) harness {
	return map[string]func(t *testing.T) harness{
		"memory": newMemoryHarness,
		"redis":  newRedisHarness,
		"sqlite": newSQLiteHarness,
	}
}

func testRecord(code string) *game.Record {
	return game.NewRecord(code, game.Player{ID: "p1", Name: "Ada"}, 10, time.Unix(1_700_000_000, 0))
}

func TestStoreGetMissing(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			h := mk(t)
			if _, err := h.store.Get(context.Background(), "NOPE"); !errors.Is(err, game.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreCreateIfAbsent(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			h := mk(t)
			ctx := context.Background()
			ok, err := h.store.CreateIfAbsent(ctx, testRecord("ABCD"))
			if err != nil || !ok {
				t.Fatalf("first create: ok=%v err=%v", ok, err)
			}
			dup := testRecord("abcd")
			dup.Players[0].Name = "Impostor"
			ok, err = h.store.CreateIfAbsent(ctx, dup)
			if err != nil || ok {
				t.Fatalf("duplicate create: ok=%v err=%v", ok, err)
			}
			got, err := h.store.Get(ctx, "abcd")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Players[0].Name != "Ada" {
				t.Fatalf("duplicate create overwrote record: %#v", got.Players)
			}
		})
	}
}

func TestStoreCreateIfAbsentConcurrent(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			h := mk(t)
			ctx := context.Background()
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := h.store.CreateIfAbsent(ctx, testRecord("RACE"))
					if err != nil {
						t.Errorf("create: %v", err)
						return
					}
					if ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if wins != 1 {
				t.Fatalf("expected exactly one creator, got %d", wins)
			}
		})
	}
}

func TestStoreExpiry(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			h := mk(t)
			ctx := context.Background()
			if ok, err := h.store.CreateIfAbsent(ctx, testRecord("WXYZ")); err != nil || !ok {
				t.Fatalf("create: ok=%v err=%v", ok, err)
			}
			h.advance(testTTL / 2)
			if err := h.store.Save(ctx, testRecord("WXYZ")); err != nil {
				t.Fatalf("save: %v", err)
			}
			h.advance(testTTL/2 + time.Minute)
			if _, err := h.store.Get(ctx, "WXYZ"); err != nil {
				t.Fatalf("save should refresh the TTL, got %v", err)
			}
			h.advance(testTTL)
			if _, err := h.store.Get(ctx, "WXYZ"); !errors.Is(err, game.ErrNotFound) {
				t.Fatalf("expected expired record to be gone, got %v", err)
			}
			ok, err := h.store.CreateIfAbsent(ctx, testRecord("WXYZ"))
			if err != nil || !ok {
				t.Fatalf("expired code should be reusable: ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			h := mk(t)
			ctx := context.Background()
			if _, err := h.store.Update(ctx, "NONE", func(r *game.Record) error { return nil }); !errors.Is(err, game.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if ok, err := h.store.CreateIfAbsent(ctx, testRecord("UPDT")); err != nil || !ok {
				t.Fatalf("create: ok=%v err=%v", ok, err)
			}
			out, err := h.store.Update(ctx, "updt", func(r *game.Record) error {
				r.Round = 7
				return nil
			})
			if err != nil || out.Round != 7 {
				t.Fatalf("update: out=%v err=%v", out, err)
			}
			got, _ := h.store.Get(ctx, "UPDT")
			if got.Round != 7 {
				t.Fatalf("update not persisted, round=%d", got.Round)
			}

			sentinel := errors.New("rejected")
			if _, err := h.store.Update(ctx, "UPDT", func(r *game.Record) error {
				r.Round = 99
				return sentinel
			}); !errors.Is(err, sentinel) {
				t.Fatalf("expected callback error to pass through, got %v", err)
			}
			got, _ = h.store.Get(ctx, "UPDT")
			if got.Round != 7 {
				t.Fatalf("failed update leaked a write, round=%d", got.Round)
			}
		})
	}
}

func TestStoreUpdateRetriesOnConcurrentWrite(t *testing.T) {
	for name, mk := range backends() {
		h := mk(t)
		if h.interfere == nil {
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if ok, err := h.store.CreateIfAbsent(ctx, testRecord("OPTI")); err != nil || !ok {
				t.Fatalf("create: ok=%v err=%v", ok, err)
			}
			calls := 0
			out, err := h.store.Update(ctx, "OPTI", func(r *game.Record) error {
				calls++
				if calls == 1 {
					h.interfere(t, "OPTI")
				}
				r.Scores["p1"] += 4
				return nil
			})
			if err != nil {
				t.Fatalf("update: %v", err)
			}
			if calls != 2 {
				t.Fatalf("expected a retry after the racing write, got %d calls", calls)
			}
			if len(out.Chat) != 1 || out.Scores["p1"] != 4 {
				t.Fatalf("expected both writes to survive, got chat=%v scores=%v", out.Chat, out.Scores)
			}
		})
	}
}

func TestStoreUpdateGivesUpWithConflict(t *testing.T) {
	for name, mk := range backends() {
		h := mk(t)
		if h.interfere == nil {
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if ok, err := h.store.CreateIfAbsent(ctx, testRecord("BUSY")); err != nil || !ok {
				t.Fatalf("create: ok=%v err=%v", ok, err)
			}
			_, err := h.store.Update(ctx, "BUSY", func(r *game.Record) error {
				h.interfere(t, "BUSY")
				return nil
			})
			if !errors.Is(err, game.ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}
		})
	}
}

func TestStoreClear(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			h := mk(t)
			ctx := context.Background()
			for _, code := range []string{"AAAA", "BBBB", "CCCC"} {
				if ok, err := h.store.CreateIfAbsent(ctx, testRecord(code)); err != nil || !ok {
					t.Fatalf("create %s: ok=%v err=%v", code, ok, err)
				}
			}
			n, err := h.store.Clear(ctx)
			if err != nil || n != 3 {
				t.Fatalf("clear: n=%d err=%v", n, err)
			}
			if _, err := h.store.Get(ctx, "AAAA"); !errors.Is(err, game.ErrNotFound) {
				t.Fatalf("expected cleared record to be gone, got %v", err)
			}
		})
	}
}

func TestStoreUpdateUnchangedSkipsWrite(t *testing.T) {
	for name, mk := range backends() {
		t.Run(name, func(t *testing.T) {
			h := mk(t)
			ctx := context.Background()
			if ok, err := h.store.CreateIfAbsent(ctx, testRecord("SAME")); err != nil || !ok {
				t.Fatalf("create: ok=%v err=%v", ok, err)
			}
			h.advance(testTTL - time.Minute)
			out, err := h.store.Update(ctx, "same", func(r *game.Record) error { return ErrUnchanged })
			if err != nil || out == nil || out.GameID != "SAME" {
				t.Fatalf("unchanged update: out=%v err=%v", out, err)
			}
			h.advance(2 * time.Minute)
			if _, err := h.store.Get(ctx, "SAME"); !errors.Is(err, game.ErrNotFound) {
				t.Fatalf("unchanged update refreshed the TTL, got %v", err)
			}
		})
	}
}

func TestStoreClearCountsLiveGamesOnly(t *testing.T) {
	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			h := backends()[name](t)
			ctx := context.Background()
			_, _ = h.store.CreateIfAbsent(ctx, testRecord("OLD1"))
			_, _ = h.store.CreateIfAbsent(ctx, testRecord("OLD2"))
			h.advance(testTTL + time.Second)
			_, _ = h.store.CreateIfAbsent(ctx, testRecord("NEW1"))
			n, err := h.store.Clear(ctx)
			if err != nil || n != 1 {
				t.Fatalf("clear: n=%d err=%v", n, err)
			}
			if n, _ := h.store.(Sweeper).Sweep(ctx); n != 0 {
				t.Fatalf("clear left %d expired rows behind", n)
			}
		})
	}
}

func TestSweepDropsExpired(t *testing.T) {
	for _, name := range []string{"memory", "sqlite"} {
		t.Run(name, func(t *testing.T) {
			h := backends()[name](t)
			ctx := context.Background()
			_, _ = h.store.CreateIfAbsent(ctx, testRecord("OLD1"))
			h.advance(testTTL + time.Second)
			_, _ = h.store.CreateIfAbsent(ctx, testRecord("NEW1"))
			n, err := h.store.(Sweeper).Sweep(ctx)
			if err != nil || n != 1 {
				t.Fatalf("sweep: n=%d err=%v", n, err)
			}
			if _, err := h.store.Get(ctx, "NEW1"); err != nil {
				t.Fatalf("live record swept: %v", err)
			}
		})
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	st := NewRedisStore(rdb, Options{})
	mr.Close()
	if _, err := st.Get(context.Background(), "ABCD"); !errors.Is(err, game.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := st.Save(context.Background(), testRecord("ABCD")); !errors.Is(err, game.ErrStoreUnavailable) {
		t.Fatalf("expected write failure to surface, got %v", err)
	}
}
