package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/internal/game"
	"github.com/robalobadob/wavelength/internal/store"
)

// CodeGenerator returns a candidate game code of length n.
type CodeGenerator func(n int) (string, error)

// Allocator hands out unique game codes. Uniqueness rests entirely on the
// store's atomic CreateIfAbsent; there is no read-then-write check.
type Allocator struct {
	store    store.Store
	length   int
	attempts int
	generate CodeGenerator
}

// NewAllocator builds an allocator producing codes of the given length and
// giving up after attempts collisions.
func NewAllocator(st store.Store, length, attempts int) *Allocator {
	if length <= 0 {
		length = 4
	}
	if attempts <= 0 {
		attempts = 5
	}
	return &Allocator{store: st, length: length, attempts: attempts, generate: game.GenerateCode}
}

// Allocate creates a new record under a fresh code. build is called with each
// candidate code and must return the record to store.
func (a *Allocator) Allocate(ctx context.Context, build func(code string) *game.Record) (*game.Record, error) {
	for i := 0; i < a.attempts; i++ {
		code, err := a.generate(a.length)
		if err != nil {
			return nil, err
		}
		r := build(code)
		created, err := a.store.CreateIfAbsent(ctx, r)
		if err != nil {
			return nil, err
		}
		if created {
			return r, nil
		}
		log.Debug().Str("gameId", code).Int("attempt", i+1).Msg("game code collision")
	}
	log.Warn().Int("attempts", a.attempts).Msg("game code allocation exhausted")
	return nil, &game.ActionError{
		Kind:    game.ErrAllocationExhausted,
		Message: "Failed to create game code, please try again",
	}
}
