// internal/service/service.go
//
// Game phase controller.
// Every client action maps to one method here, which:
//   1. validates the request fields (no store round trip on bad input),
//   2. loads the record, applies one game.Record transition and writes it back
//      through store.Update (optimistic, retried on concurrent writes),
//   3. notifies live subscribers with the committed record.
//
// Either the whole action applies or the record is left unchanged. Store errors
// are returned to the caller, never logged and swallowed.

package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/internal/game"
	"github.com/robalobadob/wavelength/internal/store"
)

// Publisher receives every committed record; used for push subscriptions.
type Publisher interface {
	Publish(r *game.Record)
}

// Service is the game phase controller.
type Service struct {
	store   store.Store
	alloc   *Allocator
	targets func() (float64, error)
	now     func() time.Time
	pub     Publisher
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher wires a subscriber hub.
func WithPublisher(p Publisher) Option { return func(s *Service) { s.pub = p } }

// WithTargetSource replaces the crypto-random target generator.
func WithTargetSource(f func() (float64, error)) Option { return func(s *Service) { s.targets = f } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithCodeGenerator replaces the random game code generator.
func WithCodeGenerator(g CodeGenerator) Option { return func(s *Service) { s.alloc.generate = g } }

// New builds a Service over st. Codes are codeLength characters long and
// allocation gives up after codeAttempts collisions.
func New(st store.Store, codeLength, codeAttempts int, opts ...Option) *Service {
	s := &Service{
		store:   st,
		alloc:   NewAllocator(st, codeLength, codeAttempts),
		targets: game.RandomTarget,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create allocates a new game with the caller as its first player and boss.
func (s *Service) Create(ctx context.Context, playerID, playerName string) (*game.Record, error) {
	p, err := game.NewPlayer(playerID, playerName)
	if err != nil {
		return nil, err
	}
	target, err := s.targets()
	if err != nil {
		return nil, err
	}
	now := s.now()
	r, err := s.alloc.Allocate(ctx, func(code string) *game.Record {
		return game.NewRecord(code, p, target, now)
	})
	if err != nil {
		logFailure("create", "", err)
		return nil, err
	}
	log.Info().Str("gameId", r.GameID).Str("playerId", p.ID).Msg("game created")
	s.publish(r)
	return r, nil
}

// Join adds a player to an existing game. Rejoining with a known playerId
// returns the stored record without writing or publishing it.
func (s *Service) Join(ctx context.Context, gameID, playerID, playerName string) (*game.Record, error) {
	p, err := game.NewPlayer(playerID, playerName)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, gameID, "join", func(r *game.Record) error {
		joined, err := r.Join(p, s.now())
		if err == nil && !joined {
			return store.ErrUnchanged
		}
		return err
	})
}

// SubmitHint stores the boss's scale and hint.
func (s *Service) SubmitHint(ctx context.Context, gameID, playerID string, scale game.Scale, hint string) error {
	scale, hint, err := game.NormalizeHint(scale, hint)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, gameID, "hint", func(r *game.Record) error {
		return r.SubmitHint(playerID, scale, hint, s.now())
	})
	return err
}

// SubmitGuess records the guesser's needle and returns the points awarded.
func (s *Service) SubmitGuess(ctx context.Context, gameID, playerID string, needleAngle float64) (int, error) {
	if err := game.ValidateNeedle(needleAngle); err != nil {
		return 0, err
	}
	var points int
	_, err := s.mutate(ctx, gameID, "guess", func(r *game.Record) error {
		var err error
		points, err = r.SubmitGuess(playerID, needleAngle, s.now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return points, nil
}

// AdvanceRound starts the next round. Either player may call it.
func (s *Service) AdvanceRound(ctx context.Context, gameID string) error {
	target, err := s.targets()
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, gameID, "next", func(r *game.Record) error {
		return r.AdvanceRound(target, s.now())
	})
	return err
}

// AppendChat adds a message to the game's capped chat log.
func (s *Service) AppendChat(ctx context.Context, gameID, sender, message string) error {
	msg, err := game.NewChatMessage(sender, message)
	if err != nil {
		return err
	}
	_, err = s.mutate(ctx, gameID, "chat", func(r *game.Record) error {
		r.AppendChat(msg, s.now())
		return nil
	})
	return err
}

// State returns the current record.
func (s *Service) State(ctx context.Context, gameID string) (*game.Record, error) {
	if game.NormalizeCode(gameID) == "" {
		return nil, game.ErrNotFound
	}
	r, err := s.store.Get(ctx, gameID)
	if err != nil {
		logFailure("state", gameID, err)
		return nil, err
	}
	return r, nil
}

func (s *Service) mutate(ctx context.Context, gameID, action string, fn func(r *game.Record) error) (*game.Record, error) {
	if game.NormalizeCode(gameID) == "" {
		return nil, game.ErrNotFound
	}
	changed := true
	r, err := s.store.Update(ctx, gameID, func(r *game.Record) error {
		err := fn(r)
		changed = !errors.Is(err, store.ErrUnchanged)
		return err
	})
	if err != nil {
		logFailure(action, gameID, err)
		return nil, err
	}
	if !changed {
		return r, nil
	}
	log.Debug().
		Str("action", action).
		Str("gameId", r.GameID).
		Str("phase", string(r.Phase)).
		Int("round", r.Round).
		Msg("game updated")
	s.publish(r)
	return r, nil
}

func (s *Service) publish(r *game.Record) {
	if s.pub != nil {
		s.pub.Publish(r)
	}
}

// logFailure reports infrastructure failures; rule violations are expected
// outcomes and stay at debug level.
func logFailure(action, gameID string, err error) {
	ev := log.Debug()
	if errors.Is(err, game.ErrStoreUnavailable) || errors.Is(err, game.ErrConflict) {
		ev = log.Error()
	}
	ev.Err(err).Str("action", action).Str("gameId", game.NormalizeCode(gameID)).Msg("game action failed")
}
