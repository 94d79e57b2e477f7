// internal/store/redis.go
//
// Redis implementation of the Store interface.
//
//   - One JSON document per key "game:<CODE>", written with SET ... EX <ttl>.
//   - CreateIfAbsent is a single SET NX EX, so two concurrent creators can never
//     both own the same code.
//   - Update is optimistic: WATCH the key, read, apply, then MULTI/SET/EXEC. If the
//     key changed in between EXEC aborts and the cycle is retried.
//   - Clear walks the key space with SCAN rather than KEYS.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/internal/game"
)

type redisStore struct {
	rdb  *redis.Client
	opts Options
}

// OpenRedis parses a redis:// or rediss:// URL, connects and pings the server.
func OpenRedis(ctx context.Context, rawURL string, opts Options) (Store, error) {
	if rawURL == "" {
		return nil, errors.New("REDIS_URL required for the redis store")
	}
	ropts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	ropts.MaxRetries = 3
	rdb := redis.NewClient(ropts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, opts), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, opts Options) Store {
	return &redisStore{rdb: rdb, opts: opts.withDefaults()}
}

func (s *redisStore) Get(ctx context.Context, id string) (*game.Record, error) {
	raw, err := s.rdb.Get(ctx, Key(id)).Bytes()
	if err == redis.Nil {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return decode(id, raw)
}

func (s *redisStore) Save(ctx context.Context, r *game.Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, Key(r.GameID), raw, s.opts.TTL).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

func (s *redisStore) CreateIfAbsent(ctx context.Context, r *game.Record) (bool, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	ok, err := s.rdb.SetNX(ctx, Key(r.GameID), raw, s.opts.TTL).Result()
	if err != nil {
		return false, unavailable("setnx", err)
	}
	return ok, nil
}

func (s *redisStore) Update(ctx context.Context, id string, fn func(r *game.Record) error) (*game.Record, error) {
	key := Key(id)
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		var (
			out   *game.Record
			inner error
		)
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err == redis.Nil {
				inner = game.ErrNotFound
				return inner
			}
			if err != nil {
				inner = unavailable("get", err)
				return inner
			}
			r, err := decode(id, raw)
			if err != nil {
				inner = err
				return inner
			}
			if err := fn(r); errors.Is(err, ErrUnchanged) {
				out = r
				return nil
			} else if err != nil {
				inner = err
				return inner
			}
			next, err := json.Marshal(r)
			if err != nil {
				inner = err
				return inner
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, next, s.opts.TTL)
				return nil
			})
			if err != nil {
				return err
			}
			out = r
			return nil
		}, key)
		switch {
		case err == nil:
			return out, nil
		case errors.Is(err, redis.TxFailedErr):
			log.Debug().Str("gameId", game.NormalizeCode(id)).Int("attempt", attempt).Msg("redis update raced, retrying")
			continue
		case inner != nil && err == inner:
			return nil, err
		default:
			return nil, unavailable("update", err)
		}
	}
	return nil, conflict(id, s.opts.MaxRetries)
}

func (s *redisStore) Clear(ctx context.Context) (int, error) {
	deleted := 0
	iter := s.rdb.Scan(ctx, 0, KeyPrefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return unavailable("del", err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, unavailable("scan", err)
	}
	return deleted, flush()
}

func (s *redisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *redisStore) Close() error { return s.rdb.Close() }

func decode(id string, raw []byte) (*game.Record, error) {
	var r game.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", game.NormalizeCode(id), err)
	}
	return &r, nil
}
