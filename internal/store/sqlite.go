// internal/store/sqlite.go
//
// SQLite implementation of the Store interface.
// Responsibilities:
//   - Opening the database with safe defaults (WAL, busy timeout).
//   - Applying the embedded migrations (idempotent, recorded in _migrations).
//   - Versioned record storage: every write bumps game_records.version, and Update
//     only commits if the version it read is still current.
//
// Expiry is stored per row; reads ignore expired rows and Sweep deletes them.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wavelength/assets"
	"github.com/robalobadob/wavelength/internal/game"
)

type sqliteStore struct {
	db   *sql.DB
	opts Options
	now  func() time.Time
}

// OpenSQLite opens (and creates if missing) the database file at path and migrates it.
func OpenSQLite(path string, opts Options) (Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqliteStore{db: db, opts: opts.withDefaults(), now: time.Now}, nil
}

/**
 * openDB opens (and creates if missing) a SQLite database file.
 *
 * - Ensures the parent directory exists for relative paths (e.g. ./data/wavelength.db).
 * - Configures busy timeout and WAL journaling mode.
 *
 * @param dsn Database path.
 * @returns *sql.DB ready for queries/migrations.
 */
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

/**
 * migrate applies the embedded SQL migrations.
 *
 * - Uses a _migrations table to track applied files.
 * - Executes each migration in lexical order inside its own transaction.
 * - Skips if already applied.
 */
func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}
	migrations, err := assets.Migrations()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	for _, m := range migrations {
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, m.Name).Scan(&done)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, m.Name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", m.Name, err)
		}
		log.Info().Str("migration", m.Name).Msg("applied")
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*game.Record, error) {
	r, _, err := s.load(ctx, id)
	return r, err
}

func (s *sqliteStore) Save(ctx context.Context, r *game.Record) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO game_records (game_id, data, version, expires_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			data = excluded.data,
			version = game_records.version + 1,
			expires_at = excluded.expires_at`,
		game.NormalizeCode(r.GameID), string(raw), s.expiry())
	if err != nil {
		return unavailable("save", err)
	}
	return nil
}

func (s *sqliteStore) CreateIfAbsent(ctx context.Context, r *game.Record) (bool, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return false, err
	}
	// An expired row under the same code may be replaced; a live one may not.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO game_records (game_id, data, version, expires_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			data = excluded.data,
			version = game_records.version + 1,
			expires_at = excluded.expires_at
		WHERE game_records.expires_at <= ?`,
		game.NormalizeCode(r.GameID), string(raw), s.expiry(), s.nowMillis())
	if err != nil {
		return false, unavailable("create", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("create", err)
	}
	return n == 1, nil
}

func (s *sqliteStore) Update(ctx context.Context, id string, fn func(r *game.Record) error) (*game.Record, error) {
	code := game.NormalizeCode(id)
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		r, version, err := s.load(ctx, code)
		if err != nil {
			return nil, err
		}
		if err := fn(r); errors.Is(err, ErrUnchanged) {
			return r, nil
		} else if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		res, err := s.db.ExecContext(ctx, `
			UPDATE game_records
			SET data = ?, version = version + 1, expires_at = ?
			WHERE game_id = ? AND version = ? AND expires_at > ?`,
			string(raw), s.expiry(), code, version, s.nowMillis())
		if err != nil {
			return nil, unavailable("update", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, unavailable("update", err)
		}
		if n == 1 {
			return r, nil
		}
		log.Debug().Str("gameId", code).Int("attempt", attempt).Msg("sqlite update raced, retrying")
	}
	return nil, conflict(code, s.opts.MaxRetries)
}

/**
 * Clear deletes every row.
 *
 * Expired rows are removed first so the returned count only covers live games,
 * matching what Get would have found.
 */
func (s *sqliteStore) Clear(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("clear", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM game_records WHERE expires_at <= ?`, s.nowMillis()); err != nil {
		return 0, unavailable("clear", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM game_records`)
	if err != nil {
		return 0, unavailable("clear", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, unavailable("clear", err)
	}
	return int(n), nil
}

// Sweep deletes expired rows.
func (s *sqliteStore) Sweep(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM game_records WHERE expires_at <= ?`, s.nowMillis())
	if err != nil {
		return 0, unavailable("sweep", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) load(ctx context.Context, id string) (*game.Record, int64, error) {
	var (
		raw     string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT data, version FROM game_records WHERE game_id = ? AND expires_at > ?`,
		game.NormalizeCode(id), s.nowMillis(),
	).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, game.ErrNotFound
	}
	if err != nil {
		return nil, 0, unavailable("get", err)
	}
	r, err := decode(id, []byte(raw))
	if err != nil {
		return nil, 0, err
	}
	return r, version, nil
}

func (s *sqliteStore) nowMillis() int64 { return s.now().UnixMilli() }

func (s *sqliteStore) expiry() int64 { return s.now().Add(s.opts.TTL).UnixMilli() }
