// Package sqlite provides the persistent cache store backed by an
// embedded sqlite database. Entries are stored as JSON payloads; rows
// that fail to decode are treated as cache misses so a corrupt cache
// file degrades to recomputation, never to an error.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cache"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

type Store struct {
	db *sql.DB
	l  *log.Logger
}

var _ cache.Store = (*Store)(nil)

type Option func(*Store)

func WithLogger(arg *log.Logger) Option {
	return func(s *Store) { s.l = arg }
}

// Open opens (creating if needed) the cache database at path and
// applies pending schema migrations.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db %s: %w", path, err)
	}
	// modernc sqlite is not safe for concurrent writes on one connection
	// pool with multiple conns
	db.SetMaxOpenConns(1)
	if err := migrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db %s: %w", path, err)
	}
	ret := &Store{
		db: db,
		l:  log.Default().Named("cache.sqlite"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetLayout(ctx context.Context, track model.TrackID) (*model.TrackLayout, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT payload FROM track_layout WHERE track_key = ?", track.Key())
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrCacheMiss
		}
		return nil, err
	}
	var ret model.TrackLayout
	if err := json.Unmarshal(payload, &ret); err != nil {
		s.l.Warn("corrupt layout entry, treating as miss",
			log.String("track", track.String()), log.ErrorField(err))
		return nil, cache.ErrCacheMiss
	}
	return &ret, nil
}

func (s *Store) PutLayout(ctx context.Context, layout *model.TrackLayout) error {
	payload, err := json.Marshal(layout)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO track_layout (track_key, payload, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (track_key) DO UPDATE
		 SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		layout.Track.Key(), payload)
	return err
}

//nolint:whitespace // can't make both editor and linter happy
func (s *Store) GetLapMetrics(
	ctx context.Context, sessionID string, lapNo int,
) (*model.LapSegmentMetrics, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT payload FROM lap_metrics WHERE session_id = ? AND lap_number = ?",
		sessionID, lapNo)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrCacheMiss
		}
		return nil, err
	}
	var ret model.LapSegmentMetrics
	if err := json.Unmarshal(payload, &ret); err != nil {
		s.l.Warn("corrupt lap metrics entry, treating as miss",
			log.String("session", sessionID), log.Int("lap", lapNo),
			log.ErrorField(err))
		return nil, cache.ErrCacheMiss
	}
	return &ret, nil
}

func (s *Store) PutLapMetrics(ctx context.Context, metrics *model.LapSegmentMetrics) error {
	payload, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lap_metrics (session_id, lap_number, payload, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (session_id, lap_number) DO UPDATE
		 SET payload = excluded.payload, updated_at = CURRENT_TIMESTAMP`,
		metrics.SessionID, metrics.LapNumber, payload)
	return err
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM lap_metrics WHERE session_id = ?", sessionID)
	return err
}
