// Package memory provides the in-memory cache store used for tests and
// for runs without a cache file.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/cache"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

type Store struct {
	mu      sync.RWMutex
	layouts map[string]*model.TrackLayout
	metrics map[string]*model.LapSegmentMetrics
}

var _ cache.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		layouts: make(map[string]*model.TrackLayout),
		metrics: make(map[string]*model.LapSegmentMetrics),
	}
}

func lapKey(sessionID string, lapNo int) string {
	return fmt.Sprintf("%s#%d", sessionID, lapNo)
}

func (s *Store) GetLayout(ctx context.Context, track model.TrackID) (*model.TrackLayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if l, ok := s.layouts[track.Key()]; ok {
		return l, nil
	}
	return nil, cache.ErrCacheMiss
}

func (s *Store) PutLayout(ctx context.Context, layout *model.TrackLayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts[layout.Track.Key()] = layout
	return nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *Store) GetLapMetrics(
	ctx context.Context, sessionID string, lapNo int,
) (*model.LapSegmentMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.metrics[lapKey(sessionID, lapNo)]; ok {
		return m, nil
	}
	return nil, cache.ErrCacheMiss
}

func (s *Store) PutLapMetrics(ctx context.Context, metrics *model.LapSegmentMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[lapKey(metrics.SessionID, metrics.LapNumber)] = metrics
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, m := range s.metrics {
		if m.SessionID == sessionID {
			delete(s.metrics, k)
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }
