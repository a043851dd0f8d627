// Package cache defines the two-tier persistence of computed results:
// track layouts keyed by track identity, lap metrics keyed by session
// and lap number. Stored lap metrics carry the layout version they
// were computed against; validity checks against the current layout
// are the caller's job.
package cache

import (
	"context"
	"errors"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

// ErrCacheMiss signals the requested entry is not in the cache.
// Corrupt entries are reported as a miss so callers recompute.
var ErrCacheMiss = errors.New("cache miss")

type Store interface {
	GetLayout(ctx context.Context, track model.TrackID) (*model.TrackLayout, error)
	PutLayout(ctx context.Context, layout *model.TrackLayout) error
	GetLapMetrics(ctx context.Context, sessionID string, lapNo int) (*model.LapSegmentMetrics, error)
	PutLapMetrics(ctx context.Context, metrics *model.LapSegmentMetrics) error
	// DeleteSession removes all lap metrics of a session.
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}
