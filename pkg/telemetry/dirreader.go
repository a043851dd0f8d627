package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/iracelog-segment-analyzer-go/log"
	"github.com/mpapenbr/iracelog-segment-analyzer-go/pkg/model"
)

// sessionFile is the on-disk format of one recorded session:
// <dir>/<sessionID>.json with per-lap channel columns.
//
//nolint:tagliatelle // recorder file compatibility
type sessionFile struct {
	SessionID   string                          `json:"session_id"`
	TrackName   string                          `json:"track_name"`
	TrackLayout string                          `json:"track_layout_variant"`
	Laps        []model.Lap                     `json:"laps"`
	Channels    map[string]map[string][]float64 `json:"channels"` // lap number -> channel -> samples
}

type DirReader struct {
	dir     string
	l       *log.Logger
	mu      sync.Mutex
	cache   map[string]*sessionFile
	watcher *fsnotify.Watcher
}

type DirReaderOption func(*DirReader)

func WithLogger(arg *log.Logger) DirReaderOption {
	return func(r *DirReader) { r.l = arg }
}

// NewDirReader creates a Reader over a directory of session files.
// Parsed sessions are cached; a directory watch drops cache entries
// when the underlying file changes so re-recorded sessions are picked
// up without a restart.
func NewDirReader(dir string, opts ...DirReaderOption) (*DirReader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("telemetry dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("telemetry dir %s is not a directory", dir)
	}
	ret := &DirReader{
		dir:   dir,
		l:     log.Default().Named("telemetry"),
		cache: make(map[string]*sessionFile),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(dir); err == nil {
			ret.watcher = w
			go ret.watch()
		} else {
			ret.l.Warn("could not watch telemetry dir", log.ErrorField(err))
			w.Close()
		}
	} else {
		ret.l.Warn("could not create watcher", log.ErrorField(err))
	}
	return ret, nil
}

func (r *DirReader) Close() error {
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *DirReader) watch() {
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			sessionID := sessionIDFromPath(ev.Name)
			if sessionID == "" {
				continue
			}
			r.mu.Lock()
			delete(r.cache, sessionID)
			r.mu.Unlock()
			r.l.Debug("session file changed, cache dropped",
				log.String("session", sessionID), log.Stringer("op", ev.Op))
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.l.Warn("watcher error", log.ErrorField(err))
		}
	}
}

func sessionIDFromPath(path string) string {
	base := filepath.Base(path)
	if filepath.Ext(base) != ".json" {
		return ""
	}
	return base[:len(base)-len(".json")]
}

func (r *DirReader) load(sessionID string) (*sessionFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sf, ok := r.cache[sessionID]; ok {
		return sf, nil
	}
	path := filepath.Join(r.dir, sessionID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", sessionID, err)
	}
	if sf.SessionID == "" {
		sf.SessionID = sessionID
	}
	r.cache[sessionID] = &sf
	return &sf, nil
}

func (r *DirReader) Session(ctx context.Context, sessionID string) (*model.Session, error) {
	sf, err := r.load(sessionID)
	if err != nil {
		return nil, err
	}
	return &model.Session{
		SessionID:   sf.SessionID,
		TrackName:   sf.TrackName,
		TrackLayout: sf.TrackLayout,
		Laps:        sf.Laps,
	}, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (r *DirReader) SampleSeries(
	ctx context.Context, sessionID string, lapNo int,
) (*model.SampleSeries, error) {
	sf, err := r.load(sessionID)
	if err != nil {
		return nil, err
	}
	channels, ok := sf.Channels[strconv.Itoa(lapNo)]
	if !ok {
		return nil, fmt.Errorf("%w: session %s lap %d", ErrLapNotFound, sessionID, lapNo)
	}
	ret := &model.SampleSeries{
		SessionID: sessionID,
		LapNumber: lapNo,
		Channels:  channels,
	}
	if err := ValidateChannels(ret); err != nil {
		return nil, err
	}
	return ret, nil
}
