package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ivlev/choreo/internal/clip"
)

// ErrInvalidSnapshot is returned by Import when the payload fails shape
// validation. The in-memory aggregate is left untouched in that case.
var ErrInvalidSnapshot = errors.New("library: invalid snapshot payload")

// snapshot is the serialized aggregate. The expressions/idle/locomotion
// arrays are reserved for future clip categories: they round-trip as raw
// JSON and are never interpreted here.
type snapshot struct {
	Version        string               `json:"version"`
	UpdatedAt      time.Time            `json:"updated_at"`
	Animations     []clip.AnimationClip `json:"animations"`
	Poses          []clip.PoseClip      `json:"poses"`
	Choreographies []clip.Choreography  `json:"choreographies"`
	Expressions    json.RawMessage      `json:"expressions,omitempty"`
	Idle           json.RawMessage      `json:"idle,omitempty"`
	Locomotion     json.RawMessage      `json:"locomotion,omitempty"`
}

func emptySnapshot() snapshot {
	return snapshot{Version: SnapshotVersion}
}

// Load hydrates the aggregate: local cache first, remote snapshot on miss.
// Failures are logged and absorbed; on total failure the library stays at
// its empty default.
func (l *Library) Load(ctx context.Context) {
	if l.cache != nil {
		data, err := l.cache.Get()
		switch {
		case err != nil:
			l.log.Warn("library: cache read failed", "error", err)
		case data != nil:
			if err := l.Import(data); err != nil {
				l.log.Warn("library: cached snapshot rejected", "error", err)
			} else {
				l.dirty = false
				l.log.Info("library: loaded from cache", "animations", len(l.snap.Animations))
				return
			}
		}
	}

	if l.fetcher == nil {
		return
	}
	data, err := l.fetcher.Fetch(ctx)
	if err != nil {
		l.log.Warn("library: remote fetch failed", "error", err)
		return
	}
	if err := l.Import(data); err != nil {
		l.log.Warn("library: remote snapshot rejected", "error", err)
		return
	}
	// A remote hydration has not been persisted locally yet.
	l.dirty = true
	l.log.Info("library: loaded from remote", "animations", len(l.snap.Animations))
}

// Save stamps updated_at and writes the whole aggregate to the local cache.
// The dirty flag is cleared only on success, so a failed save is implicitly
// retryable.
func (l *Library) Save() {
	if l.cache == nil {
		l.log.Warn("library: save skipped, no cache configured")
		return
	}
	l.snap.UpdatedAt = l.now()
	data, err := l.Export()
	if err != nil {
		l.log.Warn("library: export failed", "error", err)
		return
	}
	if err := l.cache.Set(data); err != nil {
		l.log.Warn("library: cache write failed", "error", err)
		return
	}
	l.dirty = false
}

// Export serializes the whole aggregate to its transportable JSON form.
func (l *Library) Export() ([]byte, error) {
	return json.MarshalIndent(l.snap, "", "  ")
}

// Import validates the payload shape and replaces the in-memory aggregate.
// On validation failure the current aggregate is left untouched and
// ErrInvalidSnapshot is returned.
func (l *Library) Import(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if _, ok := probe["version"]; !ok {
		return fmt.Errorf("%w: missing version", ErrInvalidSnapshot)
	}
	raw, ok := probe["animations"]
	if !ok {
		return fmt.Errorf("%w: missing animations", ErrInvalidSnapshot)
	}
	var seq []json.RawMessage
	if err := json.Unmarshal(raw, &seq); err != nil {
		return fmt.Errorf("%w: animations is not a sequence", ErrInvalidSnapshot)
	}

	var next snapshot
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if next.Version == "" {
		next.Version = SnapshotVersion
	}
	l.snap = next
	l.dirty = true
	return nil
}
