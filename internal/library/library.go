// Package library owns the authoritative clip, pose and choreography
// records: CRUD, queries and snapshot persistence. Lookups report absence
// with an ok-bool instead of an error; persistence failures are logged and
// absorbed because an empty library is a valid, usable state.
//
// A Library is a single-writer structure. The embedding application is
// responsible for serializing mutations; concurrent reads without writes
// are safe.
package library

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/choreo/internal/clip"
)

// SnapshotVersion is the serialized aggregate format version.
const SnapshotVersion = "1.0"

// Options configures a Library instance. All fields are optional: a Library
// with no cache and no fetcher simply starts empty and never persists.
type Options struct {
	Cache   Cache
	Fetcher Fetcher
	Logger  *slog.Logger
}

// Library is the versioned container for animations, poses and
// choreographies.
type Library struct {
	log     *slog.Logger
	cache   Cache
	fetcher Fetcher

	snap  snapshot
	dirty bool

	now   func() time.Time
	newID func() string
}

// New creates an empty Library.
func New(opts Options) *Library {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Library{
		log:     log,
		cache:   opts.Cache,
		fetcher: opts.Fetcher,
		snap:    emptySnapshot(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

var (
	defaultLib  *Library
	defaultOnce sync.Once
)

// Default returns the lazily created process-wide Library. Callers that need
// isolation (multi-character scenes) should use New instead.
func Default() *Library {
	defaultOnce.Do(func() {
		defaultLib = New(Options{})
	})
	return defaultLib
}

// Dirty reports whether in-memory state has diverged from the last
// successful save.
func (l *Library) Dirty() bool { return l.dirty }

// AddAnimation assigns a fresh id and creation timestamp, appends the clip
// and returns the stored record.
func (l *Library) AddAnimation(a clip.AnimationClip) clip.AnimationClip {
	a.ID = l.newID()
	a.CreatedAt = l.now()
	l.snap.Animations = append(l.snap.Animations, a)
	l.dirty = true
	return a
}

// AddPose assigns a fresh id and creation timestamp, appends the pose and
// returns the stored record.
func (l *Library) AddPose(p clip.PoseClip) clip.PoseClip {
	p.ID = l.newID()
	p.CreatedAt = l.now()
	l.snap.Poses = append(l.snap.Poses, p)
	l.dirty = true
	return p
}

// AddChoreography assigns a fresh id and creation timestamp, appends the
// choreography and returns the stored record.
func (l *Library) AddChoreography(c clip.Choreography) clip.Choreography {
	c.ID = l.newID()
	c.CreatedAt = l.now()
	l.snap.Choreographies = append(l.snap.Choreographies, c)
	l.dirty = true
	return c
}

// AnimationPatch carries the fields UpdateAnimation may change. Nil fields
// are left untouched.
type AnimationPatch struct {
	Name       *string
	URL        *string
	Source     *string
	Type       *clip.ClipType
	DurationMs *int
	BPM        *float64
	Loopable   *bool
	Tags       *[]string
	Intensity  *clip.Intensity
}

// UpdateAnimation merges the patch into the clip with the given id.
// It reports false when the id is absent.
func (l *Library) UpdateAnimation(id string, patch AnimationPatch) bool {
	for i := range l.snap.Animations {
		a := &l.snap.Animations[i]
		if a.ID != id {
			continue
		}
		if patch.Name != nil {
			a.Name = *patch.Name
		}
		if patch.URL != nil {
			a.URL = *patch.URL
		}
		if patch.Source != nil {
			a.Source = *patch.Source
		}
		if patch.Type != nil {
			a.Type = *patch.Type
		}
		if patch.DurationMs != nil {
			a.DurationMs = *patch.DurationMs
		}
		if patch.BPM != nil {
			a.BPM = *patch.BPM
		}
		if patch.Loopable != nil {
			a.Loopable = *patch.Loopable
		}
		if patch.Tags != nil {
			a.Tags = append([]string(nil), (*patch.Tags)...)
		}
		if patch.Intensity != nil {
			a.Intensity = *patch.Intensity
		}
		l.dirty = true
		return true
	}
	return false
}

// PosePatch carries the fields UpdatePose may change. Nil fields are left
// untouched.
type PosePatch struct {
	Name       *string
	URL        *string
	Source     *string
	DurationMs *int
	Tags       *[]string
	Intensity  *clip.Intensity
}

// UpdatePose merges the patch into the pose with the given id. It reports
// false when the id is absent.
func (l *Library) UpdatePose(id string, patch PosePatch) bool {
	for i := range l.snap.Poses {
		p := &l.snap.Poses[i]
		if p.ID != id {
			continue
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.URL != nil {
			p.URL = *patch.URL
		}
		if patch.Source != nil {
			p.Source = *patch.Source
		}
		if patch.DurationMs != nil {
			p.DurationMs = *patch.DurationMs
		}
		if patch.Tags != nil {
			p.Tags = append([]string(nil), (*patch.Tags)...)
		}
		if patch.Intensity != nil {
			p.Intensity = *patch.Intensity
		}
		l.dirty = true
		return true
	}
	return false
}

// ChoreographyPatch carries the fields UpdateChoreography may change. Nil
// fields are left untouched.
type ChoreographyPatch struct {
	Name       *string
	Style      *string
	Mood       *string
	BPM        *float64
	DurationMs *int
	Steps      *[]clip.ChoreographyStep
}

// UpdateChoreography merges the patch into the choreography with the given
// id. It reports false when the id is absent.
func (l *Library) UpdateChoreography(id string, patch ChoreographyPatch) bool {
	for i := range l.snap.Choreographies {
		c := &l.snap.Choreographies[i]
		if c.ID != id {
			continue
		}
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Style != nil {
			c.Style = *patch.Style
		}
		if patch.Mood != nil {
			c.Mood = *patch.Mood
		}
		if patch.BPM != nil {
			c.BPM = *patch.BPM
		}
		if patch.DurationMs != nil {
			c.DurationMs = *patch.DurationMs
		}
		if patch.Steps != nil {
			c.Steps = append([]clip.ChoreographyStep(nil), (*patch.Steps)...)
		}
		l.dirty = true
		return true
	}
	return false
}

// DeleteAnimation removes the clip with the given id, reporting false when
// absent. Choreography steps referencing the clip are left in place; they
// dangle and are skipped at consumption time.
func (l *Library) DeleteAnimation(id string) bool {
	for i := range l.snap.Animations {
		if l.snap.Animations[i].ID == id {
			l.snap.Animations = append(l.snap.Animations[:i], l.snap.Animations[i+1:]...)
			l.dirty = true
			return true
		}
	}
	return false
}

// DeletePose removes the pose with the given id, reporting false when absent.
func (l *Library) DeletePose(id string) bool {
	for i := range l.snap.Poses {
		if l.snap.Poses[i].ID == id {
			l.snap.Poses = append(l.snap.Poses[:i], l.snap.Poses[i+1:]...)
			l.dirty = true
			return true
		}
	}
	return false
}

// DeleteChoreography removes the choreography with the given id, reporting
// false when absent.
func (l *Library) DeleteChoreography(id string) bool {
	for i := range l.snap.Choreographies {
		if l.snap.Choreographies[i].ID == id {
			l.snap.Choreographies = append(l.snap.Choreographies[:i], l.snap.Choreographies[i+1:]...)
			l.dirty = true
			return true
		}
	}
	return false
}

// Animation returns the clip with the given id.
func (l *Library) Animation(id string) (clip.AnimationClip, bool) {
	for i := range l.snap.Animations {
		if l.snap.Animations[i].ID == id {
			return l.snap.Animations[i], true
		}
	}
	return clip.AnimationClip{}, false
}

// Pose returns the pose with the given id.
func (l *Library) Pose(id string) (clip.PoseClip, bool) {
	for i := range l.snap.Poses {
		if l.snap.Poses[i].ID == id {
			return l.snap.Poses[i], true
		}
	}
	return clip.PoseClip{}, false
}

// Choreography returns the choreography with the given id.
func (l *Library) Choreography(id string) (clip.Choreography, bool) {
	for i := range l.snap.Choreographies {
		if l.snap.Choreographies[i].ID == id {
			return l.snap.Choreographies[i], true
		}
	}
	return clip.Choreography{}, false
}

// Animations returns a copy of all animation clips in insertion order.
func (l *Library) Animations() []clip.AnimationClip {
	return append([]clip.AnimationClip(nil), l.snap.Animations...)
}

// Poses returns a copy of all poses in insertion order.
func (l *Library) Poses() []clip.PoseClip {
	return append([]clip.PoseClip(nil), l.snap.Poses...)
}

// Choreographies returns a copy of all choreographies in insertion order.
func (l *Library) Choreographies() []clip.Choreography {
	return append([]clip.Choreography(nil), l.snap.Choreographies...)
}

// AnimationsByTag returns every animation clip carrying the tag.
func (l *Library) AnimationsByTag(tag string) []clip.AnimationClip {
	var out []clip.AnimationClip
	for i := range l.snap.Animations {
		if l.snap.Animations[i].HasTag(tag) {
			out = append(out, l.snap.Animations[i])
		}
	}
	return out
}

// Search returns animations whose name or tags contain the query as a
// case-insensitive substring.
func (l *Library) Search(query string) []clip.AnimationClip {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []clip.AnimationClip
	for i := range l.snap.Animations {
		a := &l.snap.Animations[i]
		if strings.Contains(strings.ToLower(a.Name), q) {
			out = append(out, *a)
			continue
		}
		for _, t := range a.Tags {
			if strings.Contains(strings.ToLower(t), q) {
				out = append(out, *a)
				break
			}
		}
	}
	return out
}

// Stats holds per-collection counts, for observability only.
type Stats struct {
	Animations     int
	Poses          int
	Choreographies int
	UpdatedAt      time.Time
	Dirty          bool
}

// Stats returns the current collection counts.
func (l *Library) Stats() Stats {
	return Stats{
		Animations:     len(l.snap.Animations),
		Poses:          len(l.snap.Poses),
		Choreographies: len(l.snap.Choreographies),
		UpdatedAt:      l.snap.UpdatedAt,
		Dirty:          l.dirty,
	}
}
