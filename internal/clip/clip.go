// Package clip defines the data model shared by the library, the director
// and the playback machine: animation and pose assets, and the timed
// choreographies built from them. Records are owned by the library and
// referenced by id everywhere else.
package clip

import (
	"strings"
	"time"
)

// ClipType classifies what kind of motion a clip contains.
type ClipType string

const (
	TypeDance      ClipType = "dance"
	TypeIdle       ClipType = "idle"
	TypeGesture    ClipType = "gesture"
	TypeTransition ClipType = "transition"
	TypePose       ClipType = "pose"
)

// Intensity is a coarse energy level used for matching.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Transition describes how playback moves from one step into the next.
type Transition string

const (
	TransitionCut       Transition = "cut"
	TransitionCrossfade Transition = "crossfade"
	TransitionBlend     Transition = "blend"
)

// AnimationClip is a reusable motion asset reference. The URL is an opaque
// locator passed through to the player capability, never interpreted here.
type AnimationClip struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	URL        string    `json:"url" yaml:"url"`
	Source     string    `json:"source,omitempty" yaml:"source,omitempty"`
	Type       ClipType  `json:"type" yaml:"type"`
	DurationMs int       `json:"duration_ms" yaml:"duration_ms"`
	BPM        float64   `json:"bpm,omitempty" yaml:"bpm,omitempty"`
	Loopable   bool      `json:"loopable" yaml:"loopable"`
	Tags       []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Intensity  Intensity `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// HasTag reports whether the clip carries the given tag. Matching is
// case-insensitive because tags come from free-form authoring tools.
func (c *AnimationClip) HasTag(tag string) bool {
	return containsFold(c.Tags, tag)
}

// PoseClip is a held static pose. Same shape as AnimationClip minus the
// loop/bpm semantics: the pose is held for DurationMs.
type PoseClip struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	URL        string    `json:"url" yaml:"url"`
	Source     string    `json:"source,omitempty" yaml:"source,omitempty"`
	DurationMs int       `json:"duration_ms" yaml:"duration_ms"`
	Tags       []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Intensity  Intensity `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// ChoreographyStep is one scheduled placement of a clip within a
// choreography. ClipID is a weak reference into the library: it may dangle
// if the clip is deleted later, and consumers must check resolution.
type ChoreographyStep struct {
	ClipID       string     `json:"clip_id" yaml:"clip_id"`
	StartMs      int        `json:"start_ms" yaml:"start_ms"`
	DurationMs   int        `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Loop         bool       `json:"loop,omitempty" yaml:"loop,omitempty"`
	Transition   Transition `json:"transition,omitempty" yaml:"transition,omitempty"`
	TransitionMs int        `json:"transition_ms,omitempty" yaml:"transition_ms,omitempty"`
	Mirror       bool       `json:"mirror,omitempty" yaml:"mirror,omitempty"`
	Speed        float64    `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// EndMs returns the step's end offset from choreography start.
func (s *ChoreographyStep) EndMs() int {
	return s.StartMs + s.DurationMs
}

// Choreography is an ordered timeline of steps. Steps are stored in
// non-decreasing StartMs order; director-generated choreographies are
// additionally contiguous, but imported ones are only required to be ordered.
type Choreography struct {
	ID         string             `json:"id" yaml:"id"`
	Name       string             `json:"name" yaml:"name"`
	Style      string             `json:"style,omitempty" yaml:"style,omitempty"`
	Mood       string             `json:"mood,omitempty" yaml:"mood,omitempty"`
	BPM        float64            `json:"bpm,omitempty" yaml:"bpm,omitempty"`
	DurationMs int                `json:"duration_ms" yaml:"duration_ms"`
	Steps      []ChoreographyStep `json:"steps" yaml:"steps"`
	CreatedAt  time.Time          `json:"created_at" yaml:"created_at"`
}

func containsFold(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
