package director

import (
	"github.com/ivlev/choreo/internal/clip"
)

// Lookup resolves a clip id to its library record. Library.Animation
// satisfies this signature as a method value.
type Lookup func(id string) (clip.AnimationClip, bool)

// QueueItem is a player-ready flattening of one choreography step.
type QueueItem struct {
	Name       string        `json:"name"`
	Kind       clip.ClipType `json:"kind"`
	URL        string        `json:"url"`
	DurationMs int           `json:"duration_ms"`
	Loop       bool          `json:"loop"`
	Speed      float64       `json:"speed"`
}

// Marker is a time-stamped label for external synchronization, e.g.
// subtitle or gesture cueing.
type Marker struct {
	Label   string `json:"label"`
	StartMs int    `json:"start_ms"`
}

// TimedAction is a generic scheduled action for an external action
// scheduler.
type TimedAction struct {
	TimeMs int            `json:"time_ms"`
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
}

// ActionPlayAnimation is the action name emitted for every clip placement.
const ActionPlayAnimation = "play_animation"

// PlaybackQueue flattens a choreography into player-ready queue items.
// Steps whose clip cannot be resolved are skipped, never fatal.
func PlaybackQueue(ch clip.Choreography, lookup Lookup) []QueueItem {
	var out []QueueItem
	for _, step := range ch.Steps {
		a, ok := lookup(step.ClipID)
		if !ok {
			continue
		}
		out = append(out, QueueItem{
			Name:       a.Name,
			Kind:       a.Type,
			URL:        a.URL,
			DurationMs: stepDuration(step, a),
			Loop:       step.Loop,
			Speed:      stepSpeed(step),
		})
	}
	return out
}

// Markers flattens a choreography into (label, start_ms) pairs. Dangling
// steps are skipped.
func Markers(ch clip.Choreography, lookup Lookup) []Marker {
	var out []Marker
	for _, step := range ch.Steps {
		a, ok := lookup(step.ClipID)
		if !ok {
			continue
		}
		out = append(out, Marker{Label: a.Name, StartMs: step.StartMs})
	}
	return out
}

// TimedActions flattens a choreography into generic scheduled actions.
// Dangling steps are skipped.
func TimedActions(ch clip.Choreography, lookup Lookup) []TimedAction {
	var out []TimedAction
	for _, step := range ch.Steps {
		a, ok := lookup(step.ClipID)
		if !ok {
			continue
		}
		out = append(out, TimedAction{
			TimeMs: step.StartMs,
			Action: ActionPlayAnimation,
			Args: map[string]any{
				"clip_id":     a.ID,
				"url":         a.URL,
				"duration_ms": stepDuration(step, a),
				"loop":        step.Loop,
				"mirror":      step.Mirror,
				"speed":       stepSpeed(step),
			},
		})
	}
	return out
}

// Density controls how often ambient dance actions are placed.
type Density string

const (
	DensitySparse Density = "sparse"
	DensityNormal Density = "normal"
	DensityDense  Density = "dense"
)

// intervalMs returns the base spacing for a density level.
func (d Density) intervalMs() int {
	switch d {
	case DensitySparse:
		return 15000
	case DensityDense:
		return 4000
	default:
		return 8000
	}
}

// GenerateDanceActions places one random matching clip at jittered intervals
// between startMs and endMs. This is ambient background motion, not a
// composed routine: there is no variety rule and no packing. Each action's
// duration is capped at 80% of its interval so motions settle before the
// next one starts.
func (d *Director) GenerateDanceActions(startMs, endMs int, density Density) []TimedAction {
	pool := d.FindMatchingAnimations()
	if len(pool) == 0 || endMs <= startMs {
		return nil
	}

	base := density.intervalMs()
	var out []TimedAction
	for t := startMs; t < endMs; {
		// Jitter each gap into [0.75, 1.25] of the base interval.
		interval := base*3/4 + d.rng.Intn(base/2+1)

		a := pool[d.rng.Intn(len(pool))]
		duration := a.DurationMs
		if limit := interval * 80 / 100; duration > limit {
			duration = limit
		}

		out = append(out, TimedAction{
			TimeMs: t,
			Action: ActionPlayAnimation,
			Args: map[string]any{
				"clip_id":     a.ID,
				"url":         a.URL,
				"duration_ms": duration,
				"loop":        false,
				"mirror":      false,
				"speed":       d.speedFor(a),
			},
		})
		t += interval
	}
	return out
}

// stepDuration returns the step's duration override, falling back to the
// clip's native duration.
func stepDuration(step clip.ChoreographyStep, a clip.AnimationClip) int {
	if step.DurationMs > 0 {
		return step.DurationMs
	}
	return a.DurationMs
}

// stepSpeed returns the step's playback rate, defaulting to 1.0.
func stepSpeed(step clip.ChoreographyStep) float64 {
	if step.Speed > 0 {
		return step.Speed
	}
	return 1.0
}
