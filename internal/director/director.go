// Package director turns a style/mood/tempo configuration into concrete
// timed choreographies by greedily packing matching clips into a target
// duration, with tempo-aware speed adjustment and anti-repetition.
package director

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ivlev/choreo/internal/clip"
	"github.com/ivlev/choreo/internal/library"
)

// Speed clamp bounds for tempo synchronization. Scaling a clip outside this
// range looks broken regardless of how far the tempos are apart.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Default crossfade length between generated steps.
const defaultTransitionMs = 500

// Config controls clip selection and packing.
type Config struct {
	Style            string
	Mood             string
	Intensity        clip.Intensity
	BPM              float64
	AllowTransitions bool
	MinClipMs        int
	MaxClipMs        int
}

// DefaultConfig returns the neutral selection configuration.
func DefaultConfig() Config {
	return Config{
		Style:            "freestyle",
		Mood:             "energetic",
		Intensity:        clip.IntensityMedium,
		AllowTransitions: true,
		MinClipMs:        2000,
		MaxClipMs:        10000,
	}
}

// Director selects and sequences clips from a library. The random source is
// injectable so tests can pin selection outcomes.
type Director struct {
	lib *library.Library
	cfg Config
	rng *rand.Rand

	// recent holds previously used clip ids in selection order, feeding the
	// variety rule across generations.
	recent []string
}

// New creates a Director over the given library with a time-seeded random
// source.
func New(lib *library.Library, cfg Config) *Director {
	return NewWithRand(lib, cfg, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand creates a Director with an explicit random source.
func NewWithRand(lib *library.Library, cfg Config, rng *rand.Rand) *Director {
	if cfg.MinClipMs <= 0 {
		cfg.MinClipMs = DefaultConfig().MinClipMs
	}
	if cfg.MaxClipMs <= 0 {
		cfg.MaxClipMs = DefaultConfig().MaxClipMs
	}
	return &Director{lib: lib, cfg: cfg, rng: rng}
}

var (
	defaultDirector *Director
	defaultOnce     sync.Once
)

// Default returns the lazily created process-wide Director bound to the
// default library.
func Default() *Director {
	defaultOnce.Do(func() {
		defaultDirector = New(library.Default(), DefaultConfig())
	})
	return defaultDirector
}

// Config returns the active configuration.
func (d *Director) Config() Config { return d.cfg }

// SetConfig replaces the active configuration. Zero duration bounds fall
// back to the defaults.
func (d *Director) SetConfig(cfg Config) {
	if cfg.MinClipMs <= 0 {
		cfg.MinClipMs = DefaultConfig().MinClipMs
	}
	if cfg.MaxClipMs <= 0 {
		cfg.MaxClipMs = DefaultConfig().MaxClipMs
	}
	d.cfg = cfg
}

// FindMatchingAnimations returns the clip pool for the active configuration.
// Filters are refinements, not hard constraints: a stage that would empty
// the pool is discarded and the previous stage's result is kept, so a rare
// combination degrades to a broader pool instead of returning nothing.
func (d *Director) FindMatchingAnimations() []clip.AnimationClip {
	pool := d.lib.Animations()

	if d.cfg.Style != "" {
		var styled []clip.AnimationClip
		for _, a := range pool {
			// Any clip explicitly typed as dance qualifies for style
			// matching even without the tag.
			if a.HasTag(d.cfg.Style) || a.Type == clip.TypeDance {
				styled = append(styled, a)
			}
		}
		if len(styled) > 0 {
			pool = styled
		}
	}

	if d.cfg.Mood != "" {
		var mooded []clip.AnimationClip
		for _, a := range pool {
			if a.HasTag(d.cfg.Mood) {
				mooded = append(mooded, a)
			}
		}
		if len(mooded) > 0 {
			pool = mooded
		}
	}

	if d.cfg.Intensity != "" {
		var level []clip.AnimationClip
		for _, a := range pool {
			if a.Intensity == d.cfg.Intensity {
				level = append(level, a)
			}
		}
		if len(level) > 0 {
			pool = level
		}
	}

	return pool
}

// GenerateChoreography greedily packs matching clips into durationMs.
// An empty matching pool yields an empty choreography spanning the full
// requested duration; the caller decides how to react. With a non-empty
// pool the result is contiguous and its DurationMs equals the packed time,
// which may fall short of the request when no further step fits.
func (d *Director) GenerateChoreography(durationMs int, name string) clip.Choreography {
	ch := clip.Choreography{
		Name:      name,
		Style:     d.cfg.Style,
		Mood:      d.cfg.Mood,
		BPM:       d.cfg.BPM,
		CreatedAt: time.Now(),
	}

	pool := d.FindMatchingAnimations()
	if len(pool) == 0 {
		ch.DurationMs = durationMs
		return ch
	}

	currentTime := 0
	for durationMs-currentTime >= d.cfg.MinClipMs {
		picked := d.selectClip(pool)

		stepDuration := picked.DurationMs
		if stepDuration > d.cfg.MaxClipMs {
			stepDuration = d.cfg.MaxClipMs
		}
		if remaining := durationMs - currentTime; stepDuration > remaining {
			stepDuration = remaining
		}

		transition, transitionMs := clip.TransitionCut, 0
		if d.cfg.AllowTransitions {
			transition, transitionMs = clip.TransitionCrossfade, defaultTransitionMs
		}

		ch.Steps = append(ch.Steps, clip.ChoreographyStep{
			ClipID:       picked.ID,
			StartMs:      currentTime,
			DurationMs:   stepDuration,
			Loop:         picked.Loopable && stepDuration > picked.DurationMs,
			Transition:   transition,
			TransitionMs: transitionMs,
			Speed:        d.speedFor(picked),
		})

		currentTime += stepDuration
		d.recent = append(d.recent, picked.ID)
	}

	ch.DurationMs = currentTime
	return ch
}

// selectClip applies the variety rule: the most recent 3 used clips are
// excluded from the pool when doing so leaves it non-empty, then selection
// is uniform random.
func (d *Director) selectClip(pool []clip.AnimationClip) clip.AnimationClip {
	exclude := make(map[string]bool, 3)
	for i := len(d.recent) - 1; i >= 0 && i >= len(d.recent)-3; i-- {
		exclude[d.recent[i]] = true
	}

	var fresh []clip.AnimationClip
	for _, a := range pool {
		if !exclude[a.ID] {
			fresh = append(fresh, a)
		}
	}
	if len(fresh) == 0 {
		fresh = pool
	}
	return fresh[d.rng.Intn(len(fresh))]
}

// speedFor computes the tempo-sync playback rate: the ratio of the target
// tempo to the clip's authored tempo, clamped to [MinSpeed, MaxSpeed].
// This is a tempo ratio, not beat-phase alignment.
func (d *Director) speedFor(a clip.AnimationClip) float64 {
	if d.cfg.BPM <= 0 || a.BPM <= 0 {
		return 1.0
	}
	speed := d.cfg.BPM / a.BPM
	if speed < MinSpeed {
		speed = MinSpeed
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	return speed
}
