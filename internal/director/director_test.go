package director

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/choreo/internal/clip"
	"github.com/ivlev/choreo/internal/library"
)

func testDirector(t *testing.T, lib *library.Library, cfg Config) *Director {
	t.Helper()
	return NewWithRand(lib, cfg, rand.New(rand.NewSource(42)))
}

func seedDanceClips(lib *library.Library, n int, durationMs int) []clip.AnimationClip {
	names := []string{"Wave", "Spin", "Slide", "Pop", "Lock", "Drop", "Kick", "Sway"}
	var out []clip.AnimationClip
	for i := 0; i < n; i++ {
		out = append(out, lib.AddAnimation(clip.AnimationClip{
			Name:       names[i%len(names)],
			URL:        "anim/clip.glb",
			Type:       clip.TypeDance,
			DurationMs: durationMs,
			Tags:       []string{"hip-hop", "energetic"},
		}))
	}
	return out
}

func TestFindMatchingAnimationsScenario(t *testing.T) {
	lib := library.New(library.Options{})
	created := lib.AddAnimation(clip.AnimationClip{
		Name:       "Wave",
		URL:        "anim/wave.glb",
		Type:       clip.TypeGesture,
		DurationMs: 3000,
		Loopable:   true,
		Tags:       []string{"hip-hop", "energetic"},
	})

	cfg := DefaultConfig()
	cfg.Style = "hip-hop"
	d := testDirector(t, lib, cfg)

	got := d.FindMatchingAnimations()
	require.Len(t, got, 1)
	assert.Equal(t, created.ID, got[0].ID)
}

func TestFindMatchingAnimationsSoftFilters(t *testing.T) {
	lib := library.New(library.Options{})
	lib.AddAnimation(clip.AnimationClip{Name: "A", URL: "u", Type: clip.TypeDance, DurationMs: 3000, Tags: []string{"house"}})
	lib.AddAnimation(clip.AnimationClip{Name: "B", URL: "u", Type: clip.TypeGesture, DurationMs: 3000, Tags: []string{"house", "chill"}})

	// No clip carries the requested mood or intensity: those stages must be
	// discarded rather than emptying the pool.
	cfg := Config{Style: "house", Mood: "aggressive", Intensity: clip.IntensityHigh}
	d := testDirector(t, lib, cfg)
	got := d.FindMatchingAnimations()
	assert.Len(t, got, 2)

	// A matching mood narrows the pool.
	cfg = Config{Style: "house", Mood: "chill"}
	d = testDirector(t, lib, cfg)
	got = d.FindMatchingAnimations()
	require.Len(t, got, 1)
	assert.Equal(t, "B", got[0].Name)
}

func TestFindMatchingAnimationsAcceptsDanceTypeWithoutTag(t *testing.T) {
	lib := library.New(library.Options{})
	lib.AddAnimation(clip.AnimationClip{Name: "Untagged", URL: "u", Type: clip.TypeDance, DurationMs: 3000})

	cfg := Config{Style: "salsa"}
	d := testDirector(t, lib, cfg)
	assert.Len(t, d.FindMatchingAnimations(), 1)
}

func TestGenerateChoreographyContiguous(t *testing.T) {
	lib := library.New(library.Options{})
	seedDanceClips(lib, 6, 4000)

	cfg := Config{Style: "hip-hop", Mood: "energetic"}
	d := testDirector(t, lib, cfg)

	const want = 30000
	ch := d.GenerateChoreography(want, "routine")

	require.NotEmpty(t, ch.Steps)
	sum := 0
	for i, step := range ch.Steps {
		if i > 0 {
			prev := ch.Steps[i-1]
			assert.Equal(t, prev.StartMs+prev.DurationMs, step.StartMs, "steps must be contiguous")
		}
		sum += step.DurationMs
	}
	assert.Equal(t, sum, ch.DurationMs, "duration must equal the packed time")

	last := ch.Steps[len(ch.Steps)-1]
	assert.LessOrEqual(t, last.StartMs+last.DurationMs, want)
}

func TestGenerateChoreographyEmptyPool(t *testing.T) {
	lib := library.New(library.Options{})
	d := testDirector(t, lib, DefaultConfig())

	ch := d.GenerateChoreography(15000, "empty")
	assert.Empty(t, ch.Steps)
	assert.Equal(t, 15000, ch.DurationMs, "empty result still spans the requested duration")
}

func TestGenerateChoreographyStopsBelowMinClip(t *testing.T) {
	lib := library.New(library.Options{})
	seedDanceClips(lib, 4, 4000)

	cfg := Config{Style: "hip-hop", MinClipMs: 2000, MaxClipMs: 10000}
	d := testDirector(t, lib, cfg)

	// 9000 = 4000 + 4000 + 1000 remaining; the 1000 ms tail is below the
	// minimum clip duration and stays unfilled.
	ch := d.GenerateChoreography(9000, "tail")
	require.Len(t, ch.Steps, 2)
	assert.Equal(t, 8000, ch.DurationMs)
}

func TestGenerateChoreographyClampsToMaxAndBudget(t *testing.T) {
	lib := library.New(library.Options{})
	lib.AddAnimation(clip.AnimationClip{Name: "Long", URL: "u", Type: clip.TypeDance, DurationMs: 30000})

	cfg := Config{Style: "freestyle", MinClipMs: 2000, MaxClipMs: 10000}
	d := testDirector(t, lib, cfg)

	ch := d.GenerateChoreography(25000, "clamped")
	require.Len(t, ch.Steps, 3)
	assert.Equal(t, 10000, ch.Steps[0].DurationMs, "native duration clamps to max")
	assert.Equal(t, 10000, ch.Steps[1].DurationMs)
	assert.Equal(t, 5000, ch.Steps[2].DurationMs, "last step clamps to the remaining budget")
	assert.Equal(t, 25000, ch.DurationMs)
}

func TestTempoSyncScenario(t *testing.T) {
	lib := library.New(library.Options{})
	lib.AddAnimation(clip.AnimationClip{
		Name:       "House Groove",
		URL:        "anim/groove.glb",
		Type:       clip.TypeDance,
		DurationMs: 4000,
		BPM:        100,
		Tags:       []string{"house", "chill"},
	})

	cfg := Config{Style: "house", Mood: "chill", BPM: 120}
	d := testDirector(t, lib, cfg)

	ch := d.GenerateChoreography(4000, "tempo")
	require.Len(t, ch.Steps, 1)
	assert.InDelta(t, 1.2, ch.Steps[0].Speed, 1e-9)
	assert.False(t, ch.Steps[0].Loop, "step duration equals clip duration, no stretch, no loop")
}

func TestSpeedClamping(t *testing.T) {
	lib := library.New(library.Options{})
	d := testDirector(t, lib, Config{BPM: 120})

	cases := []struct {
		clipBPM float64
		want    float64
	}{
		{clipBPM: 0, want: 1.0},    // unknown tempo plays at native speed
		{clipBPM: 30, want: 2.0},   // 4.0 clamps down
		{clipBPM: 600, want: 0.5},  // 0.2 clamps up
		{clipBPM: 100, want: 1.2},  // in range
		{clipBPM: 120, want: 1.0},  // exact match
	}
	for _, tc := range cases {
		got := d.speedFor(clip.AnimationClip{BPM: tc.clipBPM})
		assert.InDelta(t, tc.want, got, 1e-9, "clip bpm %v", tc.clipBPM)
	}

	// Without a target tempo every clip plays at native speed.
	d = testDirector(t, lib, Config{})
	assert.Equal(t, 1.0, d.speedFor(clip.AnimationClip{BPM: 100}))
}

func TestVarietyRule(t *testing.T) {
	lib := library.New(library.Options{})
	seedDanceClips(lib, 5, 3000)

	cfg := Config{Style: "hip-hop", Mood: "energetic", MinClipMs: 2000, MaxClipMs: 10000}

	// Randomized selection: run many trials with different seeds.
	for seed := int64(0); seed < 50; seed++ {
		d := NewWithRand(lib, cfg, rand.New(rand.NewSource(seed)))
		ch := d.GenerateChoreography(60000, "variety")
		require.GreaterOrEqual(t, len(ch.Steps), 4)

		for i := range ch.Steps {
			seen := map[string]bool{}
			for j := i; j < i+4 && j < len(ch.Steps); j++ {
				id := ch.Steps[j].ClipID
				assert.False(t, seen[id], "seed %d: clip %s repeated within 4 consecutive steps", seed, id)
				seen[id] = true
			}
		}
	}
}

func TestVarietyRuleFallsBackToFullPool(t *testing.T) {
	lib := library.New(library.Options{})
	seedDanceClips(lib, 1, 3000)

	cfg := Config{Style: "hip-hop", MinClipMs: 2000, MaxClipMs: 10000}
	d := testDirector(t, lib, cfg)

	// One clip only: the exclusion would empty the pool, so the full pool
	// is used and the clip repeats.
	ch := d.GenerateChoreography(9000, "single")
	require.Len(t, ch.Steps, 3)
}

func TestTransitionsFollowConfig(t *testing.T) {
	lib := library.New(library.Options{})
	seedDanceClips(lib, 3, 4000)

	cfg := Config{Style: "hip-hop", AllowTransitions: true}
	d := testDirector(t, lib, cfg)
	ch := d.GenerateChoreography(8000, "fade")
	require.NotEmpty(t, ch.Steps)
	assert.Equal(t, clip.TransitionCrossfade, ch.Steps[0].Transition)
	assert.Equal(t, 500, ch.Steps[0].TransitionMs)

	cfg.AllowTransitions = false
	d = testDirector(t, lib, cfg)
	ch = d.GenerateChoreography(8000, "cut")
	require.NotEmpty(t, ch.Steps)
	assert.Equal(t, clip.TransitionCut, ch.Steps[0].Transition)
	assert.Equal(t, 0, ch.Steps[0].TransitionMs)
}
