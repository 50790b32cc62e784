// Package playback executes clips and choreographies against an animation
// player capability. Scheduling is cooperative: every delayed action is a
// relative timer armed at schedule time, and a generation counter serves as
// a single cancellation token, so any state change invalidates the whole
// pending batch in one operation.
package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ivlev/choreo/internal/clip"
	"github.com/ivlev/choreo/internal/player"
)

// DefaultIdleReturnDelayMs is the buffer between a natural completion and
// the automatic return to idle motion.
const DefaultIdleReturnDelayMs = 500

// Lookup resolves a step's clip id against the library.
type Lookup func(id string) (clip.AnimationClip, bool)

// Options configures a Machine.
type Options struct {
	// AutoReturnToIdle schedules a return to idle after natural completion.
	AutoReturnToIdle bool
	// IdleReturnDelayMs delays that return; 0 means DefaultIdleReturnDelayMs.
	IdleReturnDelayMs int
	// IdleClip, when set, is played and perpetually re-looped in idle state.
	IdleClip *clip.AnimationClip
	Logger   *slog.Logger
}

// DefaultOptions returns the standard machine configuration.
func DefaultOptions() Options {
	return Options{
		AutoReturnToIdle:  true,
		IdleReturnDelayMs: DefaultIdleReturnDelayMs,
	}
}

// Machine owns the runtime playback state. All public entry points are
// synchronous: the latest call wins and cancels prior pending work.
type Machine struct {
	mu      sync.Mutex
	log     *slog.Logger
	player  player.Player
	lookup  Lookup
	opts    Options
	state   State
	current *clip.AnimationClip
	choreo  *clip.Choreography
	stepIdx int

	// gen invalidates pending timers: callbacks capture the value at
	// schedule time and bail out when it no longer matches.
	gen    uint64
	timers []*time.Timer

	listeners    map[int]Listener
	nextListener int
}

// New creates a machine driving p with clips resolved through lookup.
func New(p player.Player, lookup Lookup, opts Options) *Machine {
	if opts.IdleReturnDelayMs <= 0 {
		opts.IdleReturnDelayMs = DefaultIdleReturnDelayMs
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Machine{
		log:       opts.Logger,
		player:    p,
		lookup:    lookup,
		opts:      opts,
		state:     StateIdle,
		stepIdx:   -1,
		listeners: map[int]Listener{},
	}
}

// State returns the current state tag.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentClip returns the in-flight clip, if any.
func (m *Machine) CurrentClip() (clip.AnimationClip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return clip.AnimationClip{}, false
	}
	return *m.current, true
}

// StepIndex returns the index of the in-flight choreography step, or -1.
func (m *Machine) StepIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stepIdx
}

// Subscribe registers a listener and returns its unsubscribe function.
func (m *Machine) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Play starts a single clip. The completion callback fires after
// duration/speed; a loopable clip played with Loop set repeats until the
// next state change.
func (m *Machine) Play(a clip.AnimationClip, opts player.Options) {
	m.mu.Lock()
	m.cancelPendingLocked()
	if m.player == nil {
		m.log.Warn("no player attached, ignoring play", "clip", a.Name)
		m.mu.Unlock()
		return
	}
	if opts.Speed <= 0 {
		opts.Speed = 1.0
	}
	durMs := float64(a.DurationMs) / opts.Speed

	prev := m.state
	m.state = StatePlaying
	cur := a
	m.current = &cur
	m.choreo = nil
	m.stepIdx = -1

	m.player.PlayClip(a.URL, durMs/1000, opts)

	gen := m.gen
	m.scheduleLocked(durMs, func() { m.clipDone(gen, a, opts, durMs) })
	m.mu.Unlock()

	m.emit(
		Event{Type: EventStateChange, State: StatePlaying, PreviousState: prev, Clip: &cur, StepIndex: -1},
		Event{Type: EventClipStart, State: StatePlaying, Clip: &cur, StepIndex: -1},
	)
}

// PlayChoreography schedules every resolvable step at its absolute offset
// plus one completion callback at the total duration. Dangling steps are
// skipped at schedule time and never abort the sequence.
func (m *Machine) PlayChoreography(ch clip.Choreography) {
	m.mu.Lock()
	m.cancelPendingLocked()
	if m.player == nil {
		m.log.Warn("no player attached, ignoring choreography", "name", ch.Name)
		m.mu.Unlock()
		return
	}

	prev := m.state
	m.state = StateChoreography
	snapshot := ch
	m.choreo = &snapshot
	m.current = nil
	m.stepIdx = -1

	gen := m.gen
	for i, step := range ch.Steps {
		a, ok := m.lookup(step.ClipID)
		if !ok {
			m.log.Warn("skipping step with unknown clip", "clip_id", step.ClipID, "step", i)
			continue
		}
		s := scheduledStep{index: i, step: step, clip: a}
		m.scheduleLocked(float64(step.StartMs), func() { m.startStep(gen, s) })
	}
	m.scheduleLocked(float64(ch.DurationMs), func() { m.sequenceDone(gen) })
	m.mu.Unlock()

	m.emit(
		Event{Type: EventStateChange, State: StateChoreography, PreviousState: prev, StepIndex: -1},
		Event{Type: EventChoreographyStart, State: StateChoreography, StepIndex: -1},
	)
}

// Stop cancels all pending timers, halts the player and returns to idle.
func (m *Machine) Stop() {
	m.mu.Lock()
	m.cancelPendingLocked()
	if m.player != nil {
		m.player.Stop()
	}
	prev := m.state
	m.state = StateIdle
	m.current = nil
	m.choreo = nil
	m.stepIdx = -1
	m.mu.Unlock()

	if prev != StateIdle {
		m.emit(Event{Type: EventStateChange, State: StateIdle, PreviousState: prev, StepIndex: -1})
	}
}

// Pause suspends playback best-effort. The underlying player is not
// guaranteed to support true pause, so the clip position is not kept.
func (m *Machine) Pause() {
	m.mu.Lock()
	if m.state != StatePlaying && m.state != StateChoreography {
		m.mu.Unlock()
		return
	}
	m.cancelPendingLocked()
	if m.player != nil {
		m.player.Stop()
	}
	prev := m.state
	m.state = StatePaused
	m.mu.Unlock()

	m.emit(Event{Type: EventStateChange, State: StatePaused, PreviousState: prev, StepIndex: -1})
}

// Resume leaves the paused state. Mid-clip resume is not supported by the
// player capability, so this falls back to returning to idle.
func (m *Machine) Resume() {
	m.mu.Lock()
	if m.state != StatePaused {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.ReturnToIdle()
}

// ReturnToIdle cancels pending work and enters idle immediately, starting
// the configured idle clip when one is set.
func (m *Machine) ReturnToIdle() {
	m.mu.Lock()
	m.cancelPendingLocked()
	events := m.enterIdleLocked()
	m.mu.Unlock()
	m.emit(events...)
}

// Detach stops everything and releases the player reference. Subsequent
// play calls warn and do nothing until a machine with a player is built.
func (m *Machine) Detach() {
	m.mu.Lock()
	m.cancelPendingLocked()
	if m.player != nil {
		m.player.Stop()
	}
	m.player = nil
	prev := m.state
	m.state = StateIdle
	m.current = nil
	m.choreo = nil
	m.stepIdx = -1
	m.mu.Unlock()

	if prev != StateIdle {
		m.emit(Event{Type: EventStateChange, State: StateIdle, PreviousState: prev, StepIndex: -1})
	}
}

type scheduledStep struct {
	index int
	step  clip.ChoreographyStep
	clip  clip.AnimationClip
}

func (m *Machine) startStep(gen uint64, s scheduledStep) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateChoreography {
		m.mu.Unlock()
		return
	}

	var events []Event
	if m.stepIdx >= 0 && m.current != nil {
		ended := *m.current
		events = append(events, Event{Type: EventStepEnd, State: StateChoreography, Clip: &ended, StepIndex: m.stepIdx})
	}

	m.stepIdx = s.index
	cur := s.clip
	m.current = &cur

	speed := s.step.Speed
	if speed <= 0 {
		speed = 1.0
	}
	durMs := s.step.DurationMs
	if durMs <= 0 {
		durMs = s.clip.DurationMs
	}
	m.player.PlayClip(s.clip.URL, float64(durMs)/1000, player.Options{
		Loop:   s.step.Loop,
		Mirror: s.step.Mirror,
		Speed:  speed,
	})
	events = append(events, Event{Type: EventStepStart, State: StateChoreography, Clip: &cur, StepIndex: s.index})
	m.mu.Unlock()

	m.emit(events...)
}

func (m *Machine) sequenceDone(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateChoreography {
		m.mu.Unlock()
		return
	}

	var events []Event
	if m.stepIdx >= 0 && m.current != nil {
		ended := *m.current
		events = append(events, Event{Type: EventStepEnd, State: StateChoreography, Clip: &ended, StepIndex: m.stepIdx})
	}
	events = append(events, Event{Type: EventChoreographyEnd, State: StateChoreography, StepIndex: -1})
	m.current = nil
	m.stepIdx = -1

	if m.opts.AutoReturnToIdle {
		m.scheduleLocked(float64(m.opts.IdleReturnDelayMs), func() { m.idleReturn(gen) })
	} else {
		events = append(events, m.enterIdleLocked()...)
	}
	m.mu.Unlock()

	m.emit(events...)
}

func (m *Machine) clipDone(gen uint64, a clip.AnimationClip, opts player.Options, durMs float64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StatePlaying {
		m.mu.Unlock()
		return
	}

	cur := a
	var events []Event
	events = append(events, Event{Type: EventClipEnd, State: StatePlaying, Clip: &cur, StepIndex: -1})

	if opts.Loop && a.Loopable {
		// Natural loop repeat: playing stays playing.
		m.player.PlayClip(a.URL, durMs/1000, opts)
		events = append(events, Event{Type: EventClipStart, State: StatePlaying, Clip: &cur, StepIndex: -1})
		m.scheduleLocked(durMs, func() { m.clipDone(gen, a, opts, durMs) })
	} else if m.opts.AutoReturnToIdle {
		m.current = nil
		m.scheduleLocked(float64(m.opts.IdleReturnDelayMs), func() { m.idleReturn(gen) })
	} else {
		m.current = nil
		events = append(events, m.enterIdleLocked()...)
	}
	m.mu.Unlock()

	m.emit(events...)
}

func (m *Machine) idleReturn(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	events := m.enterIdleLocked()
	m.mu.Unlock()
	m.emit(events...)
}

// enterIdleLocked moves the machine to idle. With an idle clip configured
// it passes through transitioning, starts the clip and arms the perpetual
// re-loop; the re-loop replays at the clip's native duration until the
// next state change supersedes it.
func (m *Machine) enterIdleLocked() []Event {
	prev := m.state
	m.choreo = nil
	m.stepIdx = -1

	if m.opts.IdleClip == nil || m.player == nil {
		m.current = nil
		m.state = StateIdle
		if prev == StateIdle {
			return nil
		}
		return []Event{{Type: EventStateChange, State: StateIdle, PreviousState: prev, StepIndex: -1}}
	}

	events := []Event{{Type: EventStateChange, State: StateTransitioning, PreviousState: prev, StepIndex: -1}}

	ic := *m.opts.IdleClip
	m.current = &ic
	m.player.PlayClip(ic.URL, float64(ic.DurationMs)/1000, player.Options{Loop: ic.Loopable, Speed: 1.0})
	events = append(events, Event{Type: EventClipStart, State: StateTransitioning, Clip: &ic, StepIndex: -1})

	m.state = StateIdle
	events = append(events, Event{Type: EventStateChange, State: StateIdle, PreviousState: StateTransitioning, StepIndex: -1})

	gen := m.gen
	m.scheduleLocked(float64(ic.DurationMs), func() { m.reloopIdle(gen) })
	return events
}

func (m *Machine) reloopIdle(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateIdle || m.player == nil || m.opts.IdleClip == nil {
		m.mu.Unlock()
		return
	}
	ic := *m.opts.IdleClip
	m.current = &ic
	m.player.PlayClip(ic.URL, float64(ic.DurationMs)/1000, player.Options{Loop: ic.Loopable, Speed: 1.0})
	m.scheduleLocked(float64(ic.DurationMs), func() { m.reloopIdle(gen) })
	m.mu.Unlock()

	m.emit(Event{Type: EventClipStart, State: StateIdle, Clip: &ic, StepIndex: -1})
}

// cancelPendingLocked invalidates every pending timer at once by bumping
// the generation, then stops the underlying timers eagerly.
func (m *Machine) cancelPendingLocked() {
	m.gen++
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
}

func (m *Machine) scheduleLocked(delayMs float64, fn func()) {
	d := time.Duration(delayMs * float64(time.Millisecond))
	m.timers = append(m.timers, time.AfterFunc(d, fn))
}

// emit delivers e to every listener registered at call time, recovering
// and logging per listener so one faulty observer cannot break the rest.
func (m *Machine) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, e := range events {
		for _, fn := range listeners {
			m.deliver(fn, e)
		}
	}
}

func (m *Machine) deliver(fn Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("playback listener panicked", "event", string(e.Type), "panic", r)
		}
	}()
	fn(e)
}
