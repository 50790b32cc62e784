package playback

import "github.com/ivlev/choreo/internal/clip"

// State is the runtime state tag of a Machine.
type State string

const (
	StateIdle          State = "idle"
	StatePlaying       State = "playing"
	StateChoreography  State = "choreography"
	StateTransitioning State = "transitioning"
	StatePaused        State = "paused"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	EventStateChange       EventType = "state_change"
	EventClipStart         EventType = "clip_start"
	EventClipEnd           EventType = "clip_end"
	EventStepStart         EventType = "step_start"
	EventStepEnd           EventType = "step_end"
	EventChoreographyStart EventType = "choreography_start"
	EventChoreographyEnd   EventType = "choreography_end"
)

// Event is the record delivered to subscribed listeners. StepIndex is -1
// when no choreography step applies.
type Event struct {
	Type          EventType
	State         State
	PreviousState State
	Clip          *clip.AnimationClip
	StepIndex     int
	Err           error
}

// Listener receives playback events. A panicking listener is logged and
// isolated; it cannot break other listeners or playback itself.
type Listener func(Event)
