package pipeline

// Event names the server-sent events streamed for one query.
type Event string

const (
	EventTranscription Event = "transcription"
	EventResponse      Event = "response"
	EventDone          Event = "done"
	EventError         Event = "error"
)

// Emitter delivers events to the caller in the order they are emitted. The
// orchestrator calls it from a single goroutine.
type Emitter interface {
	Emit(event Event, data any) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event Event, data any) error

func (f EmitterFunc) Emit(event Event, data any) error { return f(event, data) }

// State is a step of the per-request state machine.
type State string

const (
	StateReceived     State = "received"
	StateTranscribing State = "transcribing"
	StateOffTopic     State = "off_topic"
	StateSearching    State = "searching"
	StateComposing    State = "composing"
	StateSynthesizing State = "synthesizing"
	StateCompleted    State = "completed"
	StateErrored      State = "errored"
)
