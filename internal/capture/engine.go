// Package capture implements the speech-capture lifecycle: a small, totally
// ordered state machine wrapped around a platform recognition engine so
// callers never reason about overlapping starts or stale callbacks.
package capture

// State is the capture session state.
type State string

const (
	// StateUnsupported means no recognition engine is available. Permanent.
	StateUnsupported State = "unsupported"

	// StateIdle means the session is ready to start listening.
	StateIdle State = "idle"

	// StateListening means an active recognition attempt is in flight.
	StateListening State = "listening"
)

// Config selects the recognition engine's behaviour for a session.
type Config struct {
	// Language is the BCP-47 locale for recognition (e.g. "ru-RU").
	Language string

	// Continuous keeps the engine listening across utterances. The session
	// always requests false: one utterance per Start call.
	Continuous bool

	// InterimResults requests partial hypotheses. The session always
	// requests false: only finalised text is delivered.
	InterimResults bool
}

// Handlers are the engine event callbacks. An engine delivers events
// sequentially; it may do so from its own goroutine.
type Handlers struct {
	// OnResult fires for each recognition result. final is false for
	// interim hypotheses (not requested, but an engine may emit them
	// anyway — the session discards non-final results).
	OnResult func(text string, final bool)

	// OnError fires when the current listening attempt fails; code is the
	// engine-specific failure code. Terminal for the attempt.
	OnError func(code string)

	// OnEnd fires when the engine stops listening, whether by request or
	// end-of-speech. Idempotent.
	OnEnd func()
}

// Engine is the platform recognition collaborator. Implementations are
// single-flight: at most one recognition attempt is active at a time.
type Engine interface {
	// Configure applies cfg and registers the event handlers. Called once
	// per session, before any Start; the handlers persist for the
	// engine's lifetime.
	Configure(cfg Config, handlers Handlers)

	// Start begins a recognition attempt. It returns an error
	// synchronously when the engine cannot start (already running,
	// permission denied).
	Start() error

	// Stop requests a graceful stop; already-finalised results are
	// retained and the end event follows asynchronously.
	Stop()

	// Abort tears down any in-flight recognition immediately.
	// Safe to call when nothing is running.
	Abort()
}
