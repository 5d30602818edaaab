package capture

import "sync"

// Session is the speech-capture state machine: Unsupported → Idle ⇄
// Listening, with Listening → Idle on explicit stop, engine end, or engine
// error. It accumulates finalised recognition text into a space-joined
// buffer that only an explicit [Session.ClearTranscript] empties.
//
// Engine callbacks may arrive from the engine's own goroutine, so all state
// lives behind one mutex; transitions are therefore observed in a single
// total order.
type Session struct {
	engine Engine

	mu         sync.Mutex
	state      State
	transcript string
	lastErr    string
}

// New builds a session around engine. A nil engine leaves the session
// permanently in [StateUnsupported] with every Start a no-op. Otherwise the
// engine is configured for single-utterance, final-results-only recognition
// in the given language, and the session's three event handlers are
// registered for the engine's lifetime.
func New(engine Engine, language string) *Session {
	s := &Session{engine: engine}
	if engine == nil {
		s.state = StateUnsupported
		return s
	}
	s.state = StateIdle
	engine.Configure(
		Config{Language: language, Continuous: false, InterimResults: false},
		Handlers{
			OnResult: s.handleResult,
			OnError:  s.handleError,
			OnEnd:    s.handleEnd,
		},
	)
	return s
}

// Supported reports whether a recognition engine is available.
func (s *Session) Supported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateUnsupported
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Listening reports whether a recognition attempt is in flight.
func (s *Session) Listening() bool {
	return s.State() == StateListening
}

// Transcript returns the accumulated finalised text.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// LastError returns the engine failure code from the most recent listening
// attempt, if any. It is cleared when a new attempt starts.
func (s *Session) LastError() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr, s.lastErr != ""
}

// Start begins a listening attempt. Allowed only from Idle; calls from
// Unsupported or Listening are no-ops, so a double Start never duplicates
// the engine's active attempt. A synchronous engine failure is recorded as
// the last error and the state stays Idle — nothing propagates to the
// caller.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return
	}
	s.lastErr = ""

	if err := s.engine.Start(); err != nil {
		// Engine refused to start (already running, permission denied).
		// The attempt is abandoned; the session stays startable.
		s.lastErr = err.Error()
		return
	}
	s.state = StateListening
}

// Stop ends the current listening attempt. Allowed only from Listening; the
// session transitions to Idle immediately rather than waiting for the
// engine's own end event, which is idempotent and will re-confirm Idle when
// it arrives. Results finalised before the stop are retained.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateListening {
		return
	}
	s.engine.Stop()
	s.state = StateIdle
}

// ClearTranscript empties the accumulated text without touching the
// listening state.
func (s *Session) ClearTranscript() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = ""
}

// Close aborts any in-flight recognition unconditionally. Safe to call even
// if the session never started.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine != nil {
		s.engine.Abort()
	}
	if s.state == StateListening {
		s.state = StateIdle
	}
}

// handleResult appends finalised text to the transcript buffer, joined by a
// single space when the buffer is non-empty. Interim results are discarded.
func (s *Session) handleResult(text string, final bool) {
	if !final || text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transcript == "" {
		s.transcript = text
	} else {
		s.transcript += " " + text
	}
}

// handleError records the failure code and forces Idle regardless of the
// current state: an error is always terminal for the listening attempt.
func (s *Session) handleError(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = code
	if s.state == StateListening {
		s.state = StateIdle
	}
}

// handleEnd forces Idle; idempotent when the session already stopped.
func (s *Session) handleEnd() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateListening {
		s.state = StateIdle
	}
}
