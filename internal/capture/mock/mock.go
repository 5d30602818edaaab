// Package mock provides a scriptable capture engine for tests.
package mock

import (
	"sync"

	"github.com/velesk/smetka/internal/capture"
)

// Compile-time assertion that Engine satisfies capture.Engine.
var _ capture.Engine = (*Engine)(nil)

// Engine is a test double for a recognition engine. Tests drive it by
// calling EmitResult / EmitError / EmitEnd, which invoke the handlers the
// session registered via Configure.
type Engine struct {
	// StartErr, when non-nil, is returned by every Start call.
	StartErr error

	mu       sync.Mutex
	cfg      capture.Config
	handlers capture.Handlers
	running  bool
	starts   int
	stops    int
	aborts   int
}

// Configure implements capture.Engine.
func (e *Engine) Configure(cfg capture.Config, handlers capture.Handlers) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.handlers = handlers
}

// Start implements capture.Engine.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.starts++
	if e.StartErr != nil {
		return e.StartErr
	}
	e.running = true
	return nil
}

// Stop implements capture.Engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	e.running = false
}

// Abort implements capture.Engine.
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aborts++
	e.running = false
}

// EmitResult delivers a recognition result to the registered handler.
func (e *Engine) EmitResult(text string, final bool) {
	if h := e.resultHandler(); h != nil {
		h(text, final)
	}
}

// EmitError delivers an engine error and marks the engine stopped.
func (e *Engine) EmitError(code string) {
	e.mu.Lock()
	h := e.handlers.OnError
	e.running = false
	e.mu.Unlock()
	if h != nil {
		h(code)
	}
}

// EmitEnd delivers the end-of-speech event and marks the engine stopped.
func (e *Engine) EmitEnd() {
	e.mu.Lock()
	h := e.handlers.OnEnd
	e.running = false
	e.mu.Unlock()
	if h != nil {
		h()
	}
}

// Config returns the configuration applied by the session.
func (e *Engine) Config() capture.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Running reports whether the engine believes an attempt is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Starts returns the number of Start calls observed.
func (e *Engine) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

// Stops returns the number of Stop calls observed.
func (e *Engine) Stops() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stops
}

// Aborts returns the number of Abort calls observed.
func (e *Engine) Aborts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.aborts
}

func (e *Engine) resultHandler() func(string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handlers.OnResult
}
