package capture_test

import (
	"errors"
	"testing"

	"github.com/velesk/smetka/internal/capture"
	"github.com/velesk/smetka/internal/capture/mock"
)

func TestNew_NilEngineIsUnsupported(t *testing.T) {
	s := capture.New(nil, "ru-RU")

	if s.Supported() {
		t.Fatal("Supported() = true for nil engine")
	}
	if got := s.State(); got != capture.StateUnsupported {
		t.Fatalf("State() = %q, want %q", got, capture.StateUnsupported)
	}

	// Start from Unsupported must be a no-op, not a panic.
	s.Start()
	if got := s.State(); got != capture.StateUnsupported {
		t.Fatalf("State() after Start = %q, want %q", got, capture.StateUnsupported)
	}
}

func TestNew_ConfiguresSingleUtterance(t *testing.T) {
	eng := &mock.Engine{}
	capture.New(eng, "ru-RU")

	cfg := eng.Config()
	if cfg.Language != "ru-RU" {
		t.Errorf("Language = %q, want %q", cfg.Language, "ru-RU")
	}
	if cfg.Continuous {
		t.Error("Continuous = true, want false")
	}
	if cfg.InterimResults {
		t.Error("InterimResults = true, want false")
	}
}

func TestStart_TransitionsToListening(t *testing.T) {
	eng := &mock.Engine{}
	s := capture.New(eng, "ru-RU")

	s.Start()
	if !s.Listening() {
		t.Fatal("Listening() = false after Start")
	}

	// Second Start while listening must not reach the engine again.
	s.Start()
	if got := eng.Starts(); got != 1 {
		t.Fatalf("engine starts = %d, want 1", got)
	}
}

func TestStart_EngineFailureStaysIdle(t *testing.T) {
	eng := &mock.Engine{StartErr: errors.New("not-allowed")}
	s := capture.New(eng, "ru-RU")

	s.Start()
	if got := s.State(); got != capture.StateIdle {
		t.Fatalf("State() = %q, want %q", got, capture.StateIdle)
	}
	code, ok := s.LastError()
	if !ok || code != "not-allowed" {
		t.Fatalf("LastError() = (%q, %v), want (%q, true)", code, ok, "not-allowed")
	}

	// A successful retry clears the recorded error.
	eng.StartErr = nil
	s.Start()
	if _, ok := s.LastError(); ok {
		t.Fatal("LastError() still set after successful Start")
	}
}

func TestTranscript_AppendsFinalResultsOnly(t *testing.T) {
	eng := &mock.Engine{}
	s := capture.New(eng, "ru-RU")
	s.Start()

	eng.EmitResult("кухня двенадцать", false) // interim, discarded
	eng.EmitResult("кухня двенадцать метров", true)
	eng.EmitResult("", true) // empty final, discarded
	eng.EmitResult("покраска стен", true)

	want := "кухня двенадцать метров покраска стен"
	if got := s.Transcript(); got != want {
		t.Fatalf("Transcript() = %q, want %q", got, want)
	}
}

func TestTranscript_SurvivesStopAndRestart(t *testing.T) {
	eng := &mock.Engine{}
	s := capture.New(eng, "ru-RU")

	s.Start()
	eng.EmitResult("кухня", true)
	s.Stop()
	s.Start()
	eng.EmitResult("ванная", true)
	eng.EmitEnd()

	if got := s.Transcript(); got != "кухня ванная" {
		t.Fatalf("Transcript() = %q, want %q", got, "кухня ванная")
	}
	if got := s.State(); got != capture.StateIdle {
		t.Fatalf("State() after end = %q, want %q", got, capture.StateIdle)
	}
}

func TestClearTranscript(t *testing.T) {
	eng := &mock.Engine{}
	s := capture.New(eng, "ru-RU")
	s.Start()
	eng.EmitResult("кухня", true)

	s.ClearTranscript()
	if got := s.Transcript(); got != "" {
		t.Fatalf("Transcript() = %q, want empty", got)
	}
	if !s.Listening() {
		t.Fatal("ClearTranscript must not touch the listening state")
	}
}

func TestEngineError_ForcesIdle(t *testing.T) {
	eng := &mock.Engine{}
	s := capture.New(eng, "ru-RU")
	s.Start()
	eng.EmitResult("кухня", true)

	eng.EmitError("network")

	if got := s.State(); got != capture.StateIdle {
		t.Fatalf("State() = %q, want %q", got, capture.StateIdle)
	}
	code, ok := s.LastError()
	if !ok || code != "network" {
		t.Fatalf("LastError() = (%q, %v), want (%q, true)", code, ok, "network")
	}
	// The error ends the attempt, not the buffer.
	if got := s.Transcript(); got != "кухня" {
		t.Fatalf("Transcript() = %q, want %q", got, "кухня")
	}
}

func TestStop_OnlyFromListening(t *testing.T) {
	eng := &mock.Engine{}
	s := capture.New(eng, "ru-RU")

	s.Stop() // Idle: no-op
	if got := eng.Stops(); got != 0 {
		t.Fatalf("engine stops = %d, want 0", got)
	}

	s.Start()
	s.Stop()
	if got := s.State(); got != capture.StateIdle {
		t.Fatalf("State() = %q, want %q", got, capture.StateIdle)
	}
	if got := eng.Stops(); got != 1 {
		t.Fatalf("engine stops = %d, want 1", got)
	}

	// The engine's trailing end event re-confirms Idle without harm.
	eng.EmitEnd()
	if got := s.State(); got != capture.StateIdle {
		t.Fatalf("State() after trailing end = %q, want %q", got, capture.StateIdle)
	}
}

func TestClose_AbortsInFlightRecognition(t *testing.T) {
	eng := &mock.Engine{}
	s := capture.New(eng, "ru-RU")
	s.Start()

	s.Close()

	if got := eng.Aborts(); got != 1 {
		t.Fatalf("engine aborts = %d, want 1", got)
	}
	if got := s.State(); got != capture.StateIdle {
		t.Fatalf("State() = %q, want %q", got, capture.StateIdle)
	}

	// Close on a never-started session is safe too.
	s2 := capture.New(nil, "ru-RU")
	s2.Close()
}
