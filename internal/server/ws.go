package server

import (
	"context"
	"net/http"
	"time"

	"github.com/velesk/smetka/internal/capture"
	"github.com/velesk/smetka/internal/capture/wsengine"
)

// restartInterval is how often the capture handler re-arms the session after
// the browser engine finishes an utterance, keeping dictation continuous for
// the lifetime of the connection.
const restartInterval = 250 * time.Millisecond

// handleCapture serves GET /ws/capture: one WebSocket connection per
// dictation. The browser relays its recognition events and streams Opus
// audio frames; the server-side [capture.Session] stays authoritative over
// the listening state. When the connection ends, recognised text (or, when
// the browser produced none, a server-side transcription of the buffered
// audio) lands in the dictation transcript.
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	engine, err := wsengine.Accept(w, r)
	if err != nil {
		s.log.Warn("capture: websocket accept failed", "error", err)
		return
	}

	s.cfg.Metrics.ActiveCaptureSessions.Add(r.Context(), 1)
	defer s.cfg.Metrics.ActiveCaptureSessions.Add(r.Context(), -1)

	sess := capture.New(engine, s.language)
	defer sess.Close()
	sess.Start()

	// The browser ends recognition per utterance; keep re-arming the session
	// until the client disconnects. Start from Listening or Unsupported is a
	// no-op, so the ticker is safe to fire at any time.
	ticker := time.NewTicker(restartInterval)
	defer ticker.Stop()

	for {
		select {
		case <-engine.Done():
			s.finishCapture(r, sess, engine)
			return
		case <-r.Context().Done():
			engine.Close()
			s.finishCapture(r, sess, engine)
			return
		case <-ticker.C:
			sess.Start()
		}
	}
}

// finishCapture drains a closed capture session into the dictation
// transcript. Browser-recognised text wins; the buffered audio is only
// transcribed server-side when the browser produced nothing.
func (s *Server) finishCapture(r *http.Request, sess *capture.Session, engine *wsengine.Engine) {
	if code, ok := sess.LastError(); ok {
		s.log.Warn("capture: session ended with engine error", "code", code)
	}

	if text := sess.Transcript(); text != "" {
		s.cfg.Controller.AppendTranscript(text)
		s.log.Info("capture: transcript appended", "chars", len(text))
		return
	}

	wav := engine.AudioWAV()
	if wav == nil {
		return
	}
	// The connection context is gone; transcription gets its own deadline
	// inside the controller.
	text, err := s.cfg.Controller.Transcribe(context.WithoutCancel(r.Context()), wav, "audio/wav")
	if err != nil {
		s.log.Warn("capture: server-side transcription failed", "error", err)
		return
	}
	if text != "" {
		s.log.Info("capture: audio transcribed server-side", "chars", len(text))
	}
}
