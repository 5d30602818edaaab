// Package wsengine implements a capture engine driven by a browser over a
// WebSocket. The browser owns the actual microphone and recognition
// machinery; this engine relays control frames to it and receives its
// recognition events, so the server-side [capture.Session] state machine
// stays authoritative.
//
// Wire protocol, all JSON text frames unless noted:
//
//	server → client: {"type":"start","language":"ru-RU","continuous":false,"interim_results":false}
//	server → client: {"type":"stop"} | {"type":"abort"}
//	client → server: {"type":"result","text":"...","final":true}
//	client → server: {"type":"error","code":"no-speech"}
//	client → server: {"type":"end"}
//	client → server: binary frames carrying 20 ms mono Opus audio
//
// Binary audio frames are decoded and buffered so the full dictation can be
// re-transcribed server-side (e.g. through whisper) when the browser's own
// recognition is unavailable or untrusted.
package wsengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/velesk/smetka/internal/capture"
	"github.com/velesk/smetka/pkg/audio"
)

// writeTimeout bounds each control-frame write to the client.
const writeTimeout = 5 * time.Second

// maxAudioBytes caps the buffered PCM at roughly two minutes of 48 kHz
// mono audio, matching the transcription collaborator's allowance.
const maxAudioBytes = 2 * 60 * 48000 * 2

// transcribeSampleRate is the rate batch transcription endpoints expect.
const transcribeSampleRate = 16000

// Compile-time assertion that Engine satisfies capture.Engine.
var _ capture.Engine = (*Engine)(nil)

// event is a client → server frame.
type event struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`
	Code  string `json:"code,omitempty"`
}

// command is a server → client control frame.
type command struct {
	Type           string `json:"type"`
	Language       string `json:"language,omitempty"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interim_results"`
}

// Engine is a [capture.Engine] backed by one browser WebSocket connection.
type Engine struct {
	conn    *websocket.Conn
	decoder *audio.OpusDecoder

	done chan struct{}

	mu       sync.Mutex
	cfg      capture.Config
	handlers capture.Handlers
	pcm      []byte
	closed   bool
}

// Done is closed when the client connection is gone and no further events
// will be delivered.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Accept upgrades the request to a WebSocket and starts the engine's read
// loop. The returned engine is ready to be wrapped in a [capture.Session].
func Accept(w http.ResponseWriter, r *http.Request) (*Engine, error) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wsengine: accept: %w", err)
	}

	decoder, err := audio.NewOpusDecoder()
	if err != nil {
		conn.Close(websocket.StatusInternalError, "audio decoder unavailable")
		return nil, err
	}

	e := &Engine{conn: conn, decoder: decoder, done: make(chan struct{})}
	go e.readLoop()
	return e, nil
}

// Configure implements capture.Engine.
func (e *Engine) Configure(cfg capture.Config, handlers capture.Handlers) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.handlers = handlers
}

// Start implements capture.Engine: it tells the browser to begin a
// recognition attempt. Fails synchronously when the connection is gone.
func (e *Engine) Start() error {
	e.mu.Lock()
	cfg := e.cfg
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return fmt.Errorf("wsengine: connection closed")
	}
	return e.writeCommand(command{
		Type:           "start",
		Language:       cfg.Language,
		Continuous:     cfg.Continuous,
		InterimResults: cfg.InterimResults,
	})
}

// Stop implements capture.Engine. Best-effort: the browser confirms with an
// end event, and a lost connection surfaces through the read loop.
func (e *Engine) Stop() {
	_ = e.writeCommand(command{Type: "stop"})
}

// Abort implements capture.Engine.
func (e *Engine) Abort() {
	_ = e.writeCommand(command{Type: "abort"})
}

// AudioWAV returns the buffered dictation audio as a 16 kHz mono WAV file,
// or nil when the client sent no audio frames.
func (e *Engine) AudioWAV() []byte {
	e.mu.Lock()
	pcm := make([]byte, len(e.pcm))
	copy(pcm, e.pcm)
	e.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}
	resampled := audio.ResampleMono16(pcm, e.decoder.SampleRate(), transcribeSampleRate)
	return audio.EncodeWAV(resampled, transcribeSampleRate)
}

// ClearAudio drops the buffered dictation audio.
func (e *Engine) ClearAudio() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pcm = nil
}

// Close closes the underlying connection. The read loop delivers a final
// end event to the session.
func (e *Engine) Close() {
	e.conn.Close(websocket.StatusNormalClosure, "session closed")
}

// readLoop pumps client frames until the connection drops. Text frames are
// recognition events dispatched to the session's handlers; binary frames
// are Opus audio appended to the PCM buffer.
func (e *Engine) readLoop() {
	ctx := context.Background()
	for {
		typ, data, err := e.conn.Read(ctx)
		if err != nil {
			// Connection gone: the current listening attempt, if any,
			// is over. Deliver a terminal end event exactly once.
			e.mu.Lock()
			e.closed = true
			onEnd := e.handlers.OnEnd
			e.mu.Unlock()
			if onEnd != nil {
				onEnd()
			}
			close(e.done)
			return
		}

		switch typ {
		case websocket.MessageText:
			e.dispatch(data)
		case websocket.MessageBinary:
			e.appendAudio(data)
		}
	}
}

// dispatch routes one client event to the registered handlers.
func (e *Engine) dispatch(data []byte) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}

	e.mu.Lock()
	h := e.handlers
	e.mu.Unlock()

	switch ev.Type {
	case "result":
		if h.OnResult != nil {
			h.OnResult(ev.Text, ev.Final)
		}
	case "error":
		if h.OnError != nil {
			h.OnError(ev.Code)
		}
	case "end":
		if h.OnEnd != nil {
			h.OnEnd()
		}
	}
}

// appendAudio decodes one Opus frame into the PCM buffer, dropping frames
// once the two-minute allowance is exhausted.
func (e *Engine) appendAudio(frame []byte) {
	pcm, err := e.decoder.Decode(frame)
	if err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pcm)+len(pcm) > maxAudioBytes {
		return
	}
	e.pcm = append(e.pcm, pcm...)
}

// writeCommand sends one control frame with a bounded deadline.
func (e *Engine) writeCommand(cmd command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("wsengine: marshal command: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := e.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("wsengine: write %s: %w", cmd.Type, err)
	}
	return nil
}
