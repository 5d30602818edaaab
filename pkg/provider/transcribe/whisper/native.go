// This file contains the NativeProvider implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/velesk/smetka/pkg/audio"
	"github.com/velesk/smetka/pkg/provider/transcribe"
)

// Compile-time assertion that NativeProvider implements transcribe.Provider.
var _ transcribe.Provider = (*NativeProvider)(nil)

// nativeSampleRate is the sample rate whisper.cpp models are trained on.
const nativeSampleRate = 16000

// NativeProvider implements transcribe.Provider using the whisper.cpp Go
// bindings (CGO), eliminating HTTP overhead entirely. The model is loaded
// once at construction and shared across all calls.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	// Whisper contexts are not safe for concurrent use and creating one per
	// call is expensive, so inference is serialized.
	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the transcription language code (e.g. "ru", "en").
// Defaults to "ru".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements transcribe.Provider. The audio must be a 16-bit mono
// WAV file; it is resampled to 16 kHz if recorded at another rate.
func (p *NativeProvider) Transcribe(ctx context.Context, wav []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if mt := normalizeMime(mimeType); mt != "" && mt != "audio/wav" && mt != "audio/x-wav" {
		return "", fmt.Errorf("whisper: unsupported audio type %q, want audio/wav", mimeType)
	}

	pcm, rate, err := stripWAVHeader(wav)
	if err != nil {
		return "", err
	}
	if rate != nativeSampleRate {
		pcm = audio.ResampleMono16(pcm, rate, nativeSampleRate)
	}
	samples := audio.PCMToFloat32(pcm)
	if len(samples) == 0 {
		return "", fmt.Errorf("whisper: empty audio")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(p.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", p.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
