package resilience

import (
	"context"

	"github.com/velesk/smetka/pkg/provider/transcribe"
)

// TranscribeFallback is a [transcribe.Provider] that delegates to a
// [FallbackGroup] of transcription providers, e.g. an API-backed transcriber
// with a local whisper model behind it.
type TranscribeFallback struct {
	group *FallbackGroup[transcribe.Provider]
}

var _ transcribe.Provider = (*TranscribeFallback)(nil)

// NewTranscribeFallback wraps primary in a breaker-guarded group.
func NewTranscribeFallback(primary transcribe.Provider, primaryName string, cfg FallbackConfig) *TranscribeFallback {
	return &TranscribeFallback{
		group: NewFallbackGroup[transcribe.Provider](primary, primaryName, cfg),
	}
}

// AddFallback appends another transcription provider, tried after the primary.
func (f *TranscribeFallback) AddFallback(name string, provider transcribe.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe implements transcribe.Provider with automatic failover.
func (f *TranscribeFallback) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return ExecuteWithResult(f.group, func(p transcribe.Provider) (string, error) {
		return p.Transcribe(ctx, audio, mimeType)
	})
}
