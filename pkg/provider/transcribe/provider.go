// Package transcribe defines the speech-to-text provider contract.
//
// A Provider turns a finished audio recording into plain text. It is a batch
// interface: the caller hands over the complete blob (typically a browser
// MediaRecorder capture or a WAV render of a websocket audio stream) and
// blocks until the text is available or the context expires.
//
// Implementations live in subpackages:
//
//   - [github.com/velesk/smetka/pkg/provider/transcribe/openrouter] sends the
//     audio to a multimodal chat model via the OpenRouter API.
//   - [github.com/velesk/smetka/pkg/provider/transcribe/whisper] uses a local
//     whisper.cpp server or the in-process cgo bindings.
//   - the mock subpackage provides a scriptable test double.
package transcribe

import "context"

// Provider transcribes a complete audio recording into text.
type Provider interface {
	// Transcribe converts the given audio blob to text. mimeType identifies
	// the container format (e.g. "audio/webm", "audio/wav"); providers that
	// only accept a fixed format may ignore it or reject unsupported types.
	//
	// The returned text has surrounding whitespace stripped. An empty string
	// with a nil error means the recording contained no recognizable speech.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}
