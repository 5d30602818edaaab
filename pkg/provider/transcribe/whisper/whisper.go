// Package whisper provides transcribe.Provider implementations backed by
// whisper.cpp.
//
// [Provider] talks to a running whisper-server binary over its REST API
// (POST /inference). [NativeProvider] links whisper.cpp directly through the
// official CGO bindings, avoiding the HTTP hop at the cost of a build-time
// dependency on libwhisper.a.
//
// Both variants are batch engines and expect complete recordings in WAV
// format (16-bit signed little-endian PCM). The dictation pipeline renders
// its captured audio to exactly that before handing it over.
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/velesk/smetka/pkg/provider/transcribe"
)

const (
	defaultLanguage = "ru"
	defaultTimeout  = 120 * time.Second
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base", "small"). When empty the server uses whichever model it was
// started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language code sent to the whisper.cpp server.
// Defaults to "ru".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient overrides the HTTP client used for inference requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements transcribe.Provider against a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider that submits recordings to the whisper.cpp server at
// serverURL (e.g. "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements transcribe.Provider. The audio must be a WAV file;
// mimeType is checked and anything other than audio/wav is rejected because
// whisper-server does not decode compressed containers.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("whisper: empty audio")
	}
	if mt := normalizeMime(mimeType); mt != "" && mt != "audio/wav" && mt != "audio/x-wav" {
		return "", fmt.Errorf("whisper: unsupported audio type %q, want audio/wav", mimeType)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if p.language != "" {
		if err := mw.WriteField("language", p.language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	endpoint := p.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// normalizeMime strips codec parameters such as "audio/wav;codecs=1".
func normalizeMime(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// stripWAVHeader returns the PCM payload of a canonical 44-byte-header WAV
// file along with its sample rate. It understands only the 16-bit PCM files
// produced by this codebase and whisper-server tooling; anything fancier
// (extensible headers, extra chunks) is rejected.
func stripWAVHeader(wav []byte) (pcm []byte, sampleRate int, err error) {
	if len(wav) < 44 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("whisper: not a RIFF/WAVE file")
	}
	if string(wav[12:16]) != "fmt " || string(wav[36:40]) != "data" {
		return nil, 0, fmt.Errorf("whisper: unsupported WAV layout")
	}
	format := binary.LittleEndian.Uint16(wav[20:22])
	bits := binary.LittleEndian.Uint16(wav[34:36])
	if format != 1 || bits != 16 {
		return nil, 0, fmt.Errorf("whisper: want 16-bit PCM, got format %d bits %d", format, bits)
	}
	channels := int(binary.LittleEndian.Uint16(wav[22:24]))
	if channels != 1 {
		return nil, 0, fmt.Errorf("whisper: want mono audio, got %d channels", channels)
	}
	sampleRate = int(binary.LittleEndian.Uint32(wav[24:28]))
	dataSize := int(binary.LittleEndian.Uint32(wav[40:44]))
	if dataSize > len(wav)-44 {
		dataSize = len(wav) - 44
	}
	return wav[44 : 44+dataSize], sampleRate, nil
}
