// Package mock provides a scriptable transcribe.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/velesk/smetka/pkg/provider/transcribe"
)

// Compile-time assertion that Provider implements transcribe.Provider.
var _ transcribe.Provider = (*Provider)(nil)

// Provider is a test double that returns scripted results and records calls.
type Provider struct {
	mu sync.Mutex

	// Text is returned by Transcribe when Err is nil.
	Text string
	// Err, when non-nil, is returned by every Transcribe call.
	Err error
	// Delay, when non-nil, is closed by the test to unblock an in-flight
	// Transcribe call. Leave nil for immediate returns.
	Delay chan struct{}

	calls []Call
}

// Call records the arguments of one Transcribe invocation.
type Call struct {
	Audio    []byte
	MimeType string
}

// Transcribe implements transcribe.Provider.
func (p *Provider) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Audio: audio, MimeType: mimeType})
	delay := p.Delay
	text, err := p.Text, p.Err
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return text, nil
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}
