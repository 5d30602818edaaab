// Package mock provides a scriptable parse.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/velesk/smetka/pkg/provider/parse"
)

// Compile-time assertion that Provider implements parse.Provider.
var _ parse.Provider = (*Provider)(nil)

// Provider is a test double that returns scripted results and records calls.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Parse when Err is nil. A nil Result yields an
	// empty parse.Result.
	Result *parse.Result
	// Err, when non-nil, is returned by every Parse call.
	Err error
	// Delay, when non-nil, is closed by the test to unblock an in-flight
	// Parse call.
	Delay chan struct{}

	calls []Call
}

// Call records the arguments of one Parse invocation.
type Call struct {
	Transcript string
	Catalog    []parse.CatalogItem
}

// Parse implements parse.Provider.
func (p *Provider) Parse(ctx context.Context, transcript string, catalog []parse.CatalogItem) (*parse.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Transcript: transcript, Catalog: catalog})
	delay := p.Delay
	res, err := p.Result, p.Err
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		return &parse.Result{}, nil
	}
	return res, nil
}

// Calls returns a copy of all recorded invocations.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}
