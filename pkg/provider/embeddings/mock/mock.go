// Package mock provides a test double for the embeddings.Provider interface:
// canned vectors out, submitted texts recorded for assertions.
package mock

import (
	"context"
	"sync"

	"github.com/velesk/smetka/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// EmbedCall records one Embed invocation.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall records one EmbedBatch invocation. Texts is a copy of the
// submitted slice.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider is a scriptable [embeddings.Provider]. Set the response fields
// before use; inspect the call records afterwards. Safe for concurrent use.
type Provider struct {
	mu sync.Mutex

	// EmbedResult and EmbedErr are returned by every Embed call.
	EmbedResult []float32
	EmbedErr    error

	// EmbedBatchResult is returned by EmbedBatch; when nil, a slice of nil
	// vectors matching the input length is returned instead.
	EmbedBatchResult [][]float32
	EmbedBatchErr    error

	// DimensionsValue and ModelIDValue are returned by the respective
	// accessors.
	DimensionsValue int
	ModelIDValue    string

	EmbedCalls          []EmbedCall
	EmbedBatchCalls     []EmbedBatchCall
	DimensionsCallCount int
	ModelIDCallCount    int
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	return p.EmbedResult, p.EmbedErr
}

// EmbedBatch implements [embeddings.Provider].
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	if p.EmbedBatchErr != nil {
		return nil, p.EmbedBatchErr
	}
	if p.EmbedBatchResult != nil {
		return p.EmbedBatchResult, nil
	}
	return make([][]float32, len(texts)), nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DimensionsCallCount++
	return p.DimensionsValue
}

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ModelIDCallCount++
	return p.ModelIDValue
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
	p.DimensionsCallCount = 0
	p.ModelIDCallCount = 0
}
