package resilience

import (
	"context"

	"github.com/velesk/smetka/pkg/provider/parse"
)

// ParseFallback is a [parse.Provider] that delegates to a [FallbackGroup] of
// parse providers. A provider whose breaker has tripped is skipped, so a
// broken primary does not add its timeout to every parse.
type ParseFallback struct {
	group *FallbackGroup[parse.Provider]
}

var _ parse.Provider = (*ParseFallback)(nil)

// NewParseFallback wraps primary in a breaker-guarded group.
func NewParseFallback(primary parse.Provider, primaryName string, cfg FallbackConfig) *ParseFallback {
	return &ParseFallback{
		group: NewFallbackGroup[parse.Provider](primary, primaryName, cfg),
	}
}

// AddFallback appends another parse provider, tried after the primary.
func (f *ParseFallback) AddFallback(name string, provider parse.Provider) {
	f.group.AddFallback(name, provider)
}

// Parse implements parse.Provider with automatic failover.
func (f *ParseFallback) Parse(ctx context.Context, transcript string, catalog []parse.CatalogItem) (*parse.Result, error) {
	return ExecuteWithResult(f.group, func(p parse.Provider) (*parse.Result, error) {
		return p.Parse(ctx, transcript, catalog)
	})
}
