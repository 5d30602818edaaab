// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors (OpenAI
// text-embedding-3, a local Ollama model, and so on). The price catalog uses
// these vectors to suggest likely replacements for dictated positions the
// parser could not match by name or synonym.
package embeddings

import "context"

// Provider is the abstraction over a text-embedding backend.
//
// Every vector produced by one Provider instance has the same length,
// reported by Dimensions. Vectors from different instances live in different
// spaces and must not be mixed in one similarity computation unless the
// caller has verified both use the same model.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the vector for one text. The text is passed to the
	// backend verbatim; any model-specific prefix ("query: " for retrieval
	// models) is the caller's concern.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes vectors for all texts in one backend call, far
	// cheaper than looping over Embed. The result is parallel to texts.
	// On any error the whole result is nil, never partial.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length of this provider,
	// determined by the model and constant for the instance's lifetime.
	Dimensions() int

	// ModelID returns the backend's model identifier
	// ("text-embedding-3-small", "nomic-embed-text"), for logging and for
	// detecting model changes that invalidate stored vectors.
	ModelID() string
}
