// Package provider abstracts the remote completion capability. Adapters
// translate one wire protocol into the Provider contract and classify
// transport failures into the error kinds the retry layer understands.
package provider

import "context"

// Request is a single completion request handed to an adapter.
type Request struct {
	// Prompt text to complete.
	Prompt string
	// Ordered context entries supplied alongside the prompt.
	Context []string
	// Model identifier. Empty means the adapter default.
	Model string
}

// Stream is a single-pass sequence of completion chunks.
// Recv returns io.EOF after the final chunk. Close releases the underlying
// transport and is safe to call at any point, including mid-stream.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Provider produces completions, either fully resolved or as a stream.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (Stream, error)
}
