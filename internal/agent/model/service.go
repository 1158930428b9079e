package model

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// ModelService is the generative-model capability consumed by nodes.
type ModelService interface {
	// StreamCompletion submits an ordered prompt and returns a lazy stream of
	// text chunks. The caller must Close the reader.
	StreamCompletion(ctx context.Context, messages []*schema.Message) (*schema.StreamReader[string], error)

	// Complete submits an ordered prompt and returns the whole answer.
	Complete(ctx context.Context, messages []*schema.Message) (string, error)
}
