package agent

import "context"

// Answerer answers a free-text question using the given material as its
// only source.
type Answerer interface {
	Answer(ctx context.Context, question, material string) (string, error)
}

// Ensure the backends implement Answerer.
var (
	_ Answerer = (*GrpcClient)(nil)
	_ Answerer = (*GeminiClient)(nil)
	_ Answerer = Unavailable{}
	_ Answerer = (*Service)(nil)
)
