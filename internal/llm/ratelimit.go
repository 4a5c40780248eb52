package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder throttles calls to an underlying Embedder.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows at most perSecond calls per second with a burst of one.
// A non-positive rate returns next unchanged.
func NewRateLimitedEmbedder(next Embedder, perSecond float64) Embedder {
	if perSecond <= 0 {
		return next
	}
	return &RateLimitedEmbedder{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// Embed waits for a token and delegates to the wrapped embedder.
func (e *RateLimitedEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limiter: %w", err)
	}
	return e.next.Embed(ctx, text, model)
}
