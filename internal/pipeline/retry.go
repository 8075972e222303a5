package pipeline

import (
	"context"

	"github.com/sells-group/cim-analyzer/internal/contract"
	"github.com/sells-group/cim-analyzer/internal/ingest"
	"github.com/sells-group/cim-analyzer/internal/reasoning"
	"github.com/sells-group/cim-analyzer/internal/resilience"
)

// retryingEngine attempts the engine call again on transient failures.
type retryingEngine struct {
	next Engine
	cfg  resilience.RetryConfig
}

// WithRetry wraps engine so unavailable, timed-out and 408/429/5xx-rejected
// calls are attempted again with exponential backoff. With cfg.MaxAttempts
// <= 1 engine is returned unchanged.
func WithRetry(engine Engine, cfg resilience.RetryConfig) Engine {
	if cfg.MaxAttempts <= 1 {
		return engine
	}
	cfg.ShouldRetry = reasoning.IsRetryable
	cfg.OnRetry = resilience.RetryLogger("anthropic", "analyze")
	return &retryingEngine{next: engine, cfg: cfg}
}

func (r *retryingEngine) Analyze(ctx context.Context, payload *ingest.Payload, k *contract.Contract) (*reasoning.Reply, error) {
	return resilience.DoVal(ctx, r.cfg, func(ctx context.Context) (*reasoning.Reply, error) {
		return r.next.Analyze(ctx, payload, k)
	})
}
