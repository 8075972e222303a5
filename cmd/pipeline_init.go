package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/cim-analyzer/internal/config"
	"github.com/sells-group/cim-analyzer/internal/contract"
	"github.com/sells-group/cim-analyzer/internal/cost"
	"github.com/sells-group/cim-analyzer/internal/ingest"
	"github.com/sells-group/cim-analyzer/internal/pipeline"
	"github.com/sells-group/cim-analyzer/internal/reasoning"
	"github.com/sells-group/cim-analyzer/internal/resilience"
)

// loadContract resolves the active contract with config overrides applied.
func loadContract(c *config.Config) (*contract.Contract, error) {
	k, err := contract.Load(c.Contract.Path)
	if err != nil {
		return nil, err
	}
	k = k.WithModel(c.Anthropic.Model)
	if c.Anthropic.MaxTokens > 0 {
		k.MaxTokens = c.Anthropic.MaxTokens
	}
	return k, nil
}

// initPipeline validates config for mode and builds the Pipeline.
func initPipeline(c *config.Config, mode string) (*pipeline.Pipeline, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	k, err := loadContract(c)
	if err != nil {
		return nil, err
	}

	engine, err := reasoning.Dial(c.Anthropic.Key, reasoning.Options{
		BaseURL: c.Anthropic.BaseURL,
		Timeout: time.Duration(c.Anthropic.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("pipeline ready",
		zap.String("contract", k.Version),
		zap.String("model", k.Model),
		zap.Int64("max_tokens", k.MaxTokens),
		zap.String("fingerprint", k.Fingerprint()),
		zap.Int("retry_attempts", c.Retry.MaxAttempts),
	)

	return pipeline.New(
		ingest.New(c.Ingest.MaxBytes),
		pipeline.WithRetry(engine, resilience.FromConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs)),
		k,
		cost.NewCalculator(c.Pricing.Rates()),
	), nil
}
