package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cim-analyzer/internal/export"
	"github.com/sells-group/cim-analyzer/internal/pipeline"
)

var (
	analyzeOutDir      string
	analyzeXLSXDir     string
	analyzeConcurrency int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE...",
	Short: "Analyze one or more CIM documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if analyzeConcurrency > 0 {
			cfg.Batch.MaxConcurrency = analyzeConcurrency
		}

		p, err := initPipeline(cfg, "analyze")
		if err != nil {
			return err
		}

		return analyzeFiles(ctx, p, args, analyzeOptions{
			OutDir:      analyzeOutDir,
			XLSXDir:     analyzeXLSXDir,
			Concurrency: cfg.Batch.MaxConcurrency,
		}, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOutDir, "out", "", "write <name>.json per document to this directory instead of stdout")
	analyzeCmd.Flags().StringVar(&analyzeXLSXDir, "xlsx", "", "also export each financial table to <name>.xlsx in this directory")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "documents analyzed at once (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

// documentRunner is the part of the pipeline analyzeFiles needs.
type documentRunner interface {
	Run(ctx context.Context, doc pipeline.Document) (*pipeline.Outcome, error)
}

type analyzeOptions struct {
	OutDir      string
	XLSXDir     string
	Concurrency int
}

// analyzeFiles runs every file through the pipeline concurrently. A failed
// document never stops the others; the returned error reports how many failed.
func analyzeFiles(ctx context.Context, r documentRunner, files []string, opts analyzeOptions, stdout io.Writer) error {
	for _, dir := range []string{opts.OutDir, opts.XLSXDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "analyze: create %s", dir)
		}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	zap.L().Info("processing documents",
		zap.Int("documents", len(files)),
		zap.Int("concurrency", opts.Concurrency),
	)

	outcomes := make([]*pipeline.Outcome, len(files))
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for i, path := range files {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", path))

			out, err := analyzeFile(gctx, r, path, opts)
			if err != nil {
				failed.Add(1)
				logFailure(log, err)
				return nil // don't abort the batch on one document
			}

			succeeded.Add(1)
			outcomes[i] = out
			log.Info("analysis complete",
				zap.String("company", out.Artifact.CompanyName),
				zap.Float64("cost_usd", out.CostUSD),
				zap.Int("warnings", len(out.Warnings)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "analyze")
	}

	if opts.OutDir == "" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		for _, out := range outcomes {
			if out == nil {
				continue
			}
			if err := enc.Encode(out.Artifact); err != nil {
				return eris.Wrap(err, "analyze: write stdout")
			}
		}
	}

	var totalCost float64
	for _, out := range outcomes {
		if out != nil {
			totalCost += out.CostUSD
		}
	}
	zap.L().Info("analysis batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Float64("cost_usd", totalCost),
	)

	if n := failed.Load(); n > 0 {
		return eris.Errorf("analyze: %d of %d documents failed", n, len(files))
	}
	return nil
}

func analyzeFile(ctx context.Context, r documentRunner, path string, opts analyzeOptions) (*pipeline.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "analyze: read %s", path)
	}

	out, err := r.Run(ctx, pipeline.Document{Name: filepath.Base(path), Data: data})
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if opts.OutDir != "" {
		body, err := json.MarshalIndent(out.Artifact, "", "  ")
		if err != nil {
			return nil, eris.Wrap(err, "analyze: marshal artifact")
		}
		dest := filepath.Join(opts.OutDir, stem+".json")
		if err := os.WriteFile(dest, append(body, '\n'), 0o644); err != nil {
			return nil, eris.Wrapf(err, "analyze: write %s", dest)
		}
	}
	if opts.XLSXDir != "" {
		if err := export.Save(filepath.Join(opts.XLSXDir, stem+".xlsx"), out.Artifact); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// logFailure logs a failed document with whatever diagnostics the pipeline kept.
func logFailure(log *zap.Logger, err error) {
	fields := []zap.Field{zap.Error(err)}
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		fields = append(fields,
			zap.String("stage", string(pe.Stage)),
			zap.String("kind", string(pe.Kind)),
		)
		if pe.Detail != "" {
			fields = append(fields, zap.String("detail", pe.Detail))
		}
		if len(pe.Violations) > 0 {
			fields = append(fields, zap.Any("violations", pe.Violations))
		}
		if pe.Raw != "" {
			fields = append(fields, zap.String("raw", pe.Raw))
		}
	}
	log.Error("analysis failed", fields...)
}
