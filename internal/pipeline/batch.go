package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/certcrawler/internal/model"
)

// RunFunc crawls one target. StartCrawl with bound options is the usual RunFunc.
type RunFunc func(ctx context.Context, target string) (*model.CrawlReport, error)

// BatchProcessor crawls several targets with a concurrency limit.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to StartCrawl because:
// 1. Each target keeps its own pipeline, limiter and visited set
// 2. The per-target concurrency and the number of parallel targets are
// independent knobs
type BatchProcessor struct {
	run         RunFunc
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of targets crawled at once.
// Non-positive values are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that crawls each target with run.
func NewBatchProcessor(run RunFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		run:         run,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls every target and returns the reports in target order.
// Targets not started before ctx was cancelled have a nil report. A failed
// target never stops the others; its error is recorded in its report.
// The returned error is ctx's error if the batch was cut short.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.CrawlReport, error) {
	results := make([]*model.CrawlReport, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(rep *model.CrawlReport, index int) {
		results[index] = rep
	})
	return results, err
}

// ProcessBatchWithCallback crawls every target and calls callback as each
// one finishes. Calls may be concurrent when the concurrency limit is above 1.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(rep *model.CrawlReport, index int),
) error {
	bp.logger.Debug("starting batch",
		"targets", len(targets),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Targets queued behind the limit may start after an interrupt.
			if ctx.Err() != nil {
				return nil
			}

			bp.logger.Debug("crawling target",
				"target", target,
				"index", i+1,
				"total", len(targets),
			)

			rep, err := bp.run(ctx, target)
			if err != nil {
				bp.logger.Warn("target failed", "target", target, "error", err)
			}
			if rep != nil {
				callback(rep, i)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers record errors in their reports

	bp.logger.Debug("batch complete",
		"targets", len(targets),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return ctx.Err()
}
