package promote

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spachava753/granny/internal/log"
	"github.com/spachava753/granny/internal/models"
)

// PackagePromoter promotes a single spec. *Promoter implements it.
type PackagePromoter interface {
	Promote(ctx context.Context, spec models.PackageSpec, alias string) (*models.PromotionResult, error)
}

// BatchOrchestrator runs every promotion of a batch manifest on a bounded
// worker pool. Each promotion has its own workspace and shares nothing with
// the others.
type BatchOrchestrator struct {
	cfg      models.BatchConfig
	promoter PackagePromoter
}

// NewBatchOrchestrator returns an orchestrator for cfg.
func NewBatchOrchestrator(cfg models.BatchConfig, promoter PackagePromoter) (*BatchOrchestrator, error) {
	if promoter == nil {
		return nil, fmt.Errorf("batch orchestrator needs a promoter")
	}
	if cfg.Repository == "" {
		return nil, models.NewError(models.ErrConfig, "batch has no repository")
	}
	for i, spec := range cfg.Packages {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("package %d: %w", i+1, err)
		}
	}
	return &BatchOrchestrator{cfg: cfg, promoter: promoter}, nil
}

// Run promotes every package of the batch. Failed promotions are recorded in
// the result rather than returned. With fail_fast, the first failure cancels
// in-flight promotions and skips the ones not yet started. Packages skipped
// because ctx was cancelled mark the batch as cancelled.
func (o *BatchOrchestrator) Run(ctx context.Context) (*models.BatchResult, error) {
	startTime := time.Now()
	logger := log.WithComponent("batch")

	nWorkers := o.cfg.NConcurrent
	if nWorkers <= 0 {
		nWorkers = 1
	}
	nWorkers = min(nWorkers, max(len(o.cfg.Packages), 1))

	logger.Info("starting batch",
		"repository", o.cfg.Repository,
		"packages", len(o.cfg.Packages),
		"n_concurrent", nWorkers,
		"fail_fast", o.cfg.FailFast)

	// Slots are written by exactly one goroutine each; nil means never started.
	results := make([]*models.PromotionResult, len(o.cfg.Packages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nWorkers)

	for i, spec := range o.cfg.Packages {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			result, err := o.promoter.Promote(gctx, spec, o.cfg.Repository)
			results[i] = result
			if err != nil && o.cfg.FailFast {
				return fmt.Errorf("promoting %s: %w", spec, err)
			}
			return nil
		})
	}

	failFastErr := g.Wait()

	batch := aggregate(o.cfg.Repository, results, startTime)
	batch.Cancelled = batch.Skipped > 0 || ctx.Err() != nil
	if failFastErr != nil {
		logger.Warn("batch stopped after first failure", "error", failFastErr)
	}

	logger.Info("batch finished",
		"total", batch.Total,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"skipped", batch.Skipped,
		"registered", batch.Registered,
		"cancelled", batch.Cancelled,
		"duration_sec", batch.TotalDurationSec)

	return batch, nil
}

func aggregate(repository string, results []*models.PromotionResult, startTime time.Time) *models.BatchResult {
	br := &models.BatchResult{
		Repository: repository,
		Total:      len(results),
		StartedAt:  startTime,
		EndedAt:    time.Now(),
		Results:    make([]*models.PromotionResult, 0, len(results)),
	}
	br.TotalDurationSec = br.EndedAt.Sub(br.StartedAt).Seconds()

	for _, r := range results {
		if r == nil {
			br.Skipped++
			continue
		}
		br.Results = append(br.Results, r)
		if r.Error != nil {
			br.Failed++
			continue
		}
		br.Succeeded++
		if r.Registered {
			br.Registered++
		}
	}
	return br
}
