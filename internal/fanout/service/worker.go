package service

import (
	"context"
	"time"

	"github.com/smallbiznis/tradeway/internal/observability/metrics"
	"go.uber.org/zap"
)

const retryJobName = "fanout_retry"

// Worker retries pending and failed fan-out jobs on a fixed interval.
type Worker struct {
	svc *Service
	log *zap.Logger
}

func NewWorker(svc *Service) *Worker {
	return &Worker{svc: svc, log: svc.log.Named("worker")}
}

// RunOnce retries one batch and returns how many jobs finished.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	cfg := w.svc.commerce.Get().FanOut
	jobs, err := w.svc.repo.ListRetryable(ctx, w.svc.db, cfg.MaxAttempts, cfg.RetryBatch)
	if err != nil {
		return 0, err
	}

	workerMetrics := metrics.Worker()
	done := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		report, err := w.svc.Run(ctx, job.RootOrderID)
		if err != nil {
			workerMetrics.IncJobError(retryJobName, err)
			w.log.Warn("fan-out retry failed",
				zap.String("root_order_id", job.RootOrderID.String()),
				zap.String("org_id", job.OrgID.String()),
				zap.Int("attempt", job.Attempts+1),
				zap.Error(err),
			)
			continue
		}
		done++
		workerMetrics.AddBatchProcessed(retryJobName, "upstream_orders", len(report.Orders))
	}
	return done, nil
}

func (w *Worker) RunForever(ctx context.Context) {
	interval := w.svc.commerce.Get().FanOut.RetryInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	workerMetrics := metrics.Worker()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		start := time.Now()
		workerMetrics.IncJobRun(retryJobName)
		if _, err := w.RunOnce(ctx); err != nil {
			workerMetrics.IncJobError(retryJobName, err)
			w.log.Warn("fan-out retry run failed", zap.Error(err))
		}
		workerMetrics.ObserveJobDuration(retryJobName, time.Since(start))

		if next := w.svc.commerce.Get().FanOut.RetryInterval; next != interval {
			interval = next
			ticker.Reset(interval)
		}
	}
}
