package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/fillbook/internal/domain"
	"github.com/alanyoungcy/fillbook/internal/ledger"
	"github.com/alanyoungcy/fillbook/internal/marketdata"
)

// ArchiveJob periodically writes the ledger and the spread series to cold
// storage.
type ArchiveJob struct {
	archiver domain.Archiver
	ledger   *ledger.Ledger
	agg      *marketdata.Aggregator
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	lastVersion uint64
}

// NewArchiveJob creates an ArchiveJob.
func NewArchiveJob(archiver domain.Archiver, l *ledger.Ledger, agg *marketdata.Aggregator, interval time.Duration, logger *slog.Logger) *ArchiveJob {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ArchiveJob{
		archiver: archiver,
		ledger:   l,
		agg:      agg,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "archive_job")),
	}
}

// Run archives every interval until ctx is cancelled.
func (j *ArchiveJob) Run(ctx context.Context) error {
	j.logger.Info("archive job started", slog.Duration("interval", j.interval))
	defer j.logger.Info("archive job stopped")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce writes one archive. The ledger is skipped when it has not changed
// since the previous run. It returns the object paths written.
func (j *ArchiveJob) RunOnce(ctx context.Context) ([]string, error) {
	at := j.now().UTC()
	var paths []string

	if v := j.ledger.Version(); v != j.lastVersion {
		p, err := j.archiver.ArchiveLedger(ctx, at, j.ledger.All())
		if err != nil {
			return paths, fmt.Errorf("archive_job: ledger: %w", err)
		}
		j.lastVersion = v
		paths = append(paths, p)
	}

	if points := j.agg.SpreadSeries(0); len(points) > 0 {
		p, err := j.archiver.ArchiveSpread(ctx, at, points)
		if err != nil {
			return paths, fmt.Errorf("archive_job: spread: %w", err)
		}
		paths = append(paths, p)
	}

	if len(paths) > 0 {
		j.logger.Info("archive written", slog.Any("paths", paths))
	}
	return paths, nil
}
