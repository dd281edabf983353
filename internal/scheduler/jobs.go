package scheduler

import (
	"context"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/syncer"
)

// Job names.
const (
	JobDailySync      = "daily-sync"
	JobHourlySitemaps = "hourly-sitemaps"
)

// SyncRunner is the part of the syncer the jobs call.
type SyncRunner interface {
	SyncAllProperties(ctx context.Context, lookbackDays int) (syncer.BatchResult, error)
	CheckSitemaps(ctx context.Context) ([]syncer.SitemapReport, error)
}

// JobsConfig sets the cadence of the built-in jobs.
type JobsConfig struct {
	DailyInterval  time.Duration
	HourlyInterval time.Duration
	LookbackDays   int
}

// RegisterJobs registers the daily analytics sync and the hourly sitemap
// check.
func RegisterJobs(reg Registrar, runner SyncRunner, cfg JobsConfig) error {
	if cfg.DailyInterval <= 0 {
		cfg.DailyInterval = 24 * time.Hour
	}
	if cfg.HourlyInterval <= 0 {
		cfg.HourlyInterval = time.Hour
	}
	if cfg.LookbackDays < 1 {
		cfg.LookbackDays = 1
	}
	if err := reg.Register(JobDailySync, cfg.DailyInterval, func(ctx context.Context) error {
		_, err := runner.SyncAllProperties(ctx, cfg.LookbackDays)
		return err
	}); err != nil {
		return err
	}
	return reg.Register(JobHourlySitemaps, cfg.HourlyInterval, func(ctx context.Context) error {
		_, err := runner.CheckSitemaps(ctx)
		return err
	})
}
