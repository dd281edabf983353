package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/metrics"
)

// SitemapReport summarizes the sitemaps of one property.
type SitemapReport struct {
	SiteURL  string        `json:"site_url"`
	Sitemaps []gsc.Sitemap `json:"sitemaps"`
	Errors   int64         `json:"errors"`
	Warnings int64         `json:"warnings"`
	Pending  int           `json:"pending"`
	Error    string        `json:"error,omitempty"`
}

// Healthy reports whether the property listed cleanly with no sitemap
// errors.
func (r SitemapReport) Healthy() bool {
	return r.Error == "" && r.Errors == 0
}

// CheckSitemaps lists the sitemaps of every syncable property, logging those
// with errors, warnings or pending processing. A per-property failure is
// recorded in its report; a missing token or cancellation stops the pass.
func (s *Syncer) CheckSitemaps(ctx context.Context) ([]SitemapReport, error) {
	timer := time.Now()
	log := s.logger.With(zap.String("run_id", s.runID()))
	props, err := s.properties.Syncable(ctx, false)
	if err != nil && len(props) == 0 {
		metrics.ObserveSync("sitemaps", "failed", time.Since(timer))
		return nil, err
	}

	reports := make([]SitemapReport, 0, len(props))
	status := "success"
	for _, p := range props {
		if err := ctx.Err(); err != nil {
			metrics.ObserveSync("sitemaps", "canceled", time.Since(timer))
			return reports, err
		}
		if err := s.pacer.Wait(ctx); err != nil {
			metrics.ObserveSync("sitemaps", "canceled", time.Since(timer))
			return reports, ctx.Err()
		}
		report := SitemapReport{SiteURL: p.SiteURL, Sitemaps: []gsc.Sitemap{}}
		sitemaps, err := s.client.ListSitemaps(ctx, p.SiteURL)
		if err != nil {
			if gsc.IsFatal(err) {
				log.Error("sitemap check aborted", zap.String("site_url", p.SiteURL), zap.Error(err))
				metrics.ObserveSync("sitemaps", "aborted", time.Since(timer))
				return reports, err
			}
			log.Warn("list sitemaps failed", zap.String("site_url", p.SiteURL), zap.Error(err))
			report.Error = err.Error()
			status = "partial"
			reports = append(reports, report)
			continue
		}
		report.Sitemaps = sitemaps
		for _, sm := range sitemaps {
			report.Errors += sm.Errors
			report.Warnings += sm.Warnings
			if sm.IsPending {
				report.Pending++
			}
			if sm.Errors > 0 || sm.Warnings > 0 || sm.IsPending {
				log.Warn("sitemap needs attention",
					zap.String("site_url", p.SiteURL),
					zap.String("path", sm.Path),
					zap.Int64("errors", sm.Errors),
					zap.Int64("warnings", sm.Warnings),
					zap.Bool("pending", sm.IsPending),
				)
			}
		}
		metrics.SetSitemapErrors(p.SiteURL, report.Errors)
		reports = append(reports, report)
	}
	metrics.ObserveSync("sitemaps", status, time.Since(timer))
	log.Info("sitemap check finished", zap.Int("properties", len(reports)), zap.String("status", status))
	return reports, nil
}
