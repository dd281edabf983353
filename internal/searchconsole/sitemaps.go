package searchconsole

import (
	"context"
	"net/http"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// ListSitemaps lists the sitemaps submitted for a property.
func (c *Client) ListSitemaps(ctx context.Context, siteURL string) ([]gsc.Sitemap, error) {
	if err := requireSite(siteURL); err != nil {
		return nil, err
	}
	var resp sitemapsListResponse
	err := c.do(ctx, call{
		service:   gsc.ServiceSearchConsole,
		operation: "sitemaps.list",
		method:    http.MethodGet,
		url:       c.cfg.WebmastersBaseURL + "/sites/" + encodeSite(siteURL) + "/sitemaps",
		timeout:   c.cfg.ReadTimeout,
		out:       &resp,
	})
	if err != nil {
		return nil, err
	}
	out := make([]gsc.Sitemap, 0, len(resp.Sitemap))
	for _, sm := range resp.Sitemap {
		out = append(out, gsc.Sitemap{
			Path:            sm.Path,
			Type:            sm.Type,
			LastSubmitted:   parseTimestamp(sm.LastSubmitted),
			LastDownloaded:  parseTimestamp(sm.LastDownloaded),
			IsPending:       sm.IsPending,
			IsSitemapsIndex: sm.IsSitemapsIndex,
			Warnings:        sm.Warnings,
			Errors:          sm.Errors,
		})
	}
	return out, nil
}

// SubmitSitemap submits or resubmits a sitemap. The remote call is a PUT on
// the sitemap resource, so repeating it is safe.
func (c *Client) SubmitSitemap(ctx context.Context, siteURL, sitemapURL string) error {
	if err := requireSite(siteURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("sitemap url", sitemapURL); err != nil {
		return err
	}
	return c.do(ctx, call{
		service:   gsc.ServiceSearchConsole,
		operation: "sitemaps.submit",
		method:    http.MethodPut,
		url: c.cfg.WebmastersBaseURL + "/sites/" + encodeSite(siteURL) +
			"/sitemaps/" + encodeSite(sitemapURL),
		timeout: c.cfg.ReadTimeout,
	})
}
