package searchconsole

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

const notificationURLUpdated = "URL_UPDATED"

// InspectURL inspects one URL of a property. CanBeIndexed is derived only
// from the index verdict.
func (c *Client) InspectURL(ctx context.Context, pageURL, siteURL string) (gsc.InspectionResult, error) {
	if err := validateAbsoluteURL("url", pageURL); err != nil {
		return gsc.InspectionResult{}, err
	}
	if err := requireSite(siteURL); err != nil {
		return gsc.InspectionResult{}, err
	}
	var resp inspectResponse
	err := c.do(ctx, call{
		service:   gsc.ServiceSearchConsole,
		operation: "urlInspection.inspect",
		method:    http.MethodPost,
		url:       c.cfg.SearchConsoleBaseURL + "/urlInspection/index:inspect",
		body:      inspectRequest{InspectionURL: pageURL, SiteURL: siteURL},
		timeout:   c.cfg.ReadTimeout,
		out:       &resp,
	})
	if err != nil {
		return gsc.InspectionResult{}, err
	}
	ir := resp.InspectionResult
	verdict := gsc.ParseVerdict(ir.IndexStatusResult.Verdict)
	result := gsc.InspectionResult{
		URL:                pageURL,
		IndexVerdict:       verdict,
		CanBeIndexed:       verdict == gsc.VerdictPass,
		CoverageState:      ir.IndexStatusResult.CoverageState,
		GoogleCanonical:    ir.IndexStatusResult.GoogleCanonical,
		UserCanonical:      ir.IndexStatusResult.UserCanonical,
		MobileFriendly:     ir.MobileUsabilityResult.Verdict == "PASS",
		RichResultsVerdict: ir.RichResultsResult.Verdict == "PASS",
		LastCrawlTime:      parseTimestamp(ir.IndexStatusResult.LastCrawlTime),
		MobileIssues:       []string{},
		RichResultsItems:   []string{},
	}
	for _, issue := range ir.MobileUsabilityResult.Issues {
		msg := issue.Message
		if msg == "" {
			msg = issue.IssueType
		}
		result.MobileIssues = append(result.MobileIssues, msg)
	}
	for _, item := range ir.RichResultsResult.DetectedItems {
		result.RichResultsItems = append(result.RichResultsItems, item.RichResultType)
	}
	return result, nil
}

// RequestIndexing asks the Indexing API to recrawl pageURL. The URL is
// inspected first; when it cannot be indexed the indexing call is skipped and
// a *gsc.NotIndexableError is returned.
func (c *Client) RequestIndexing(ctx context.Context, pageURL, siteURL string) (gsc.IndexingResult, error) {
	inspection, err := c.InspectURL(ctx, pageURL, siteURL)
	if err != nil {
		return gsc.IndexingResult{}, err
	}
	if !inspection.CanBeIndexed {
		return gsc.IndexingResult{}, &gsc.NotIndexableError{URL: pageURL, Reason: notIndexableReason(inspection)}
	}
	var resp publishResponse
	err = c.do(ctx, call{
		service:   gsc.ServiceIndexing,
		operation: "urlNotifications.publish",
		method:    http.MethodPost,
		url:       c.cfg.IndexingBaseURL + "/urlNotifications:publish",
		body:      publishRequest{URL: pageURL, Type: notificationURLUpdated},
		timeout:   c.cfg.ReadTimeout,
		out:       &resp,
	})
	if err != nil {
		return gsc.IndexingResult{}, err
	}
	latest := resp.URLNotificationMetadata.LatestUpdate
	result := gsc.IndexingResult{
		Accepted:   true,
		URL:        pageURL,
		Type:       notificationURLUpdated,
		NotifyTime: parseTimestamp(latest.NotifyTime),
	}
	if latest.Type != "" {
		result.Type = latest.Type
	}
	return result, nil
}

func notIndexableReason(r gsc.InspectionResult) string {
	if strings.TrimSpace(r.CoverageState) != "" {
		return r.CoverageState
	}
	return "index verdict " + string(r.IndexVerdict)
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
