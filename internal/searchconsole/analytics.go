package searchconsole

import (
	"context"
	"math"
	"net/http"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// QuerySearchAnalytics runs one analytics query. The request is validated
// locally first; an unknown dimension never reaches the network.
func (c *Client) QuerySearchAnalytics(ctx context.Context, req gsc.QueryRequest) ([]gsc.AnalyticsRow, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := analyticsQueryRequest{
		StartDate:       req.Window.Start.Format(gsc.DateLayout),
		EndDate:         req.Window.End.Format(gsc.DateLayout),
		Dimensions:      req.Dimensions.Strings(),
		RowLimit:        req.EffectiveRowLimit(),
		StartRow:        req.StartRow,
		AggregationType: string(req.AggregationType),
		DataState:       string(req.DataState),
	}
	var resp analyticsQueryResponse
	err := c.do(ctx, call{
		service:   gsc.ServiceSearchConsole,
		operation: "searchAnalytics.query",
		method:    http.MethodPost,
		url:       c.cfg.WebmastersBaseURL + "/sites/" + encodeSite(req.SiteURL) + "/searchAnalytics/query",
		body:      body,
		timeout:   c.cfg.QueryTimeout,
		out:       &resp,
	})
	if err != nil {
		return nil, err
	}
	rows := make([]gsc.AnalyticsRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		rows = append(rows, gsc.AnalyticsRow{
			DimensionValues: append([]string(nil), r.Keys...),
			Impressions:     int64(math.Round(r.Impressions)),
			Clicks:          int64(math.Round(r.Clicks)),
			CTR:             r.CTR,
			Position:        r.Position,
		})
	}
	return rows, nil
}
