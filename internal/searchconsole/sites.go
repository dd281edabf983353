package searchconsole

import (
	"context"
	"net/http"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

// ListProperties lists every site the credentials can see.
func (c *Client) ListProperties(ctx context.Context) ([]gsc.Property, error) {
	var resp sitesListResponse
	err := c.do(ctx, call{
		service:   gsc.ServiceSearchConsole,
		operation: "sites.list",
		method:    http.MethodGet,
		url:       c.cfg.WebmastersBaseURL + "/sites",
		timeout:   c.cfg.ReadTimeout,
		out:       &resp,
	})
	if err != nil {
		return nil, err
	}
	props := make([]gsc.Property, 0, len(resp.SiteEntry))
	for _, entry := range resp.SiteEntry {
		props = append(props, gsc.Property{
			SiteURL:         entry.SiteURL,
			PermissionLevel: gsc.ParsePermissionLevel(entry.PermissionLevel),
			SiteType:        gsc.SiteTypeOf(entry.SiteURL),
		})
	}
	return props, nil
}
