package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
)

const defaultUsageWindow = 24 * time.Hour

type syncRequest struct {
	SiteURL      string `json:"site_url"`
	LookbackDays *int   `json:"lookback_days"`
}

type urlRequest struct {
	URL     string `json:"url"`
	SiteURL string `json:"site_url"`
}

type sitemapRequest struct {
	SiteURL    string `json:"site_url"`
	SitemapURL string `json:"sitemap_url"`
}

func (s *Server) listProperties(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	props, err := s.deps.Properties.Properties(r.Context(), force)
	resp := map[string]any{"properties": props}
	if at, ok := s.deps.Properties.FetchedAt(); ok {
		resp["fetched_at"] = at
	}
	if err != nil {
		if len(props) == 0 {
			s.writeFailure(w, r, err)
			return
		}
		// Stale listing is still served; the refresh failure is reported alongside.
		s.logger.Warn("serving stale property listing", zap.Error(err))
		resp["stale"] = true
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) syncAll(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	result, err := s.deps.Syncer.SyncAllProperties(r.Context(), s.lookback(req.LookbackDays))
	if err != nil {
		s.writeFailureWith(w, r, err, map[string]any{"result": result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) syncProperty(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SiteURL) == "" {
		writeError(w, http.StatusBadRequest, "site_url required")
		return
	}
	result, err := s.deps.Syncer.SyncProperty(r.Context(), req.SiteURL, s.lookback(req.LookbackDays))
	if err != nil {
		s.writeFailureWith(w, r, err, map[string]any{"result": result})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) inspect(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	result, err := s.deps.Remote.InspectURL(r.Context(), req.URL, req.SiteURL)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) requestIndexing(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	result, err := s.deps.Remote.RequestIndexing(r.Context(), req.URL, req.SiteURL)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

// listSitemaps lists one property's sitemaps, or reports on every syncable
// property when site_url is omitted.
func (s *Server) listSitemaps(w http.ResponseWriter, r *http.Request) {
	siteURL := r.URL.Query().Get("site_url")
	if siteURL == "" {
		reports, err := s.deps.Syncer.CheckSitemaps(r.Context())
		if err != nil {
			s.writeFailureWith(w, r, err, map[string]any{"reports": reports})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
		return
	}
	sitemaps, err := s.deps.Remote.ListSitemaps(r.Context(), siteURL)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"site_url": siteURL, "sitemaps": sitemaps})
}

func (s *Server) submitSitemap(w http.ResponseWriter, r *http.Request) {
	var req sitemapRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	if err := s.deps.Remote.SubmitSitemap(r.Context(), req.SiteURL, req.SitemapURL); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"site_url": req.SiteURL, "sitemap_url": req.SitemapURL})
}

func (s *Server) queryStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStatFilter(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	records, err := s.deps.Stats.QueryStats(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(records), "records": records})
}

func (s *Server) usageSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	service := q.Get("service")
	if service == "" {
		service = gsc.ServiceSearchConsole
	}
	since := s.now().Add(-defaultUsageWindow)
	if raw := q.Get("since"); raw != "" {
		parsed, err := parseTime(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since: %v", err))
			return
		}
		since = parsed
	}
	summary, err := s.deps.Usage.Summary(r.Context(), service, since)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	resp := map[string]any{"summary": summary}
	if s.deps.Limits != nil {
		resp["rate_limit"] = s.deps.Limits.State(service)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) lookback(requested *int) int {
	if requested != nil {
		return *requested
	}
	if s.cfg.Sync.LookbackDays > 0 {
		return s.cfg.Sync.LookbackDays
	}
	return 1
}

func (s *Server) now() time.Time {
	if s.deps.Clock != nil {
		return s.deps.Clock.Now()
	}
	return time.Now().UTC()
}

func parseStatFilter(r *http.Request) (gsc.StatFilter, error) {
	q := r.URL.Query()
	filter := gsc.StatFilter{SiteURL: q.Get("site_url")}
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(gsc.DateLayout, raw)
		if err != nil {
			return gsc.StatFilter{}, fmt.Errorf("%w: from must be YYYY-MM-DD", gsc.ErrInvalidRequest)
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(gsc.DateLayout, raw)
		if err != nil {
			return gsc.StatFilter{}, fmt.Errorf("%w: to must be YYYY-MM-DD", gsc.ErrInvalidRequest)
		}
		filter.To = to
	}
	if raw := q.Get("dimensions"); raw != "" {
		set, err := gsc.ParseDimensionSet(raw)
		if err != nil {
			return gsc.StatFilter{}, err
		}
		filter.DimensionSet = set.Key()
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return gsc.StatFilter{}, fmt.Errorf("%w: limit must be an integer", gsc.ErrInvalidRequest)
		}
		filter.Limit = limit
	}
	if err := filter.Validate(); err != nil {
		return gsc.StatFilter{}, err
	}
	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(gsc.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC3339 or YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func decodeRequired(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return decodeRequired(w, r, dst)
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	s.writeFailureWith(w, r, err, nil)
}

func (s *Server) writeFailureWith(w http.ResponseWriter, r *http.Request, err error, extra map[string]any) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	body := map[string]any{"error": msg}
	var remote *gsc.RemoteAPIError
	if errors.As(err, &remote) {
		body["remote_code"] = remote.Code
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// statusFor maps engine errors to HTTP statuses. Remote API failures carry
// the remote message verbatim.
func statusFor(err error) (int, string) {
	var (
		remote    *gsc.RemoteAPIError
		transport *gsc.TransportError
	)
	switch {
	case errors.Is(err, gsc.ErrInvalidDimension), errors.Is(err, gsc.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, gsc.ErrNotIndexable):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, gsc.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, gsc.ErrSyncInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, gsc.ErrNoValidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &remote):
		return http.StatusBadGateway, remote.Message
	case errors.As(err, &transport):
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, err.Error()
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
