// Package syncer orchestrates analytics syncs across dimension sets and
// properties, and the lighter hourly sitemap check.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/searchconsole-sync/internal/dispatcher"
	"github.com/JakeFAU/searchconsole-sync/internal/gsc"
	"github.com/JakeFAU/searchconsole-sync/internal/metrics"
)

// AnalyticsClient is the subset of the remote client the syncer drives.
type AnalyticsClient interface {
	QuerySearchAnalytics(ctx context.Context, req gsc.QueryRequest) ([]gsc.AnalyticsRow, error)
	ListSitemaps(ctx context.Context, siteURL string) ([]gsc.Sitemap, error)
}

// PropertySource yields the properties eligible for a sync.
type PropertySource interface {
	Syncable(ctx context.Context, forceRefresh bool) ([]gsc.Property, error)
}

// RowStore persists the rows of one dimension set.
type RowStore interface {
	Store(ctx context.Context, siteURL string, set gsc.DimensionSet, window gsc.DateWindow, rows []gsc.AnalyticsRow) (gsc.UpsertResult, error)
}

// IDGenerator issues run ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Config controls a Syncer.
type Config struct {
	Catalog   []gsc.DimensionSet
	RowLimit  int
	MaxPages  int
	DataState gsc.DataState
	// CallDelay spaces consecutive remote calls; zero disables pacing.
	CallDelay time.Duration
	// PropertyDelay is the pause before each property after the first
	// round of workers.
	PropertyDelay time.Duration
	Workers       int
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		Catalog:       gsc.DefaultCatalog(),
		RowLimit:      gsc.DefaultRowLimit,
		MaxPages:      1,
		CallDelay:     250 * time.Millisecond,
		PropertyDelay: 2 * time.Second,
		Workers:       1,
	}
}

func (c Config) normalized() Config {
	if len(c.Catalog) == 0 {
		c.Catalog = gsc.DefaultCatalog()
	}
	if c.RowLimit <= 0 {
		c.RowLimit = gsc.DefaultRowLimit
	}
	if c.RowLimit > gsc.MaxRowLimit {
		c.RowLimit = gsc.MaxRowLimit
	}
	if c.MaxPages < 1 {
		c.MaxPages = 1
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

// Syncer runs property and batch syncs.
type Syncer struct {
	cfg        Config
	client     AnalyticsClient
	properties PropertySource
	rows       RowStore
	clock      gsc.Clock
	ids        IDGenerator
	pacer      *rate.Limiter
	pool       *dispatcher.Dispatcher
	logger     *zap.Logger

	batchRunning atomic.Bool
	inflightMu   sync.Mutex
	inflight     map[string]struct{}
}

// New creates a Syncer.
func New(
	cfg Config,
	client AnalyticsClient,
	properties PropertySource,
	rows RowStore,
	clock gsc.Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Syncer {
	cfg = cfg.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.CallDelay > 0 {
		limit = rate.Every(cfg.CallDelay)
	}
	return &Syncer{
		cfg:        cfg,
		client:     client,
		properties: properties,
		rows:       rows,
		clock:      clock,
		ids:        ids,
		pacer:      rate.NewLimiter(limit, 1),
		pool:       dispatcher.New(cfg.Workers, logger.Named("dispatcher")),
		logger:     logger,
		inflight:   make(map[string]struct{}),
	}
}

// claim marks siteURL as syncing. It reports false when another sync of the
// same property holds it.
func (s *Syncer) claim(siteURL string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[siteURL]; busy {
		return false
	}
	s.inflight[siteURL] = struct{}{}
	return true
}

func (s *Syncer) release(siteURL string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, siteURL)
}

// SetResult is the outcome of one dimension set.
type SetResult struct {
	DimensionSet string           `json:"dimension_set"`
	Pages        int              `json:"pages"`
	Rows         int              `json:"rows"`
	Upserted     gsc.UpsertResult `json:"upserted"`
	Error        string           `json:"error,omitempty"`
}

// PropertyResult is the outcome of one property sync. Sets not attempted
// because of cancellation or an abort are absent.
type PropertyResult struct {
	SiteURL  string           `json:"site_url"`
	Window   gsc.DateWindow   `json:"window"`
	Sets     []SetResult      `json:"sets"`
	Upserted gsc.UpsertResult `json:"upserted"`
	Failed   int              `json:"failed_sets"`
	Skipped  bool             `json:"skipped,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// BatchResult is the outcome of a SyncAllProperties run.
type BatchResult struct {
	RunID      string           `json:"run_id"`
	Window     gsc.DateWindow   `json:"window"`
	Properties []PropertyResult `json:"properties"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Upserted   gsc.UpsertResult `json:"upserted"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

func (s *Syncer) runID() string {
	if s.ids == nil {
		return ""
	}
	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// SyncProperty syncs every catalog dimension set for one property over
// [today-lookbackDays, yesterday]. A failing set is logged and skipped. A
// missing token aborts the property; a canceled context stops it between
// sets. In both cases the partial result is returned with the error. A
// property already being synced yields gsc.ErrSyncInProgress.
func (s *Syncer) SyncProperty(ctx context.Context, siteURL string, lookbackDays int) (PropertyResult, error) {
	window, err := gsc.LookbackWindow(s.clock.Now(), lookbackDays)
	if err != nil {
		return PropertyResult{SiteURL: siteURL}, err
	}
	if siteURL == "" {
		return PropertyResult{}, fmt.Errorf("%w: site url is required", gsc.ErrInvalidRequest)
	}
	if !s.claim(siteURL) {
		return PropertyResult{SiteURL: siteURL, Window: window, Skipped: true},
			fmt.Errorf("property %s: %w", siteURL, gsc.ErrSyncInProgress)
	}
	defer s.release(siteURL)
	start := time.Now()
	log := s.logger.With(zap.String("run_id", s.runID()))
	res, err := s.syncProperty(ctx, log, siteURL, window)
	metrics.ObserveSync("property", propertyStatus(res, err), time.Since(start))
	return res, err
}

func (s *Syncer) syncProperty(
	ctx context.Context,
	log *zap.Logger,
	siteURL string,
	window gsc.DateWindow,
) (PropertyResult, error) {
	log = log.With(zap.String("site_url", siteURL), zap.String("window", window.String()))
	res := PropertyResult{SiteURL: siteURL, Window: window, Sets: []SetResult{}}
	log.Info("property sync started", zap.Int("dimension_sets", len(s.cfg.Catalog)))

	for _, set := range s.cfg.Catalog {
		if err := ctx.Err(); err != nil {
			log.Info("property sync canceled", zap.Int("completed_sets", len(res.Sets)))
			res.Error = err.Error()
			return res, err
		}
		setRes, err := s.syncSet(ctx, siteURL, set, window)
		if err != nil && (gsc.IsFatal(err) || isCanceled(ctx, err)) {
			if setRes.Pages > 0 {
				res.Sets = append(res.Sets, setRes)
				res.Upserted.Add(setRes.Upserted)
			}
			if gsc.IsFatal(err) {
				log.Error("property sync aborted", zap.String("dimension_set", set.Key()), zap.Error(err))
			}
			res.Error = err.Error()
			return res, err
		}
		if err != nil {
			res.Failed++
			setRes.Error = err.Error()
			log.Warn("dimension set failed", zap.String("dimension_set", set.Key()), zap.Error(err))
		}
		res.Sets = append(res.Sets, setRes)
		res.Upserted.Add(setRes.Upserted)
	}
	log.Info("property sync finished",
		zap.Int("inserted", res.Upserted.Inserted),
		zap.Int("updated", res.Upserted.Updated),
		zap.Int("failed_sets", res.Failed),
	)
	return res, nil
}

// syncSet pages through one dimension set. Pages already stored stay stored
// when a later page fails.
func (s *Syncer) syncSet(
	ctx context.Context,
	siteURL string,
	set gsc.DimensionSet,
	window gsc.DateWindow,
) (SetResult, error) {
	res := SetResult{DimensionSet: set.Key()}
	startRow := 0
	for page := 0; page < s.cfg.MaxPages; page++ {
		if err := s.pacer.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			return res, fmt.Errorf("pace: %w", err)
		}
		rows, err := s.client.QuerySearchAnalytics(ctx, gsc.QueryRequest{
			SiteURL:    siteURL,
			Window:     window,
			Dimensions: set,
			RowLimit:   s.cfg.RowLimit,
			StartRow:   startRow,
			DataState:  s.cfg.DataState,
		})
		if err != nil {
			return res, err
		}
		res.Pages++
		res.Rows += len(rows)
		if len(rows) > 0 {
			// Rows from an honored call are stored even if ctx ends meanwhile.
			upserted, err := s.rows.Store(context.WithoutCancel(ctx), siteURL, set, window, rows)
			if err != nil {
				return res, err
			}
			res.Upserted.Add(upserted)
		}
		if len(rows) < s.cfg.RowLimit {
			break
		}
		startRow += s.cfg.RowLimit
	}
	return res, nil
}

// SyncAllProperties syncs every owner and full-user property. A property
// failure does not stop the batch; a missing token aborts it. Only one batch
// runs at a time, and properties claimed by a concurrent SyncProperty are
// skipped.
func (s *Syncer) SyncAllProperties(ctx context.Context, lookbackDays int) (BatchResult, error) {
	started := s.clock.Now()
	window, err := gsc.LookbackWindow(started, lookbackDays)
	if err != nil {
		return BatchResult{}, err
	}
	if !s.batchRunning.CompareAndSwap(false, true) {
		return BatchResult{Window: window}, fmt.Errorf("batch: %w", gsc.ErrSyncInProgress)
	}
	defer s.batchRunning.Store(false)
	batch := BatchResult{RunID: s.runID(), Window: window, StartedAt: started, Properties: []PropertyResult{}}
	log := s.logger.With(zap.String("run_id", batch.RunID))
	timer := time.Now()

	props, err := s.properties.Syncable(ctx, false)
	if err != nil {
		if len(props) == 0 {
			metrics.ObserveSync("batch", "failed", time.Since(timer))
			return batch, fmt.Errorf("list properties: %w", err)
		}
		log.Warn("using cached properties after refresh failure", zap.Error(err))
	}
	log.Info("batch sync started", zap.Int("properties", len(props)), zap.String("window", window.String()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]PropertyResult, len(props))
	ran := make([]bool, len(props))
	var (
		mu    sync.Mutex
		fatal error
	)
	s.pool.Run(runCtx, len(props), func(ctx context.Context, index int) {
		if index >= s.pool.Workers() && s.cfg.PropertyDelay > 0 {
			if err := sleep(ctx, s.cfg.PropertyDelay); err != nil {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		site := props[index].SiteURL
		if !s.claim(site) {
			log.Info("property already syncing, skipped", zap.String("site_url", site))
			return
		}
		defer s.release(site)
		res, err := s.syncProperty(ctx, log, site, window)
		mu.Lock()
		defer mu.Unlock()
		results[index] = res
		ran[index] = true
		if gsc.IsFatal(err) && fatal == nil {
			fatal = err
			cancel()
		}
	})

	for i, res := range results {
		if !ran[i] {
			res = PropertyResult{SiteURL: props[i].SiteURL, Window: window, Skipped: true}
			batch.Skipped++
		} else if res.Error != "" || res.Failed > 0 {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
		batch.Upserted.Add(res.Upserted)
		batch.Properties = append(batch.Properties, res)
	}
	batch.FinishedAt = s.clock.Now()

	var runErr error
	status := "success"
	switch {
	case fatal != nil:
		runErr, status = fatal, "aborted"
	case ctx.Err() != nil:
		runErr, status = ctx.Err(), "canceled"
	case batch.Failed > 0:
		status = "partial"
	}
	metrics.ObserveSync("batch", status, time.Since(timer))
	log.Info("batch sync finished",
		zap.String("status", status),
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
		zap.Int("skipped", batch.Skipped),
		zap.Int("inserted", batch.Upserted.Inserted),
		zap.Int("updated", batch.Upserted.Updated),
	)
	return batch, runErr
}

func propertyStatus(res PropertyResult, err error) string {
	switch {
	case gsc.IsFatal(err):
		return "aborted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case err != nil:
		return "failed"
	case res.Failed > 0:
		return "partial"
	default:
		return "success"
	}
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
