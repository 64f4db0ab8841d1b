package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/n2edm/n2read/internal/index"
	"github.com/n2edm/n2read/internal/logger"
)

// RefresherConfig controls a Refresher. Schedule, a five-field cron
// expression, takes precedence over Interval.
type RefresherConfig struct {
	Interval time.Duration
	Schedule string
	Options  RefreshOptions
}

// Refresher keeps a catalog current by refreshing it in the background.
type Refresher struct {
	catalog *Catalog
	scanner *index.Scanner
	config  RefresherConfig
	log     zerolog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	cron    *cron.Cron

	resMu   sync.Mutex
	last    *ScanResult
	lastErr error
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewRefresher validates the schedule and creates a stopped refresher.
func NewRefresher(c *Catalog, s *index.Scanner, cfg RefresherConfig) (*Refresher, error) {
	if cfg.Schedule != "" {
		if _, err := cronParser.Parse(cfg.Schedule); err != nil {
			return nil, fmt.Errorf("catalog: invalid refresh schedule %q: %w", cfg.Schedule, err)
		}
	} else if cfg.Interval <= 0 {
		return nil, fmt.Errorf("catalog: refresh needs a schedule or a positive interval")
	}
	return &Refresher{
		catalog: c,
		scanner: s,
		config:  cfg,
		log:     logger.Get("catalog").With().Str("role", "refresher").Logger(),
	}, nil
}

// Start refreshes once and then on every tick until ctx is canceled or Stop
// is called.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("catalog: refresher is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.done = make(chan struct{})

	if r.config.Schedule != "" {
		r.cron = cron.New(cron.WithParser(cronParser))
		if _, err := r.cron.AddFunc(r.config.Schedule, func() { r.RunOnce(ctx) }); err != nil {
			cancel()
			r.running = false
			return err
		}
		r.cron.Start()
		go func() {
			defer close(r.done)
			r.RunOnce(ctx)
			<-ctx.Done()
		}()
		r.log.Info().Str("schedule", r.config.Schedule).Msg("Catalog refresher started")
		return nil
	}

	go r.loop(ctx)
	r.log.Info().Dur("interval", r.config.Interval).Msg("Catalog refresher started")
	return nil
}

func (r *Refresher) loop(ctx context.Context) {
	defer close(r.done)

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// Stop cancels the refresher and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.cancel()
	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.cron = nil
	}
	<-r.done
	r.running = false
	r.log.Info().Msg("Catalog refresher stopped")
}

// RunOnce drops the scanner's directory cache and refreshes the catalog.
func (r *Refresher) RunOnce(ctx context.Context) (*ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.scanner.Cache.Reset()
	res, err := r.catalog.Refresh(ctx, r.scanner, r.config.Options)
	if err != nil {
		r.log.Error().Err(err).Msg("Catalog refresh failed")
	}

	r.resMu.Lock()
	r.last, r.lastErr = res, err
	r.resMu.Unlock()
	return res, err
}

// Last returns the outcome of the most recent refresh.
func (r *Refresher) Last() (*ScanResult, error) {
	r.resMu.Lock()
	defer r.resMu.Unlock()
	return r.last, r.lastErr
}
