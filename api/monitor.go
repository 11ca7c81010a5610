/*
monitor.go - Background overload monitor

PURPOSE:
  Periodically scans every active region for days on which too many team
  members are absent, so managers see staffing problems before they happen.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each run scans [today, today + HorizonDays) per active region
  - The latest report per region is cached and served by
    GET /api/regions/{id}/overload/latest
  - Every overloaded day is logged as a warning

CONFIGURATION:
  - Interval:    How often to scan (default: 1 hour)
  - HorizonDays: How far ahead to look (default: 30)
  - Enabled:     Whether the monitor is active (default: true)

USAGE:
  monitor := NewOverloadMonitor(engine, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - absence/overload.go: OverloadAnalyzer
  - handlers.go: GetLatestOverload endpoint
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// RegionScan is one cached monitor result.
type RegionScan struct {
	Report    absence.OverloadReport
	ScannedAt time.Time
}

// OverloadMonitor scans regions for overload on a fixed interval.
type OverloadMonitor struct {
	Engine      *absence.Engine
	Logger      *zap.Logger
	Interval    time.Duration
	HorizonDays int
	Enabled     bool
	Now         func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	latestMu sync.RWMutex
	latest   map[string]RegionScan
}

// NewOverloadMonitor creates a monitor with the default settings.
func NewOverloadMonitor(engine *absence.Engine, logger *zap.Logger) *OverloadMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverloadMonitor{
		Engine:      engine,
		Logger:      logger.Named("overload-monitor"),
		Interval:    time.Hour,
		HorizonDays: 30,
		Enabled:     true,
		Now:         time.Now,
		latest:      make(map[string]RegionScan),
	}
}

// Start begins the monitor. The first scan runs immediately.
func (m *OverloadMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.Enabled {
		m.Logger.Info("disabled, not starting")
		return
	}
	if m.ticker != nil {
		return
	}

	m.ticker = time.NewTicker(m.Interval)
	m.stop = make(chan struct{})
	m.wg.Add(1)

	go m.run()

	m.Logger.Info("started", zap.Duration("interval", m.Interval), zap.Int("horizon_days", m.HorizonDays))
}

// Stop stops the monitor and waits for a running scan to finish.
func (m *OverloadMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.wg.Wait()
	m.ticker = nil
	m.Logger.Info("stopped")
}

func (m *OverloadMonitor) run() {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-m.stop
		cancel()
	}()

	m.scanAndLog(ctx)

	for {
		select {
		case <-m.ticker.C:
			m.scanAndLog(ctx)
		case <-m.stop:
			return
		}
	}
}

func (m *OverloadMonitor) scanAndLog(ctx context.Context) {
	if err := m.ScanNow(ctx); err != nil && ctx.Err() == nil {
		m.Logger.Error("scan failed", zap.Error(err))
	}
}

// ScanNow scans every active region once and replaces the cached reports.
// A failing region is logged and skipped.
func (m *OverloadMonitor) ScanNow(ctx context.Context) error {
	regions, err := m.Engine.Admin.ListRegions(ctx)
	if err != nil {
		return err
	}

	today := generic.FromTime(m.now())
	horizon := m.HorizonDays
	if horizon <= 0 {
		horizon = 30
	}
	period := generic.Period{Start: today, End: today.AddDays(horizon - 1)}

	scanned := make(map[string]RegionScan, len(regions))
	flagged := 0
	for _, reg := range regions {
		if !reg.Active {
			continue
		}
		report, err := m.Engine.Overload.Report(ctx, reg.ID, period, decimal.Zero)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.Logger.Error("region scan failed", zap.String("region_id", reg.ID), zap.Error(err))
			continue
		}
		scanned[reg.ID] = RegionScan{Report: report, ScannedAt: m.now()}
		for _, day := range report.Days {
			flagged++
			m.Logger.Warn("team overloaded",
				zap.String("region_id", reg.ID),
				zap.String("region", reg.Name),
				zap.String("date", day.Date.String()),
				zap.Int("absent", day.Absent),
				zap.Int("team_size", day.TeamSize),
				zap.String("ratio", day.Ratio.String()),
				zap.String("threshold", report.Threshold.String()),
			)
		}
	}

	m.latestMu.Lock()
	m.latest = scanned
	m.latestMu.Unlock()

	m.Logger.Debug("scan completed", zap.Int("regions", len(scanned)), zap.Int("overloaded_days", flagged))
	return nil
}

// Latest returns the last report for the region, if any.
func (m *OverloadMonitor) Latest(regionID string) (RegionScan, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	s, ok := m.latest[regionID]
	return s, ok
}

func (m *OverloadMonitor) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}
