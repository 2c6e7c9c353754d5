package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/collision-weather-etl/internal/config"
	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

// StationFetcher retrieves one station's hourly observations over a year range.
// Month failures are absorbed; only context cancellation is returned.
type StationFetcher interface {
	FetchStation(ctx context.Context, station domain.Station, startYear, endYear int) (domain.StationSeries, error)
}

// CollisionSource loads the collision log.
type CollisionSource interface {
	LoadCollisions(ctx context.Context) (domain.CollisionTable, error)
}

// Loader writes the enriched table to the output sink.
type Loader interface {
	Load(ctx context.Context, table domain.EnrichedTable) error
}

// Options selects the stations and year range for a run.
type Options struct {
	Primary   domain.Station
	Backup    domain.Station
	StartYear int
	EndYear   int
}

// Pipeline runs the collision/weather reconciliation once per Run call.
type Pipeline struct {
	fetcher StationFetcher
	source  CollisionSource
	loader  Loader
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	report  atomic.Pointer[domain.QualityReport]
}

// New creates a Pipeline with the given stages and observability.
func New(f StationFetcher, s CollisionSource, l Loader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher: f,
		source:  s,
		loader:  l,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastReport returns the quality report of the most recent successful run.
func (p *Pipeline) LastReport() (domain.QualityReport, bool) {
	r := p.report.Load()
	if r == nil {
		return domain.QualityReport{}, false
	}
	return *r, true
}

// Run executes every stage in order: load collisions, fetch both stations,
// reconcile, normalize, merge, report, and write. Collisions load first so a
// missing input fails before any network work.
func (p *Pipeline) Run(ctx context.Context) (domain.QualityReport, error) {
	p.logger.Info("pipeline started",
		"primary_station", p.opts.Primary.ID,
		"backup_station", p.opts.Backup.ID,
		"start_year", p.opts.StartYear,
		"end_year", p.opts.EndYear,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var collisions domain.CollisionTable
	err := p.stage("load", func() (err error) {
		collisions, err = p.source.LoadCollisions(ctx)
		return err
	})
	if err != nil {
		return domain.QualityReport{}, fmt.Errorf("load collisions: %w", err)
	}
	p.metrics.CollisionsLoaded.Add(float64(len(collisions.Events)))

	var primary, backup domain.StationSeries
	err = p.stage("fetch", func() (err error) {
		if primary, err = p.fetcher.FetchStation(ctx, p.opts.Primary, p.opts.StartYear, p.opts.EndYear); err != nil {
			return err
		}
		backup, err = p.fetcher.FetchStation(ctx, p.opts.Backup, p.opts.StartYear, p.opts.EndYear)
		return err
	})
	if err != nil {
		return domain.QualityReport{}, fmt.Errorf("fetch stations: %w", err)
	}

	var combined []domain.Observation
	_ = p.stage("reconcile", func() error {
		combined = domain.Reconcile(primary, backup)
		return nil
	})
	p.logger.Info("stations reconciled",
		"primary_rows", primary.Len(),
		"backup_rows", backup.Len(),
		"combined_rows", len(combined),
	)

	var (
		grid  domain.PatchedWeatherGrid
		stats domain.FillStats
	)
	_ = p.stage("normalize", func() error {
		grid, stats = domain.Normalize(combined)
		return nil
	})
	p.recordFill(grid, stats)

	var enriched []domain.EnrichedCollisionEvent
	_ = p.stage("merge", func() error {
		enriched = domain.Merge(collisions.Events, grid)
		return nil
	})
	p.logUnkeyed(enriched)

	report := domain.ComputeQuality(enriched)
	p.recordQuality(report)

	table := domain.EnrichedTable{Columns: collisions.Columns, Events: enriched}
	if err := p.stage("write", func() error { return p.loader.Load(ctx, table) }); err != nil {
		return report, fmt.Errorf("write output: %w", err)
	}
	p.metrics.EventsWritten.Add(float64(len(enriched)))

	p.report.Store(&report)
	p.ready.Store(true)
	p.logger.Info("pipeline finished", "rows", len(enriched))
	return report, nil
}

// stage times fn under the given stage label.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

func (p *Pipeline) recordFill(grid domain.PatchedWeatherGrid, stats domain.FillStats) {
	p.metrics.GridHours.Set(float64(stats.GridHours))
	p.metrics.FilledCells.WithLabelValues("forward").Add(float64(stats.ForwardFilled))
	p.metrics.FilledCells.WithLabelValues("precip_zero").Add(float64(stats.PrecipZeroed))
	p.metrics.FilledCells.WithLabelValues("backward").Add(float64(stats.BackwardFilled))

	if grid.Len() == 0 {
		p.logger.Warn("weather grid is empty, every collision will be unmatched")
		return
	}
	p.logger.Info("weather grid built",
		"start", grid.Start,
		"end", grid.End(),
		"hours", stats.GridHours,
		"missing_hours", stats.MissingHours,
		"off_grid_dropped", stats.OffGrid,
		"forward_filled", stats.ForwardFilled,
		"precip_zeroed", stats.PrecipZeroed,
		"backward_filled", stats.BackwardFilled,
	)
}

func (p *Pipeline) logUnkeyed(events []domain.EnrichedCollisionEvent) {
	var unkeyed []string
	for _, e := range events {
		if !e.HasKey {
			unkeyed = append(unkeyed, e.Event.ID)
		}
	}
	if len(unkeyed) == 0 {
		return
	}
	p.logger.Warn("collisions with unparseable occurrence date",
		"count", len(unkeyed),
		"first_ids", unkeyed[:min(len(unkeyed), domain.SampleSize)],
	)
}

func (p *Pipeline) recordQuality(r domain.QualityReport) {
	p.metrics.EventsUnmatched.Add(float64(r.MissingWeather))
	if r.Coverage != nil {
		p.metrics.CoverageRatio.Set(*r.Coverage / 100)
	} else {
		p.metrics.CoverageRatio.Set(math.NaN())
	}

	p.logger.Info("data quality report",
		"total", r.Total,
		"missing_weather", r.MissingWeather,
		"coverage", r.CoverageString(),
	)
	for _, e := range r.Samples {
		attrs := []any{"id", e.Event.ID, "matched", e.Matched, "is_rain", e.IsRain, "is_snow", e.IsSnow}
		if e.HasKey {
			attrs = append(attrs, "merge_key", e.JoinKey.Format(domain.JoinKeyLayout))
		}
		if e.Weather.Temperature != nil {
			attrs = append(attrs, "temperature", *e.Weather.Temperature)
		}
		p.logger.Info("sample row", attrs...)
	}
}

// OptionsFromConfig builds run options from the configured stations and years.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Primary:   domain.Station{ID: cfg.PrimaryStationID, Name: cfg.PrimaryStationName, Role: domain.RolePrimary},
		Backup:    domain.Station{ID: cfg.BackupStationID, Name: cfg.BackupStationName, Role: domain.RoleBackup},
		StartYear: cfg.StartYear,
		EndYear:   cfg.EndYear,
	}
}
