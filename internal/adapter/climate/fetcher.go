package climate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/collision-weather-etl/internal/config"
	"github.com/couchcryptid/collision-weather-etl/internal/domain"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
)

// hourlyTimeframe is the bulk-data timeframe code for hourly observations.
const hourlyTimeframe = "1"

const (
	initialRetryDelay = time.Second
	maxRetryDelay     = 8 * time.Second
)

// notFoundMarker appears in the response body when the station has no data.
var notFoundMarker = []byte("Station not found")

// ErrStationNotFound is returned when the service answers with its not-found page.
var ErrStationNotFound = errors.New("station not found")

// StatusError reports a non-200 response from the bulk data service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("climate API error: status %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether a second attempt could plausibly succeed.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// FetchSummary counts month outcomes for one station.
type FetchSummary struct {
	MonthsAttempted int
	MonthsSucceeded int
	MonthsNotFound  int
	MonthsFailed    int
	Observations    int
}

// Fetcher retrieves hourly station observations from the ECCC bulk data service.
// A month that cannot be retrieved contributes no observations; it never fails the range.
type Fetcher struct {
	httpClient  *http.Client
	baseURL     string
	retries     int
	retryDelay  time.Duration
	maxDelay    time.Duration
	concurrency int
	limiter     *rate.Limiter
	clock       clockwork.Clock
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewFetcher creates a Fetcher from the retrieval settings in cfg.
func NewFetcher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
		baseURL:     cfg.ClimateBaseURL,
		retries:     cfg.FetchRetries,
		retryDelay:  initialRetryDelay,
		maxDelay:    maxRetryDelay,
		concurrency: cfg.FetchConcurrency,
		limiter:     rate.NewLimiter(rate.Limit(cfg.FetchRateLimit), cfg.FetchConcurrency),
		clock:       clockwork.NewRealClock(),
		metrics:     metrics,
		logger:      logger,
	}
}

// FetchStation retrieves every month in [startYear, endYear] for station and
// returns the observations ordered by time. Months fail independently; if none
// succeed the series is empty. The only error returned is context cancellation.
func (f *Fetcher) FetchStation(ctx context.Context, station domain.Station, startYear, endYear int) (domain.StationSeries, error) {
	series := domain.StationSeries{Station: station}
	var summary FetchSummary

	f.logger.Info("station download started",
		"station", station.Name,
		"station_id", station.ID,
		"role", station.Role,
		"start_year", startYear,
		"end_year", endYear,
	)

	for year := startYear; year <= endYear; year++ {
		months := f.fetchYear(ctx, station, year, &summary)
		if err := ctx.Err(); err != nil {
			return domain.StationSeries{Station: station}, err
		}
		for _, obs := range months {
			series.Observations = append(series.Observations, obs...)
		}
		f.logger.Info("year completed", "station", station.Name, "year", year)
	}

	slices.SortStableFunc(series.Observations, func(a, b domain.Observation) int {
		return a.Time.Compare(b.Time)
	})
	summary.Observations = len(series.Observations)
	f.metrics.StationObservations.WithLabelValues(string(station.Role)).Set(float64(summary.Observations))

	f.logger.Info("station download finished",
		"station", station.Name,
		"months_attempted", summary.MonthsAttempted,
		"months_succeeded", summary.MonthsSucceeded,
		"months_not_found", summary.MonthsNotFound,
		"months_failed", summary.MonthsFailed,
		"observations", summary.Observations,
	)
	return series, nil
}

// fetchYear retrieves the twelve months of one year with at most f.concurrency
// requests in flight. Results are indexed by month so concatenation order is fixed.
func (f *Fetcher) fetchYear(ctx context.Context, station domain.Station, year int, summary *FetchSummary) [12][]domain.Observation {
	var (
		results [12][]domain.Observation
		errs    [12]error
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, max(f.concurrency, 1))

	for month := 1; month <= 12; month++ {
		wg.Add(1)
		go func(month int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[month-1] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			results[month-1], errs[month-1] = f.fetchMonth(ctx, station.ID, year, month)
		}(month)
	}
	wg.Wait()

	label := string(station.Role)
	for i, err := range errs {
		summary.MonthsAttempted++
		switch {
		case err == nil:
			summary.MonthsSucceeded++
			f.metrics.StationMonths.WithLabelValues(label, "success").Inc()
		case errors.Is(err, ErrStationNotFound):
			summary.MonthsNotFound++
			f.metrics.StationMonths.WithLabelValues(label, "not_found").Inc()
			f.logger.Debug("station month not found", "station", station.Name, "year", year, "month", i+1)
		default:
			summary.MonthsFailed++
			f.metrics.StationMonths.WithLabelValues(label, "error").Inc()
			if ctx.Err() == nil {
				f.logger.Warn("station month download failed, skipping",
					"station", station.Name, "year", year, "month", i+1, "error", err)
			}
		}
	}
	return results
}

// fetchMonth retrieves and parses a single month, retrying transport errors
// and 429/5xx responses up to f.retries times with doubling delay.
func (f *Fetcher) fetchMonth(ctx context.Context, stationID, year, month int) ([]domain.Observation, error) {
	var lastErr error
	delay := f.retryDelay
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-f.clock.After(delay):
			}
			delay = retry.NextBackoff(delay, f.maxDelay)
		}

		body, err := f.doRequest(ctx, stationID, year, month)
		if err == nil {
			if bytes.Contains(body, notFoundMarker) {
				return nil, ErrStationNotFound
			}
			obs, err := ParseMonthCSV(bytes.NewReader(body))
			if err != nil {
				return nil, fmt.Errorf("parse %d-%02d: %w", year, month, err)
			}
			return obs, nil
		}

		lastErr = err
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (f *Fetcher) doRequest(ctx context.Context, stationID, year, month int) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.monthURL(stationID, year, month), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := f.clock.Now()
	resp, err := f.httpClient.Do(req)
	f.metrics.FetchDuration.WithLabelValues(strconv.Itoa(stationID)).Observe(f.clock.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("bulk data request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func (f *Fetcher) monthURL(stationID, year, month int) string {
	params := url.Values{
		"format":    {"csv"},
		"stationID": {strconv.Itoa(stationID)},
		"Year":      {strconv.Itoa(year)},
		"Month":     {strconv.Itoa(month)},
		"timeframe": {hourlyTimeframe},
		"submit":    {"Download Data"},
	}
	return f.baseURL + "?" + params.Encode()
}
