package domain

import (
	"fmt"
	"time"
)

// SampleSize is the number of leading enriched rows carried in a QualityReport.
const SampleSize = 5

// QualityReport summarizes weather coverage over a merged result.
type QualityReport struct {
	Total          int
	MissingWeather int
	// Coverage is the matched percentage, nil when Total is zero.
	Coverage    *float64
	Samples     []EnrichedCollisionEvent
	GeneratedAt time.Time
}

// CoverageString renders coverage with two decimals, or "undefined" for empty input.
func (r QualityReport) CoverageString() string {
	if r.Coverage == nil {
		return "undefined"
	}
	return fmt.Sprintf("%.2f%%", *r.Coverage)
}

// ComputeQuality counts events whose temperature is absent, the proxy for a
// missing weather match, and derives coverage = (total - missing) / total * 100.
func ComputeQuality(events []EnrichedCollisionEvent) QualityReport {
	r := QualityReport{
		Total:       len(events),
		GeneratedAt: clock.Now(),
	}
	for _, e := range events {
		if e.Weather.Temperature == nil {
			r.MissingWeather++
		}
	}
	if r.Total > 0 {
		r.Coverage = ptr(float64(r.Total-r.MissingWeather) / float64(r.Total) * 100)
	}
	n := min(SampleSize, len(events))
	r.Samples = append([]EnrichedCollisionEvent(nil), events[:n]...)
	return r
}
