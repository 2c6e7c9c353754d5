package domain

import (
	"slices"
	"time"
)

// ShortGapLimit is the longest run of missing hours bridged by forward fill.
const ShortGapLimit = 4

// PatchedWeatherGrid is a contiguous hourly series: Observations[i] is the
// reading for Start + i hours.
type PatchedWeatherGrid struct {
	Start        time.Time
	Observations []Observation
}

// Len reports the number of hourly rows in the grid.
func (g PatchedWeatherGrid) Len() int { return len(g.Observations) }

// End returns the timestamp of the last row, or the zero time for an empty grid.
func (g PatchedWeatherGrid) End() time.Time {
	if len(g.Observations) == 0 {
		return time.Time{}
	}
	return g.Observations[len(g.Observations)-1].Time
}

// At returns the grid row for t. ok is false when t falls outside the grid or
// between hours.
func (g PatchedWeatherGrid) At(t time.Time) (Observation, bool) {
	if len(g.Observations) == 0 {
		return Observation{}, false
	}
	offset := t.Sub(g.Start)
	if offset < 0 || offset%time.Hour != 0 {
		return Observation{}, false
	}
	i := int(offset / time.Hour)
	if i >= len(g.Observations) {
		return Observation{}, false
	}
	return g.Observations[i], true
}

// FillStats counts what normalization did to the reconciled series.
type FillStats struct {
	GridHours      int
	MissingHours   int // grid hours with no reading at all before filling
	OffGrid        int // readings dropped for not falling on the hourly grid
	ForwardFilled  int
	PrecipZeroed   int
	BackwardFilled int
}

// Reconcile merges a primary and a backup series into one time-ordered series.
// For every timestamp present in either input the primary's attribute is used
// unless absent, in which case the backup's attribute is substituted. Each
// attribute is patched independently. Duplicate timestamps within one series
// collapse with the same rule, earlier rows taking precedence.
func Reconcile(primary, backup StationSeries) []Observation {
	byTime := make(map[int64]int, len(primary.Observations)+len(backup.Observations))
	out := make([]Observation, 0, len(primary.Observations)+len(backup.Observations))

	add := func(obs []Observation) {
		for i := range obs {
			key := obs[i].Time.Unix()
			if j, ok := byTime[key]; ok {
				patchAbsent(&out[j], obs[i])
				continue
			}
			byTime[key] = len(out)
			out = append(out, copyObservation(obs[i]))
		}
	}
	add(primary.Observations)
	add(backup.Observations)

	slices.SortFunc(out, func(a, b Observation) int { return a.Time.Compare(b.Time) })
	return out
}

// Normalize resamples a reconciled series onto a strict hourly grid spanning
// its first to last reading, then fills gaps in three ordered steps: forward
// fill across at most ShortGapLimit missing hours, zero-fill of remaining
// precipitation, and unbounded backward fill.
func Normalize(series []Observation) (PatchedWeatherGrid, FillStats) {
	var stats FillStats
	if len(series) == 0 {
		return PatchedWeatherGrid{}, stats
	}

	start, end := series[0].Time, series[0].Time
	for _, o := range series[1:] {
		if o.Time.Before(start) {
			start = o.Time
		}
		if o.Time.After(end) {
			end = o.Time
		}
	}

	rows := make([]Observation, int(end.Sub(start)/time.Hour)+1)
	seen := make([]bool, len(rows))
	for i := range rows {
		rows[i].Time = start.Add(time.Duration(i) * time.Hour)
	}
	for _, o := range series {
		offset := o.Time.Sub(start)
		if offset%time.Hour != 0 {
			stats.OffGrid++
			continue
		}
		i := int(offset / time.Hour)
		if i >= len(rows) {
			stats.OffGrid++
			continue
		}
		if seen[i] {
			patchAbsent(&rows[i], o)
			continue
		}
		seen[i] = true
		t := rows[i].Time
		rows[i] = copyObservation(o)
		rows[i].Time = t
	}

	stats.GridHours = len(rows)
	for _, ok := range seen {
		if !ok {
			stats.MissingHours++
		}
	}

	stats.ForwardFilled += forwardFill(rows, temperature, ShortGapLimit)
	stats.ForwardFilled += forwardFill(rows, precipitation, ShortGapLimit)
	stats.ForwardFilled += forwardFill(rows, visibility, ShortGapLimit)
	stats.ForwardFilled += forwardFill(rows, description, ShortGapLimit)

	for i := range rows {
		if rows[i].Precipitation == nil {
			rows[i].Precipitation = ptr(0.0)
			stats.PrecipZeroed++
		}
	}

	stats.BackwardFilled += backwardFill(rows, temperature)
	stats.BackwardFilled += backwardFill(rows, precipitation)
	stats.BackwardFilled += backwardFill(rows, visibility)
	stats.BackwardFilled += backwardFill(rows, description)

	return PatchedWeatherGrid{Start: start, Observations: rows}, stats
}

func temperature(o *Observation) **float64   { return &o.Temperature }
func precipitation(o *Observation) **float64 { return &o.Precipitation }
func visibility(o *Observation) **float64    { return &o.Visibility }
func description(o *Observation) **string    { return &o.Description }

// forwardFill propagates the last known value into the first limit hours of
// each run of absent values. Filled cells do not reset the run counter.
func forwardFill[T any](rows []Observation, field func(*Observation) **T, limit int) int {
	var last *T
	run, filled := 0, 0
	for i := range rows {
		cell := field(&rows[i])
		if *cell != nil {
			last, run = *cell, 0
			continue
		}
		run++
		if last != nil && run <= limit {
			*cell = clone(last)
			filled++
		}
	}
	return filled
}

// backwardFill fills every absent value from the next later known value.
func backwardFill[T any](rows []Observation, field func(*Observation) **T) int {
	var next *T
	filled := 0
	for i := len(rows) - 1; i >= 0; i-- {
		cell := field(&rows[i])
		if *cell != nil {
			next = *cell
			continue
		}
		if next != nil {
			*cell = clone(next)
			filled++
		}
	}
	return filled
}

// patchAbsent fills each absent attribute of dst from src.
func patchAbsent(dst *Observation, src Observation) {
	if dst.Temperature == nil {
		dst.Temperature = clone(src.Temperature)
	}
	if dst.Precipitation == nil {
		dst.Precipitation = clone(src.Precipitation)
	}
	if dst.Visibility == nil {
		dst.Visibility = clone(src.Visibility)
	}
	if dst.Description == nil {
		dst.Description = clone(src.Description)
	}
}

func copyObservation(o Observation) Observation {
	return Observation{
		Time:          o.Time,
		Temperature:   clone(o.Temperature),
		Precipitation: clone(o.Precipitation),
		Visibility:    clone(o.Visibility),
		Description:   clone(o.Description),
	}
}
