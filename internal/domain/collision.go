package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// JoinKeyLayout is the textual form of a join key in output artifacts.
const JoinKeyLayout = "2006-01-02 15:04:05"

// occurrenceDateLayouts are tried in order. Only the calendar date is kept;
// any time-of-day component is discarded.
var occurrenceDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
}

var (
	rainTerms = []string{"rain", "drizzle", "thunderstorm"}
	snowTerms = []string{"snow", "ice pellets", "flurries"}
)

// ParseOccurrenceDate parses a collision date into midnight UTC of that day.
func ParseOccurrenceDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range occurrenceDateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// ParseOccurrenceHour coerces a collision hour to 0-23. Anything unparseable
// or out of range becomes 0. Fractional values are truncated ("14.0" -> 14).
func ParseOccurrenceHour(s string) int {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	h := int(v)
	if h < 0 || h > 23 {
		return 0
	}
	return h
}

// BuildJoinKey composes date-at-midnight plus the hour offset. The result is in
// UTC with no zone shift, matching the weather grid's local-standard-time stamps.
func BuildJoinKey(date, hour string) (time.Time, bool) {
	day, ok := ParseOccurrenceDate(date)
	if !ok {
		return time.Time{}, false
	}
	return day.Add(time.Duration(ParseOccurrenceHour(hour)) * time.Hour), true
}

// Merge left-joins every collision against the grid on its join key. Output has
// exactly one row per input event, in input order; neither input is modified.
func Merge(events []CollisionEvent, grid PatchedWeatherGrid) []EnrichedCollisionEvent {
	out := make([]EnrichedCollisionEvent, len(events))
	for i, ev := range events {
		enriched := EnrichedCollisionEvent{Event: ev}
		enriched.JoinKey, enriched.HasKey = ev.JoinKey()
		if enriched.HasKey {
			if obs, ok := grid.At(enriched.JoinKey); ok {
				enriched.Matched = true
				enriched.Weather = copyObservation(obs)
			}
		}
		enriched.IsRain, enriched.IsSnow = ClassifyWeather(enriched.Weather.Description)
		out[i] = enriched
	}
	return out
}

// ClassifyWeather derives rain and snow flags from a weather description such
// as "Moderate Rain,Fog" or "Snow Showers". Absent descriptions yield false for both.
func ClassifyWeather(desc *string) (isRain, isSnow bool) {
	if desc == nil {
		return false, false
	}
	d := strings.ToLower(*desc)
	return containsAny(d, rainTerms), containsAny(d, snowTerms)
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
