package domain

import "time"

// StationRole distinguishes the station whose readings win from the one used for patching.
type StationRole string

const (
	RolePrimary StationRole = "primary"
	RoleBackup  StationRole = "backup"
)

// Station identifies a weather-sensing location in the bulk climate data service.
type Station struct {
	ID   int
	Name string
	Role StationRole
}

// Observation is one hourly weather reading. Nil fields are absent measurements.
type Observation struct {
	Time          time.Time `json:"weather_datetime"`
	Temperature   *float64  `json:"temperature"`
	Precipitation *float64  `json:"precipitation"`
	Visibility    *float64  `json:"visibility"`
	Description   *string   `json:"weather_desc"`
}

// StationSeries is the time-ordered set of observations retrieved for one station.
type StationSeries struct {
	Station      Station
	Observations []Observation
}

// Len reports the number of observations in the series.
func (s StationSeries) Len() int { return len(s.Observations) }

// CollisionEvent is one row of the collision log. Fields holds every original
// column value in input column order so the row can be written back verbatim.
type CollisionEvent struct {
	ID      string
	OccDate string
	OccHour string
	Fields  []string
}

// JoinKey recomputes the hourly timestamp used to match the event against the
// weather grid. ok is false when the occurrence date cannot be parsed.
func (e CollisionEvent) JoinKey() (key time.Time, ok bool) {
	return BuildJoinKey(e.OccDate, e.OccHour)
}

// CollisionTable is the loaded collision log with its header.
type CollisionTable struct {
	Columns []string
	Events  []CollisionEvent
}

// EnrichedCollisionEvent is a collision annotated with the weather at its join key.
// Weather carries all-nil attributes when no grid row matched.
type EnrichedCollisionEvent struct {
	Event   CollisionEvent
	JoinKey time.Time
	HasKey  bool
	Matched bool
	Weather Observation
	IsRain  bool
	IsSnow  bool
}

// EnrichedTable is the merge output, in collision input order.
type EnrichedTable struct {
	Columns []string
	Events  []EnrichedCollisionEvent
}

func ptr[T any](v T) *T { return &v }

// clone copies the pointed-to value so filled cells never alias their source.
func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr(*p)
}
