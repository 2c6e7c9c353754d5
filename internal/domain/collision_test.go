package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEventID = "GO-2022001"

func TestParseOccurrenceHour(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"integer", "14", 14},
		{"padded", " 7 ", 7},
		{"float form", "14.0", 14},
		{"midnight", "0", 0},
		{"last hour", "23", 23},
		{"letters", "abc", 0},
		{"empty", "", 0},
		{"NaN", "NaN", 0},
		{"too large", "24", 0},
		{"negative", "-1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseOccurrenceHour(tt.input))
		})
	}
}

func TestParseOccurrenceDate(t *testing.T) {
	want := time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"iso date", "2022-01-01", true},
		{"rfc3339", "2022-01-01T05:00:00Z", true},
		{"iso without zone", "2022-01-01T05:00:00", true},
		{"date and time", "2022-01-01 17:30:00", true},
		{"slashes", "2022/01/01", true},
		{"us with time", "1/1/2022 5:00:00 AM", true},
		{"us date", "1/1/2022", true},
		{"empty", "", false},
		{"garbage", "yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseOccurrenceDate(tt.input)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestBuildJoinKey(t *testing.T) {
	t.Run("date plus hour", func(t *testing.T) {
		key, ok := BuildJoinKey("2022-01-01", "14")
		require.True(t, ok)
		assert.Equal(t, time.Date(2022, time.January, 1, 14, 0, 0, 0, time.UTC), key)
	})

	t.Run("deterministic", func(t *testing.T) {
		k1, _ := BuildJoinKey("2023-07-15", "9")
		k2, _ := BuildJoinKey("2023-07-15", "9")
		assert.Equal(t, k1, k2)
	})

	t.Run("unparseable hour coerces to midnight", func(t *testing.T) {
		bad, ok := BuildJoinKey("2022-01-01", "abc")
		require.True(t, ok)
		zero, _ := BuildJoinKey("2022-01-01", "0")
		assert.Equal(t, zero, bad)
	})

	t.Run("unparseable date", func(t *testing.T) {
		_, ok := BuildJoinKey("not a date", "3")
		assert.False(t, ok)
	})

	t.Run("event recomputes its key", func(t *testing.T) {
		ev := CollisionEvent{ID: testEventID, OccDate: "2022-01-01", OccHour: "14"}
		key, ok := ev.JoinKey()
		require.True(t, ok)
		assert.Equal(t, "2022-01-01 14:00:00", key.Format(JoinKeyLayout))
	})
}

func TestMerge(t *testing.T) {
	grid, _ := Normalize([]Observation{
		{Time: hour(0), Temperature: ptr(1.0), Precipitation: ptr(0.0), Description: ptr("Clear")},
		{Time: hour(1), Temperature: ptr(2.0), Precipitation: ptr(1.2), Description: ptr("Moderate Rain,Fog")},
	})
	events := []CollisionEvent{
		{ID: "a", OccDate: "2022-01-01", OccHour: "1"},
		{ID: "b", OccDate: "2021-12-31", OccHour: "23"},
		{ID: "c", OccDate: "bogus", OccHour: "1"},
		{ID: "d", OccDate: "2022-01-01", OccHour: "1"},
	}

	out := Merge(events, grid)

	require.Len(t, out, len(events))
	for i := range events {
		assert.Equal(t, events[i].ID, out[i].Event.ID, "order preserved at %d", i)
	}

	assert.True(t, out[0].Matched)
	assert.Equal(t, 2.0, *out[0].Weather.Temperature)
	assert.True(t, out[0].IsRain)
	assert.False(t, out[0].IsSnow)

	assert.True(t, out[1].HasKey)
	assert.False(t, out[1].Matched)
	assert.Nil(t, out[1].Weather.Temperature)
	assert.Nil(t, out[1].Weather.Precipitation)

	assert.False(t, out[2].HasKey)
	assert.False(t, out[2].Matched)

	assert.True(t, out[3].Matched, "same key joins the same row again")
}

func TestMerge_EmptyGrid(t *testing.T) {
	events := []CollisionEvent{{ID: "a", OccDate: "2022-01-01", OccHour: "1"}, {ID: "b", OccDate: "2022-01-02"}}

	out := Merge(events, PatchedWeatherGrid{})

	require.Len(t, out, 2)
	for _, e := range out {
		assert.False(t, e.Matched)
		assert.Nil(t, e.Weather.Temperature)
	}
	assert.Empty(t, Merge(nil, PatchedWeatherGrid{}))
}

func TestMerge_DoesNotMutateGrid(t *testing.T) {
	grid, _ := Normalize([]Observation{{Time: hour(0), Temperature: ptr(1.0)}})
	out := Merge([]CollisionEvent{{OccDate: "2022-01-01", OccHour: "0"}}, grid)

	*out[0].Weather.Temperature = 40

	assert.Equal(t, 1.0, *grid.Observations[0].Temperature)
}

func TestClassifyWeather(t *testing.T) {
	tests := []struct {
		desc       *string
		rain, snow bool
	}{
		{nil, false, false},
		{ptr("Mainly Clear"), false, false},
		{ptr("Rain"), true, false},
		{ptr("Freezing Drizzle,Fog"), true, false},
		{ptr("Thunderstorms,Heavy Rain Showers"), true, false},
		{ptr("Snow Showers"), false, true},
		{ptr("Ice Pellets"), false, true},
		{ptr("Rain,Snow"), true, true},
	}

	for _, tt := range tests {
		rain, snow := ClassifyWeather(tt.desc)
		assert.Equal(t, tt.rain, rain, "%v", tt.desc)
		assert.Equal(t, tt.snow, snow, "%v", tt.desc)
	}
}

// Two stations each report 2022-01-01 14:00; the primary lacks temperature.
func TestEndToEnd_PatchedCollision(t *testing.T) {
	at := time.Date(2022, time.January, 1, 14, 0, 0, 0, time.UTC)
	primary := StationSeries{
		Station:      Station{ID: 51459, Role: RolePrimary},
		Observations: []Observation{{Time: at, Precipitation: ptr(0.2)}},
	}
	backup := StationSeries{
		Station:      Station{ID: 48549, Role: RoleBackup},
		Observations: []Observation{{Time: at, Temperature: ptr(-5.0), Precipitation: ptr(0.2)}},
	}

	grid, _ := Normalize(Reconcile(primary, backup))
	out := Merge([]CollisionEvent{{ID: testEventID, OccDate: "2022-01-01", OccHour: "14"}}, grid)

	require.Len(t, out, 1)
	require.True(t, out[0].Matched)
	assert.Equal(t, at, out[0].JoinKey)
	assert.Equal(t, -5.0, *out[0].Weather.Temperature)
	assert.Equal(t, 0.2, *out[0].Weather.Precipitation)
}
