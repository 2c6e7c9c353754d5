package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseHour = time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC)

func hour(n int) time.Time { return baseHour.Add(time.Duration(n) * time.Hour) }

func temps(rows []Observation) []*float64 {
	out := make([]*float64, len(rows))
	for i, r := range rows {
		out[i] = r.Temperature
	}
	return out
}

func TestReconcile(t *testing.T) {
	t.Run("primary wins when present", func(t *testing.T) {
		primary := StationSeries{Observations: []Observation{{Time: hour(1), Temperature: ptr(2.0)}}}
		backup := StationSeries{Observations: []Observation{{Time: hour(1), Temperature: ptr(9.0)}}}

		got := Reconcile(primary, backup)
		require.Len(t, got, 1)
		assert.Equal(t, 2.0, *got[0].Temperature)
	})

	t.Run("absent primary attribute is patched from backup", func(t *testing.T) {
		primary := StationSeries{Observations: []Observation{{Time: hour(1), Precipitation: ptr(0.4)}}}
		backup := StationSeries{Observations: []Observation{{Time: hour(1), Temperature: ptr(5.0), Precipitation: ptr(3.0)}}}

		got := Reconcile(primary, backup)
		require.Len(t, got, 1)
		assert.Equal(t, 5.0, *got[0].Temperature)
		assert.Equal(t, 0.4, *got[0].Precipitation)
		assert.Nil(t, got[0].Visibility)
	})

	t.Run("backup-only timestamps contribute whole rows in order", func(t *testing.T) {
		primary := StationSeries{Observations: []Observation{{Time: hour(3), Temperature: ptr(1.0)}}}
		backup := StationSeries{Observations: []Observation{
			{Time: hour(5), Temperature: ptr(7.0), Description: ptr("Snow")},
			{Time: hour(1), Visibility: ptr(24.1)},
		}}

		got := Reconcile(primary, backup)
		require.Len(t, got, 3)
		assert.Equal(t, []time.Time{hour(1), hour(3), hour(5)}, []time.Time{got[0].Time, got[1].Time, got[2].Time})
		assert.Equal(t, 24.1, *got[0].Visibility)
		assert.Equal(t, "Snow", *got[2].Description)
	})

	t.Run("empty side passes the other through", func(t *testing.T) {
		backup := StationSeries{Observations: []Observation{
			{Time: hour(0), Temperature: ptr(-1.0)},
			{Time: hour(1), Temperature: ptr(-2.0)},
		}}

		got := Reconcile(StationSeries{}, backup)
		if diff := cmp.Diff(backup.Observations, got); diff != "" {
			t.Fatalf("reconciled mismatch (-want +got):\n%s", diff)
		}
		assert.Empty(t, Reconcile(StationSeries{}, StationSeries{}))
	})

	t.Run("duplicate timestamps collapse per field", func(t *testing.T) {
		primary := StationSeries{Observations: []Observation{
			{Time: hour(2), Temperature: ptr(1.0)},
			{Time: hour(2), Temperature: ptr(8.0), Visibility: ptr(10.0)},
		}}

		got := Reconcile(primary, StationSeries{})
		require.Len(t, got, 1)
		assert.Equal(t, 1.0, *got[0].Temperature)
		assert.Equal(t, 10.0, *got[0].Visibility)
	})

	t.Run("output does not alias inputs", func(t *testing.T) {
		primary := StationSeries{Observations: []Observation{{Time: hour(0), Temperature: ptr(1.0)}}}

		got := Reconcile(primary, StationSeries{})
		*got[0].Temperature = 99

		assert.Equal(t, 1.0, *primary.Observations[0].Temperature)
	})
}

func TestNormalize_GridIsContiguous(t *testing.T) {
	series := []Observation{
		{Time: hour(0), Temperature: ptr(1.0)},
		{Time: hour(3), Temperature: ptr(2.0)},
		{Time: hour(10), Temperature: ptr(3.0)},
	}

	grid, stats := Normalize(series)

	require.Equal(t, 11, grid.Len())
	assert.Equal(t, hour(0), grid.Start)
	assert.Equal(t, hour(10), grid.End())
	for i, o := range grid.Observations {
		assert.Equal(t, hour(i), o.Time, "row %d", i)
	}
	assert.Equal(t, 11, stats.GridHours)
	assert.Equal(t, 8, stats.MissingHours)
}

func TestNormalize_Empty(t *testing.T) {
	grid, stats := Normalize(nil)
	assert.Zero(t, grid.Len())
	assert.True(t, grid.End().IsZero())
	assert.Equal(t, FillStats{}, stats)

	_, ok := grid.At(hour(0))
	assert.False(t, ok)
}

func TestNormalize_ShortGapForwardFill(t *testing.T) {
	t.Run("run of four is fully filled", func(t *testing.T) {
		series := []Observation{
			{Time: hour(0), Temperature: ptr(5.0)},
			{Time: hour(5), Temperature: ptr(6.0)},
		}
		grid, _ := Normalize(series)

		for i := 1; i <= 4; i++ {
			require.NotNil(t, grid.Observations[i].Temperature, "hour %d", i)
			assert.Equal(t, 5.0, *grid.Observations[i].Temperature, "hour %d", i)
		}
	})

	t.Run("fifth hour of a longer run comes from the backward fill", func(t *testing.T) {
		series := []Observation{
			{Time: hour(0), Temperature: ptr(5.0)},
			{Time: hour(6), Temperature: ptr(6.0)},
		}
		grid, stats := Normalize(series)

		for i := 1; i <= 4; i++ {
			assert.Equal(t, 5.0, *grid.Observations[i].Temperature, "hour %d", i)
		}
		assert.Equal(t, 6.0, *grid.Observations[5].Temperature)
		assert.Equal(t, 1, stats.BackwardFilled)
	})

	t.Run("forward fill alone leaves the fifth hour absent", func(t *testing.T) {
		rows := []Observation{{Temperature: ptr(5.0)}, {}, {}, {}, {}, {}}
		filled := forwardFill(rows, temperature, ShortGapLimit)

		assert.Equal(t, 4, filled)
		assert.Nil(t, rows[5].Temperature)
	})

	t.Run("filled cells are independent copies", func(t *testing.T) {
		rows := []Observation{{Temperature: ptr(5.0)}, {}}
		forwardFill(rows, temperature, ShortGapLimit)
		*rows[1].Temperature = 42

		assert.Equal(t, 5.0, *rows[0].Temperature)
	})
}

func TestNormalize_PrecipitationZeroFillBeforeBackwardFill(t *testing.T) {
	series := []Observation{
		{Time: hour(0), Temperature: ptr(1.0), Precipitation: ptr(0.2)},
		{Time: hour(8), Temperature: ptr(2.0), Precipitation: ptr(7.5)},
	}

	grid, stats := Normalize(series)

	want := []float64{0.2, 0.2, 0.2, 0.2, 0.2, 0, 0, 0, 7.5}
	got := make([]float64, grid.Len())
	for i, o := range grid.Observations {
		require.NotNil(t, o.Precipitation, "hour %d", i)
		got[i] = *o.Precipitation
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 3, stats.PrecipZeroed)
}

func TestNormalize_BackwardFillLeadingGap(t *testing.T) {
	series := []Observation{
		{Time: hour(0), Precipitation: ptr(0.0)},
		{Time: hour(1)},
		{Time: hour(2), Temperature: ptr(-3.0), Visibility: ptr(16.1), Description: ptr("Snow")},
	}

	grid, _ := Normalize(series)

	for i, o := range grid.Observations {
		require.NotNil(t, o.Temperature, "hour %d", i)
		require.NotNil(t, o.Visibility, "hour %d", i)
		require.NotNil(t, o.Description, "hour %d", i)
		assert.Equal(t, -3.0, *o.Temperature)
		assert.Equal(t, "Snow", *o.Description)
	}
}

func TestNormalize_NoPrecipitationLeftAbsent(t *testing.T) {
	series := []Observation{
		{Time: hour(0)},
		{Time: hour(12), Temperature: ptr(1.0)},
		{Time: hour(30)},
	}

	grid, _ := Normalize(series)

	for i, o := range grid.Observations {
		assert.NotNil(t, o.Precipitation, "hour %d", i)
	}
}

func TestNormalize_OffGridReadingsDropped(t *testing.T) {
	series := []Observation{
		{Time: hour(0), Temperature: ptr(1.0)},
		{Time: hour(1).Add(30 * time.Minute), Temperature: ptr(50.0)},
		{Time: hour(2), Temperature: ptr(3.0)},
	}

	grid, stats := Normalize(series)

	require.Equal(t, 3, grid.Len())
	assert.Equal(t, 1, stats.OffGrid)
	assert.Equal(t, 1.0, *grid.Observations[1].Temperature)
}

func TestPatchedWeatherGrid_At(t *testing.T) {
	grid, _ := Normalize([]Observation{
		{Time: hour(0), Temperature: ptr(1.0)},
		{Time: hour(2), Temperature: ptr(3.0)},
	})

	obs, ok := grid.At(hour(2))
	require.True(t, ok)
	assert.Equal(t, 3.0, *obs.Temperature)

	_, ok = grid.At(hour(3))
	assert.False(t, ok, "past the end")
	_, ok = grid.At(hour(-1))
	assert.False(t, ok, "before the start")
	_, ok = grid.At(hour(1).Add(time.Minute))
	assert.False(t, ok, "between hours")
}

func TestNormalize_TemperatureSequence(t *testing.T) {
	series := []Observation{
		{Time: hour(0)},
		{Time: hour(1), Temperature: ptr(1.0)},
		{Time: hour(7), Temperature: ptr(2.0)},
	}

	grid, _ := Normalize(series)

	want := []*float64{ptr(1.0), ptr(1.0), ptr(1.0), ptr(1.0), ptr(1.0), ptr(1.0), ptr(2.0), ptr(2.0)}
	if diff := cmp.Diff(want, temps(grid.Observations)); diff != "" {
		t.Fatalf("temperature mismatch (-want +got):\n%s", diff)
	}
}
