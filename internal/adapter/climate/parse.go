package climate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// ErrMissingDateColumn is returned when a month table has no Date/Time column.
var ErrMissingDateColumn = errors.New("missing Date/Time column")

var dateTimeLayouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// nullTokens are the cell values treated as absent, matching the usual CSV NA set.
var nullTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "NaN": true, "nan": true, "null": true, "NULL": true,
}

// columns holds the index of each tracked field in a month table header; -1 when absent.
type columns struct {
	dateTime, temp, precip, visibility, weather int
}

func locateColumns(header []string) columns {
	c := columns{dateTime: -1, temp: -1, precip: -1, visibility: -1, weather: -1}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case strings.HasPrefix(h, "Date/Time"):
			c.dateTime = i
		case strings.HasPrefix(h, "Temp ("):
			c.temp = i
		case strings.HasPrefix(h, "Precip. Amount ("):
			c.precip = i
		case strings.HasPrefix(h, "Visibility ("):
			c.visibility = i
		case h == "Weather":
			c.weather = i
		}
	}
	return c
}

// ParseMonthCSV reads one bulk-data month table and reduces each row to the
// tracked attributes. Rows whose timestamp cannot be parsed are skipped.
// Timestamps are truncated to the hour.
func ParseMonthCSV(r io.Reader) ([]domain.Observation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := locateColumns(header)
	if cols.dateTime < 0 {
		return nil, ErrMissingDateColumn
	}

	var out []domain.Observation
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		ts, ok := parseDateTime(cell(row, cols.dateTime))
		if !ok {
			continue
		}
		out = append(out, domain.Observation{
			Time:          ts,
			Temperature:   parseFloat(cell(row, cols.temp)),
			Precipitation: parseFloat(cell(row, cols.precip)),
			Visibility:    parseFloat(cell(row, cols.visibility)),
			Description:   parseText(cell(row, cols.weather)),
		})
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(time.Hour), true
		}
	}
	return time.Time{}, false
}

func parseFloat(s string) *float64 {
	if nullTokens[s] {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseText(s string) *string {
	if nullTokens[s] {
		return nil
	}
	return &s
}
