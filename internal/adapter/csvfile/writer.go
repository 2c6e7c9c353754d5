package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// WeatherColumns are appended after the original collision columns.
var WeatherColumns = []string{
	"merge_key",
	"temperature",
	"precipitation",
	"visibility",
	"weather_desc",
	"is_rain",
	"is_snow",
}

// Writer writes the enriched table to a single CSV file.
// It implements pipeline.Loader.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a Writer targeting path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Load writes the table to a temporary file beside path and renames it into
// place, so a failed run never leaves a truncated artifact.
func (w *Writer) Load(ctx context.Context, table domain.EnrichedTable) error {
	tmp, err := os.CreateTemp(filepath.Dir(w.path), filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if err := WriteEnriched(ctx, tmp, table); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}

	w.logger.Info("enriched collisions saved", "path", w.path, "rows", len(table.Events))
	return nil
}

// WriteEnriched renders the header and one row per enriched event, in order.
func WriteEnriched(ctx context.Context, dst io.Writer, table domain.EnrichedTable) error {
	cw := csv.NewWriter(dst)
	header := append(append([]string(nil), table.Columns...), WeatherColumns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, e := range table.Events {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := cw.Write(Row(table.Columns, e)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// Row renders one enriched event as CSV fields. Absent values are empty cells.
func Row(columns []string, e domain.EnrichedCollisionEvent) []string {
	row := make([]string, len(columns), len(columns)+len(WeatherColumns))
	copy(row, e.Event.Fields)

	key := ""
	if e.HasKey {
		key = e.JoinKey.Format(domain.JoinKeyLayout)
	}
	return append(row,
		key,
		formatFloat(e.Weather.Temperature),
		formatFloat(e.Weather.Precipitation),
		formatFloat(e.Weather.Visibility),
		formatText(e.Weather.Description),
		strconv.FormatBool(e.IsRain),
		strconv.FormatBool(e.IsSnow),
	)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatText(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
