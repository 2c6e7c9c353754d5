package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// ErrInputMissing is returned when the collision input file does not exist.
// It is a configuration error: the run cannot proceed without real input.
var ErrInputMissing = errors.New("collision input file not found")

// Columns names the collision CSV columns the pipeline depends on. Matching is case-insensitive.
type Columns struct {
	ID   string
	Date string
	Hour string
}

// Reader loads the collision log from a CSV file.
// It implements pipeline.CollisionSource.
type Reader struct {
	path    string
	columns Columns
	logger  *slog.Logger
}

// NewReader creates a Reader for the CSV at path.
func NewReader(path string, columns Columns, logger *slog.Logger) *Reader {
	return &Reader{path: path, columns: columns, logger: logger}
}

// LoadCollisions reads every collision row in file order.
func (r *Reader) LoadCollisions(ctx context.Context) (domain.CollisionTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.CollisionTable{}, err
	}

	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.CollisionTable{}, fmt.Errorf("%w: %s", ErrInputMissing, r.path)
		}
		return domain.CollisionTable{}, fmt.Errorf("open collisions: %w", err)
	}
	defer f.Close()

	table, err := ReadCollisions(f, r.columns)
	if err != nil {
		return domain.CollisionTable{}, fmt.Errorf("read %s: %w", r.path, err)
	}
	r.logger.Info("collision data loaded", "path", r.path, "rows", len(table.Events))
	return table, nil
}

// ReadCollisions parses a collision CSV. The header row is required and must
// contain the ID, date and hour columns.
func ReadCollisions(src io.Reader, columns Columns) (domain.CollisionTable, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return domain.CollisionTable{}, errors.New("empty collision file: header row required")
		}
		return domain.CollisionTable{}, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	idIdx, dateIdx, hourIdx := indexOf(header, columns.ID), indexOf(header, columns.Date), indexOf(header, columns.Hour)
	for _, c := range []struct {
		name string
		idx  int
	}{{columns.ID, idIdx}, {columns.Date, dateIdx}, {columns.Hour, hourIdx}} {
		if c.idx < 0 {
			return domain.CollisionTable{}, fmt.Errorf("missing required column %q", c.name)
		}
	}

	table := domain.CollisionTable{Columns: header}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.CollisionTable{}, fmt.Errorf("read row %d: %w", len(table.Events)+1, err)
		}
		fields := make([]string, len(header))
		copy(fields, row)
		table.Events = append(table.Events, domain.CollisionEvent{
			ID:      fields[idIdx],
			OccDate: fields[dateIdx],
			OccHour: fields[hourIdx],
			Fields:  fields,
		})
	}
	return table, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}
