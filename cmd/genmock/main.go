// Command genmock writes fixture data for local and test runs: a placeholder
// collision log and, optionally, synthetic hourly station months in the bulk
// climate data layout. It runs the generated data through the domain package
// and prints the coverage a pipeline run would report.
//
// The ETL itself never substitutes placeholder data; a missing collision file
// is always a configuration error there.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -collisions-out data/mock/Traffic_Collisions.csv \
//	  -rows 48 \
//	  -station-dir data/mock/stations -year 2022 -month 1
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/collision-weather-etl/internal/adapter/climate"
	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

var collisionHeader = []string{"EVENT_UNIQUE_ID", "OCC_DATE", "OCC_HOUR", "DIVISION", "FATALITIES"}

var stationHeader = []string{
	"Longitude (x)", "Latitude (y)", "Station Name", "Climate ID", "Date/Time (LST)",
	"Year", "Month", "Day", "Time (LST)", "Temp (°C)", "Temp Flag",
	"Precip. Amount (mm)", "Precip. Amount Flag", "Visibility (km)", "Visibility Flag", "Weather",
}

type stationDef struct {
	id   int
	name string
	role domain.StationRole
	// gapEvery blanks the temperature of every n-th hour; 0 disables gaps.
	gapEvery int
}

var stations = []stationDef{
	{id: 51459, name: "TORONTO INTL A", role: domain.RolePrimary, gapEvery: 6},
	{id: 48549, name: "TORONTO CITY CENTRE", role: domain.RoleBackup},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	collisionsOut := flag.String("collisions-out", "", "output path for the placeholder collision CSV")
	rows := flag.Int("rows", 1, "number of placeholder collisions; the first is always GO-2022001 at 2022-01-01 hour 14")
	stationDir := flag.String("station-dir", "", "optional directory for synthetic station month CSVs")
	year := flag.Int("year", 2022, "year of the synthetic station month")
	month := flag.Int("month", 1, "month of the synthetic station month")
	flag.Parse()

	if *collisionsOut == "" || *rows < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flag -collisions-out or invalid -rows")
	}

	collisions := placeholderCollisions(*rows)
	if err := writeCollisions(*collisionsOut, collisions); err != nil {
		return fmt.Errorf("writing collisions: %w", err)
	}
	log.Printf("wrote %d collisions: %s", len(collisions), *collisionsOut)

	if *stationDir == "" {
		return nil
	}

	series := make(map[domain.StationRole]domain.StationSeries, len(stations))
	for _, s := range stations {
		path := filepath.Join(*stationDir, fmt.Sprintf("%d_%04d_%02d.csv", s.id, *year, *month))
		if err := writeStationMonth(path, s, *year, time.Month(*month)); err != nil {
			return fmt.Errorf("writing station %d: %w", s.id, err)
		}

		// Round-trip through the real parser so the fixture is known to load.
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		obs, err := climate.ParseMonthCSV(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		series[s.role] = domain.StationSeries{
			Station:      domain.Station{ID: s.id, Name: s.name, Role: s.role},
			Observations: obs,
		}
		log.Printf("wrote station month: %s (%d hours)", path, len(obs))
	}

	printStats(series[domain.RolePrimary], series[domain.RoleBackup], collisions)
	return nil
}

// placeholderCollisions returns n rows starting at GO-2022001, one hour apart
// from 2022-01-01 14:00.
func placeholderCollisions(n int) [][]string {
	start := time.Date(2022, time.January, 1, 14, 0, 0, 0, time.UTC)
	out := make([][]string, n)
	for i := range out {
		at := start.Add(time.Duration(i) * time.Hour)
		out[i] = []string{
			fmt.Sprintf("GO-2022%03d", i+1),
			at.Format("2006-01-02"),
			strconv.Itoa(at.Hour()),
			"D11",
			"0",
		}
	}
	return out
}

func writeCollisions(path string, rows [][]string) error {
	return writeCSV(path, collisionHeader, rows)
}

// writeStationMonth renders every hour of the month with a smooth diurnal
// temperature curve, light precipitation every 12th hour, and constant visibility.
func writeStationMonth(path string, s stationDef, year int, month time.Month) error {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, 0)

	var rows [][]string
	for i, at := 0, first; at.Before(last); i, at = i+1, at.Add(time.Hour) {
		temp := strconv.FormatFloat(math.Round((-4+3*math.Sin(float64(at.Hour())/24*2*math.Pi))*10)/10, 'f', 1, 64)
		if s.gapEvery > 0 && i%s.gapEvery == 0 {
			temp = ""
		}
		precip, weather := "0.0", ""
		if i%12 == 0 {
			precip, weather = "0.4", "Snow"
		}
		rows = append(rows, []string{
			"-79.63", "43.68", s.name, strconv.Itoa(s.id), at.Format("2006-01-02 15:04"),
			strconv.Itoa(at.Year()), fmt.Sprintf("%02d", int(at.Month())), fmt.Sprintf("%02d", at.Day()),
			at.Format("15:04"), temp, "", precip, "", "16.1", "", weather,
		})
	}
	return writeCSV(path, stationHeader, rows)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printStats(primary, backup domain.StationSeries, rows [][]string) {
	events := make([]domain.CollisionEvent, len(rows))
	for i, r := range rows {
		events[i] = domain.CollisionEvent{ID: r[0], OccDate: r[1], OccHour: r[2], Fields: r}
	}

	grid, stats := domain.Normalize(domain.Reconcile(primary, backup))
	report := domain.ComputeQuality(domain.Merge(events, grid))

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Primary hours: %d, backup hours: %d\n", primary.Len(), backup.Len())
	fmt.Printf("Grid: %d hours (%s .. %s)\n", stats.GridHours,
		grid.Start.Format(domain.JoinKeyLayout), grid.End().Format(domain.JoinKeyLayout))
	fmt.Printf("Filled: forward=%d precip_zero=%d backward=%d\n",
		stats.ForwardFilled, stats.PrecipZeroed, stats.BackwardFilled)
	fmt.Printf("Collisions: %d, missing weather: %d, coverage: %s\n",
		report.Total, report.MissingWeather, report.CoverageString())
}
