// Command validate checks an enriched collision CSV against the collision
// input it was produced from. It verifies row parity, column layout, input
// order, join-key recomputation, weather flag consistency, and coverage.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -input Traffic_Collisions.csv \
//	  -output Traffic_Collisions_With_Weather_Patched.csv \
//	  -expect-coverage 70.00%
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/collision-weather-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/collision-weather-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxErrorsPerPhase caps per-row reports so a systematic fault stays readable.
const maxErrorsPerPhase = 20

func main() {
	input := flag.String("input", "", "collision input CSV")
	output := flag.String("output", "", "enriched output CSV")
	idCol := flag.String("id-column", "EVENT_UNIQUE_ID", "collision ID column")
	dateCol := flag.String("date-column", "OCC_DATE", "occurrence date column")
	hourCol := flag.String("hour-column", "OCC_HOUR", "occurrence hour column")
	expectCoverage := flag.String("expect-coverage", "", "optional coverage the output must have, e.g. 70.00%")
	flag.Parse()

	if *input == "" || *output == "" {
		flag.Usage()
		os.Exit(1)
	}

	cols := csvfile.Columns{ID: *idCol, Date: *dateCol, Hour: *hourCol}
	if code := run(*input, *output, cols, *expectCoverage); code != 0 {
		os.Exit(code)
	}
}

func run(inputPath, outputPath string, cols csvfile.Columns, expectCoverage string) int {
	fmt.Println("=== Collision Weather Integrity Validation ===")
	fmt.Println()

	in, err := loadInput(inputPath, cols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load input: %v\n", err)
		return 1
	}

	out, err := loadOutput(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load output: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRowParity(in, out),
		validateColumnLayout(in, out),
		validateInputOrder(in, out),
		validateJoinKeys(in, out),
		validateWeatherFields(out),
		validateCoverage(out, expectCoverage),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d input, %d output\n", len(in.Events), len(out.rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadInput(path string, cols csvfile.Columns) (domain.CollisionTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.CollisionTable{}, err
	}
	defer f.Close()
	return csvfile.ReadCollisions(f, cols)
}

// enrichedCSV is the output file with its header index.
type enrichedCSV struct {
	header []string
	index  map[string]int
	rows   [][]string
}

func (e enrichedCSV) get(row []string, col string) string {
	i, ok := e.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func loadOutput(path string) (enrichedCSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return enrichedCSV{}, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return enrichedCSV{}, err
	}
	if len(all) == 0 {
		return enrichedCSV{}, fmt.Errorf("no header in %s", path)
	}

	out := enrichedCSV{header: all[0], index: make(map[string]int, len(all[0])), rows: all[1:]}
	for i, h := range out.header {
		out.index[h] = i
	}
	return out, nil
}

// ── Validation phases ──

func validateRowParity(in domain.CollisionTable, out enrichedCSV) *phase {
	p := &phase{name: "Row parity (one output row per collision)"}
	if len(in.Events) != len(out.rows) {
		p.errorf("input has %d rows, output has %d", len(in.Events), len(out.rows))
	}
	return p
}

func validateColumnLayout(in domain.CollisionTable, out enrichedCSV) *phase {
	p := &phase{name: "Column layout"}
	want := append(slices.Clone(in.Columns), csvfile.WeatherColumns...)
	if !slices.Equal(want, out.header) {
		p.errorf("header mismatch:\n      want %s\n      got  %s", strings.Join(want, ","), strings.Join(out.header, ","))
	}
	return p
}

func validateInputOrder(in domain.CollisionTable, out enrichedCSV) *phase {
	p := &phase{name: "Input order and original values"}
	n := min(len(in.Events), len(out.rows))
	for i := 0; i < n && len(p.errors) < maxErrorsPerPhase; i++ {
		ev, row := in.Events[i], out.rows[i]
		for j, col := range in.Columns {
			if j >= len(row) || row[j] != ev.Fields[j] {
				p.errorf("row %d (%s): column %s changed from %q", i+2, ev.ID, col, ev.Fields[j])
				break
			}
		}
	}
	return p
}

func validateJoinKeys(in domain.CollisionTable, out enrichedCSV) *phase {
	p := &phase{name: "Join key recomputation"}
	n := min(len(in.Events), len(out.rows))
	for i := 0; i < n && len(p.errors) < maxErrorsPerPhase; i++ {
		ev := in.Events[i]
		want := ""
		if key, ok := ev.JoinKey(); ok {
			want = key.Format(domain.JoinKeyLayout)
		}
		if got := out.get(out.rows[i], "merge_key"); got != want {
			p.errorf("row %d (%s): merge_key %q, recomputed %q from date=%q hour=%q",
				i+2, ev.ID, got, want, ev.OccDate, ev.OccHour)
		}
	}
	return p
}

// validateWeatherFields checks that matched rows carry a full grid row and that
// the derived flags agree with the description.
func validateWeatherFields(out enrichedCSV) *phase {
	p := &phase{name: "Weather fields and flags"}
	for i, row := range out.rows {
		if len(p.errors) >= maxErrorsPerPhase {
			break
		}
		temp := out.get(row, "temperature")
		if temp != "" && out.get(row, "precipitation") == "" {
			p.errorf("row %d: temperature present but precipitation empty", i+2)
		}
		if temp != "" && out.get(row, "merge_key") == "" {
			p.errorf("row %d: weather present without a merge_key", i+2)
		}

		var desc *string
		if d := out.get(row, "weather_desc"); d != "" {
			desc = &d
		}
		rain, snow := domain.ClassifyWeather(desc)
		if got := out.get(row, "is_rain"); got != fmt.Sprint(rain) {
			p.errorf("row %d: is_rain=%s, description implies %t", i+2, got, rain)
		}
		if got := out.get(row, "is_snow"); got != fmt.Sprint(snow) {
			p.errorf("row %d: is_snow=%s, description implies %t", i+2, got, snow)
		}
	}
	return p
}

func validateCoverage(out enrichedCSV, expect string) *phase {
	p := &phase{name: "Coverage"}

	events := make([]domain.EnrichedCollisionEvent, len(out.rows))
	for i, row := range out.rows {
		if out.get(row, "temperature") != "" {
			t := 0.0
			events[i].Weather.Temperature = &t
		}
	}
	report := domain.ComputeQuality(events)
	fmt.Printf("Coverage: %s (%d of %d rows missing weather)\n",
		report.CoverageString(), report.MissingWeather, report.Total)

	if expect != "" && report.CoverageString() != expect {
		p.errorf("coverage %s, expected %s", report.CoverageString(), expect)
	}
	return p
}
