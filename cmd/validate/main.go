// Command validate checks the integrity of the lightning fixtures written by
// genmock: the WFS document decodes, reassembles into well-formed
// observations inside the fixture window, converts to stored rows, and
// matches the expected JSON.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -xml data/mock/lightning_simple.xml \
//	  -json data/mock/lightning_expected.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/lightning-data-service/internal/adapter/fmi"
	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// fixtureNow matches the clock genmock uses.
var fixtureNow = time.Date(2024, time.June, 1, 18, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	xmlPath := flag.String("xml", "", "path to the WFS fixture")
	jsonPath := flag.String("json", "", "path to the expected JSON observations")
	flag.Parse()

	if *xmlPath == "" || *jsonPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*xmlPath, *jsonPath); code != 0 {
		os.Exit(code)
	}
}

func run(xmlPath, jsonPath string) int {
	domain.SetClock(clockwork.NewFakeClockAt(fixtureNow))
	defer domain.SetClock(nil)

	fmt.Println("=== Lightning Fixture Validation ===")
	fmt.Println()

	feed, err := loadFeed(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load WFS fixture: %v\n", err)
		return 1
	}

	var expected []domain.Observation
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load expected JSON: %v\n", err)
		return 1
	}
	if err := json.Unmarshal(data, &expected); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse expected JSON: %v\n", err)
		return 1
	}

	records, reassembly := validateReassembly(feed)
	phases := []*phase{
		validateFeedShape(feed),
		reassembly,
		validateWindow(records, domain.DefaultWindow(domain.Now())),
		validateStoredRows(records),
		validateExpected(records, expected),
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
	fmt.Printf("Records: %d feed groups, %d reassembled, %d expected\n", feed.Groups(), len(records), len(expected))

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

func loadFeed(path string) (domain.RawFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.RawFeed{}, err
	}
	defer f.Close()
	return fmi.DecodeFeed(f)
}

// ── Validation phases ──

func validateFeedShape(feed domain.RawFeed) *phase {
	p := &phase{name: "Feed cardinality and parameter order"}
	if err := feed.Validate(); err != nil {
		p.errorf("%v", err)
	}
	return p
}

func validateReassembly(feed domain.RawFeed) ([]domain.Observation, *phase) {
	p := &phase{name: "Observation reassembly"}
	records, err := domain.Reassemble(feed)
	if err != nil {
		p.errorf("%v", err)
		return nil, p
	}
	for i, rec := range records {
		for _, field := range []struct{ name, value string }{
			{"lat", rec.Lat}, {"lon", rec.Lon}, {"peakcurrent", rec.PeakCurrent}, {"ellipsemajor", rec.EllipseMajor},
		} {
			if _, err := strconv.ParseFloat(field.value, 64); err != nil {
				p.errorf("record %d: %s %q is not numeric", i, field.name, field.value)
			}
		}
		if _, err := strconv.Atoi(rec.Multiplicity); err != nil {
			p.errorf("record %d: multiplicity %q is not an integer", i, rec.Multiplicity)
		}
		if rec.CloudIndicator != "0" && rec.CloudIndicator != "1" {
			p.errorf("record %d: cloudindicator %q is not 0 or 1", i, rec.CloudIndicator)
		}
	}
	return records, p
}

func validateWindow(records []domain.Observation, window domain.TimeWindow) *phase {
	p := &phase{name: "Strike times inside fixture window"}
	for i, rec := range records {
		t, err := time.Parse(domain.ObservationTimeLayout, rec.Time)
		if err != nil {
			p.errorf("record %d: time %q: %v", i, rec.Time, err)
			continue
		}
		if t.Before(window.Start) || t.After(window.End) {
			p.errorf("record %d: time %s outside [%s, %s]", i, rec.Time, window.StartString(), window.EndString())
		}
	}
	return p
}

func validateStoredRows(records []domain.Observation) *phase {
	p := &phase{name: "Stored row conversion"}
	rows, err := domain.NewStoredRows(records)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].Epoch < rows[i-1].Epoch {
			p.errorf("row %d: epoch %d precedes row %d epoch %d", i, rows[i].Epoch, i-1, rows[i-1].Epoch)
		}
	}
	return p
}

func validateExpected(records, expected []domain.Observation) *phase {
	p := &phase{name: "Expected JSON parity"}
	if len(records) != len(expected) {
		p.errorf("reassembled %d records, expected %d", len(records), len(expected))
		return p
	}
	for i := range records {
		if records[i] != expected[i] {
			p.errorf("record %d: got %q, want %q", i, records[i].Line(), expected[i].Line())
		}
	}
	return p
}
