// Command genmock writes a synthetic WFS lightning document and the JSON
// observations the pipeline is expected to produce from it. The strike
// times fall inside the default window ending at a fixed clock, so the
// fixtures are reproducible.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -xml-out data/mock/lightning_simple.xml \
//	  -json-out data/mock/lightning_expected.json \
//	  -count 25
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/lightning-data-service/internal/adapter/fmi"
	"github.com/couchcryptid/lightning-data-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// fixtureNow is the clock shared with cmd/validate.
var fixtureNow = time.Date(2024, time.June, 1, 18, 0, 0, 0, time.UTC)

// Finland, roughly: the default query area.
const (
	minLat, maxLat = 59.5, 70.0
	minLon, maxLon = 20.0, 31.5
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	xmlOut := flag.String("xml-out", "", "output path for the WFS document")
	jsonOut := flag.String("json-out", "", "output path for the expected JSON observations")
	count := flag.Int("count", 25, "number of strikes")
	seed := flag.Uint64("seed", 20240601, "random seed")
	flag.Parse()

	if *xmlOut == "" || *jsonOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -xml-out, -json-out")
	}
	if *count < 0 {
		return fmt.Errorf("count must not be negative")
	}

	domain.SetClock(clockwork.NewFakeClockAt(fixtureNow))
	defer domain.SetClock(nil)

	window := domain.DefaultWindow(domain.Now())
	feed := generateFeed(rand.New(rand.NewPCG(*seed, *seed)), window, *count)

	records, err := domain.Reassemble(feed)
	if err != nil {
		return fmt.Errorf("reassemble generated feed: %w", err)
	}

	if err := writeFile(*xmlOut, func(f *os.File) error {
		return fmi.EncodeFeed(f, feed, domain.Now().Format(time.RFC3339))
	}); err != nil {
		return fmt.Errorf("writing WFS fixture: %w", err)
	}
	log.Printf("wrote WFS fixture: %s (%d strikes)", *xmlOut, len(records))

	rendered := domain.Render(records, domain.FormatJSON, 0)
	if err := writeFile(*jsonOut, func(f *os.File) error {
		_, err := rendered.WriteTo(f)
		return err
	}); err != nil {
		return fmt.Errorf("writing expected JSON: %w", err)
	}
	log.Printf("wrote expected JSON: %s", *jsonOut)

	printStats(records)
	return nil
}

// generateFeed lays out count strikes in time order across window.
func generateFeed(r *rand.Rand, window domain.TimeWindow, count int) domain.RawFeed {
	span := int64(window.Duration() / time.Second)
	offsets := make([]int64, count)
	for i := range offsets {
		offsets[i] = r.Int64N(span + 1)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	feed := domain.RawFeed{
		Timestamps:      make([]string, 0, count),
		Coordinates:     make([]string, 0, count),
		ParameterNames:  make([]string, 0, count*domain.ParamsPerObservation),
		ParameterValues: make([]string, 0, count*domain.ParamsPerObservation),
	}
	for _, off := range offsets {
		t := window.Start.Add(time.Duration(off) * time.Second)
		lat := minLat + r.Float64()*(maxLat-minLat)
		lon := minLon + r.Float64()*(maxLon-minLon)

		feed.Timestamps = append(feed.Timestamps, t.Format(domain.ObservationTimeLayout))
		feed.Coordinates = append(feed.Coordinates, fmt.Sprintf("%.4f %.4f", lat, lon))
		feed.ParameterNames = append(feed.ParameterNames, domain.Parameters[:]...)
		feed.ParameterValues = append(feed.ParameterValues,
			strconv.FormatFloat(r.Float64()*120-60, 'f', 1, 64),
			strconv.Itoa(1+r.IntN(9)),
			strconv.Itoa(r.IntN(2)),
			strconv.FormatFloat(0.1+r.Float64()*4.9, 'f', 1, 64),
		)
	}
	return feed
}

func writeFile(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printStats(records []domain.Observation) {
	var cloud, ground int
	for _, rec := range records {
		if rec.CloudIndicator == "1" {
			cloud++
		} else {
			ground++
		}
	}
	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Strikes: %d (cloud %d, ground %d)\n", len(records), cloud, ground)
	if len(records) > 0 {
		fmt.Printf("First: %s\n", records[0].Line())
		fmt.Printf("Last:  %s\n", records[len(records)-1].Line())
	}
}
