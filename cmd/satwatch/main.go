// Command satwatch is a terminal UI for watching live satellite positions
// from a two-line element catalog.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sat/sattrack/internal/elements"
	"github.com/sat/sattrack/internal/propagation"
	"github.com/sat/sattrack/internal/transform"
)

const (
	defaultRefresh = 1 * time.Second
	minRefresh     = 250 * time.Millisecond
	maxRefresh     = 1 * time.Minute
)

func main() {
	file := flag.String("file", "", "Path to a TLE catalog file")
	url := flag.String("url", "", "Fetch TLE catalog from URL (default CelesTrak active set when no file given)")
	observerSpec := flag.String("observer", "", "Ground observer as lat,lon[,alt_km] for look angles")
	refresh := flag.Duration("refresh", defaultRefresh, "Position refresh interval (e.g. 1s, 500ms)")
	flag.Parse()

	if *refresh < minRefresh {
		*refresh = minRefresh
	} else if *refresh > maxRefresh {
		*refresh = maxRefresh
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	data, source, err := loadCatalog(*file, *url, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		os.Exit(1)
	}

	entries, err := elements.Parse(bytes.NewReader(data), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing catalog: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "No element sets found in %s\n", source)
		os.Exit(1)
	}

	var observer *transform.Observer
	if *observerSpec != "" {
		obs, err := parseObserver(*observerSpec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		observer = &obs
	}

	sats, skipped := buildSatellites(entries)
	if len(sats) == 0 {
		fmt.Fprintf(os.Stderr, "No propagatable satellites in %s (%d rejected)\n", source, skipped)
		os.Exit(1)
	}

	model := newModel(sats, source, observer, *refresh, skipped)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

func loadCatalog(file, url string, logger *slog.Logger) ([]byte, string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, "", err
		}
		return data, file, nil
	}

	fetcher := elements.NewFetcher(url, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	data, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, "", err
	}
	return data, fetcher.SourceURL(), nil
}

func parseObserver(spec string) (transform.Observer, error) {
	parts := strings.Split(spec, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return transform.Observer{}, fmt.Errorf("observer must be lat,lon[,alt_km], got %q", spec)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return transform.Observer{}, fmt.Errorf("invalid observer latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lon < -180 || lon > 180 {
		return transform.Observer{}, fmt.Errorf("invalid observer longitude %q", parts[1])
	}
	alt := 0.0
	if len(parts) == 3 {
		alt, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return transform.Observer{}, fmt.Errorf("invalid observer altitude %q", parts[2])
		}
	}

	return transform.NewObserver(lat, lon, alt), nil
}

// buildSatellites initializes propagation records, skipping element sets
// the model rejects (eccentricity out of range, zero mean motion).
func buildSatellites(entries []elements.OrbitalElements) ([]satellite, int) {
	grav := propagation.WGS72()
	sats := make([]satellite, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		rec, err := propagation.Initialize(e, grav)
		if err != nil {
			skipped++
			continue
		}
		sats = append(sats, satellite{entry: e, rec: rec})
	}
	return sats, skipped
}
