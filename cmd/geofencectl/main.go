// Command geofencectl checks geofence definition files and seeds them into
// the durable store used by geofenced.
//
// Usage:
//
//	geofencectl validate -file fences.json
//	geofencectl seed -file fences.json [-activate]
//
// seed reads STORAGE_DRIVER and STORAGE_DSN like the service does.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/geofence-service/internal/config"
	"github.com/couchcryptid/geofence-service/internal/domain"
	"github.com/couchcryptid/geofence-service/internal/geofence"
	"github.com/couchcryptid/geofence-service/internal/storage"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: geofencectl <validate|seed> -file fences.json")
		return 2
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "path to a JSON array of geofences")
	activate := fs.Bool("activate", false, "seed: mark geofences active so geofenced registers them on boot")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if *file == "" {
		fs.Usage()
		return 2
	}

	geofences, err := loadGeofences(*file)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	r := validate(geofences)
	r.print(stdout)
	if !r.passed() {
		return 1
	}

	switch args[0] {
	case "validate":
		return 0
	case "seed":
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(stderr, "FATAL: %v\n", err)
			return 1
		}
		if err := seed(ctx, cfg, geofences, *activate); err != nil {
			fmt.Fprintf(stderr, "FATAL: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Seeded %d geofence(s) into %s (active=%t).\n", len(geofences), cfg.StorageDriver, *activate)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		return 2
	}
}

func loadGeofences(path string) ([]domain.Geofence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var gs []domain.Geofence
	if err := json.Unmarshal(data, &gs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(gs) == 0 {
		return nil, fmt.Errorf("%s: no geofences", path)
	}
	return gs, nil
}

// report collects validation findings. Warnings never fail validation.
type report struct {
	count    int
	errors   []string
	warnings []string
}

func (r *report) errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *report) warnf(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (r *report) passed() bool { return len(r.errors) == 0 }

func (r *report) print(w io.Writer) {
	for _, msg := range r.warnings {
		fmt.Fprintf(w, "  WARN  %s\n", msg)
	}
	for _, msg := range r.errors {
		fmt.Fprintf(w, "  ERROR %s\n", msg)
	}
	if r.passed() {
		fmt.Fprintf(w, "%d geofence(s) valid.\n", r.count)
		return
	}
	fmt.Fprintf(w, "Validation FAILED (%d errors).\n", len(r.errors))
}

func validate(gs []domain.Geofence) *report {
	r := &report{count: len(gs)}
	seen := make(map[string]int, len(gs))
	for i, g := range gs {
		if err := g.Validate(); err != nil {
			var joined interface{ Unwrap() []error }
			if errors.As(err, &joined) {
				for _, e := range joined.Unwrap() {
					r.errorf("record %d: %v", i, e)
				}
			} else {
				r.errorf("record %d: %v", i, err)
			}
		}
		if g.ID != "" {
			if first, dup := seen[g.ID]; dup {
				r.errorf("record %d: identifier %q duplicates record %d", i, g.ID, first)
			} else {
				seen[g.ID] = i
			}
		}
		if len(g.Transitions()) == 0 {
			r.warnf("record %d (%s): no transitions enabled, it will never fire", i, g.ID)
		}
	}
	return r
}

func seed(ctx context.Context, cfg *config.Config, gs []domain.Geofence, activate bool) error {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	repo, err := geofence.NewRepository(ctx, store)
	if err != nil {
		return err
	}
	if err := repo.Add(ctx, gs); err != nil {
		return err
	}
	if !activate {
		return nil
	}
	activation, err := geofence.NewActivationStore(ctx, store)
	if err != nil {
		return err
	}
	return activation.SetActive(ctx, true)
}
