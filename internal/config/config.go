// Package config loads YAML run files for the fsoc CLI.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/fsoc-linkbudget/core"
	"github.com/signalsfoundry/fsoc-linkbudget/internal/logging"
	"github.com/signalsfoundry/fsoc-linkbudget/internal/observability"
	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// File is one run file: the link to evaluate, the catalog and selection
// to evaluate it with, and the ambient settings of the run.
type File struct {
	Link      model.LinkConfiguration     `yaml:"link"`
	Tunables  core.Tunables               `yaml:"tunables"`
	Catalog   string                      `yaml:"catalog"` // JSON catalog path; empty uses the embedded default
	Selection map[string]string           `yaml:"selection"`
	Logging   logging.Config              `yaml:"logging"`
	Tracing   observability.TracingConfig `yaml:"tracing"`
	Metrics   MetricsConfig               `yaml:"metrics"`
	Reach     ReachConfig                 `yaml:"reach"`
	Pass      PassConfig                  `yaml:"pass"`
}

// MetricsConfig controls the Prometheus endpoint of long-running commands.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// ReachConfig controls distance sweeps.
type ReachConfig struct {
	SweepFromM float64 `yaml:"sweep_from_m"`
	SweepToM   float64 `yaml:"sweep_to_m"`
	SweepSteps int     `yaml:"sweep_steps"`
}

// PassConfig describes an orbital pass over a ground terminal.
type PassConfig struct {
	TLE             []string            `yaml:"tle"`
	Ground          core.GroundTerminal `yaml:"ground"`
	MinElevationDeg float64             `yaml:"min_elevation_deg"`
	Start           time.Time           `yaml:"start"`
	Duration        time.Duration       `yaml:"duration"`
	Step            time.Duration       `yaml:"step"`
}

// DefaultFile returns the settings used when no run file is given.
// Attenuation and Cn² are left unset so the weather preset applies.
func DefaultFile() File {
	link := model.DefaultLinkConfiguration()
	link.Channel.AtmosphericAlphaDbPerKm = nil
	link.Channel.Cn2 = nil
	return File{
		Link:     link,
		Tunables: core.DefaultTunables(),
		Logging:  logging.Config{Level: "info", Format: "text"},
		Tracing:  observability.DefaultTracingConfig(),
		Reach:    ReachConfig{SweepToM: 20000, SweepSteps: 20},
		Pass: PassConfig{
			MinElevationDeg: 10,
			Duration:        90 * time.Minute,
			Step:            10 * time.Second,
		},
	}
}

// LoadFile reads a YAML run file over DefaultFile. Unknown keys are
// rejected. The link configuration is not validated here; LinkService
// does that at evaluation time.
func LoadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("read run file: %w", err)
	}
	defer fh.Close()

	f := DefaultFile()
	dec := yaml.NewDecoder(fh)
	dec.KnownFields(true)
	// An empty file decodes to the defaults.
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse run file %s: %w", path, err)
	}
	f.normalize()
	return f, nil
}

func (f *File) normalize() {
	f.Tunables = f.Tunables.Normalized()
	if f.Reach.SweepSteps <= 0 {
		f.Reach.SweepSteps = 20
	}
	if f.Reach.SweepToM <= f.Reach.SweepFromM {
		f.Reach.SweepToM = f.Reach.SweepFromM + 20000
	}
	if f.Pass.Step <= 0 {
		f.Pass.Step = 10 * time.Second
	}
	if f.Pass.Duration <= 0 {
		f.Pass.Duration = 90 * time.Minute
	}
	if len(f.Selection) > 0 {
		sel := make(map[string]string, len(f.Selection))
		for k, v := range f.Selection {
			sel[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
		f.Selection = sel
	}
}
