// Package config loads solver settings from a TOML file.
//
// Every key is optional; missing keys keep the library defaults. Unknown keys
// are rejected so that a typo never silently falls back to a default.
//
//	nvertex = 1000
//	npts = 3
//	polynomial_degree = 5
//
//	[regularization]
//	default_lambda = 0.005
//	translation_factor = 1e-5
//	lens_lambda = 0.005
//
//	[good_solve]
//	error_mean = 0.2
//	error_std = 2.0
//	scale_dev = 0.1
package config

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"meshlens/internal/lens"
	"meshlens/internal/match"
	"meshlens/internal/mesh"
	"meshlens/internal/solver"
)

// Hole mirrors mesh.HoleOptions.
type Hole struct {
	Disabled       bool    `toml:"disabled"`
	RadiusFraction float64 `toml:"radius_fraction"`
	StepFraction   float64 `toml:"step_fraction"`
}

// Evener mirrors match.EvenOptions.
type Evener struct {
	GridSize int   `toml:"grid_size"`
	Seed     int64 `toml:"seed"`
}

// Refine mirrors mesh.RefineOptions.
type Refine struct {
	MaxIterations int     `toml:"max_iterations"`
	GrowthFactor  float64 `toml:"growth_factor"`
	EscalateEvery int     `toml:"escalate_every"`
}

// Search mirrors mesh.SearchOptions.
type Search struct {
	MaxBracketSteps  int `toml:"max_bracket_steps"`
	MaxBisections    int `toml:"max_bisections"`
	MaxTargetRetries int `toml:"max_target_retries"`
	MaxVertices      int `toml:"max_vertices"`
}

// Config is the on-disk form of lens.Options.
type Config struct {
	NVertex          int  `toml:"nvertex"`
	NPts             int  `toml:"npts"`
	PolynomialDegree int  `toml:"polynomial_degree"`
	PolynomialGrid   int  `toml:"polynomial_grid"`
	UseMatchWeights  bool `toml:"use_match_weights"`

	Regularization solver.Regularization `toml:"regularization"`
	GoodSolve      lens.GoodSolve        `toml:"good_solve"`
	Hole           Hole                  `toml:"hole"`
	Evener         Evener                `toml:"evener"`
	Refine         Refine                `toml:"refine"`
	Search         Search                `toml:"search"`
}

// Default returns the configuration equivalent to lens.DefaultOptions.
func Default() Config {
	o := lens.DefaultOptions()
	return Config{
		NVertex:          o.NVertex,
		NPts:             o.NPts,
		PolynomialDegree: o.Export.PolynomialDegree,
		PolynomialGrid:   o.Export.PolynomialGrid,
		UseMatchWeights:  o.UseMatchWeights,
		Regularization:   o.Regularization,
		GoodSolve:        o.GoodSolve,
		Hole:             Hole(o.Hole),
		Evener:           Evener(o.Even),
		Refine:           Refine(o.Refine),
		Search:           Search(o.Search),
	}
}

// Load reads a configuration file. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "open config")
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Decode parses TOML from r on top of Default and validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, errors.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Options().Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid")
	}
	return cfg, nil
}

// Options converts the configuration into solve options.
func (c Config) Options() lens.Options {
	o := lens.DefaultOptions()
	o.NVertex = c.NVertex
	o.NPts = c.NPts
	o.UseMatchWeights = c.UseMatchWeights
	o.Export.PolynomialDegree = c.PolynomialDegree
	o.Export.PolynomialGrid = c.PolynomialGrid
	o.Regularization = c.Regularization
	o.GoodSolve = c.GoodSolve
	o.Hole = mesh.HoleOptions(c.Hole)
	o.Even = match.EvenOptions(c.Evener)
	o.Refine = mesh.RefineOptions(c.Refine)
	o.Search = mesh.SearchOptions(c.Search)
	return o
}
