package lens

import (
	"github.com/charmbracelet/log"

	"meshlens/internal/export"
	"meshlens/internal/match"
	"meshlens/internal/mesh"
	"meshlens/internal/solver"
	"meshlens/pkg/lenserr"
)

// GoodSolve holds the caller-side acceptance thresholds. The solver never
// applies them itself; see Diagnostics.Check.
type GoodSolve struct {
	ErrorMean float64 `toml:"error_mean" json:"error_mean"` // px
	ErrorStd  float64 `toml:"error_std" json:"error_std"`   // px
	ScaleDev  float64 `toml:"scale_dev" json:"scale_dev"`   // max |scale - mean scale|
}

// DefaultGoodSolve returns the standard acceptance thresholds.
func DefaultGoodSolve() GoodSolve {
	return GoodSolve{ErrorMean: 0.2, ErrorStd: 2.0, ScaleDev: 0.1}
}

// Options configures one solve.
type Options struct {
	// NVertex is the target mesh vertex count, the lens field's degrees of freedom.
	NVertex int
	// NPts is the minimum number of evened points around every mesh vertex.
	NPts int

	Regularization solver.Regularization
	GoodSolve      GoodSolve

	Even   match.EvenOptions
	Hole   mesh.HoleOptions
	Refine mesh.RefineOptions
	Search mesh.SearchOptions

	UseMatchWeights bool
	Export          export.Options

	// Mesh, when set, is used as is and evening and mesh building are skipped.
	Mesh *mesh.Mesh

	Logger *log.Logger
}

// DefaultOptions returns options for a 1000-vertex lens mesh.
func DefaultOptions() Options {
	return Options{
		NVertex:        1000,
		NPts:           3,
		Regularization: solver.DefaultRegularization(),
		GoodSolve:      DefaultGoodSolve(),
		Even:           match.DefaultEvenOptions(),
		Hole:           mesh.DefaultHoleOptions(),
		Refine:         mesh.DefaultRefineOptions(),
		Search:         mesh.DefaultSearchOptions(),
		Export:         export.DefaultOptions(),
	}
}

// WithNVertex returns a copy of o targeting n mesh vertices.
func (o Options) WithNVertex(n int) Options {
	o.NVertex = n
	return o
}

// WithRegularization returns a copy of o with the given weights.
func (o Options) WithRegularization(r solver.Regularization) Options {
	o.Regularization = r
	return o
}

// WithMesh returns a copy of o that reuses m instead of building a mesh.
func (o Options) WithMesh(m *mesh.Mesh) Options {
	o.Mesh = m
	return o
}

// WithLogger returns a copy of o logging to l.
func (o Options) WithLogger(l *log.Logger) Options {
	o.Logger = l
	return o
}

// Validate checks the option values.
func (o Options) Validate() error {
	if o.Mesh == nil && o.NVertex < 1 {
		return lenserr.New(lenserr.CodeInvalidInput, "nvertex must be positive, got %d", o.NVertex)
	}
	if o.NPts < 0 {
		return lenserr.New(lenserr.CodeInvalidInput, "npts must not be negative, got %d", o.NPts)
	}
	if o.Export.PolynomialDegree < 0 {
		return lenserr.New(lenserr.CodeInvalidInput, "polynomial degree must not be negative, got %d", o.Export.PolynomialDegree)
	}
	return o.Regularization.Validate()
}

// MeshOptions returns the mesh.Build settings of o.
func (o Options) MeshOptions(logger *log.Logger) mesh.BuildOptions {
	return mesh.BuildOptions{
		NVertex: o.NVertex,
		NPts:    o.NPts,
		Hole:    o.Hole,
		Search:  o.Search,
		Refine:  o.Refine,
		Logger:  logger,
	}
}
