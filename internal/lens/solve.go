package lens

import (
	"math"

	"meshlens/internal/export"
	"meshlens/internal/match"
	"meshlens/internal/mesh"
	"meshlens/internal/solver"
	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

// EvenResult is the output of EvenStage.
type EvenResult struct {
	Points []geometry.Point2D
	Stats  match.EvenStats
}

// MeshResult is the output of MeshStage.
type MeshResult struct {
	Mesh     *mesh.Mesh
	Locator  *mesh.Locator
	Warnings []*lenserr.Error
}

// Solution holds the solved unknown vectors of both channels.
type Solution struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Result is the outcome of a successful solve.
type Result struct {
	Transforms  *export.Transforms `json:"transforms"`
	Mesh        *mesh.Mesh         `json:"mesh"`
	Solution    Solution           `json:"solution"`
	Diagnostics Diagnostics        `json:"diagnostics"`
	Even        match.EvenStats    `json:"even"`
	Warnings    []*lenserr.Error   `json:"warnings,omitempty"`
}

// EvenStage rebalances the density of every matched point of the group.
func EvenStage(ctx *SolveContext) EvenResult {
	points := match.Group{Tiles: ctx.tiles, Matches: ctx.matches}.Points()
	evened, stats := match.Even(points, ctx.width, ctx.height, ctx.opts.Even)
	if stats.Fallback {
		ctx.logger.Debug("evening skipped empty cells", "empty", stats.EmptyCells, "per_cell", stats.MinCount)
	}
	ctx.logger.Debug("points evened", "input", stats.Input, "output", stats.Output)
	return EvenResult{Points: evened, Stats: stats}
}

// MeshStage builds the mesh from the evened points, or adopts Options.Mesh.
func MeshStage(ctx *SolveContext, even EvenResult) (MeshResult, error) {
	m := ctx.opts.Mesh
	var warnings []*lenserr.Error
	if m == nil {
		var err error
		m, warnings, err = mesh.Build(ctx.width, ctx.height, even.Points, ctx.opts.MeshOptions(ctx.logger))
		if err != nil {
			return MeshResult{}, err
		}
	}
	loc, err := mesh.NewLocator(m)
	if err != nil {
		return MeshResult{}, err
	}
	return MeshResult{Mesh: m, Locator: loc, Warnings: warnings}, nil
}

// AssembleStage builds the observation system.
func AssembleStage(ctx *SolveContext, mr MeshResult) (*solver.System, error) {
	sys, err := solver.Assemble(ctx.tiles, ctx.index, ctx.matches, mr.Mesh, mr.Locator,
		solver.AssembleOptions{UseMatchWeights: ctx.opts.UseMatchWeights})
	if err != nil {
		return nil, err
	}
	if sys.DroppedPairs > 0 {
		ctx.logger.Warn("dropped pairs inside the mesh hole", "dropped", sys.DroppedPairs, "kept", sys.Pairs)
	}
	if sys.Pairs == 0 {
		return nil, lenserr.New(lenserr.CodeInvalidInput, "no point pairs remain outside the mesh hole")
	}
	ctx.logger.Debug("system assembled", "rows", sys.ConstraintRows, "unknowns", sys.Layout.Size(), "nnz", sys.A.NNZ())
	return sys, nil
}

// FactorizeStage forms and factors the regularized normal matrix once.
func FactorizeStage(ctx *SolveContext, sys *solver.System) (*solver.Factorization, []float64, error) {
	reg := solver.Regularize(sys.Layout, ctx.opts.Regularization)
	f, err := solver.Factorize(sys, reg)
	if err != nil {
		return nil, nil, err
	}
	return f, reg, nil
}

// SolveStage back-substitutes both channels against the single factorization.
func SolveStage(sys *solver.System, f *solver.Factorization, reg []float64) (Solution, error) {
	x, y, err := solver.SolveChannels(f, sys, reg)
	if err != nil {
		return Solution{}, err
	}
	return Solution{X: x, Y: y}, nil
}

// ExportStage builds the tile affines and the lens transform.
func ExportStage(ctx *SolveContext, m *mesh.Mesh, sys *solver.System, sol Solution) (*export.Transforms, error) {
	return export.Export(ctx.tiles, m, sys.Layout, sol.X, sol.Y, ctx.opts.Export)
}

// Solve runs every stage. Warnings are collected in the result; errors stop
// the solve and carry a lenserr code.
func Solve(ctx *SolveContext) (*Result, error) {
	even := EvenStage(ctx)

	mr, err := MeshStage(ctx, even)
	if err != nil {
		return nil, err
	}

	sys, err := AssembleStage(ctx, mr)
	if err != nil {
		return nil, err
	}

	f, reg, err := FactorizeStage(ctx, sys)
	if err != nil {
		ctx.logger.Error("factorization failed", "unknowns", sys.Layout.Size(), "err", err)
		return nil, err
	}

	sol, err := SolveStage(sys, f, reg)
	if err != nil {
		return nil, err
	}

	transforms, err := ExportStage(ctx, mr.Mesh, sys, sol)
	if err != nil {
		return nil, err
	}

	diag := Diagnose(mr.Mesh, sys, sol)
	diag.Condition = f.Cond()
	res := &Result{
		Transforms:  transforms,
		Mesh:        mr.Mesh,
		Solution:    sol,
		Diagnostics: diag,
		Even:        even.Stats,
		Warnings:    mr.Warnings,
	}
	ctx.logger.Info("solve done",
		"tiles", len(ctx.tiles),
		"vertices", mr.Mesh.VertexCount(),
		"pairs", sys.Pairs,
		"error_mean", diag.ErrorMean,
		"error_std", diag.ErrorStd,
		"warnings", len(res.Warnings))
	return res, nil
}

func invalidMesh(mw, mh, w, h float64) error {
	return lenserr.New(lenserr.CodeInvalidInput, "mesh is %gx%g, tiles are %gx%g", mw, mh, w, h)
}

func maxNorm(points []geometry.Point2D) float64 {
	var m float64
	for _, p := range points {
		m = math.Max(m, p.Norm())
	}
	return m
}
