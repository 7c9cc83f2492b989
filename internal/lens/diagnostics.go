package lens

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"meshlens/internal/mesh"
	"meshlens/internal/solver"
	"meshlens/pkg/lenserr"
)

// Diagnostics summarizes solve quality for caller-side gating.
type Diagnostics struct {
	// ErrorMean and ErrorStd describe the per-pair residual distances in px.
	ErrorMean float64   `json:"error_mean"`
	ErrorStd  float64   `json:"error_std"`
	Residuals []float64 `json:"-"`

	// Scales holds sqrt(|det|) of every tile's linear part.
	Scales    []float64 `json:"scales"`
	ScaleMean float64   `json:"scale_mean"`
	ScaleDev  float64   `json:"scale_dev"` // largest |scale - ScaleMean|

	Pairs          int `json:"pairs"`
	DroppedPairs   int `json:"dropped_pairs"`
	ConstraintRows int `json:"constraint_rows"`

	Vertices   int  `json:"vertices"`
	Triangles  int  `json:"triangles"`
	MinSupport int  `json:"min_support"`
	HasHole    bool `json:"has_hole"`

	MaxLensDisplacement float64 `json:"max_lens_displacement"`
	Condition           float64 `json:"condition"`
}

// Diagnose computes residual, scale and mesh statistics of a solution.
func Diagnose(m *mesh.Mesh, sys *solver.System, sol Solution) Diagnostics {
	d := Diagnostics{
		Pairs:          sys.Pairs,
		DroppedPairs:   sys.DroppedPairs,
		ConstraintRows: sys.ConstraintRows,
		Vertices:       m.VertexCount(),
		Triangles:      len(m.Triangles),
		MinSupport:     m.MinSupport(),
		HasHole:        m.HasHole(),
	}

	d.Residuals = solver.Residuals(sys, sol.X, sol.Y)
	d.ErrorMean, d.ErrorStd = meanStd(d.Residuals)

	d.Scales = make([]float64, sys.Layout.Tiles)
	for t := range d.Scales {
		d.Scales[t] = solver.TileAffine(sys.Layout, sol.X, sol.Y, t).ScaleFactor()
	}
	d.ScaleMean = stat.Mean(d.Scales, nil)
	for _, s := range d.Scales {
		d.ScaleDev = math.Max(d.ScaleDev, math.Abs(s-d.ScaleMean))
	}

	d.MaxLensDisplacement = maxNorm(solver.LensDisplacements(sys.Layout, sol.X, sol.Y))
	return d
}

func meanStd(x []float64) (float64, float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.MeanStdDev(x, nil)
}

// Check applies the acceptance thresholds and returns a POOR_SOLVE_QUALITY
// error naming the first threshold exceeded.
func (d Diagnostics) Check(g GoodSolve) error {
	switch {
	case d.ErrorMean > g.ErrorMean:
		return lenserr.New(lenserr.CodePoorSolveQuality, "residual mean %.4g px exceeds %.4g", d.ErrorMean, g.ErrorMean)
	case d.ErrorStd > g.ErrorStd:
		return lenserr.New(lenserr.CodePoorSolveQuality, "residual std %.4g px exceeds %.4g", d.ErrorStd, g.ErrorStd)
	case d.ScaleDev > g.ScaleDev:
		return lenserr.New(lenserr.CodePoorSolveQuality, "tile scale deviation %.4g exceeds %.4g", d.ScaleDev, g.ScaleDev)
	}
	return nil
}
