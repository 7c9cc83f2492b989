package mesh

import (
	"math"

	"github.com/charmbracelet/log"

	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

// RefineOptions controls density refinement.
type RefineOptions struct {
	MaxIterations int
	GrowthFactor  float64 // multiplier applied to the triangle area per iteration
	EscalateEvery int     // iterations between doublings of GrowthFactor-1
}

// DefaultRefineOptions returns the standard refinement schedule.
func DefaultRefineOptions() RefineOptions {
	return RefineOptions{MaxIterations: 20, GrowthFactor: 1.1, EscalateEvery: 5}
}

// BuildOptions configures Build.
type BuildOptions struct {
	NVertex int // target vertex count
	NPts    int // minimum evened points in each vertex's incident triangles
	Hole    HoleOptions
	Search  SearchOptions
	Refine  RefineOptions
	Logger  *log.Logger
}

// DefaultBuildOptions returns a 1000-vertex target with 3 points of support.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{
		NVertex: 1000,
		NPts:    3,
		Hole:    DefaultHoleOptions(),
		Search:  DefaultSearchOptions(),
		Refine:  DefaultRefineOptions(),
	}
}

// Build triangulates a width x height tile for the given evened points.
//
// The mesh gets close to NVertex vertices, skips a hole at the centre when the
// points leave one, and is then coarsened until every vertex is supported by
// NPts points. Warnings do not stop the build; the error return is reserved
// for invalid arguments.
func Build(width, height float64, points []geometry.Point2D, opts BuildOptions) (*Mesh, []*lenserr.Error, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return nil, nil, lenserr.New(lenserr.CodeInvalidInput, "tile size %gx%g", width, height)
	}
	if opts.NVertex < 1 {
		return nil, nil, lenserr.New(lenserr.CodeInvalidInput, "nvertex must be positive, got %d", opts.NVertex)
	}
	bounds := geometry.NewRect(0, 0, width, height)

	if len(points) == 0 {
		m, _ := Triangulate(Domain{Bounds: bounds}, math.Inf(1), opts.Search.MaxVertices)
		m.Support = make([]int, m.VertexCount())
		logger.Warn("no observations, using boundary mesh")
		return m, []*lenserr.Error{
			lenserr.New(lenserr.CodeDegenerateMesh, "no observations, mesh is the tile boundary"),
		}, nil
	}

	dom := Domain{Bounds: bounds, Hole: DetectHole(bounds, points, opts.Hole)}
	if dom.Hole != nil {
		logger.Debug("hole detected", "corner", dom.Hole[0], "opposite", dom.Hole[2])
	}

	m, warnings := FindTargetArea(dom, opts.NVertex, opts.Search, logger)
	m, err := attachSupport(m, points)
	if err != nil {
		return nil, nil, err
	}
	if opts.NPts <= 0 || m.MinSupport() >= opts.NPts {
		logger.Info("mesh built", "vertices", m.VertexCount(), "triangles", len(m.Triangles), "min_support", m.MinSupport())
		return m, warnings, nil
	}

	best := m
	area := m.MaxArea
	factor := opts.Refine.GrowthFactor
	if factor <= 1 {
		factor = DefaultRefineOptions().GrowthFactor
	}
	for iter := 1; iter <= opts.Refine.MaxIterations; iter++ {
		area *= factor
		cand, _ := Triangulate(dom, area, opts.Search.MaxVertices)
		cand, err = attachSupport(cand, points)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("density refinement", "iteration", iter, "area", area,
			"vertices", cand.VertexCount(), "min_support", cand.MinSupport())
		if cand.MinSupport() > best.MinSupport() {
			best = cand
		}
		if cand.MinSupport() >= opts.NPts {
			logger.Info("mesh built", "vertices", cand.VertexCount(), "triangles", len(cand.Triangles),
				"min_support", cand.MinSupport())
			if n := cand.VertexCount(); n < opts.NVertex-1 {
				logger.Warn("mesh coarsened below target", "target", opts.NVertex, "vertices", n, "npts", opts.NPts)
				warnings = append(warnings, lenserr.New(lenserr.CodeInsufficientObservations,
					"mesh coarsened to %d vertices for target %d to keep %d points per vertex", n, opts.NVertex, opts.NPts))
			}
			return cand, warnings, nil
		}
		if opts.Refine.EscalateEvery > 0 && iter%opts.Refine.EscalateEvery == 0 {
			factor = 1 + 2*(factor-1)
		}
	}

	logger.Warn("insufficient observations per vertex", "npts", opts.NPts,
		"min_support", best.MinSupport(), "vertices", best.VertexCount())
	warnings = append(warnings, lenserr.New(lenserr.CodeInsufficientObservations,
		"minimum vertex support %d below %d after %d iterations", best.MinSupport(), opts.NPts, opts.Refine.MaxIterations))
	return best, warnings, nil
}

func attachSupport(m *Mesh, points []geometry.Point2D) (*Mesh, error) {
	loc, err := NewLocator(m)
	if err != nil {
		return nil, err
	}
	m.Support = VertexSupport(m, loc, points)
	return m, nil
}

// VertexSupport counts, for every vertex, the points located in its incident
// triangles. Points outside the mesh are ignored.
func VertexSupport(m *Mesh, loc *Locator, points []geometry.Point2D) []int {
	perTriangle := make([]int, len(m.Triangles))
	for _, p := range points {
		b, err := loc.Locate(p)
		if err != nil {
			continue
		}
		perTriangle[b.Triangle]++
	}
	support := make([]int, len(m.Vertices))
	for i, t := range m.Triangles {
		for _, v := range t {
			support[v] += perTriangle[i]
		}
	}
	return support
}
