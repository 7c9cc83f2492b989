// Package synth generates lens-correction groups with a known distortion
// field: a grid of overlapping tiles looking at random world features through
// a radial lens.
package synth

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/kdtree"

	"meshlens/internal/alignment"
	"meshlens/internal/match"
	"meshlens/pkg/geometry"
)

// Options describes the simulated acquisition.
type Options struct {
	Rows, Cols    int
	Width, Height float64
	// Overlap is the fraction of the tile shared with its neighbour.
	Overlap float64
	// Features is the number of world points drawn before thinning.
	Features int
	// MinSpacing is the smallest distance kept between world points.
	MinSpacing float64
	// K1 scales the radial field; a tile corner moves by K1 times half the diagonal.
	K1 float64
	// Noise is the standard deviation of the matched point positions, px.
	Noise float64
	// PositionError is the amplitude of the uniform error on initial tile positions, px.
	PositionError float64
	Seed          int64
}

// DefaultOptions returns a 3x3 group of 1000x800 tiles with 20% overlap.
func DefaultOptions() Options {
	return Options{
		Rows:          3,
		Cols:          3,
		Width:         1000,
		Height:        800,
		Overlap:       0.2,
		Features:      20000,
		MinSpacing:    8,
		K1:            5e-3,
		PositionError: 5,
		Seed:          1,
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	switch {
	case o.Rows < 1 || o.Cols < 1:
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", o.Rows, o.Cols)
	case o.Rows*o.Cols < 2:
		return fmt.Errorf("need at least two tiles")
	case !(o.Width > 0) || !(o.Height > 0):
		return fmt.Errorf("tile size %gx%g", o.Width, o.Height)
	case !(o.Overlap > 0) || o.Overlap >= 1:
		return fmt.Errorf("overlap must be in (0, 1), got %g", o.Overlap)
	case o.Features < 1:
		return fmt.Errorf("features must be positive, got %d", o.Features)
	case o.MinSpacing < 0 || o.Noise < 0 || o.PositionError < 0:
		return fmt.Errorf("spacing, noise and position error must not be negative")
	}
	return nil
}

// Radial is the distortion field d(p) = K1 * |u|^2 * (p - Center), with
// u = (p - Center) / Scale.
type Radial struct {
	Center geometry.Point2D `json:"center"`
	Scale  float64          `json:"scale"`
	K1     float64          `json:"k1"`
}

// Displacement returns the field value at a tile-local point.
func (r Radial) Displacement(p geometry.Point2D) geometry.Point2D {
	d := p.Sub(r.Center)
	u := d.Scale(1 / r.Scale)
	return d.Scale(r.K1 * (u.X*u.X + u.Y*u.Y))
}

// Dataset is a generated group and the truth it was generated from.
type Dataset struct {
	Group match.Group `json:"group"`
	Field Radial      `json:"field"`
	// Positions are the true tile origins; the group carries perturbed ones.
	Positions []geometry.Point2D `json:"positions"`
	World     int                `json:"world_points"`
}

// Generate simulates the acquisition. Tile content obeys
// world = position + p + field(p) for every tile-local point p.
func Generate(opts Options) (*Dataset, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	bounds := geometry.NewRect(0, 0, opts.Width, opts.Height)
	field := Radial{
		Center: bounds.Center(),
		Scale:  0.5 * math.Hypot(opts.Width, opts.Height),
		K1:     opts.K1,
	}

	stepX := (1 - opts.Overlap) * opts.Width
	stepY := (1 - opts.Overlap) * opts.Height
	ds := &Dataset{Field: field}
	for r := 0; r < opts.Rows; r++ {
		for c := 0; c < opts.Cols; c++ {
			pos := geometry.Point2D{X: float64(c) * stepX, Y: float64(r) * stepY}
			ds.Positions = append(ds.Positions, pos)
			ds.Group.Tiles = append(ds.Group.Tiles, match.Tile{
				ID:       fmt.Sprintf("%03d.%03d", r, c),
				Width:    opts.Width,
				Height:   opts.Height,
				InitialX: pos.X + opts.PositionError*(2*rng.Float64()-1),
				InitialY: pos.Y + opts.PositionError*(2*rng.Float64()-1),
			})
		}
	}

	extentX := float64(opts.Cols-1)*stepX + opts.Width
	extentY := float64(opts.Rows-1)*stepY + opts.Height
	world := thin(rng, opts.Features, extentX, extentY, opts.MinSpacing)
	ds.World = len(world)

	inner := geometry.NewRect(1, 1, opts.Width-2, opts.Height-2)
	n := len(ds.Group.Tiles)
	pairs := make([]*match.PointMatch, n*n)
	local := make([]geometry.Point2D, n)
	seen := make([]bool, n)
	for _, w := range world {
		for t, pos := range ds.Positions {
			local[t], seen[t] = unwarp(w.Sub(pos), field, bounds)
			seen[t] = seen[t] && inner.Contains(local[t])
		}
		for a := 0; a < n; a++ {
			for b := a + 1; b < n; b++ {
				if !seen[a] || !seen[b] {
					continue
				}
				pm := pairs[a*n+b]
				if pm == nil {
					pm = &match.PointMatch{TileA: ds.Group.Tiles[a].ID, TileB: ds.Group.Tiles[b].ID}
					pairs[a*n+b] = pm
				}
				pm.PointsA = append(pm.PointsA, jitter(rng, local[a], opts.Noise, bounds))
				pm.PointsB = append(pm.PointsB, jitter(rng, local[b], opts.Noise, bounds))
			}
		}
	}
	for _, pm := range pairs {
		if pm != nil {
			ds.Group.Matches = append(ds.Group.Matches, *pm)
		}
	}
	if len(ds.Group.Matches) == 0 {
		return nil, fmt.Errorf("no overlapping features, increase features or overlap")
	}
	return ds, nil
}

// thin draws uniform world points and keeps those at least spacing away from
// every point kept so far.
func thin(rng *rand.Rand, n int, w, h, spacing float64) []geometry.Point2D {
	tree := &kdtree.Tree{}
	out := make([]geometry.Point2D, 0, n)
	for i := 0; i < n; i++ {
		p := geometry.Point2D{X: rng.Float64() * w, Y: rng.Float64() * h}
		q := kdtree.Point{p.X, p.Y}
		if spacing > 0 && tree.Count > 0 {
			if _, d2 := tree.Nearest(q); d2 < spacing*spacing {
				continue
			}
		}
		tree.Insert(q, false)
		out = append(out, p)
	}
	return out
}

// unwarp solves p + field(p) = base by fixed-point iteration.
func unwarp(base geometry.Point2D, field Radial, bounds geometry.Rect) (geometry.Point2D, bool) {
	p := base
	for it := 0; it < 100; it++ {
		if !bounds.ContainsTol(p, 0) {
			return p, false
		}
		next := base.Sub(field.Displacement(p))
		if next.Distance(p) < 1e-12 {
			return next, true
		}
		p = next
	}
	return p, bounds.ContainsTol(p, 0)
}

func jitter(rng *rand.Rand, p geometry.Point2D, sigma float64, bounds geometry.Rect) geometry.Point2D {
	if sigma == 0 {
		return p
	}
	q := geometry.Point2D{X: p.X + sigma*rng.NormFloat64(), Y: p.Y + sigma*rng.NormFloat64()}
	return geometry.Point2D{
		X: math.Min(math.Max(q.X, bounds.X), bounds.X+bounds.Width),
		Y: math.Min(math.Max(q.Y, bounds.Y), bounds.Y+bounds.Height),
	}
}

// RecoveryReport summarises how far a recovered lens field is from the truth
// once the affine gauge is removed, in px.
type RecoveryReport struct {
	Max  float64
	Mean float64
}

// Recovery compares a recovered lens field with the truth at the given
// points, ignoring the affine gauge the solve cannot observe.
func (d *Dataset) Recovery(points, displacements []geometry.Point2D) (RecoveryReport, error) {
	truth := make([]geometry.Point2D, len(points))
	for i, p := range points {
		truth[i] = d.Field.Displacement(p)
	}
	worst, gauge, err := alignment.FieldDiscrepancy(points, displacements, truth)
	if err != nil {
		return RecoveryReport{}, err
	}
	diff := make([]geometry.Point2D, len(points))
	for i := range points {
		diff[i] = displacements[i].Sub(truth[i])
	}
	return RecoveryReport{Max: worst, Mean: alignment.MeanError(points, diff, gauge)}, nil
}
