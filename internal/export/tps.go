package export

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

// ThinPlateSpline maps a point p to p + f(p), where f interpolates the
// displacement at every control point exactly. Coordinates are normalized by
// Center and Scale before the kernel is evaluated.
type ThinPlateSpline struct {
	Sources []geometry.Point2D `json:"sources"`
	Targets []geometry.Point2D `json:"targets"`
	Weights [][2]float64       `json:"weights"`
	// Affine holds the constant, u and v coefficients of the displacement.
	Affine [3][2]float64    `json:"affine"`
	Center geometry.Point2D `json:"center"`
	Scale  float64          `json:"scale"`
}

// kernel is the thin-plate radial basis r² log r, written in r² to avoid a sqrt.
func kernel(r2 float64) float64 {
	if r2 == 0 {
		return 0
	}
	return 0.5 * r2 * math.Log(r2)
}

// FitThinPlateSpline fits the spline through sources[i] -> sources[i] + displacements[i].
// Both channels share one LU factorization.
func FitThinPlateSpline(sources, displacements []geometry.Point2D) (*ThinPlateSpline, error) {
	n := len(sources)
	if n != len(displacements) {
		return nil, lenserr.New(lenserr.CodeInternal, "%d control points with %d displacements", n, len(displacements))
	}
	if n < 3 {
		return nil, lenserr.New(lenserr.CodeInvalidInput, "thin-plate spline needs 3 control points, got %d", n)
	}

	bounds := geometry.BoundingBox(sources)
	t := &ThinPlateSpline{
		Sources: append([]geometry.Point2D(nil), sources...),
		Targets: make([]geometry.Point2D, n),
		Weights: make([][2]float64, n),
		Center:  bounds.Center(),
		Scale:   math.Max(bounds.Width, bounds.Height) / 2,
	}
	if t.Scale == 0 {
		t.Scale = 1
	}
	for i := range sources {
		t.Targets[i] = sources[i].Add(displacements[i])
	}

	u := make([]geometry.Point2D, n)
	for i, s := range sources {
		u[i] = t.normalize(s)
	}

	size := n + 3
	system := mat.NewDense(size, size, nil)
	rhs := mat.NewDense(size, 2, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx, dy := u[i].X-u[j].X, u[i].Y-u[j].Y
			k := kernel(dx*dx + dy*dy)
			system.Set(i, j, k)
			system.Set(j, i, k)
		}
		system.Set(i, n, 1)
		system.Set(i, n+1, u[i].X)
		system.Set(i, n+2, u[i].Y)
		system.Set(n, i, 1)
		system.Set(n+1, i, u[i].X)
		system.Set(n+2, i, u[i].Y)
		rhs.Set(i, 0, displacements[i].X)
		rhs.Set(i, 1, displacements[i].Y)
	}

	var lu mat.LU
	lu.Factorize(system)
	var sol mat.Dense
	if err := lu.SolveTo(&sol, false, rhs); err != nil {
		return nil, lenserr.Wrap(lenserr.CodeInternal, err, "thin-plate spline system of %d control points", n)
	}
	for i := 0; i < n; i++ {
		t.Weights[i] = [2]float64{sol.At(i, 0), sol.At(i, 1)}
	}
	for k := 0; k < 3; k++ {
		t.Affine[k] = [2]float64{sol.At(n+k, 0), sol.At(n+k, 1)}
	}
	return t, nil
}

func (t *ThinPlateSpline) normalize(p geometry.Point2D) geometry.Point2D {
	return p.Sub(t.Center).Scale(1 / t.Scale)
}

// Displacement evaluates f(p).
func (t *ThinPlateSpline) Displacement(p geometry.Point2D) geometry.Point2D {
	q := t.normalize(p)
	dx := t.Affine[0][0] + t.Affine[1][0]*q.X + t.Affine[2][0]*q.Y
	dy := t.Affine[0][1] + t.Affine[1][1]*q.X + t.Affine[2][1]*q.Y
	for i, s := range t.Sources {
		u := t.normalize(s)
		ex, ey := q.X-u.X, q.Y-u.Y
		k := kernel(ex*ex + ey*ey)
		dx += t.Weights[i][0] * k
		dy += t.Weights[i][1] * k
	}
	return geometry.Point2D{X: dx, Y: dy}
}

// Apply maps p through the lens correction.
func (t *ThinPlateSpline) Apply(p geometry.Point2D) geometry.Point2D {
	return p.Add(t.Displacement(p))
}
