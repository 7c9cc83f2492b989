// Package alignment fits affine transforms between point sets. It is used to
// compare a recovered lens field with a reference one, which agree only up to
// an affine gauge shared with the tile transforms.
package alignment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"meshlens/pkg/geometry"
)

// FitAffine computes the least-squares affine transform mapping src onto dst.
func FitAffine(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	if len(src) != len(dst) {
		return geometry.AffineTransform{}, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	n := len(src)
	if n < 3 {
		return geometry.AffineTransform{}, fmt.Errorf("need at least 3 points, got %d", n)
	}

	// Build overdetermined system
	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, dst[i].X)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, dst[i].Y)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.AffineTransform{}, err
	}

	return geometry.AffineTransform{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}, nil
}

// MeanError returns the mean distance between transform(src[i]) and dst[i].
func MeanError(src, dst []geometry.Point2D, transform geometry.AffineTransform) float64 {
	if len(src) != len(dst) || len(src) == 0 {
		return math.Inf(1)
	}

	var total float64
	for i := range src {
		total += transform.Apply(src[i]).Distance(dst[i])
	}
	return total / float64(len(src))
}

// MaxError returns the largest distance between transform(src[i]) and dst[i].
func MaxError(src, dst []geometry.Point2D, transform geometry.AffineTransform) float64 {
	if len(src) != len(dst) || len(src) == 0 {
		return math.Inf(1)
	}

	var worst float64
	for i := range src {
		worst = math.Max(worst, transform.Apply(src[i]).Distance(dst[i]))
	}
	return worst
}

// FieldDiscrepancy compares two displacement fields sampled at the same points
// modulo an affine map: it fits L to a - b and returns the largest remaining
// difference.
func FieldDiscrepancy(points, a, b []geometry.Point2D) (float64, geometry.AffineTransform, error) {
	if len(points) != len(a) || len(points) != len(b) {
		return 0, geometry.AffineTransform{}, fmt.Errorf("field sizes differ: %d points, %d and %d values", len(points), len(a), len(b))
	}
	diff := make([]geometry.Point2D, len(points))
	for i := range points {
		diff[i] = a[i].Sub(b[i])
	}
	l, err := FitAffine(points, diff)
	if err != nil {
		return 0, geometry.AffineTransform{}, err
	}
	return MaxError(points, diff, l), l, nil
}
