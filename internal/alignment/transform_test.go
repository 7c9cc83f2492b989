package alignment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshlens/pkg/geometry"
)

func TestFitAffineRecoversTransform(t *testing.T) {
	want := geometry.AffineTransform{A: 1.02, B: -0.05, TX: 12, C: 0.04, D: 0.97, TY: -3}
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 80}, {X: 100, Y: 80}, {X: 37, Y: 52}}
	dst := make([]geometry.Point2D, len(src))
	for i, p := range src {
		dst[i] = want.Apply(p)
	}

	got, err := FitAffine(src, dst)
	require.NoError(t, err)
	assert.InDelta(t, want.A, got.A, 1e-9)
	assert.InDelta(t, want.B, got.B, 1e-9)
	assert.InDelta(t, want.TX, got.TX, 1e-9)
	assert.InDelta(t, want.C, got.C, 1e-9)
	assert.InDelta(t, want.D, got.D, 1e-9)
	assert.InDelta(t, want.TY, got.TY, 1e-9)
	assert.InDelta(t, 0, MeanError(src, dst, got), 1e-9)
}

func TestFitAffineRejects(t *testing.T) {
	_, err := FitAffine([]geometry.Point2D{{}, {}}, []geometry.Point2D{{}, {}})
	assert.Error(t, err)
	_, err = FitAffine([]geometry.Point2D{{}, {}, {}}, []geometry.Point2D{{}})
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	src := []geometry.Point2D{{X: 0, Y: 0}, {X: 1, Y: 0}}
	dst := []geometry.Point2D{{X: 3, Y: 4}, {X: 1, Y: 1}}
	assert.InDelta(t, 3, MeanError(src, dst, geometry.Identity()), 1e-12)
	assert.InDelta(t, 5, MaxError(src, dst, geometry.Identity()), 1e-12)
	assert.True(t, math.IsInf(MeanError(nil, nil, geometry.Identity()), 1))
}

func TestFieldDiscrepancyIgnoresAffineGauge(t *testing.T) {
	points := []geometry.Point2D{{X: 0, Y: 0}, {X: 50, Y: 0}, {X: 0, Y: 50}, {X: 50, Y: 50}, {X: 20, Y: 30}}
	gauge := geometry.AffineTransform{A: 0.01, B: 0.002, TX: 1.5, C: -0.003, D: 0.02, TY: -0.7}
	a := make([]geometry.Point2D, len(points))
	b := make([]geometry.Point2D, len(points))
	for i, p := range points {
		b[i] = geometry.Point2D{X: 1e-4 * p.X * p.Y, Y: 0}
		a[i] = b[i].Add(gauge.Apply(p))
	}

	worst, l, err := FieldDiscrepancy(points, a, b)
	require.NoError(t, err)
	assert.Less(t, worst, 1e-9)
	assert.InDelta(t, gauge.TX, l.TX, 1e-9)

	a[4] = a[4].Add(geometry.Point2D{X: 1})
	worst, _, err = FieldDiscrepancy(points, a, b)
	require.NoError(t, err)
	assert.Greater(t, worst, 0.1)
}
