package solver

import (
	"math"

	"meshlens/pkg/lenserr"
)

// Regularization weights the prior on each unknown.
type Regularization struct {
	DefaultLambda     float64 `toml:"default_lambda" json:"default_lambda"`
	TranslationFactor float64 `toml:"translation_factor" json:"translation_factor"`
	LensLambda        float64 `toml:"lens_lambda" json:"lens_lambda"`
}

// DefaultRegularization returns the standard weights.
func DefaultRegularization() Regularization {
	return Regularization{
		DefaultLambda:     0.005,
		TranslationFactor: 1e-5,
		LensLambda:        0.005,
	}
}

// Validate rejects negative or non-finite weights.
func (r Regularization) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"default_lambda", r.DefaultLambda},
		{"translation_factor", r.TranslationFactor},
		{"lens_lambda", r.LensLambda},
	} {
		if !(f.v >= 0) || math.IsInf(f.v, 0) {
			return lenserr.New(lenserr.CodeInvalidInput, "regularization %s must be a non-negative number, got %g", f.name, f.v)
		}
	}
	return nil
}

// Regularize returns the diagonal of Reg for the layout: λ on the linear
// affine terms, λ·translation_factor on translations, lens_lambda per vertex.
func Regularize(layout Layout, r Regularization) []float64 {
	reg := make([]float64, layout.Size())
	for t := 0; t < layout.Tiles; t++ {
		c := layout.TileColumn(t)
		reg[c] = r.DefaultLambda
		reg[c+1] = r.DefaultLambda
		reg[c+2] = r.DefaultLambda * r.TranslationFactor
	}
	for v := 0; v < layout.Vertices; v++ {
		reg[layout.VertexColumn(v)] = r.LensLambda
	}
	return reg
}

// RightHandSide returns Reg·x0.
func RightHandSide(reg, x0 []float64) []float64 {
	rhs := make([]float64, len(reg))
	for i := range reg {
		rhs[i] = reg[i] * x0[i]
	}
	return rhs
}
