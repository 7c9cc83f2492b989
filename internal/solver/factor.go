package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"meshlens/pkg/lenserr"
)

// Factorization is the Cholesky factor of K = AᵀWA + Reg. One factorization
// serves both spatial channels.
type Factorization struct {
	chol mat.Cholesky
	n    int
}

// NormalMatrix forms AᵀWA + diag(reg) as a dense symmetric matrix.
func NormalMatrix(sys *System, reg []float64) *mat.SymDense {
	n := sys.Layout.Size()
	data := make([]float64, n*n)
	for r := 0; r < sys.A.Rows(); r++ {
		cols, vals := sys.A.Row(r)
		w := sys.W[r]
		for i, ci := range cols {
			wi := w * vals[i]
			row := data[ci*n:]
			for j, cj := range cols {
				row[cj] += wi * vals[j]
			}
		}
	}
	for i, v := range reg {
		data[i*n+i] += v
	}
	return mat.NewSymDense(n, data)
}

// Factorize builds and factors the normal matrix. A matrix that is not
// positive definite is UNDERCONSTRAINED_SYSTEM.
func Factorize(sys *System, reg []float64) (*Factorization, error) {
	n := sys.Layout.Size()
	if len(reg) != n {
		return nil, lenserr.New(lenserr.CodeInternal, "regularization has %d entries for %d unknowns", len(reg), n)
	}
	f := &Factorization{n: n}
	if ok := f.chol.Factorize(NormalMatrix(sys, reg)); !ok {
		return nil, lenserr.New(lenserr.CodeUnderconstrained,
			"normal matrix of %d unknowns is not positive definite", n)
	}
	return f, nil
}

// Size returns the number of unknowns.
func (f *Factorization) Size() int { return f.n }

// Cond returns the estimated condition number of K.
func (f *Factorization) Cond() float64 { return f.chol.Cond() }

// Solve back-substitutes one right-hand side.
func (f *Factorization) Solve(rhs []float64) ([]float64, error) {
	if len(rhs) != f.n {
		return nil, lenserr.New(lenserr.CodeInternal, "right-hand side has %d entries for %d unknowns", len(rhs), f.n)
	}
	var x mat.VecDense
	if err := f.chol.SolveVecTo(&x, mat.NewVecDense(f.n, append([]float64(nil), rhs...))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, lenserr.Wrap(lenserr.CodeUnderconstrained, err, "normal matrix is ill-conditioned")
		}
		return nil, lenserr.Wrap(lenserr.CodeInternal, err, "back-substitution failed")
	}
	out := make([]float64, f.n)
	for i := range out {
		v := x.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, lenserr.New(lenserr.CodeUnderconstrained, "solution has a non-finite entry at %d", i)
		}
		out[i] = v
	}
	return out, nil
}

// SolveChannels solves K·x = Reg·x0 for both channels with one factorization.
func SolveChannels(f *Factorization, sys *System, reg []float64) ([]float64, []float64, error) {
	x, err := f.Solve(RightHandSide(reg, sys.X0X))
	if err != nil {
		return nil, nil, err
	}
	y, err := f.Solve(RightHandSide(reg, sys.X0Y))
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
