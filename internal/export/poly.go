package export

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"meshlens/pkg/geometry"
	"meshlens/pkg/lenserr"
)

// Polynomial approximates the lens displacement with a bivariate polynomial in
// normalized coordinates u = (x-cx)/s, v = (y-cy)/s. Terms are ordered by total
// degree, then by descending power of u: 1, u, v, u², uv, v², ...
type Polynomial struct {
	Degree int              `json:"degree"`
	Center geometry.Point2D `json:"center"`
	Scale  float64          `json:"scale"`
	CoeffX []float64        `json:"coeff_x"`
	CoeffY []float64        `json:"coeff_y"`
	// RMSError is the fit residual over the sampling grid.
	RMSError float64 `json:"rms_error"`
}

// TermCount returns the number of monomials of total degree at most degree.
func TermCount(degree int) int {
	return (degree + 1) * (degree + 2) / 2
}

func monomials(degree int, u, v float64, out []float64) {
	k := 0
	for d := 0; d <= degree; d++ {
		for j := 0; j <= d; j++ {
			out[k] = math.Pow(u, float64(d-j)) * math.Pow(v, float64(j))
			k++
		}
	}
}

// FitPolynomial least-squares fits a polynomial of the given degree to field,
// sampled on a grid x grid lattice over bounds.
func FitPolynomial(field func(geometry.Point2D) geometry.Point2D, bounds geometry.Rect, degree, grid int) (*Polynomial, error) {
	if degree < 0 {
		return nil, lenserr.New(lenserr.CodeInvalidInput, "polynomial degree %d", degree)
	}
	terms := TermCount(degree)
	if grid < 2 || grid*grid < terms {
		return nil, lenserr.New(lenserr.CodeInvalidInput,
			"a %dx%d grid cannot determine %d polynomial terms", grid, grid, terms)
	}

	p := &Polynomial{
		Degree: degree,
		Center: bounds.Center(),
		Scale:  math.Max(bounds.Width, bounds.Height) / 2,
	}
	if p.Scale == 0 {
		p.Scale = 1
	}

	samples := grid * grid
	design := mat.NewDense(samples, terms, nil)
	values := mat.NewDense(samples, 2, nil)
	row := make([]float64, terms)
	for j := 0; j < grid; j++ {
		for i := 0; i < grid; i++ {
			s := geometry.Point2D{
				X: bounds.X + bounds.Width*float64(i)/float64(grid-1),
				Y: bounds.Y + bounds.Height*float64(j)/float64(grid-1),
			}
			u := s.Sub(p.Center).Scale(1 / p.Scale)
			monomials(degree, u.X, u.Y, row)
			r := j*grid + i
			design.SetRow(r, row)
			d := field(s)
			values.Set(r, 0, d.X)
			values.Set(r, 1, d.Y)
		}
	}

	var qr mat.QR
	qr.Factorize(design)
	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, values); err != nil {
		return nil, lenserr.Wrap(lenserr.CodeInternal, err, "polynomial fit of degree %d", degree)
	}
	p.CoeffX = make([]float64, terms)
	p.CoeffY = make([]float64, terms)
	for k := 0; k < terms; k++ {
		p.CoeffX[k] = coef.At(k, 0)
		p.CoeffY[k] = coef.At(k, 1)
	}

	var sq float64
	for r := 0; r < samples; r++ {
		var fx, fy float64
		for k, m := range design.RawRowView(r) {
			fx += p.CoeffX[k] * m
			fy += p.CoeffY[k] * m
		}
		ex, ey := fx-values.At(r, 0), fy-values.At(r, 1)
		sq += ex*ex + ey*ey
	}
	p.RMSError = math.Sqrt(sq / float64(samples))
	return p, nil
}

// Displacement evaluates the polynomial at p.
func (p *Polynomial) Displacement(pt geometry.Point2D) geometry.Point2D {
	u := pt.Sub(p.Center).Scale(1 / p.Scale)
	row := make([]float64, len(p.CoeffX))
	monomials(p.Degree, u.X, u.Y, row)
	var out geometry.Point2D
	for k, m := range row {
		out.X += p.CoeffX[k] * m
		out.Y += p.CoeffY[k] * m
	}
	return out
}

// Apply maps pt through the lens correction.
func (p *Polynomial) Apply(pt geometry.Point2D) geometry.Point2D {
	return pt.Add(p.Displacement(pt))
}
