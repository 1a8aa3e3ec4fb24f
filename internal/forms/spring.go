package forms

import (
	"fmt"
	"math"

	"github.com/san-kum/contactsim/internal/parallel"
	"github.com/san-kum/contactsim/internal/sparse"
)

const minChunk = 256

// SpringForm is a mass-spring network energy ½·k/L₀·(ℓ−L₀)² per edge.
type SpringForm struct {
	Base
	body       *Body
	stiffness  float64
	restLength []float64
	// orientation holds the sign of each cell at rest.
	orientation []float64
}

// NewSpringForm builds the spring energy. params: "stiffness" (k > 0).
func NewSpringForm(body *Body, params map[string]float64) (Form, error) {
	if err := body.Validate(); err != nil {
		return nil, err
	}
	k, ok := params["stiffness"]
	if !ok {
		k = 1
	}
	if k <= 0 || math.IsNaN(k) {
		return nil, fmt.Errorf("%w: stiffness %g", ErrParameter, k)
	}

	f := &SpringForm{Base: NewBase(), body: body, stiffness: k}
	zero := make([]float64, body.Size())
	f.restLength = make([]float64, len(body.Edges))
	for i, e := range body.Edges {
		l := f.length(zero, e)
		if l == 0 {
			return nil, fmt.Errorf("%w: zero rest length edge %v", ErrParameter, e)
		}
		f.restLength[i] = l
	}
	f.orientation = make([]float64, len(body.Cells))
	for i, c := range body.Cells {
		f.orientation[i] = math.Copysign(1, body.SignedMeasure(zero, c))
	}
	return f, nil
}

func (f *SpringForm) Name() string { return "mass_spring" }

func (f *SpringForm) direction(x []float64, e [2]int) ([3]float64, float64) {
	a, b := f.body.position(x, e[0]), f.body.position(x, e[1])
	var d [3]float64
	for i := range d {
		d[i] = b[i] - a[i]
	}
	return d, math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
}

func (f *SpringForm) length(x []float64, e [2]int) float64 {
	_, l := f.direction(x, e)
	return l
}

func (f *SpringForm) Value(x []float64) float64 {
	sums := parallel.NewStorage(func() float64 { return 0 })
	parallel.For(len(f.body.Edges), minChunk, func(start, end, worker int) {
		s := sums.Local(worker)
		for i := start; i < end; i++ {
			l0 := f.restLength[i]
			dl := f.length(x, f.body.Edges[i]) - l0
			s += 0.5 * f.stiffness / l0 * dl * dl
		}
		sums.Set(worker, s)
	})
	v := 0.0
	for _, s := range sums.All() {
		v += s
	}
	return v
}

func (f *SpringForm) Gradient(x []float64) []float64 {
	dim := f.body.Dim
	grads := parallel.NewStorage(func() []float64 { return make([]float64, len(x)) })
	parallel.For(len(f.body.Edges), minChunk, func(start, end, worker int) {
		g := grads.Local(worker)
		for i := start; i < end; i++ {
			e := f.body.Edges[i]
			d, l := f.direction(x, e)
			if l == 0 {
				continue
			}
			c := f.stiffness / f.restLength[i] * (l - f.restLength[i]) / l
			for k := 0; k < dim; k++ {
				g[e[0]*dim+k] -= c * d[k]
				g[e[1]*dim+k] += c * d[k]
			}
		}
	})
	out := make([]float64, len(x))
	for _, g := range grads.All() {
		for i, v := range g {
			out[i] += v
		}
	}
	return out
}

// Hessian uses k/L₀·[nnᵀ + max(0, 1−L₀/ℓ)(I−nnᵀ)] per spring so that
// compressed springs stay positive semidefinite.
func (f *SpringForm) Hessian(x []float64) *sparse.Matrix {
	dim := f.body.Dim
	n := len(x)
	accs := parallel.NewStorage(func() *sparse.Accumulator {
		return sparse.NewAccumulator(n, n, sparse.DefaultFlushThreshold)
	})
	parallel.For(len(f.body.Edges), minChunk, func(start, end, worker int) {
		acc := accs.Local(worker)
		idx := make([]int, 2*dim)
		block := make([]float64, 4*dim*dim)
		for i := start; i < end; i++ {
			e := f.body.Edges[i]
			d, l := f.direction(x, e)
			if l == 0 {
				continue
			}
			l0 := f.restLength[i]
			k := f.stiffness / l0
			s := math.Max(0, 1-l0/l)
			for a := 0; a < dim; a++ {
				idx[a] = e[0]*dim + a
				idx[dim+a] = e[1]*dim + a
			}
			for a := 0; a < dim; a++ {
				for b := 0; b < dim; b++ {
					nn := d[a] * d[b] / (l * l)
					h := nn
					if a == b {
						h += s * (1 - nn)
					} else {
						h -= s * nn
					}
					h *= k
					w := 2 * dim
					block[a*w+b] = h
					block[(dim+a)*w+dim+b] = h
					block[a*w+dim+b] = -h
					block[(dim+a)*w+b] = -h
				}
			}
			acc.PutBlock(idx, block)
		}
	})
	return sparse.Sum(n, n, accs.All()...)
}

// IsStepValid rejects x1 when any cell flips or degenerates.
func (f *SpringForm) IsStepValid(_, x1 []float64) bool {
	for i, c := range f.body.Cells {
		if f.orientation[i]*f.body.SignedMeasure(x1, c) <= 0 {
			return false
		}
	}
	return true
}
