package integrators

import "fmt"

const (
	DefaultBeta  = 0.25
	DefaultGamma = 0.5
)

// ImplicitNewmark is the Newmark-β scheme. The defaults give the average
// acceleration (trapezoidal) rule.
type ImplicitNewmark struct {
	state
	Beta  float64
	Gamma float64
}

func NewImplicitNewmark() *ImplicitNewmark {
	return &ImplicitNewmark{Beta: DefaultBeta, Gamma: DefaultGamma}
}

func (n *ImplicitNewmark) Init(x0, v0, a0 []float64, dt float64) error {
	if n.Beta <= 0 || n.Beta > 0.5 {
		return fmt.Errorf("%w: beta %g not in (0,0.5]", ErrParameter, n.Beta)
	}
	if n.Gamma < 0 || n.Gamma > 1 {
		return fmt.Errorf("%w: gamma %g not in [0,1]", ErrParameter, n.Gamma)
	}
	return n.init(x0, v0, a0, dt)
}

// XTilde is x + dt·v + dt²·(½−β)·a.
func (n *ImplicitNewmark) XTilde() []float64 {
	c := n.dt * n.dt * (0.5 - n.Beta)
	out := make([]float64, len(n.x))
	for i := range out {
		out[i] = n.x[i] + n.dt*n.v[i] + c*n.a[i]
	}
	return out
}

func (n *ImplicitNewmark) AccelerationScaling() float64 { return n.Beta * n.dt * n.dt }

func (n *ImplicitNewmark) Update(x []float64) {
	xTilde := n.XTilde()
	s := n.AccelerationScaling()
	for i := range x {
		a := (x[i] - xTilde[i]) / s
		n.v[i] += n.dt * ((1-n.Gamma)*n.a[i] + n.Gamma*a)
		n.a[i] = a
		n.x[i] = x[i]
	}
}
