package integrators

type ImplicitEuler struct {
	state
}

func NewImplicitEuler() *ImplicitEuler {
	return &ImplicitEuler{}
}

func (e *ImplicitEuler) Init(x0, v0, a0 []float64, dt float64) error {
	return e.init(x0, v0, a0, dt)
}

// XTilde is x + dt·v.
func (e *ImplicitEuler) XTilde() []float64 {
	out := make([]float64, len(e.x))
	for i := range out {
		out[i] = e.x[i] + e.dt*e.v[i]
	}
	return out
}

func (e *ImplicitEuler) AccelerationScaling() float64 { return e.dt * e.dt }

func (e *ImplicitEuler) Update(x []float64) {
	for i := range x {
		v := (x[i] - e.x[i]) / e.dt
		e.a[i] = (v - e.v[i]) / e.dt
		e.v[i] = v
		e.x[i] = x[i]
	}
}
