package metrics

import "github.com/san-kum/contactsim/internal/sim"

// Energy reports the objective value of the last solved step.
type Energy struct {
	name    string
	last    float64
	samples int
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(step sim.Step, _ sim.State) {
	e.last = step.Energy
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.last
}

func (e *Energy) Reset() {
	e.last = 0
	e.samples = 0
}
