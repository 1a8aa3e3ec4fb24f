package metrics

import "github.com/san-kum/contactsim/internal/sim"

// ALSteps totals the penalty escalations of a run.
type ALSteps struct {
	name  string
	total int
}

func NewALSteps() *ALSteps {
	return &ALSteps{name: "al_steps"}
}

func (a *ALSteps) Name() string                       { return a.name }
func (a *ALSteps) Observe(step sim.Step, _ sim.State) { a.total += step.ALSteps }
func (a *ALSteps) Value() float64                     { return float64(a.total) }
func (a *ALSteps) Reset()                             { a.total = 0 }

// NewtonIterations averages the Newton iterations per step.
type NewtonIterations struct {
	name    string
	total   int
	samples int
}

func NewNewtonIterations() *NewtonIterations {
	return &NewtonIterations{name: "newton_iterations"}
}

func (n *NewtonIterations) Name() string { return n.name }

func (n *NewtonIterations) Observe(step sim.Step, _ sim.State) {
	n.total += step.NewtonIterations
	n.samples++
}

func (n *NewtonIterations) Value() float64 {
	if n.samples == 0 {
		return 0
	}
	return float64(n.total) / float64(n.samples)
}

func (n *NewtonIterations) Reset() {
	n.total = 0
	n.samples = 0
}

// Default returns the metrics the CLI attaches to every run.
func Default() []sim.Metric {
	return []sim.Metric{NewEnergy(), NewMinDistance(), NewMaxContacts(), NewPeakVertexContact(), NewALSteps(), NewNewtonIterations()}
}
