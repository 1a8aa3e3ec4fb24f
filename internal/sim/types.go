package sim

// State is a full displacement vector.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// Step describes one solved time step (or the single solve of a static
// scene).
type Step struct {
	Index int     `json:"index"`
	Time  float64 `json:"time"`
	// ALSteps counts the penalty escalations the step needed.
	ALSteps          int     `json:"al_steps"`
	NewtonIterations int     `json:"newton_iterations"`
	Energy           float64 `json:"energy"`
	// MinDistance is the smallest active separation, negative without
	// active contacts.
	MinDistance float64 `json:"min_distance"`
	Contacts    int     `json:"contacts"`
	Stiffness   float64 `json:"stiffness"`
	// PeakVertexContact is the largest contact energy carried by a single
	// vertex.
	PeakVertexContact float64 `json:"peak_vertex_contact"`
}

type Metric interface {
	Name() string
	Observe(step Step, x State)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step Step, x State)
}

type Config struct {
	Dt       float64
	Duration float64
	// ForceAL runs at least one penalised solve on the first step.
	ForceAL bool
}

type Result struct {
	States     []State
	Times      []float64
	Steps      []Step
	Metrics    map[string]float64
	StepsTaken int
}
