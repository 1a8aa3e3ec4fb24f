package metrics

import (
	"math"

	"github.com/san-kum/contactsim/internal/sim"
)

// MinDistance is the smallest active separation seen over a run, -1 when
// no step had active contacts.
type MinDistance struct {
	name string
	min  float64
}

func NewMinDistance() *MinDistance {
	return &MinDistance{name: "min_distance", min: math.Inf(1)}
}

func (m *MinDistance) Name() string { return m.name }

func (m *MinDistance) Observe(step sim.Step, _ sim.State) {
	if step.MinDistance >= 0 {
		m.min = math.Min(m.min, step.MinDistance)
	}
}

func (m *MinDistance) Value() float64 {
	if math.IsInf(m.min, 1) {
		return -1
	}
	return m.min
}

func (m *MinDistance) Reset() { m.min = math.Inf(1) }

// MaxContacts is the largest active constraint count seen over a run.
type MaxContacts struct {
	name string
	max  int
}

func NewMaxContacts() *MaxContacts {
	return &MaxContacts{name: "max_contacts"}
}

func (m *MaxContacts) Name() string { return m.name }

func (m *MaxContacts) Observe(step sim.Step, _ sim.State) {
	if step.Contacts > m.max {
		m.max = step.Contacts
	}
}

func (m *MaxContacts) Value() float64 { return float64(m.max) }
func (m *MaxContacts) Reset()         { m.max = 0 }

// PeakVertexContact is the largest per-vertex contact energy seen over a
// run.
type PeakVertexContact struct {
	name string
	peak float64
}

func NewPeakVertexContact() *PeakVertexContact {
	return &PeakVertexContact{name: "peak_vertex_contact"}
}

func (m *PeakVertexContact) Name() string { return m.name }

func (m *PeakVertexContact) Observe(step sim.Step, _ sim.State) {
	m.peak = math.Max(m.peak, step.PeakVertexContact)
}

func (m *PeakVertexContact) Value() float64 { return m.peak }
func (m *PeakVertexContact) Reset()         { m.peak = 0 }
