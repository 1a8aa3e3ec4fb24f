package forms

import (
	"fmt"
	"math"

	"github.com/san-kum/contactsim/internal/sparse"
)

// Composite is an ordered weighted sum of forms. Disabled forms and forms
// with zero weight contribute nothing.
type Composite struct {
	forms []Form
}

func NewComposite(forms ...Form) *Composite {
	return &Composite{forms: forms}
}

func (c *Composite) Add(f Form)    { c.forms = append(c.forms, f) }
func (c *Composite) Forms() []Form { return c.forms }
func (c *Composite) Len() int      { return len(c.forms) }

func (c *Composite) active() []Form {
	out := make([]Form, 0, len(c.forms))
	for _, f := range c.forms {
		if f.Enabled() && f.Weight() != 0 {
			out = append(out, f)
		}
	}
	return out
}

func (c *Composite) Value(x []float64) float64 {
	v := 0.0
	for _, f := range c.active() {
		v += f.Weight() * f.Value(x)
	}
	return v
}

func (c *Composite) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for _, f := range c.active() {
		w := f.Weight()
		for i, gi := range f.Gradient(x) {
			g[i] += w * gi
		}
	}
	return g
}

// Hessian sums the enabled Hessians. Patterns may differ between forms.
func (c *Composite) Hessian(x []float64) (*sparse.Matrix, error) {
	h := sparse.Zero(len(x), len(x))
	for _, f := range c.active() {
		var err error
		h, err = h.AddScaled(f.Weight(), f.Hessian(x))
		if err != nil {
			return nil, fmt.Errorf("form %s: %w", f.Name(), err)
		}
	}
	return h, nil
}

// Weights snapshots the current weight of every form.
func (c *Composite) Weights() []float64 {
	w := make([]float64, len(c.forms))
	for i, f := range c.forms {
		w[i] = f.Weight()
	}
	return w
}

func (c *Composite) SetWeights(w []float64) error {
	if len(w) != len(c.forms) {
		return fmt.Errorf("%w: got %d weights for %d forms", ErrWeights, len(w), len(c.forms))
	}
	for i, f := range c.forms {
		f.SetWeight(w[i])
	}
	return nil
}

// IsFinite reports whether every component of v is finite.
func IsFinite(v ...float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
