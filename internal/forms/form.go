// Package forms defines the weighted energy terms that make up the
// objective, their optional capabilities and the composite that sums them.
//
// Every form evaluates on the full displacement vector. Weights are applied
// by the Composite, never by the form itself.
package forms

import (
	"errors"

	"github.com/san-kum/contactsim/internal/sparse"
)

var (
	ErrUnknownEnergy = errors.New("forms: unknown energy")
	ErrWeights       = errors.New("forms: weight list does not match forms")
	ErrParameter     = errors.New("forms: invalid parameter")
)

// Form is one additive term of the objective.
type Form interface {
	Name() string
	Value(x []float64) float64
	Gradient(x []float64) []float64
	Hessian(x []float64) *sparse.Matrix

	Weight() float64
	SetWeight(w float64)
	Enabled() bool
	Enable()
	Disable()
}

// Initializer rebuilds internal caches for a new solve.
type Initializer interface {
	Init(x []float64)
}

// StepValidator rejects configurations the form cannot evaluate, such as
// inverted elements.
type StepValidator interface {
	IsStepValid(x0, x1 []float64) bool
}

// StepLimiter bounds the admissible line-search step from x0 towards x1.
type StepLimiter interface {
	MaxStepSize(x0, x1 []float64) (float64, error)
}

// LineSearcher is told when a line-search episode starts and ends.
type LineSearcher interface {
	LineSearchBegin(x0, x1 []float64)
	LineSearchEnd()
}

type CollisionChecker interface {
	IsStepCollisionFree(x0, x1 []float64) bool
}

type SolutionObserver interface {
	SolutionChanged(x []float64)
}

// PostStepper runs after an accepted time step.
type PostStepper interface {
	PostStep(x []float64)
}

// QuantityUpdater refreshes time-dependent coefficients.
type QuantityUpdater interface {
	UpdateQuantities(t float64, x []float64)
}

// StiffnessAdapter chooses its own weight from the gradient of the
// remaining energy.
type StiffnessAdapter interface {
	UpdateBarrierStiffness(x, gradEnergy []float64)
}

// Base carries the weight and enable flag shared by all forms.
type Base struct {
	weight   float64
	disabled bool
}

// NewBase returns an enabled base with weight 1.
func NewBase() Base { return Base{weight: 1} }

func (b *Base) Weight() float64     { return b.weight }
func (b *Base) SetWeight(w float64) { b.weight = w }
func (b *Base) Enabled() bool       { return !b.disabled }
func (b *Base) Enable()             { b.disabled = false }
func (b *Base) Disable()            { b.disabled = true }
