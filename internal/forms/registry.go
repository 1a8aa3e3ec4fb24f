package forms

import (
	"fmt"
	"sort"
)

// Constructor builds an elastic energy on a body from named parameters.
type Constructor func(body *Body, params map[string]float64) (Form, error)

var registry = map[string]Constructor{
	"mass_spring": NewSpringForm,
}

// Register adds or replaces an energy constructor.
func Register(name string, ctor Constructor) {
	registry[name] = ctor
}

// NewEnergy resolves name once and builds the energy.
func NewEnergy(name string, body *Body, params map[string]float64) (Form, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnergy, name)
	}
	return ctor(body, params)
}

// Energies lists the registered energy names.
func Energies() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
