package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/contactsim/internal/alsolver"
	"github.com/san-kum/contactsim/internal/collision"
	"github.com/san-kum/contactsim/internal/contact"
	"github.com/san-kum/contactsim/internal/forms"
	"github.com/san-kum/contactsim/internal/integrators"
	"github.com/san-kum/contactsim/internal/minimizer"
	"github.com/san-kum/contactsim/internal/scene"
	"github.com/san-kum/contactsim/internal/sim"
)

var ErrInvalid = errors.New("config: invalid configuration")

const (
	DefaultScene      = "two_blocks_2d"
	DefaultDt         = 0.01
	DefaultDuration   = 1.0
	DefaultMaterial   = "mass_spring"
	DefaultSpringK    = 10.0
	DefaultDHat       = 0.01
	DefaultStiffness  = 1e5
	DefaultALPenalty  = 1e3
	DefaultIntegrator = "implicit_newmark"
)

type Config struct {
	Scene    string  `yaml:"scene"`
	Dim      int     `yaml:"dim,omitempty"`
	Dt       float64 `yaml:"dt"`
	Duration float64 `yaml:"duration"`
	ForceAL  bool    `yaml:"force_al"`
	Threads  int     `yaml:"threads,omitempty"`

	Material       MaterialConfig `yaml:"material"`
	Contact        ContactConfig  `yaml:"contact"`
	AL             ALConfig       `yaml:"al"`
	Newton         NewtonConfig   `yaml:"newton"`
	TimeIntegrator string         `yaml:"time_integrator"`
	// BodyForce replaces the scene's gravity when set.
	BodyForce []float64 `yaml:"body_force,omitempty"`
}

type MaterialConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

type ContactConfig struct {
	DHat              float64 `yaml:"dhat"`
	DMin              float64 `yaml:"dmin"`
	Stiffness         float64 `yaml:"stiffness"`
	AdaptiveStiffness bool    `yaml:"adaptive_stiffness"`
	MaxStiffness      float64 `yaml:"max_stiffness"`
	Convergent        bool    `yaml:"convergent"`
	BroadPhase        string  `yaml:"broad_phase"`
	VerifyStepSize    bool    `yaml:"verify_step_size"`
	ProjectHessianPSD bool    `yaml:"project_hessian_psd"`
}

type ALConfig struct {
	InitialWeight float64 `yaml:"initial_weight"`
	Scaling       float64 `yaml:"scaling"`
	MaxSteps      int     `yaml:"max_steps"`
	Penalty       float64 `yaml:"penalty"`
}

type NewtonConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	GradTol       float64 `yaml:"grad_tol"`
	StepTol       float64 `yaml:"step_tol"`
	LineSearch    string  `yaml:"line_search"`
	LinearSolver  string  `yaml:"linear_solver"`
}

func DefaultConfig() *Config {
	al := alsolver.DefaultOptions()
	newton := minimizer.DefaultOptions()
	return &Config{
		Scene:    DefaultScene,
		Dt:       DefaultDt,
		Duration: DefaultDuration,
		Material: MaterialConfig{
			Name:   DefaultMaterial,
			Params: map[string]float64{"stiffness": DefaultSpringK},
		},
		Contact: ContactConfig{
			DHat:              DefaultDHat,
			Stiffness:         DefaultStiffness,
			BroadPhase:        collision.HashGrid.String(),
			ProjectHessianPSD: true,
		},
		AL: ALConfig{
			InitialWeight: al.InitialWeight,
			Scaling:       al.Scaling,
			MaxSteps:      al.MaxSteps,
			Penalty:       DefaultALPenalty,
		},
		Newton: NewtonConfig{
			MaxIterations: newton.MaxIterations,
			GradTol:       newton.GradTol,
			StepTol:       newton.StepTol,
			LineSearch:    newton.LineSearch,
			LinearSolver:  newton.LinearSolver,
		},
		TimeIntegrator: DefaultIntegrator,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Material.Params = make(map[string]float64, len(c.Material.Params))
	for k, v := range c.Material.Params {
		out.Material.Params[k] = v
	}
	out.BodyForce = append([]float64(nil), c.BodyForce...)
	return &out
}

func (c *Config) ContactOptions() (contact.Options, error) {
	method, err := collision.ParseMethod(c.Contact.BroadPhase)
	if err != nil {
		return contact.Options{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	opts := contact.DefaultOptions()
	opts.DHat = c.Contact.DHat
	opts.DMin = c.Contact.DMin
	opts.Stiffness = c.Contact.Stiffness
	opts.AdaptiveStiffness = c.Contact.AdaptiveStiffness
	opts.MaxStiffness = c.Contact.MaxStiffness
	opts.Convergent = c.Contact.Convergent
	opts.Method = method
	opts.VerifyStepSize = c.Contact.VerifyStepSize
	opts.ProjectHessianPSD = c.Contact.ProjectHessianPSD
	return opts, nil
}

func (c *Config) ALOptions() alsolver.Options {
	return alsolver.Options{InitialWeight: c.AL.InitialWeight, Scaling: c.AL.Scaling, MaxSteps: c.AL.MaxSteps}
}

func (c *Config) NewtonOptions() minimizer.Options {
	opts := minimizer.DefaultOptions()
	opts.MaxIterations = c.Newton.MaxIterations
	opts.GradTol = c.Newton.GradTol
	opts.StepTol = c.Newton.StepTol
	opts.LineSearch = c.Newton.LineSearch
	if c.Newton.LinearSolver != "" {
		opts.LinearSolver = c.Newton.LinearSolver
	}
	return opts
}

func (c *Config) SimConfig() sim.Config {
	return sim.Config{Dt: c.Dt, Duration: c.Duration, ForceAL: c.ForceAL}
}

// Validate resolves every named component once. Unknown names are errors,
// never replaced by defaults.
func (c *Config) Validate() error {
	sc, err := scene.New(c.Scene)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Dim != 0 && c.Dim != sc.Dim() {
		return fmt.Errorf("%w: scene %s is %dD, config asks for %dD", ErrInvalid, c.Scene, sc.Dim(), c.Dim)
	}
	if !sc.Static {
		if c.Dt <= 0 {
			return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, c.Dt)
		}
		if c.Duration <= 0 {
			return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalid, c.Duration)
		}
		if _, err := integrators.New(c.TimeIntegrator); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	if c.BodyForce != nil && len(c.BodyForce) != sc.Dim() {
		return fmt.Errorf("%w: body force has %d components, scene is %dD", ErrInvalid, len(c.BodyForce), sc.Dim())
	}
	if _, err := forms.NewEnergy(c.Material.Name, sc.Body, c.Material.Params); err != nil {
		return fmt.Errorf("%w: material: %v", ErrInvalid, err)
	}
	if _, err := c.ContactOptions(); err != nil {
		return err
	}
	if c.Contact.DHat <= 0 || c.Contact.Stiffness <= 0 {
		return fmt.Errorf("%w: contact dhat and stiffness must be positive", ErrInvalid)
	}
	if c.AL.Penalty <= 0 {
		return fmt.Errorf("%w: AL penalty must be positive, got %g", ErrInvalid, c.AL.Penalty)
	}
	if err := c.ALOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.NewtonOptions().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Threads < 0 {
		return fmt.Errorf("%w: threads %d", ErrInvalid, c.Threads)
	}
	return nil
}

// SetParam assigns a numeric setting by its dotted yaml path, for example
// "al.scaling" or "material.stiffness". Unknown paths are errors.
func (c *Config) SetParam(key string, v float64) error {
	switch key {
	case "dt":
		c.Dt = v
	case "duration":
		c.Duration = v
	case "contact.dhat":
		c.Contact.DHat = v
	case "contact.dmin":
		c.Contact.DMin = v
	case "contact.stiffness":
		c.Contact.Stiffness = v
	case "contact.max_stiffness":
		c.Contact.MaxStiffness = v
	case "al.initial_weight":
		c.AL.InitialWeight = v
	case "al.scaling":
		c.AL.Scaling = v
	case "al.max_steps":
		c.AL.MaxSteps = int(v)
	case "al.penalty":
		c.AL.Penalty = v
	case "newton.max_iterations":
		c.Newton.MaxIterations = int(v)
	case "newton.grad_tol":
		c.Newton.GradTol = v
	default:
		name, ok := strings.CutPrefix(key, "material.")
		if !ok || name == "" {
			return fmt.Errorf("%w: unknown parameter %q", ErrInvalid, key)
		}
		if c.Material.Params == nil {
			c.Material.Params = make(map[string]float64)
		}
		c.Material.Params[name] = v
	}
	return nil
}

// Setup validates c and builds the simulator setup it describes.
func (c *Config) Setup() (sim.Setup, error) {
	if err := c.Validate(); err != nil {
		return sim.Setup{}, err
	}
	sc, err := scene.New(c.Scene)
	if err != nil {
		return sim.Setup{}, err
	}
	if c.BodyForce != nil {
		sc.Gravity = append([]float64(nil), c.BodyForce...)
	}
	copts, err := c.ContactOptions()
	if err != nil {
		return sim.Setup{}, err
	}
	return sim.Setup{
		Scene:          sc,
		Material:       c.Material.Name,
		MaterialParams: c.Material.Params,
		Contact:        copts,
		AL:             c.ALOptions(),
		ALPenalty:      c.AL.Penalty,
		Newton:         c.NewtonOptions(),
		Integrator:     c.TimeIntegrator,
	}, nil
}
