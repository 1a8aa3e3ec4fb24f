package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/contactsim/internal/collision"
	"github.com/san-kum/contactsim/internal/scene"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultScene, cfg.Scene)
	assert.Greater(t, cfg.Dt, 0.0)
	assert.Greater(t, cfg.Duration, 0.0)
	assert.Equal(t, "cg", cfg.NewtonOptions().LinearSolver)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"unknown scene", func(c *Config) { c.Scene = "pyramid" }},
		{"wrong dimension", func(c *Config) { c.Dim = 3 }},
		{"unknown material", func(c *Config) { c.Material.Name = "neo_hooke" }},
		{"bad material parameter", func(c *Config) { c.Material.Params["stiffness"] = -1 }},
		{"unknown broad phase", func(c *Config) { c.Contact.BroadPhase = "bvh" }},
		{"zero dhat", func(c *Config) { c.Contact.DHat = 0 }},
		{"zero penalty", func(c *Config) { c.AL.Penalty = 0 }},
		{"scaling above one", func(c *Config) { c.AL.Scaling = 2 }},
		{"unknown line search", func(c *Config) { c.Newton.LineSearch = "wolfe" }},
		{"unknown linear solver", func(c *Config) { c.Newton.LinearSolver = "lu" }},
		{"negative threads", func(c *Config) { c.Threads = -2 }},
		{"body force size", func(c *Config) { c.BodyForce = []float64{0, 0, -1} }},
		{"dynamic zero dt", func(c *Config) { c.Scene = "drop_2d"; c.Dt = 0 }},
		{"dynamic unknown integrator", func(c *Config) { c.Scene = "drop_2d"; c.TimeIntegrator = "rk4" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestStaticSceneIgnoresTimeStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dt = 0
	cfg.TimeIntegrator = "unused"
	assert.NoError(t, cfg.Validate())
}

func TestSetup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scene = "drop_2d"
	cfg.BodyForce = []float64{1, -2}
	cfg.Contact.BroadPhase = "brute_force"

	setup, err := cfg.Setup()
	require.NoError(t, err)
	assert.Equal(t, "drop_2d", setup.Scene.Name)
	assert.Equal(t, []float64{1, -2}, setup.Scene.Gravity)
	assert.Equal(t, collision.BruteForce, setup.Contact.Method)
	assert.Equal(t, DefaultALPenalty, setup.ALPenalty)
	assert.Equal(t, DefaultIntegrator, setup.Integrator)

	assert.Equal(t, []float64{0, -scene.DefaultGravity}, scene.Drop2D().Gravity)
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("two_blocks_2d", "adaptive")
	require.NotNil(t, cfg)
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scene: cubes_3d\ndt: 0.02\n"), 0644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cubes_3d", loaded.Scene)
	assert.Equal(t, 0.02, loaded.Dt)
	assert.Equal(t, DefaultMaterial, loaded.Material.Name)
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("drop_2d", "euler")
	require.NotNil(t, cfg)
	assert.Equal(t, "implicit_euler", cfg.TimeIntegrator)

	cfg.Duration = 99
	assert.NotEqual(t, 99.0, GetPreset("drop_2d", "euler").Duration)

	assert.Nil(t, GetPreset("drop_2d", "nonexistent"))
	assert.Nil(t, GetPreset("nonexistent", "fall"))
}

func TestPresetsAreValid(t *testing.T) {
	for sceneName, presets := range Presets {
		for _, name := range ListPresets(sceneName) {
			cfg := presets[name]
			assert.Equal(t, sceneName, cfg.Scene)
			assert.NoError(t, cfg.Validate(), "%s/%s", sceneName, name)
		}
	}
	assert.Nil(t, ListPresets("nonexistent"))
}

func TestSetParam(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.SetParam("al.scaling", 0.25))
	require.NoError(t, cfg.SetParam("al.max_steps", 7))
	require.NoError(t, cfg.SetParam("contact.dhat", 0.02))
	require.NoError(t, cfg.SetParam("material.stiffness", 50))

	assert.Equal(t, 0.25, cfg.AL.Scaling)
	assert.Equal(t, 7, cfg.AL.MaxSteps)
	assert.Equal(t, 0.02, cfg.Contact.DHat)
	assert.Equal(t, 50.0, cfg.Material.Params["stiffness"])

	assert.ErrorIs(t, cfg.SetParam("al.nope", 1), ErrInvalid)
	assert.ErrorIs(t, cfg.SetParam("material.", 1), ErrInvalid)
}
