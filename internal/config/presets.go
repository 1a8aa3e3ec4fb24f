package config

import "sort"

func preset(scene string, edit func(*Config)) *Config {
	cfg := DefaultConfig()
	cfg.Scene = scene
	edit(cfg)
	return cfg
}

var Presets = map[string]map[string]*Config{
	"two_blocks_2d": {
		"press": preset("two_blocks_2d", func(c *Config) {}),
		"adaptive": preset("two_blocks_2d", func(c *Config) {
			c.Contact.AdaptiveStiffness = true
			c.Contact.MaxStiffness = 1e8
		}),
		"convergent": preset("two_blocks_2d", func(c *Config) {
			c.Contact.Convergent = true
			c.Contact.DMin = 1e-4
		}),
	},
	"drop_2d": {
		"fall": preset("drop_2d", func(c *Config) {
			c.Duration = 0.5
		}),
		"bounce": preset("drop_2d", func(c *Config) {
			c.Duration = 1.0
			c.Contact.AdaptiveStiffness = true
			c.Newton.LineSearch = "more_thuente"
		}),
		"euler": preset("drop_2d", func(c *Config) {
			c.Duration = 0.5
			c.TimeIntegrator = "implicit_euler"
		}),
	},
	"cubes_3d": {
		"press": preset("cubes_3d", func(c *Config) {}),
		"verified": preset("cubes_3d", func(c *Config) {
			c.Contact.VerifyStepSize = true
			c.Contact.BroadPhase = "brute_force"
		}),
	},
}

// GetPreset returns a copy of the named preset, nil when there is none.
func GetPreset(scene, name string) *Config {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	cfg, ok := scenePresets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(scene string) []string {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenePresets))
	for name := range scenePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
