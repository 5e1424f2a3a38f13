package config

import "sort"

var Presets = map[string]*Config{
	"ring": withScenario(ScenarioConfig{Layout: "ring", Particles: 120, Seed: 1, Mass: 1}, func(c *Config) {
		c.World.G = 0.5
	}),
	"rain": withScenario(ScenarioConfig{Layout: "rain", Particles: 300, Seed: 7, Mass: 1}, func(c *Config) {
		c.World.Radius = 20
	}),
	"binary": withScenario(ScenarioConfig{Layout: "binary", Particles: 80, Seed: 3, Mass: 1}, func(c *Config) {
		c.World.G = 2
		c.World.MaxForce = 50
	}),
	"dense": withScenario(ScenarioConfig{Layout: "random", Particles: 1000, Seed: 42, Mass: 1}, func(c *Config) {
		c.World.Radius = 10
		c.Compute.Capacity = 16384
	}),
	"tiny": withScenario(ScenarioConfig{Layout: "random", Particles: 20, Seed: 1, Mass: 5}, func(c *Config) {
		c.World.MinX, c.World.MinY, c.World.MaxX, c.World.MaxY = -20, -20, 20, 20
		c.Run.Ticks = 100
	}),
}

func withScenario(s ScenarioConfig, tweak func(*Config)) *Config {
	c := DefaultConfig()
	c.Scenario = s
	tweak(c)
	return c
}

// GetPreset returns a copy of the named preset, nil when unknown.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
