package scenario

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/san-kum/particlesim/internal/config"
	"github.com/san-kum/particlesim/internal/grid"
)

// RunFile executes a Lua scene script. See RunString for the API.
func RunFile(path string, cfg config.ScenarioConfig, bounds grid.Bounds, log *zap.Logger) (*Scene, error) {
	return run(cfg, bounds, log, func(vm *lua.LState) error {
		if err := vm.DoFile(path); err != nil {
			return fmt.Errorf("run %s: %w", path, err)
		}
		return nil
	})
}

// RunString executes a Lua scene script held in memory. Scripts see:
//
//	WORLD      table {min_x, min_y, max_x, max_y}
//	PARTICLES  the configured particle count
//	SEED       the configured seed
//	layer(name [, parent])
//	particle{x=, y=, vx=, vy=, mass=, layer=, static=, color=,
//	         temperature=, freezing=, boiling=}  returns an index
//	bind(i, j)
func RunString(src string, cfg config.ScenarioConfig, bounds grid.Bounds, log *zap.Logger) (*Scene, error) {
	return run(cfg, bounds, log, func(vm *lua.LState) error {
		if err := vm.DoString(src); err != nil {
			return fmt.Errorf("run script: %w", err)
		}
		return nil
	})
}

func run(cfg config.ScenarioConfig, bounds grid.Bounds, log *zap.Logger, exec func(*lua.LState) error) (*Scene, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState()
	defer vm.Close()

	s := &Scene{}
	b := &binder{scene: s, log: log}

	w := vm.NewTable()
	w.RawSetString("min_x", lua.LNumber(bounds.MinX))
	w.RawSetString("min_y", lua.LNumber(bounds.MinY))
	w.RawSetString("max_x", lua.LNumber(bounds.MaxX))
	w.RawSetString("max_y", lua.LNumber(bounds.MaxY))
	vm.SetGlobal("WORLD", w)
	vm.SetGlobal("PARTICLES", lua.LNumber(cfg.Particles))
	vm.SetGlobal("SEED", lua.LNumber(cfg.Seed))

	vm.SetGlobal("layer", vm.NewFunction(b.layer))
	vm.SetGlobal("particle", vm.NewFunction(b.particle))
	vm.SetGlobal("bind", vm.NewFunction(b.bind))

	if err := exec(vm); err != nil {
		return nil, err
	}
	log.Debug("scene script loaded",
		zap.Int("particles", len(s.Bodies)),
		zap.Int("layers", len(s.Layers)),
		zap.Int("bonds", len(s.Bonds)))
	return s, nil
}

type binder struct {
	scene *Scene
	log   *zap.Logger
}

func (b *binder) layer(L *lua.LState) int {
	name := L.CheckString(1)
	parent := L.OptString(2, "")
	if b.scene.hasLayer(name) {
		L.ArgError(1, "duplicate layer "+name)
		return 0
	}
	if parent != "" && !b.scene.hasLayer(parent) {
		L.ArgError(2, "unknown parent layer "+parent)
		return 0
	}
	b.scene.Layers = append(b.scene.Layers, LayerSpec{Name: name, Parent: parent})
	return 0
}

func (b *binder) particle(L *lua.LState) int {
	t := L.CheckTable(1)
	body := Body{
		X:             number(t, "x", 0),
		Y:             number(t, "y", 0),
		VX:            number(t, "vx", 0),
		VY:            number(t, "vy", 0),
		Mass:          number(t, "mass", 1),
		Temperature:   number(t, "temperature", 0),
		FreezingPoint: number(t, "freezing", 0),
		BoilingPoint:  number(t, "boiling", 0),
		Static:        lua.LVAsBool(t.RawGetString("static")),
		Color:         uint32(number(t, "color", 0)),
	}
	if l, ok := t.RawGetString("layer").(lua.LString); ok {
		if !b.scene.hasLayer(string(l)) {
			L.ArgError(1, "unknown layer "+string(l))
			return 0
		}
		body.Layer = string(l)
	}
	if body.Mass <= 0 {
		L.ArgError(1, "mass must be positive")
		return 0
	}
	idx := b.scene.add(body)
	L.Push(lua.LNumber(idx + 1))
	return 1
}

func (b *binder) bind(L *lua.LState) int {
	i := L.CheckInt(1) - 1
	j := L.CheckInt(2) - 1
	n := len(b.scene.Bodies)
	if i < 0 || i >= n || j < 0 || j >= n || i == j {
		L.RaiseError("bind: invalid particle pair %d, %d", i+1, j+1)
		return 0
	}
	b.scene.Bonds = append(b.scene.Bonds, [2]int{i, j})
	return 0
}

func number(t *lua.LTable, key string, def float64) float64 {
	if v, ok := t.RawGetString(key).(lua.LNumber); ok {
		return float64(v)
	}
	return def
}
