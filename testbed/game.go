package testbed

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaghettifunk/shaderbind/engine"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
	"github.com/spaghettifunk/shaderbind/engine/renderer/raytracing"
	"github.com/spaghettifunk/shaderbind/engine/renderer/recording"
)

// Program names registered by the configuration.
const (
	SceneProgram      = "scene"
	BlurProgram       = "blur"
	PathTracerProgram = "pathtracer"
)

// The ray-gen record changes every rayGenInterval frames.
const rayGenInterval = 4

type TestGame struct {
	*engine.Game
}

type gameState struct {
	frame uint32

	scene      *program.GraphicsVars
	blur       *program.ComputeVars
	pathTracer *raytracing.RtProgramVars
	stateObj   *raytracing.StateObject
	table      *raytracing.BindingTable

	positions *program.Buffer
	pixels    *program.Buffer
	sceneBVH  *program.Buffer
	output    *program.Buffer
	albedo    []*program.Texture
	sampler   *program.Sampler

	// programs reloaded since the last update
	reloaded map[string]bool
}

func NewTestGame(config *core.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:   "Binder Testbed",
				Config: config,
			},
			State: &gameState{
				reloaded: make(map[string]bool),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil || g.Context == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}
	state := g.state()

	var err error
	if state.positions, err = g.Context.CreateBuffer("positions", 4096); err != nil {
		return err
	}
	if state.pixels, err = g.Context.CreateBuffer("pixels", 64*64*4); err != nil {
		return err
	}
	if state.sceneBVH, err = g.Context.CreateBuffer("scene_bvh", 1<<16); err != nil {
		return err
	}
	if state.output, err = g.Context.CreateBuffer("rt_output", 64*64*16); err != nil {
		return err
	}
	// Textures only have host placeholders. Device backends leave them unbound.
	if _, ok := g.Context.(*recording.Context); ok {
		state.albedo = []*program.Texture{program.NewTexture("albedo_0"), program.NewTexture("albedo_1")}
		state.sampler = program.NewSampler("linear")
	}

	core.EventRegister(core.EVENT_CODE_PROGRAM_RELOADED, g, g.onProgramReloaded)

	for _, name := range []string{SceneProgram, BlurProgram, PathTracerProgram} {
		if err := g.createVars(name); err != nil {
			return err
		}
	}
	return nil
}

// createVars (re)creates the vars of a program after registration or a reload.
func (g *TestGame) createVars(name string) error {
	version, err := g.SystemManager.ProgramSystem.Get(name)
	if err != nil {
		core.LogWarn("program %s is not registered, skipping", name)
		return nil
	}
	state := g.state()

	switch name {
	case SceneProgram:
		if state.scene != nil {
			state.scene.Release(g.Context)
		}
		vars, err := program.NewGraphicsVars(version)
		if err != nil {
			return err
		}
		if err := g.bindScene(vars); err != nil {
			return err
		}
		state.scene = vars
	case BlurProgram:
		if state.blur != nil {
			state.blur.Release(g.Context)
		}
		vars, err := program.NewComputeVars(version)
		if err != nil {
			return err
		}
		if err := g.bindBlur(vars); err != nil {
			return err
		}
		state.blur = vars
	case PathTracerProgram:
		if state.pathTracer != nil {
			state.pathTracer.Release(g.Context)
		}
		vars, err := raytracing.NewRtProgramVars(version, g.ApplicationConfig.Config.Binder)
		if err != nil {
			return err
		}
		if err := g.bindPathTracer(vars); err != nil {
			return err
		}
		state.pathTracer = vars
		state.stateObj = nil
	}
	core.LogInfo("created vars for program %s", name)
	return nil
}

func (g *TestGame) bindScene(vars *program.GraphicsVars) error {
	state := g.state()
	identity := make([]byte, 64)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint32(identity[i*20:], math.Float32bits(1))
	}
	if err := vars.SetVariable("viewProj", identity); err != nil {
		return err
	}
	if err := vars.SetResourceByName("positions", 0, state.positions); err != nil {
		return err
	}
	if state.sampler != nil {
		if err := vars.SetResourceByName("samp", 0, state.sampler); err != nil {
			return err
		}
	}

	material := vars.Reflector().FindRange("material")
	if material < 0 {
		return nil
	}
	for i := uint32(0); i < vars.Reflector().ResourceRange(material).Count; i++ {
		m, err := vars.ParameterBlock.ParameterBlock(material, i)
		if err != nil {
			return err
		}
		if err := m.SetFloat32("roughness", 0.25*float32(i+1)); err != nil {
			return err
		}
		if int(i) < len(state.albedo) {
			if err := m.SetResourceByName("albedo", 0, state.albedo[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *TestGame) bindBlur(vars *program.ComputeVars) error {
	state := g.state()
	if err := vars.SetFloat32("scale", 0.5); err != nil {
		return err
	}
	if err := vars.SetUint32("count", 64*64); err != nil {
		return err
	}
	if err := vars.SetResourceByName("pixels", 0, state.pixels); err != nil {
		return err
	}
	if state.sampler != nil {
		if err := vars.SetResourceByName("tex", 0, state.albedo[0]); err != nil {
			return err
		}
		if err := vars.SetResourceByName("tex_sampler", 0, state.sampler); err != nil {
			return err
		}
	}
	return nil
}

func (g *TestGame) bindPathTracer(vars *raytracing.RtProgramVars) error {
	state := g.state()
	reflection := vars.ProgramVersion().Reflection()

	// rayGen, miss and closestHit by name; every geometry uses the same hit group.
	groups := make(map[string]int, reflection.EntryPointGroupCount())
	for i := 0; i < reflection.EntryPointGroupCount(); i++ {
		groups[reflection.EntryPointGroup(i).Name] = i
	}
	table := raytracing.NewBindingTable(1, 1, 2)
	table.SetRayGen(raytracing.ShaderID{GroupIndex: groups["rayGen"]})
	if err := table.SetMiss(0, raytracing.ShaderID{GroupIndex: groups["miss"]}); err != nil {
		return err
	}
	for geometry := uint32(0); geometry < table.GeometryCount(); geometry++ {
		if err := table.SetHitGroup(0, geometry, raytracing.ShaderID{GroupIndex: groups["closestHit"]}); err != nil {
			return err
		}
	}
	if err := vars.Init(table); err != nil {
		return err
	}
	state.table = table

	if err := vars.SetResourceByName("scene", 0, state.sceneBVH); err != nil {
		return err
	}
	if err := vars.SetResourceByName("output", 0, state.output); err != nil {
		return err
	}
	for geometry := uint32(0); geometry < table.GeometryCount(); geometry++ {
		if hit := vars.HitVars(0, geometry); hit != nil {
			if err := hit.SetUint32("instance", geometry); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.state()
	for name := range state.reloaded {
		if err := g.createVars(name); err != nil {
			return err
		}
		delete(state.reloaded, name)
	}

	state.frame++
	if state.pathTracer != nil && state.frame%rayGenInterval == 0 {
		if err := state.pathTracer.RayGenVars().SetUint32("frameIndex", state.frame); err != nil {
			return err
		}
	}
	if state.blur != nil {
		if err := state.blur.SetFloat32("scale", float32(math.Sin(float64(state.frame)*0.1))); err != nil {
			return err
		}
	}
	return nil
}

func (g *TestGame) Render(ctx program.Context, deltaTime float64) error {
	state := g.state()

	if state.scene != nil {
		if err := state.scene.Apply(ctx, true, nil); err != nil {
			return err
		}
	}
	if state.blur != nil {
		if err := state.blur.DispatchCompute(ctx, [3]uint32{8, 8, 1}); err != nil {
			return err
		}
	}
	if state.pathTracer != nil {
		kernels, err := state.pathTracer.Kernels()
		if err != nil {
			return err
		}
		if state.stateObj == nil || state.stateObj.Kernels() != kernels {
			if state.stateObj, err = raytracing.NewStateObject(kernels); err != nil {
				return err
			}
		}
		if err := state.pathTracer.Apply(ctx, state.stateObj); err != nil {
			return err
		}
	}
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	core.EventUnregister(core.EVENT_CODE_PROGRAM_RELOADED, g)

	if state.scene != nil {
		state.scene.Release(g.Context)
	}
	if state.blur != nil {
		state.blur.Release(g.Context)
	}
	if state.pathTracer != nil {
		state.pathTracer.Release(g.Context)
	}
	for _, buf := range []*program.Buffer{state.positions, state.pixels, state.sceneBVH, state.output} {
		if buf != nil {
			g.Context.DestroyBuffer(buf)
		}
	}

	m := core.MetricsRead()
	core.LogInfo("frames: %d, table binds: %d, root descriptor binds: %d, root constant uploads: %d",
		state.frame, m.DescriptorTableBinds, m.RootDescriptorBinds, m.RootConstantUploads)
	core.LogInfo("shader table rebuilds: %d, skips: %d, specialization hits: %d, misses: %d",
		m.ShaderTableRebuilds, m.ShaderTableSkips, m.SpecializationHits, m.SpecializationMisses)
	return nil
}

func (g *TestGame) onProgramReloaded(context core.EventContext) bool {
	e, ok := context.Data.(*core.ProgramReloadedEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	g.state().reloaded[e.Name] = true
	return false
}
