package systems

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spaghettifunk/shaderbind/engine/assets"
	"github.com/spaghettifunk/shaderbind/engine/containers"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
	"github.com/spaghettifunk/shaderbind/engine/renderer/program"
)

/** @brief Configuration for the program system. */
type ProgramSystemConfig struct {
	/** @brief The maximum number of programs held in the system. */
	MaxProgramCount uint16
	/** @brief The number of pending reloads kept between two updates. */
	ReloadQueueSize int
	/** @brief Size in bytes of the shader identifiers of compiled kernels. */
	ShaderIdentifierSize uint32
}

/** @brief A registered program and the asset it was loaded from. */
type ProgramEntry struct {
	Name    string
	Path    string
	Version *program.ProgramVersion
}

/**
 * @brief Owns the program versions of the application. Reflection assets are
 * loaded through the asset manager and reloaded on the frame goroutine when
 * they change on disk.
 */
type ProgramSystem struct {
	// This system's configuration.
	Config *ProgramSystemConfig
	// Root signatures shared by every program of the system.
	RootSignatures *program.RootSignatureCache

	compiler     program.KernelCompiler
	assetManager *assets.AssetManager
	jobSystem    *JobSystem

	mu sync.Mutex
	// A lookup table for program name->entry
	lookup map[string]*ProgramEntry
	// A lookup table for asset path->entry
	byPath  map[string]*ProgramEntry
	reloads *containers.RingQueue[string]
}

func NewProgramSystem(config *ProgramSystemConfig, am *assets.AssetManager, js *JobSystem) (*ProgramSystem, error) {
	if config.MaxProgramCount == 0 {
		err := fmt.Errorf("NewProgramSystem - config.MaxProgramCount must be greater than 0")
		core.LogError(err.Error())
		return nil, err
	}
	if config.ReloadQueueSize <= 0 {
		core.LogWarn("NewProgramSystem - config.ReloadQueueSize is %d, using MaxProgramCount.", config.ReloadQueueSize)
		config.ReloadQueueSize = int(config.MaxProgramCount)
	}

	cache := program.NewRootSignatureCache()
	return &ProgramSystem{
		Config:         config,
		RootSignatures: cache,
		compiler:       program.NewDefaultCompiler(cache, config.ShaderIdentifierSize),
		assetManager:   am,
		jobSystem:      js,
		lookup:         make(map[string]*ProgramEntry),
		byPath:         make(map[string]*ProgramEntry),
		reloads:        containers.NewRingQueue[string](config.ReloadQueueSize),
	}, nil
}

/**
 * @brief Shuts down the program system. Registered versions stay usable by
 * vars still holding them.
 */
func (ps *ProgramSystem) Shutdown() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.lookup = make(map[string]*ProgramEntry)
	ps.byPath = make(map[string]*ProgramEntry)
	return nil
}

// Register loads the reflection at path and creates a program version of the
// given kind. The name defaults to the reflection name.
func (ps *ProgramSystem) Register(name string, kind program.ProgramKind, path string) (*program.ProgramVersion, error) {
	reflection, err := ps.assetManager.LoadReflection(path)
	if err != nil {
		return nil, err
	}
	return ps.register(name, kind, path, reflection)
}

// RegisterAll loads the reflections of every configured program on the job
// system and registers them.
func (ps *ProgramSystem) RegisterAll(configs []core.ProgramConfig) error {
	reflections := make([]*metadata.ProgramReflection, len(configs))
	kinds := make([]program.ProgramKind, len(configs))

	tasks := make([]JobTask, len(configs))
	for i, pc := range configs {
		kind, err := program.ProgramKindFromString(pc.Kind)
		if err != nil {
			return fmt.Errorf("program %q: %w", pc.Name, err)
		}
		kinds[i] = kind

		i, path := i, pc.Path
		tasks[i] = JobTask{
			Name: "load " + path,
			OnStart: func() error {
				r, err := ps.assetManager.LoadReflection(path)
				if err != nil {
					return err
				}
				reflections[i] = r
				return nil
			},
		}
	}
	if err := ps.jobSystem.RunAll(tasks); err != nil {
		return err
	}

	for i, pc := range configs {
		if _, err := ps.register(pc.Name, kinds[i], pc.Path, reflections[i]); err != nil {
			return err
		}
	}
	return nil
}

func (ps *ProgramSystem) register(name string, kind program.ProgramKind, path string, reflection *metadata.ProgramReflection) (*program.ProgramVersion, error) {
	if name == "" {
		name = reflection.Name
	}
	p, err := program.NewProgram(kind, reflection)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", name, err)
	}
	p.Name = name

	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exists := ps.lookup[name]; exists {
		return nil, fmt.Errorf("program %q is already registered", name)
	}
	if len(ps.lookup) >= int(ps.Config.MaxProgramCount) {
		return nil, fmt.Errorf("unable to register program %q: limit of %d programs reached", name, ps.Config.MaxProgramCount)
	}

	entry := &ProgramEntry{
		Name:    name,
		Path:    filepath.Clean(path),
		Version: program.NewProgramVersion(p, ps.compiler),
	}
	ps.lookup[name] = entry
	ps.byPath[entry.Path] = entry
	core.LogInfo("registered %s program %q from %s", kind, name, entry.Path)
	return entry.Version, nil
}

// Get returns the version of a registered program.
func (ps *ProgramSystem) Get(name string) (*program.ProgramVersion, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	entry, ok := ps.lookup[name]
	if !ok {
		return nil, fmt.Errorf("program %q: %w", name, core.ErrNotFound)
	}
	return entry.Version, nil
}

// Names returns the registered program names, sorted.
func (ps *ProgramSystem) Names() []string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	names := make([]string, 0, len(ps.lookup))
	for n := range ps.lookup {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// OnAssetEvent queues the reload of the program backed by a changed asset.
// Safe to call from the asset watcher goroutine.
func (ps *ProgramSystem) OnAssetEvent(e assets.AssetEvent) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	entry, ok := ps.byPath[e.Asset.Path]
	if !ok {
		return
	}
	if e.Kind == assets.AssetRemoved {
		core.LogWarn("reflection of program %q was removed, keeping the loaded one", entry.Name)
		return
	}
	if err := ps.reloads.Enqueue(entry.Path); err != nil {
		core.LogWarn("dropping reload of program %q: %s", entry.Name, err)
	}
}

// PendingReloads returns the number of queued reloads.
func (ps *ProgramSystem) PendingReloads() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.reloads.Len()
}

/**
 * @brief Applies queued reloads. Should happen once an update cycle, on the
 * goroutine recording commands. Each reloaded program fires
 * EVENT_CODE_PROGRAM_RELOADED; listeners must recreate their vars.
 * A reflection that fails to load keeps the previous one.
 */
func (ps *ProgramSystem) Update() {
	for {
		ps.mu.Lock()
		path, err := ps.reloads.Dequeue()
		var entry *ProgramEntry
		if err == nil {
			entry = ps.byPath[path]
		}
		ps.mu.Unlock()
		if err != nil {
			return
		}
		if entry == nil {
			continue
		}
		ps.reload(entry)
	}
}

func (ps *ProgramSystem) reload(entry *ProgramEntry) {
	reflection, err := ps.assetManager.LoadReflection(entry.Path)
	if err != nil {
		core.LogError("failed to reload program %q: %s", entry.Name, err)
		return
	}
	if err := reflection.Validate(); err != nil {
		core.LogError("reloaded reflection of program %q is invalid: %s", entry.Name, err)
		return
	}
	entry.Version.Invalidate(reflection)
	core.EventFire(core.EventContext{
		Type: core.EVENT_CODE_PROGRAM_RELOADED,
		Data: &core.ProgramReloadedEvent{Name: entry.Name, Path: entry.Path},
	})
}
