package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/shaderbind/engine/assets/loaders"
	"github.com/spaghettifunk/shaderbind/engine/core"
	"github.com/spaghettifunk/shaderbind/engine/renderer/metadata"
)

var ErrClosed = errors.New("asset manager already closed")

type AssetInfo struct {
	Path       string
	Type       metadata.ResourceType
	LastLoaded time.Time
}

type ChangeKind uint8

const (
	AssetChanged ChangeKind = iota
	AssetRemoved
)

func (k ChangeKind) String() string {
	if k == AssetRemoved {
		return "removed"
	}
	return "changed"
}

/** @brief Notification sent to change handlers when a watched asset changes. */
type AssetEvent struct {
	Kind  ChangeKind
	Asset AssetInfo
}

type ChangeHandler func(AssetEvent)

/**
 * @brief Indexes the reflection, shader source and binary assets of a
 * directory and, when watching, keeps the index current and notifies
 * handlers of changes.
 */
type AssetManager struct {
	assets  map[string]AssetInfo
	loaders map[metadata.ResourceType]Loader

	mutex sync.RWMutex

	handlersMu sync.Mutex
	handlers   []ChangeHandler

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
	isClosed bool
}

func NewAssetManager() *AssetManager {
	am := &AssetManager{
		assets:  make(map[string]AssetInfo),
		loaders: make(map[metadata.ResourceType]Loader),
	}

	// Register loaders
	am.registerLoader(metadata.ResourceTypeReflection, &loaders.ReflectionLoader{})
	am.registerLoader(metadata.ResourceTypeShaderSource, &loaders.WGSLLoader{})
	am.registerLoader(metadata.ResourceTypeBinary, &loaders.BinaryLoader{})

	return am
}

// Initialize indexes every asset below assetsDir and, when watch is set,
// starts following changes to it.
func (am *AssetManager) Initialize(assetsDir string, watch bool) error {
	if !watch {
		return am.walk(assetsDir, nil)
	}

	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = fsWatch
	am.done = make(chan struct{})
	am.stopped = make(chan struct{})

	if err := am.walk(assetsDir, am.fsnotify.Add); err != nil {
		am.fsnotify.Close()
		am.fsnotify = nil
		return err
	}

	go am.start()
	core.LogInfo("watching assets in %s", assetsDir)
	return nil
}

// Close stops watching. The index stays readable.
func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return ErrClosed
	}
	am.isClosed = true
	am.mutex.Unlock()

	if am.fsnotify == nil {
		return nil
	}
	close(am.done)
	<-am.stopped
	return nil
}

// OnChange registers a handler called from the watcher goroutine for every
// created, modified or removed asset.
func (am *AssetManager) OnChange(handler ChangeHandler) {
	am.handlersMu.Lock()
	defer am.handlersMu.Unlock()
	am.handlers = append(am.handlers, handler)
}

// Register loaders for each asset type
func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Assets returns the indexed assets sorted by path.
func (am *AssetManager) Assets() []AssetInfo {
	am.mutex.RLock()
	defer am.mutex.RUnlock()

	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Load an asset using the appropriate loader
func (am *AssetManager) LoadAsset(path string, params interface{}) (*metadata.Resource, error) {
	path = filepath.Clean(path)

	am.mutex.Lock()
	asset, exists := am.assets[path]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[path] = asset
	}
	am.mutex.Unlock()
	if !exists {
		return nil, fmt.Errorf("asset %s: %w", path, core.ErrNotFound)
	}

	loader, loaderExists := am.loaders[asset.Type]
	if !loaderExists {
		return nil, fmt.Errorf("no loader registered for asset type: %s", asset.Type)
	}

	return loader.Load(path, asset.Type, params)
}

// LoadReflection loads a reflection or shader source asset and returns the
// program reflection it describes.
func (am *AssetManager) LoadReflection(path string) (*metadata.ProgramReflection, error) {
	res, err := am.LoadAsset(path, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := am.UnloadAsset(res); err != nil {
			core.LogWarn("failed to unload asset %s: %s", path, err)
		}
	}()
	reflection, ok := res.Reflection()
	if !ok {
		return nil, fmt.Errorf("asset %s of type %s carries no reflection", path, res.Type)
	}
	return reflection, nil
}

func (am *AssetManager) UnloadAsset(asset *metadata.Resource) error {
	loader, ok := am.loaders[asset.Type]
	if !ok {
		return nil
	}
	return loader.Unload(asset)
}

func (am *AssetManager) start() {
	defer close(am.stopped)
	for {
		select {

		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())

		case <-am.done:
			am.fsnotify.Close()
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	path := filepath.Clean(e.Name)

	s, err := os.Stat(path)
	if err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := am.walk(path, am.fsnotify.Add); err != nil {
				core.LogWarn("failed to watch %s: %s", path, err)
			}
		}
		return
	}

	// Handle create or modify events
	if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
		if info, ok := am.indexFile(path); ok {
			am.notify(AssetEvent{Kind: AssetChanged, Asset: info})
		}
	}
	if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
		if info, ok := am.removeAsset(path); ok {
			am.notify(AssetEvent{Kind: AssetRemoved, Asset: info})
		}
	}
}

func (am *AssetManager) notify(e AssetEvent) {
	am.handlersMu.Lock()
	handlers := append([]ChangeHandler(nil), am.handlers...)
	am.handlersMu.Unlock()

	core.LogDebug("asset %s %s", e.Asset.Path, e.Kind)
	for _, h := range handlers {
		h(e)
	}
}

// walk indexes every file below root and calls addDir for each directory.
func (am *AssetManager) walk(root string, addDir func(string) error) error {
	return filepath.Walk(root, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if addDir != nil {
				return addDir(walkPath)
			}
			return nil
		}
		am.indexFile(filepath.Clean(walkPath))
		return nil
	})
}

// Handle the creation or modification of a file
func (am *AssetManager) indexFile(path string) (AssetInfo, bool) {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return AssetInfo{}, false
	}

	am.mutex.Lock()
	defer am.mutex.Unlock()

	info := am.assets[path]
	info.Path = path
	info.Type = assetType
	am.assets[path] = info
	return info, true
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) (AssetInfo, bool) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	info, ok := am.assets[path]
	delete(am.assets, path)
	return info, ok
}

func determineAssetType(path string) metadata.ResourceType {
	switch filepath.Ext(path) {
	case ".toml":
		return metadata.ResourceTypeReflection
	case ".wgsl":
		return metadata.ResourceTypeShaderSource
	case ".spv":
		return metadata.ResourceTypeBinary
	default:
		return metadata.ResourceTypeNone
	}
}
