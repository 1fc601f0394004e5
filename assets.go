package forge

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// AssetID identifies an imported or generated asset file.
type AssetID string

func NewAssetID() AssetID { return AssetID(uuid.NewString()) }

type Asset struct {
	ID      AssetID
	Path    string
	Size    int64
	ModTime time.Time
}

// AssetLibrary indexes the asset directory. A filesystem watcher feeds
// change events into a pending queue; the drain system applies them on
// the update thread so subscribers never race the frame loop.
type AssetLibrary struct {
	dir string
	log Logger

	mu      sync.Mutex
	byID    map[AssetID]*Asset
	byPath  map[string]AssetID
	pending []fsnotify.Event

	watcher *fsnotify.Watcher

	// Changed fires on the update thread for every indexed, refreshed or
	// removed asset.
	Changed Signal[AssetID]
}

func NewAssetLibrary(dir string, log Logger) (*AssetLibrary, error) {
	if log == nil {
		log = NewNopLogger()
	}
	lib := &AssetLibrary{
		dir:    dir,
		log:    log,
		byID:   map[AssetID]*Asset{},
		byPath: map[string]AssetID{},
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	if err := lib.rescan(); err != nil {
		return nil, err
	}
	return lib, nil
}

// rescan indexes every regular file currently in the directory.
func (lib *AssetLibrary) rescan() error {
	entries, err := os.ReadDir(lib.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		lib.index(filepath.Join(lib.dir, e.Name()))
	}
	return nil
}

func (lib *AssetLibrary) index(path string) AssetID {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}

	lib.mu.Lock()
	defer lib.mu.Unlock()

	id, ok := lib.byPath[path]
	if !ok {
		id = NewAssetID()
		lib.byPath[path] = id
	}
	lib.byID[id] = &Asset{
		ID:      id,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	return id
}

func (lib *AssetLibrary) drop(path string) AssetID {
	lib.mu.Lock()
	defer lib.mu.Unlock()

	id, ok := lib.byPath[path]
	if !ok {
		return ""
	}
	delete(lib.byPath, path)
	delete(lib.byID, id)
	return id
}

func (lib *AssetLibrary) Get(id AssetID) (*Asset, bool) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	a, ok := lib.byID[id]
	return a, ok
}

func (lib *AssetLibrary) All() []*Asset {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	out := make([]*Asset, 0, len(lib.byID))
	for _, a := range lib.byID {
		out = append(out, a)
	}
	return out
}

// Import copies nothing; it registers an existing file under the library
// directory and returns its id.
func (lib *AssetLibrary) Import(path string) (AssetID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if id := lib.index(abs); id != "" {
		return id, nil
	}
	return "", os.ErrNotExist
}

// Watch starts the filesystem watcher. Events are queued and applied by
// the drain system, not here.
func (lib *AssetLibrary) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(lib.dir); err != nil {
		w.Close()
		return err
	}
	lib.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				lib.mu.Lock()
				lib.pending = append(lib.pending, ev)
				lib.mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				lib.log.Warnf("asset watcher: %v", err)
			}
		}
	}()
	return nil
}

func (lib *AssetLibrary) Close() error {
	if lib.watcher == nil {
		return nil
	}
	return lib.watcher.Close()
}

// drain applies queued watcher events and reports the affected ids.
func (lib *AssetLibrary) drain() []AssetID {
	lib.mu.Lock()
	events := lib.pending
	lib.pending = nil
	lib.mu.Unlock()

	var changed []AssetID
	for _, ev := range events {
		switch {
		case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
			if id := lib.index(ev.Name); id != "" {
				changed = append(changed, id)
			}
		case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
			if id := lib.drop(ev.Name); id != "" {
				changed = append(changed, id)
			}
		}
	}
	return changed
}

// AssetModule installs the AssetLibrary resource and its drain system.
type AssetModule struct {
	Dir string
}

func (m AssetModule) Install(app *App) {
	dir := m.Dir
	if dir == "" {
		dir = "assets"
	}

	log := app.Logger()
	lib, err := NewAssetLibrary(dir, log)
	if err != nil {
		log.Errorf("asset library: %v", err)
		return
	}
	if err := lib.Watch(); err != nil {
		log.Warnf("asset watcher disabled: %v", err)
	}

	app.AddResources(lib)
	app.OnDispose(func() { lib.Close() })
	app.UseSystem(System(assetDrainSystem).InStage(StagePrelude))
}

func assetDrainSystem(lib *AssetLibrary) {
	for _, id := range lib.drain() {
		lib.Changed.Emit(id)
	}
}
