package plugin

import (
	"context"
	"fmt"
	goplugin "plugin"
	"sort"
	"time"

	"github.com/pdaltagent/pdgateway/internal/infrastructure/logger"
)

// RegisterFunc is the symbol a loadable plugin .so exports: "Register",
// a func(*Host) error invoked on load and on every reload.
const RegisterFunc = "Register"

type loadedFile struct {
	path    string
	modTime time.Time
}

// Watch polls dir for *.so plugin files and (re)loads any whose mtime has
// changed since the last poll, calling each file's exported Register
// symbol against h. Go's plugin package has no unload, and plugin.Open
// returns the already-opened plugin for a path it has seen before, so a
// changed file at the same path runs the Register symbol of its first
// load again; code changed in that file is not picked up within the
// process. Re-registering under the same name replaces the chain entry
// in place (Host.Register already does this).
//
// Watch blocks until ctx is cancelled. Call it in its own goroutine.
func (h *Host) Watch(ctx context.Context, dir string, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	log := h.log
	if log == nil {
		log = logger.Default()
	}

	seen := make(map[string]time.Time)
	poll := func() {
		files, err := listPluginFiles(dir)
		if err != nil {
			log.Warn("plugin watch: list directory failed", "dir", dir, "error", err)
			return
		}
		for _, f := range files {
			if prev, ok := seen[f.path]; ok && !f.modTime.After(prev) {
				continue
			}
			if err := loadPluginFile(h, f.path); err != nil {
				log.Error("plugin watch: load failed", "path", f.path, "error", err)
				continue
			}
			seen[f.path] = f.modTime
			log.Info("plugin watch: loaded", "path", f.path)
		}
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

func listPluginFiles(dir string) ([]loadedFile, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })
	return entries, nil
}

func loadPluginFile(h *Host, path string) error {
	p, err := goplugin.Open(path)
	if err != nil {
		return fmt.Errorf("open plugin: %w", err)
	}
	sym, err := p.Lookup(RegisterFunc)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", RegisterFunc, err)
	}
	register, ok := sym.(func(*Host) error)
	if !ok {
		return fmt.Errorf("symbol %s has unexpected signature", RegisterFunc)
	}
	return register(h)
}
