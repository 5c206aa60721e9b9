// Package registry holds the worker roster: which workers exist, what
// capability each serves, and optional per-worker timeouts. The roster
// loads from a YAML file and can hot-reload when the file changes.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Card describes one registered worker.
type Card struct {
	// ID is the identifier tasks are routed by.
	ID string `yaml:"id"`
	// Name is the human-readable worker name.
	Name string `yaml:"name,omitempty"`
	// Description says what the worker does, for discovery surfaces.
	Description string `yaml:"description,omitempty"`
	// Capabilities lists what this worker serves (data, support).
	Capabilities []string `yaml:"capabilities"`
	// TimeoutSeconds overrides the default per-call timeout when positive.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// file is the on-disk roster shape.
type file struct {
	Workers []Card `yaml:"workers"`
}

// Registry is a thread-safe worker roster.
type Registry struct {
	mu      sync.RWMutex
	path    string
	workers []Card

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Default returns the built-in roster used when no file is configured.
func Default() *Registry {
	return &Registry{workers: []Card{
		{
			ID:           "data-worker",
			Name:         "Customer Data Worker",
			Description:  "Fetches and updates customer records and tickets",
			Capabilities: []string{"data"},
		},
		{
			ID:           "support-worker",
			Name:         "Support Worker",
			Description:  "Answers customer questions and drafts replies",
			Capabilities: []string{"support"},
		},
	}}
}

// Load reads the roster from a YAML file.
func Load(path string) (*Registry, error) {
	r := &Registry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reload() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read worker registry: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse worker registry: %w", err)
	}
	if len(f.Workers) == 0 {
		return fmt.Errorf("worker registry %s lists no workers", r.path)
	}
	for _, w := range f.Workers {
		if w.ID == "" {
			return fmt.Errorf("worker registry %s has a worker without an id", r.path)
		}
		if len(w.Capabilities) == 0 {
			return fmt.Errorf("worker %s lists no capabilities", w.ID)
		}
	}

	r.mu.Lock()
	r.workers = f.Workers
	r.mu.Unlock()
	return nil
}

// Workers returns the roster in registration order.
func (r *Registry) Workers() []Card {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Card, len(r.workers))
	copy(out, r.workers)
	return out
}

// Get returns the card for a worker ID.
func (r *Registry) Get(id string) (Card, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, w := range r.workers {
		if w.ID == id {
			return w, true
		}
	}
	return Card{}, false
}

// WorkersFor returns the IDs of workers serving a capability, in
// registration order. This order is the planner's tie-break.
func (r *Registry) WorkersFor(capability string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, w := range r.workers {
		for _, c := range w.Capabilities {
			if c == capability {
				ids = append(ids, w.ID)
				break
			}
		}
	}
	return ids
}

// Watch reloads the roster when the backing file changes. A roster without
// a backing file, or one where the watcher cannot start, stays static.
func (r *Registry) Watch() {
	if r.path == "" || r.done != nil {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return
	}

	r.watcher = watcher
	r.done = make(chan struct{})
	go r.watchLoop()
}

func (r *Registry) watchLoop() {
	for {
		select {
		case <-r.done:
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(r.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// A bad edit keeps the previous roster.
			_ = r.reload()
		case <-r.watcher.Errors:
			// Keep watching.
		}
	}
}

// Close stops the watcher, if one is running.
func (r *Registry) Close() {
	if r.done != nil {
		close(r.done)
		r.done = nil
	}
	if r.watcher != nil {
		r.watcher.Close()
		r.watcher = nil
	}
}
