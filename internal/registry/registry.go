// Package registry tracks the set of live managed entries and fans control
// actions out to their Monitors.
package registry

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/loykin/exeio/internal/configstore"
	"github.com/loykin/exeio/internal/entry"
	"github.com/loykin/exeio/internal/logio"
	"github.com/loykin/exeio/internal/metrics"
	"github.com/loykin/exeio/internal/monitor"
)

// fanOutTimeout bounds how long StopAll/RestartAll wait for any single
// entry before recording it as a partial failure and moving on.
const fanOutTimeout = 30 * time.Second

// ErrNotFound is returned when an operation references an unknown id.
var ErrNotFound = errors.New("registry: unknown entry")

type handle struct {
	mon     *monitor.Monitor
	procLog *logio.Writer
}

// Registry is the single owner of every Monitor. All map access goes
// through mu; Monitor internals are never touched directly.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*handle

	logDir string
	store  *configstore.Store
}

// New constructs an empty Registry. logDir is where each entry's own log
// file is created (<logDir>/<id>.log); store may be nil, in which case
// entries marked SaveForNextRun are accepted but never persisted.
func New(logDir string, store *configstore.Store) *Registry {
	return &Registry{
		entries: make(map[string]*handle),
		logDir:  logDir,
		store:   store,
	}
}

// Add validates and registers a new entry, opens its log file, starts its
// Monitor and issues the initial Start. It returns the resulting snapshot,
// which may already reflect a failed spawn attempt.
func (r *Registry) Add(spec entry.Spec) (entry.Snapshot, error) {
	if err := spec.Validate(); err != nil {
		return entry.Snapshot{}, err
	}

	r.mu.Lock()
	if _, exists := r.entries[spec.ID]; exists {
		r.mu.Unlock()
		return entry.Snapshot{}, fmt.Errorf("%w: %s", entry.ErrConflict, spec.ID)
	}
	// Reserve the slot before releasing the lock so concurrent Adds with
	// the same id can't both proceed to spawn.
	r.entries[spec.ID] = nil
	r.mu.Unlock()

	procLog, err := logio.Open(filepath.Join(r.logDir, spec.ID+".log"))
	if err != nil {
		r.mu.Lock()
		delete(r.entries, spec.ID)
		r.mu.Unlock()
		return entry.Snapshot{}, fmt.Errorf("registry: open log for %s: %w", spec.ID, err)
	}

	mon := monitor.New(spec, procLog)
	r.mu.Lock()
	r.entries[spec.ID] = &handle{mon: mon, procLog: procLog}
	r.mu.Unlock()

	if r.store != nil && spec.SaveForNextRun {
		if err := r.store.Upsert(spec); err != nil {
			return entry.Snapshot{}, fmt.Errorf("registry: persist %s: %w", spec.ID, err)
		}
	}

	_ = mon.Start()
	r.reportCount()
	return mon.Snapshot(), nil
}

// reportCount publishes the current entry count to the registry gauge.
func (r *Registry) reportCount() {
	r.mu.Lock()
	n := 0
	for _, h := range r.entries {
		if h != nil {
			n++
		}
	}
	r.mu.Unlock()
	metrics.SetRegisteredEntries(n)
}

func (r *Registry) get(id string) *handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[id]
}

// Get returns the current snapshot of a single entry.
func (r *Registry) Get(id string) (entry.Snapshot, error) {
	h := r.get(id)
	if h == nil {
		return entry.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h.mon.Snapshot(), nil
}

// List returns every entry's snapshot, ordered by id for stable output.
func (r *Registry) List() []entry.Snapshot {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	handles := make(map[string]*handle, len(r.entries))
	for id, h := range r.entries {
		if h == nil { // reservation in flight
			continue
		}
		ids = append(ids, id)
		handles[id] = h
	}
	r.mu.Unlock()

	sort.Strings(ids)
	out := make([]entry.Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, handles[id].mon.Snapshot())
	}
	return out
}

// Stop asks the entry's Monitor to stop and blocks until it has.
func (r *Registry) Stop(id string) error {
	h := r.get(id)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h.mon.Stop()
}

// Restart asks the entry's Monitor to restart and blocks until the new
// spawn attempt completes.
func (r *Registry) Restart(id string) error {
	h := r.get(id)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h.mon.Restart()
}

// Input forwards bytes to the entry's child stdin.
func (r *Registry) Input(id string, data []byte) error {
	h := r.get(id)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h.mon.Input(data)
}

// Logs returns a page of the entry's own log.
func (r *Registry) Logs(id string, page, pageSize int) (logio.Page, error) {
	h := r.get(id)
	if h == nil {
		return logio.Page{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h.procLog.ReadPage(page, pageSize)
}

// ClearLog truncates the entry's log file.
func (r *Registry) ClearLog(id string) error {
	h := r.get(id)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h.procLog.Clear()
}

// Remove shuts the entry's Monitor down, closes its log handle, drops the
// persisted record (if any), and forgets the entry.
func (r *Registry) Remove(id string) error {
	h := r.get(id)
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := h.mon.Shutdown(); err != nil {
		return err
	}
	_ = h.procLog.Close()

	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()

	if r.store != nil {
		_ = r.store.Delete(id)
	}
	r.reportCount()
	return nil
}

// ids snapshots the current id list under lock, for fan-out operations.
func (r *Registry) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id, h := range r.entries {
		if h != nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// fanOut runs op against every registered entry concurrently, each on its
// own goroutine bounded by fanOutTimeout, and returns the failures keyed by
// id. An id missing from the result succeeded.
func (r *Registry) fanOut(op func(id string) error) map[string]error {
	ids := r.ids()
	failures := make(map[string]error)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(ids))
	for _, id := range ids {
		go func(id string) {
			defer wg.Done()
			done := make(chan error, 1)
			go func() { done <- op(id) }()

			var err error
			select {
			case err = <-done:
			case <-time.After(fanOutTimeout):
				err = fmt.Errorf("registry: %s: timed out after %s", id, fanOutTimeout)
			}
			if err != nil {
				mu.Lock()
				failures[id] = err
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return failures
}

// StopAll stops every entry concurrently, returning the per-id errors for
// any that failed or timed out. A nil/empty map means every entry stopped.
func (r *Registry) StopAll() map[string]error {
	return r.fanOut(r.Stop)
}

// RestartAll restarts every entry concurrently, returning the per-id errors
// for any that failed or timed out. A nil/empty map means every entry
// restarted.
func (r *Registry) RestartAll() map[string]error {
	return r.fanOut(r.Restart)
}

// Shutdown stops every entry's Monitor goroutine, used when the supervisor
// process itself is exiting. Log files are left open; the process exit
// closes the descriptors.
func (r *Registry) Shutdown() {
	for _, id := range r.ids() {
		h := r.get(id)
		if h != nil {
			_ = h.mon.Shutdown()
		}
	}
}
