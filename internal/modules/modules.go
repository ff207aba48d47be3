// Package modules implements the module registry (C3): the persistent
// set of known applications and a parallel tombstone set of applications
// scheduled for removal by the next compaction pass.
package modules

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/ooXavier/moowapp-server/internal/keys"
	"github.com/ooXavier/moowapp-server/internal/store"
)

// Registry wraps the KV store's "modules"/"modules-deleted" keys.
type Registry struct {
	store      *store.Store
	excludeMod string
}

// New creates a module registry. excludeMod is the configured substring
// (EXCLUDE_MOD) that hides matching apps from Load's result.
func New(s *store.Store, excludeMod string) *Registry {
	return &Registry{store: s, excludeMod: excludeMod}
}

// Load returns the known application set, split on '/', with empty
// tokens dropped and entries containing the exclude substring filtered
// out (spec §4.3).
func (r *Registry) Load() (*Set, error) {
	raw, err := r.loadRaw(keys.ModulesKey)
	if err != nil {
		return nil, err
	}
	set := NewSet()
	for _, name := range raw {
		if r.excludeMod != "" && strings.Contains(name, r.excludeMod) {
			continue
		}
		set.Add(name)
	}
	return set, nil
}

// Deleted returns the tombstoned application set (unfiltered — tombstoned
// entries are consumed by C8, not shown to query handlers).
func (r *Registry) Deleted() (*Set, error) {
	raw, err := r.loadRaw(keys.ModulesDeletedKey)
	if err != nil {
		return nil, err
	}
	set := NewSet()
	for _, name := range raw {
		set.Add(name)
	}
	return set, nil
}

func (r *Registry) loadRaw(key string) ([]string, error) {
	val, found, err := r.store.Get(key)
	if err != nil {
		return nil, err
	}
	if !found || val == "" {
		return nil, nil
	}
	parts := strings.Split(val, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// Save rewrites the "modules" key to the '/'-joined names in set. It
// reloads the unfiltered persisted set first and merges, so that
// excluded-but-still-present apps are not lost from the on-disk record.
func (r *Registry) Save(set *Set) error {
	existing, err := r.loadRaw(keys.ModulesKey)
	if err != nil {
		return err
	}
	merged := NewSet()
	for _, name := range existing {
		merged.Add(name)
	}
	for _, name := range set.Names() {
		merged.Add(name)
	}
	return r.store.Put(keys.ModulesKey, strings.Join(merged.Names(), "/"))
}

// AddAll inserts newly observed app names into the persisted module set.
// Called by the ingestion loop after each successful batch.
func (r *Registry) AddAll(names []string) error {
	if len(names) == 0 {
		return nil
	}
	existing, err := r.loadRaw(keys.ModulesKey)
	if err != nil {
		return err
	}
	set := NewSet()
	for _, name := range existing {
		set.Add(name)
	}
	for _, name := range names {
		set.Add(name)
	}
	return r.store.Put(keys.ModulesKey, strings.Join(set.Names(), "/"))
}

// Remove subtracts names from the persisted module set and rewrites it.
func (r *Registry) Remove(names []string) error {
	existing, err := r.loadRaw(keys.ModulesKey)
	if err != nil {
		return err
	}
	set := NewSet()
	for _, name := range existing {
		set.Add(name)
	}
	for _, name := range names {
		set.Remove(name)
	}
	return r.store.Put(keys.ModulesKey, strings.Join(set.Names(), "/"))
}

// Tombstone moves app from the live module set to modules-deleted, where
// it awaits purge by the next compaction pass (spec §4.7 admin endpoint,
// "mergein=del").
func (r *Registry) Tombstone(app string) error {
	if err := r.Remove([]string{app}); err != nil {
		return err
	}
	return r.MarkDeleted([]string{app})
}

// MarkDeleted adds names to modules-deleted without touching the live
// module set. The admin merge endpoint always removes a module from the
// live set, but only records it here when mergein=="del" (spec.md §4.7;
// grounded on moowapp_server.cpp's stats_admin_do_mergemodules, which
// persists to KEY_DELETED_MODULES only on that branch).
func (r *Registry) MarkDeleted(names []string) error {
	deleted, err := r.loadRaw(keys.ModulesDeletedKey)
	if err != nil {
		return err
	}
	set := NewSet()
	for _, name := range deleted {
		set.Add(name)
	}
	for _, name := range names {
		set.Add(name)
	}
	return r.store.Put(keys.ModulesDeletedKey, strings.Join(set.Names(), "/"))
}

// DeletedJoined returns the current modules-deleted value as the raw
// '/'-joined string the admin endpoint echoes back to the caller.
func (r *Registry) DeletedJoined() (string, error) {
	val, found, err := r.store.Get(keys.ModulesDeletedKey)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return val, nil
}

// PurgeTombstones deletes the modules-deleted key, emptying the tombstone
// set. The compaction pass does not call it: tombstoned apps stay tracked
// so that later passes keep pruning their hour keys.
func (r *Registry) PurgeTombstones() error {
	return r.store.Delete(keys.ModulesDeletedKey)
}

// Set is an insertion-ordered string set hashed with xxhash for O(1)
// membership tests over potentially large module lists (the "Others"
// residual computation in C7 diffs the full module set against every
// module cited in a request).
type Set struct {
	order []string
	index map[uint64]int // xxhash(name) -> position in order
}

// NewSet creates an empty Set.
func NewSet() *Set {
	return &Set{index: make(map[uint64]int)}
}

func hashOf(name string) uint64 { return xxhash.Sum64String(name) }

// Add inserts name if not already present.
func (s *Set) Add(name string) {
	h := hashOf(name)
	if _, ok := s.index[h]; ok {
		return
	}
	s.index[h] = len(s.order)
	s.order = append(s.order, name)
}

// Remove deletes name if present.
func (s *Set) Remove(name string) {
	h := hashOf(name)
	pos, ok := s.index[h]
	if !ok {
		return
	}
	delete(s.index, h)
	s.order = append(s.order[:pos], s.order[pos+1:]...)
	for i := pos; i < len(s.order); i++ {
		s.index[hashOf(s.order[i])] = i
	}
}

// Contains reports whether name is in the set.
func (s *Set) Contains(name string) bool {
	_, ok := s.index[hashOf(name)]
	return ok
}

// Names returns the set's members in insertion order.
func (s *Set) Names() []string {
	return s.order
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.order) }
