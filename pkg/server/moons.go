package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/luludotdev/smoorelay/pkg/config"
)

// moonRecord is the on-disk representation of a single collected objective.
// A self-describing document (rather than a bare array) leaves room for
// future per-moon metadata without a format break.
type moonRecord struct {
	ID      int32 `json:"id"`
	IsGrand bool  `json:"is_grand"`
}

type moonsDocument struct {
	Moons []moonRecord `json:"moons"`
}

// MoonStore is the persistent set of objective ids collected by any client.
type MoonStore struct {
	mu      sync.RWMutex
	ids     map[int32]bool // id -> is_grand
	persist bool
	path    string
	log     zerolog.Logger
}

// NewMoonStore constructs an empty store configured from cfg.
func NewMoonStore(cfg config.MoonConfig, log zerolog.Logger) *MoonStore {
	return &MoonStore{
		ids:     make(map[int32]bool),
		persist: cfg.Persist,
		path:    cfg.PersistFile,
		log:     log,
	}
}

// LoadMoonStore constructs a store from cfg, reading its persisted file if
// enabled and present.
func LoadMoonStore(cfg config.MoonConfig, log zerolog.Logger) (*MoonStore, error) {
	s := NewMoonStore(cfg, log)
	if !cfg.Persist {
		return s, nil
	}

	if err := s.readFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("moons: load %s: %w", cfg.PersistFile, err)
	}
	return s, nil
}

func (s *MoonStore) readFile() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var doc moonsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	ids := make(map[int32]bool, len(doc.Moons))
	for _, rec := range doc.Moons {
		ids[rec.ID] = rec.IsGrand
	}

	s.mu.Lock()
	s.ids = ids
	s.mu.Unlock()
	return nil
}

// Reload replaces the in-memory contents from disk.
func (s *MoonStore) Reload() error {
	if !s.persist {
		return nil
	}
	if err := s.readFile(); err != nil {
		return fmt.Errorf("moons: reload: %w", err)
	}
	return nil
}

// Clear empties the store and persists the (now empty) result.
func (s *MoonStore) Clear() error {
	s.mu.Lock()
	s.ids = make(map[int32]bool)
	s.mu.Unlock()

	return s.persistLocked()
}

// Insert adds id (with its grand-moon flag) to the set. If the id was
// already present, its is_grand flag is updated in place but Insert still
// reports whether the id itself was new. Idempotent at the level of
// observable contents (spec invariant 6).
func (s *MoonStore) Insert(id int32, isGrand bool) (isNew bool, err error) {
	s.mu.Lock()
	_, existed := s.ids[id]
	s.ids[id] = isGrand
	s.mu.Unlock()

	if err := s.persistLocked(); err != nil {
		s.log.Error().Err(err).Int32("moon", id).Msg("persist moon store")
		return !existed, nil
	}
	return !existed, nil
}

// Contains reports whether id is present in the store.
func (s *MoonStore) Contains(id int32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// IsGrand reports the stored is_grand flag for id.
func (s *MoonStore) IsGrand(id int32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ids[id]
}

// All returns every collected id in ascending order.
func (s *MoonStore) All() []int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedIDsLocked()
}

// Difference returns members of this store not present in other, ascending
// by id.
func (s *MoonStore) Difference(other map[int32]struct{}) []int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int32, 0, len(s.ids))
	for id := range s.ids {
		if _, ok := other[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *MoonStore) sortedIDsLocked() []int32 {
	out := make([]int32, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// persistLocked writes the current set to disk via write-temp-then-rename,
// if persistence is enabled. This replaces the source server's unsafe
// direct-overwrite pattern.
func (s *MoonStore) persistLocked() error {
	if !s.persist {
		return nil
	}

	s.mu.RLock()
	ids := s.sortedIDsLocked()
	doc := moonsDocument{Moons: make([]moonRecord, 0, len(ids))}
	for _, id := range ids {
		doc.Moons = append(doc.Moons, moonRecord{ID: id, IsGrand: s.ids[id]})
	}
	s.mu.RUnlock()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal moons: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".moons-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
