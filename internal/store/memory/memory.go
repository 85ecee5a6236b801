package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"yoyaku/internal/core"
	"yoyaku/internal/store"

	applog "yoyaku/internal/log"
)

// FileName is the snapshot file kept inside the data directory.
const FileName = "reservations.json"

// Store keeps reservations in memory, optionally mirrored to a JSON file
// that is rewritten on every change.
type Store struct {
	mu    sync.Mutex
	path  string
	items []core.Reservation
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Getter = (*Store)(nil)
)

// New returns a store holding copies of seed. Nothing is written to disk.
func New(seed []core.Reservation) *Store {
	return &Store{items: cloneAll(seed)}
}

// NewFromDir loads base/reservations.json. A missing or unreadable file is
// logged and the store starts empty; later writes recreate the file.
func NewFromDir(base string) *Store {
	path := filepath.Join(base, FileName)
	items, err := readFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("Failed to load reservations, starting empty", applog.FieldComponent, applog.ComponentStorage, "path", path, "error", err)
		items = nil
	}
	return &Store{path: path, items: items}
}

func (s *Store) LoadAll(_ context.Context) ([]core.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.items), nil
}

func (s *Store) Get(_ context.Context, id string) (core.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.items[i].Clone(), nil
	}
	return core.Reservation{}, store.ErrNotFound
}

func (s *Store) Add(_ context.Context, r core.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(r.ID) >= 0 {
		return store.ErrDuplicate
	}
	next := append(cloneAll(s.items), r.Clone())
	return s.commit(next)
}

func (s *Store) Update(_ context.Context, r core.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(r.ID)
	if i < 0 {
		return store.ErrNotFound
	}
	next := cloneAll(s.items)
	next[i] = r.Clone()
	return s.commit(next)
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return store.ErrNotFound
	}
	next := cloneAll(s.items)
	next = append(next[:i], next[i+1:]...)
	return s.commit(next)
}

func (s *Store) ReplaceAll(_ context.Context, rs []core.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(cloneAll(rs))
}

// Len returns the number of stored reservations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// commit persists next and then makes it current. Caller holds mu.
func (s *Store) commit(next []core.Reservation) error {
	if s.path != "" {
		if err := writeFile(s.path, next); err != nil {
			return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
	}
	s.items = next
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func readFile(path string) ([]core.Reservation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []core.Reservation
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return items, nil
}

// writeFile replaces path atomically through a temp file in the same directory.
func writeFile(path string, items []core.Reservation) error {
	if items == nil {
		items = []core.Reservation{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reservations: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func cloneAll(in []core.Reservation) []core.Reservation {
	out := make([]core.Reservation, 0, len(in))
	for _, r := range in {
		out = append(out, r.Clone())
	}
	return out
}
