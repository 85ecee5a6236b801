// Package store defines the persistence ports shared by every backend.
package store

import (
	"context"
	"errors"

	"yoyaku/internal/core"
)

var (
	// ErrNotFound is returned when no reservation has the requested id.
	ErrNotFound = errors.New("reservation not found")
	// ErrDuplicate is returned when adding a reservation whose id already exists.
	ErrDuplicate = errors.New("reservation already exists")
	// ErrUnavailable signals that the backing store could not be reached.
	ErrUnavailable = errors.New("storage unavailable")
)

// Ports for outbound adapters.
type (
	Loader interface {
		// LoadAll returns every stored reservation.
		LoadAll(ctx context.Context) ([]core.Reservation, error)
	}

	Getter interface {
		Get(ctx context.Context, id string) (core.Reservation, error)
	}

	Writer interface {
		Add(ctx context.Context, r core.Reservation) error
		// Update replaces the reservation with the same id.
		Update(ctx context.Context, r core.Reservation) error
		Delete(ctx context.Context, id string) error
	}

	Replacer interface {
		// ReplaceAll swaps the stored collection for rs.
		ReplaceAll(ctx context.Context, rs []core.Reservation) error
	}

	Store interface {
		Loader
		Writer
		Replacer
	}
)

// Find looks up id with a Getter when s has one, otherwise by scanning LoadAll.
func Find(ctx context.Context, s Loader, id string) (core.Reservation, error) {
	if g, ok := s.(Getter); ok {
		return g.Get(ctx, id)
	}
	all, err := s.LoadAll(ctx)
	if err != nil {
		return core.Reservation{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return core.Reservation{}, ErrNotFound
}
