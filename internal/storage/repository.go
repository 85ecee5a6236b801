package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"yoyaku/internal/core"
	applog "yoyaku/internal/log"
	"yoyaku/internal/store"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ store.Store  = (*SQLiteRepository)(nil)
	_ store.Getter = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadAll implements store.Loader. Rows come back in insertion order.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]core.Reservation, error) {
	rows, err := r.queries.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	out := make([]core.Reservation, 0, len(rows))
	for _, row := range rows {
		res, err := fromRow(row)
		if err != nil {
			slog.WarnContext(ctx, "Skipping unreadable reservation row", applog.FieldComponent, applog.ComponentStorage, "id", row.ID, "error", err)
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

// Get implements store.Getter.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Reservation, error) {
	row, err := r.queries.GetReservation(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Reservation{}, store.ErrNotFound
	}
	if err != nil {
		return core.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return fromRow(row)
}

// Add implements store.Writer.
func (r *SQLiteRepository) Add(ctx context.Context, res core.Reservation) error {
	params, err := toParams(res)
	if err != nil {
		return err
	}
	if err := r.queries.CreateReservation(ctx, params); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return fmt.Errorf("create reservation: %w", err)
	}

	slog.InfoContext(ctx, "Reservation saved to SQLite", applog.FieldComponent, applog.ComponentStorage,
		"id", res.ID,
		"date", res.Date,
		"total_amount", res.TotalAmount)
	return nil
}

// Update implements store.Writer.
func (r *SQLiteRepository) Update(ctx context.Context, res core.Reservation) error {
	params, err := toParams(res)
	if err != nil {
		return err
	}
	n, err := r.queries.UpdateReservation(ctx, params)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	slog.InfoContext(ctx, "Reservation updated in SQLite", applog.FieldComponent, applog.ComponentStorage, "id", res.ID)
	return nil
}

// Delete implements store.Writer.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	n, err := r.queries.DeleteReservation(ctx, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	slog.InfoContext(ctx, "Reservation deleted from SQLite", applog.FieldComponent, applog.ComponentStorage, "id", id)
	return nil
}

// ReplaceAll implements store.Replacer inside a single transaction.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, rs []core.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllReservations(ctx); err != nil {
		return fmt.Errorf("clear reservations: %w", err)
	}
	for _, res := range rs {
		params, err := toParams(res)
		if err != nil {
			return err
		}
		if err := q.CreateReservation(ctx, params); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", store.ErrDuplicate, res.ID)
			}
			return fmt.Errorf("insert reservation %s: %w", res.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Reservations replaced in SQLite", applog.FieldComponent, applog.ComponentStorage, "count", len(rs))
	return nil
}

// Count returns the number of stored reservations.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountReservations(ctx)
	if err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}

func toParams(res core.Reservation) (ReservationParams, error) {
	rooms := res.Rooms
	if rooms == nil {
		rooms = []core.RoomAllocation{}
	}
	encoded, err := json.Marshal(rooms)
	if err != nil {
		return ReservationParams{}, fmt.Errorf("encode rooms: %w", err)
	}
	return ReservationParams{
		ID:             res.ID,
		Date:           res.Date,
		CustomerName:   res.CustomerName,
		Type:           string(res.Type),
		UnitPrice:      res.UnitPrice,
		NumberOfPeople: res.NumberOfPeople,
		TennisCourt:    res.TennisCourt,
		BanquetHall:    res.BanquetHall,
		Other:          res.Other,
		TotalAmount:    res.TotalAmount,
		Rooms:          string(encoded),
	}, nil
}

func fromRow(row ReservationRow) (core.Reservation, error) {
	var rooms []core.RoomAllocation
	if s := strings.TrimSpace(row.Rooms); s != "" {
		if err := json.Unmarshal([]byte(s), &rooms); err != nil {
			return core.Reservation{}, fmt.Errorf("decode rooms of %s: %w", row.ID, err)
		}
	}
	if len(rooms) == 0 {
		rooms = nil
	}
	return core.Reservation{
		ID:             row.ID,
		Date:           row.Date,
		CustomerName:   row.CustomerName,
		Type:           core.CustomerType(row.Type),
		UnitPrice:      row.UnitPrice,
		NumberOfPeople: row.NumberOfPeople,
		TennisCourt:    row.TennisCourt,
		BanquetHall:    row.BanquetHall,
		Other:          row.Other,
		TotalAmount:    row.TotalAmount,
		Rooms:          rooms,
	}, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
