package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"yoyaku/internal/cache"
	"yoyaku/internal/core"
	"yoyaku/internal/export"
	"yoyaku/internal/ledger"
	applog "yoyaku/internal/log"
	"yoyaku/internal/occupancy"
	"yoyaku/internal/store"
)

const (
	snapshotKey        = "reservations"
	defaultSnapshotTTL = 30 * time.Second
)

// EventPublisher announces committed writes to other processes.
type EventPublisher interface {
	PublishReservationChanged(ctx context.Context, id string, op core.ChangeOp) error
}

// ReservationService validates and persists reservations and answers the
// summary, occupancy and export queries from a cached snapshot of the store.
type ReservationService struct {
	store     store.Store
	snapshots cache.Cache[[]core.Reservation]
	publisher EventPublisher
	catalog   []core.RoomType
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger

	loads singleflight.Group
	// cacheMu orders snapshot stores against invalidations; generation
	// counts invalidations and is guarded by it.
	cacheMu    sync.Mutex
	generation uint64
}

// Option configures a ReservationService.
type Option func(*ReservationService)

// WithCache replaces the default in-process snapshot cache.
func WithCache(c cache.Cache[[]core.Reservation]) Option {
	return func(s *ReservationService) { s.snapshots = c }
}

// WithPublisher enables change events.
func WithPublisher(p EventPublisher) Option {
	return func(s *ReservationService) { s.publisher = p }
}

// WithRoomCatalog overrides the rooms shown on the occupancy grid.
func WithRoomCatalog(rooms []core.RoomType) Option {
	return func(s *ReservationService) { s.catalog = append([]core.RoomType(nil), rooms...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *ReservationService) { s.newID = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ReservationService) { s.logger = l }
}

func NewReservationService(st store.Store, opts ...Option) *ReservationService {
	s := &ReservationService{
		store:     st,
		snapshots: cache.NewLRUCache[[]core.Reservation](1, defaultSnapshotTTL),
		catalog:   core.DefaultRoomCatalog(),
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create assigns an id, recomputes the derived fields and stores r.
func (s *ReservationService) Create(ctx context.Context, r core.Reservation) (core.Reservation, error) {
	r = r.Normalize()
	r.ID = s.newID()
	if err := r.Validate(); err != nil {
		return core.Reservation{}, err
	}
	if err := s.store.Add(ctx, r); err != nil {
		return core.Reservation{}, fmt.Errorf("add reservation: %w", err)
	}
	s.committed(ctx, r.ID, core.OpUpsert)

	s.logger.InfoContext(ctx, "Reservation created", applog.NewFields().
		WithReservation(r.ID, r.Date, r.Type.Label(), r.TotalAmount).
		WithOperation(applog.OpCreate).ToSlice()...)
	return r, nil
}

// Update replaces the reservation stored under id. The id in r is ignored.
func (s *ReservationService) Update(ctx context.Context, id string, r core.Reservation) (core.Reservation, error) {
	r = r.Normalize()
	r.ID = id
	if err := r.Validate(); err != nil {
		return core.Reservation{}, err
	}
	if err := s.store.Update(ctx, r); err != nil {
		return core.Reservation{}, fmt.Errorf("update reservation %s: %w", id, err)
	}
	s.committed(ctx, id, core.OpUpsert)

	s.logger.InfoContext(ctx, "Reservation updated", applog.NewFields().
		WithReservation(id, r.Date, r.Type.Label(), r.TotalAmount).
		WithOperation(applog.OpUpdate).ToSlice()...)
	return r, nil
}

func (s *ReservationService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete reservation %s: %w", id, err)
	}
	s.committed(ctx, id, core.OpDelete)

	s.logger.InfoContext(ctx, "Reservation deleted", applog.FieldReservationID, id, applog.FieldOperation, applog.OpDelete)
	return nil
}

func (s *ReservationService) Get(ctx context.Context, id string) (core.Reservation, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return core.Reservation{}, err
	}
	for _, r := range all {
		if r.ID == id {
			return r.Clone(), nil
		}
	}
	return core.Reservation{}, store.ErrNotFound
}

// List returns every reservation in date order.
func (s *ReservationService) List(ctx context.Context) ([]core.Reservation, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.SortByDate(all), nil
}

// Import replaces the whole collection. Every record is normalised and
// validated first; records without an id get a fresh one. Customer types
// outside the known set are kept so legacy data lands in the other bucket.
func (s *ReservationService) Import(ctx context.Context, rs []core.Reservation) (int, error) {
	out := make([]core.Reservation, 0, len(rs))
	seen := make(map[string]int, len(rs))
	var problems []string

	for i, r := range rs {
		r = r.Normalize()
		if strings.TrimSpace(r.ID) == "" {
			r.ID = s.newID()
		}
		if prev, dup := seen[r.ID]; dup {
			problems = append(problems, fmt.Sprintf("record %d: id %s repeats record %d", i, r.ID, prev))
			continue
		}
		seen[r.ID] = i

		check := r
		if !check.Type.IsKnown() {
			check.Type = core.General
		}
		if err := check.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		out = append(out, r)
	}
	if len(problems) > 0 {
		return 0, fmt.Errorf("%w: import rejected: %s", core.ErrInvalidReservation, strings.Join(problems, "; "))
	}

	if err := s.store.ReplaceAll(ctx, out); err != nil {
		return 0, fmt.Errorf("replace reservations: %w", err)
	}
	s.invalidate()
	for _, r := range out {
		s.publish(ctx, r.ID, core.OpUpsert)
	}

	s.logger.InfoContext(ctx, "Reservations imported", applog.FieldCount, len(out), applog.FieldOperation, applog.OpImport)
	return len(out), nil
}

// PreviewTotal returns r with its head count and total recomputed, without
// validating or storing it.
func (s *ReservationService) PreviewTotal(r core.Reservation) core.Reservation {
	return r.Normalize()
}

func (s *ReservationService) MonthlySummaries(ctx context.Context) ([]core.MonthlySummary, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ledger.GroupByMonth(all), nil
}

func (s *ReservationService) MonthSales(ctx context.Context, month core.MonthKey) (core.MonthSales, error) {
	if _, err := core.ParseMonthKey(month.String()); err != nil {
		return core.MonthSales{}, err
	}
	all, err := s.snapshot(ctx)
	if err != nil {
		return core.MonthSales{}, err
	}
	return core.MonthSales{
		Month: month,
		Name:  ledger.MonthName(month),
		Sales: ledger.MonthSales(month, all),
	}, nil
}

func (s *ReservationService) YearSummary(ctx context.Context, year int) (core.YearSummary, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return core.YearSummary{}, err
	}
	return ledger.YearSummary(year, all), nil
}

// UpcomingSales returns sales for the current month and the five after it.
func (s *ReservationService) UpcomingSales(ctx context.Context) ([]core.MonthSales, error) {
	all, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	months := ledger.NextSixMonths(s.now())
	out := make([]core.MonthSales, 0, len(months))
	for _, m := range months {
		out = append(out, core.MonthSales{
			Month: m,
			Name:  ledger.MonthName(m),
			Sales: ledger.MonthSales(m, all),
		})
	}
	return out, nil
}

func (s *ReservationService) Occupancy(ctx context.Context, year, month int) (occupancy.Occupancy, error) {
	if !core.ValidMonth(month) {
		return occupancy.Occupancy{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	all, err := s.snapshot(ctx)
	if err != nil {
		return occupancy.Occupancy{}, err
	}
	return occupancy.Compute(year, month, all, s.catalog)
}

// ExportMonth writes the CSV of one month to w.
func (s *ReservationService) ExportMonth(ctx context.Context, w io.Writer, year, month int) error {
	all, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	return export.ExportMonth(w, year, month, all)
}

// ExportYear writes the CSV of one year to w.
func (s *ReservationService) ExportYear(ctx context.Context, w io.Writer, year int) error {
	all, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	return export.ExportYear(w, year, all)
}

// snapshot returns the cached collection or loads it once for all
// concurrent callers. The returned slice is shared and must not be modified.
func (s *ReservationService) snapshot(ctx context.Context) ([]core.Reservation, error) {
	if all, ok := s.snapshots.Get(snapshotKey); ok {
		return all, nil
	}

	gen := s.currentGeneration()
	v, err, _ := s.loads.Do(snapshotKey, func() (interface{}, error) {
		all, err := s.store.LoadAll(ctx)
		if err != nil {
			return nil, err
		}
		if all == nil {
			all = []core.Reservation{}
		}
		s.storeSnapshot(gen, all)
		return all, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}
	return v.([]core.Reservation), nil
}

func (s *ReservationService) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// storeSnapshot caches all unless a write invalidated the cache after the
// load that produced it started.
func (s *ReservationService) storeSnapshot(gen uint64, all []core.Reservation) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation == gen {
		s.snapshots.Set(snapshotKey, all)
	}
}

func (s *ReservationService) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++
	s.loads.Forget(snapshotKey)
	s.snapshots.Delete(snapshotKey)
}

func (s *ReservationService) committed(ctx context.Context, id string, op core.ChangeOp) {
	s.invalidate()
	s.publish(ctx, id, op)
}

func (s *ReservationService) publish(ctx context.Context, id string, op core.ChangeOp) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReservationChanged(ctx, id, op); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish reservation change",
			applog.FieldReservationID, id,
			"op", string(op),
			applog.FieldError, err)
	}
}
