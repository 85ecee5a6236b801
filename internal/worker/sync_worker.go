package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"yoyaku/internal/amqp"
	"yoyaku/internal/core"
	applog "yoyaku/internal/log"
	"yoyaku/internal/store"
)

// Consumer delivers reservation change events until ctx is done.
type Consumer interface {
	ConsumeReservationChanged(ctx context.Context, handler func(context.Context, *amqp.ReservationChanged) error) error
}

// SyncWorker copies reservations from the source of truth to a mirror store,
// typically SQLite to Google Sheets.
type SyncWorker struct {
	source store.Loader
	mirror store.Store
	logger *slog.Logger
}

func NewSyncWorker(source store.Loader, mirror store.Store, logger *slog.Logger) *SyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncWorker{
		source: source,
		mirror: mirror,
		logger: logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleMessage applies one change event to the mirror. An upsert for a
// reservation that no longer exists in the source removes it from the mirror.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.ReservationChanged) error {
	switch msg.Op {
	case core.OpUpsert:
		r, err := store.Find(ctx, w.source, msg.ID)
		if errors.Is(err, store.ErrNotFound) {
			w.logger.InfoContext(ctx, "Reservation gone from source, removing from mirror", "reservation_id", msg.ID)
			return w.deleteFromMirror(ctx, msg.ID)
		}
		if err != nil {
			return fmt.Errorf("read reservation %s: %w", msg.ID, err)
		}
		return w.upsert(ctx, r)
	case core.OpDelete:
		return w.deleteFromMirror(ctx, msg.ID)
	default:
		return fmt.Errorf("%w: unknown op %q", amqp.ErrInvalidMessage, msg.Op)
	}
}

func (w *SyncWorker) upsert(ctx context.Context, r core.Reservation) error {
	err := w.mirror.Update(ctx, r)
	if errors.Is(err, store.ErrNotFound) {
		err = w.mirror.Add(ctx, r)
	}
	if err != nil {
		return fmt.Errorf("mirror reservation %s: %w", r.ID, err)
	}
	w.logger.InfoContext(ctx, "Reservation mirrored", "reservation_id", r.ID, "date", r.Date)
	return nil
}

func (w *SyncWorker) deleteFromMirror(ctx context.Context, id string) error {
	err := w.mirror.Delete(ctx, id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("remove reservation %s from mirror: %w", id, err)
	}
	w.logger.InfoContext(ctx, "Reservation removed from mirror", "reservation_id", id)
	return nil
}

// Reconcile overwrites the mirror with the full contents of the source,
// repairing anything missed while the broker or mirror was down.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	all, err := w.source.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	if err := w.mirror.ReplaceAll(ctx, all); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	w.logger.InfoContext(ctx, "Mirror reconciled", "count", len(all))
	return nil
}

// Run reconciles once, then consumes change events and reconciles every
// interval until ctx is cancelled or the consumer fails.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if err := w.Reconcile(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup reconcile failed", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeReservationChanged(ctx, w.HandleMessage)
	})
	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := w.Reconcile(ctx); err != nil {
						w.logger.ErrorContext(ctx, "Periodic reconcile failed", "error", err)
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
