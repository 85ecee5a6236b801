package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoyaku/internal/cache"
	"yoyaku/internal/core"
	"yoyaku/internal/export"
	"yoyaku/internal/store"
	"yoyaku/internal/store/memory"
)

type recordedEvent struct {
	ID string
	Op core.ChangeOp
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *fakePublisher) PublishReservationChanged(_ context.Context, id string, op core.ChangeOp) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{ID: id, Op: op})
	return p.err
}

// countingStore counts LoadAll calls and can be switched off.
type countingStore struct {
	*memory.Store
	mu    sync.Mutex
	loads int
	down  bool
}

func (c *countingStore) LoadAll(ctx context.Context) ([]core.Reservation, error) {
	c.mu.Lock()
	c.loads++
	down := c.down
	c.mu.Unlock()
	if down {
		return nil, fmt.Errorf("%w: sheets timeout", store.ErrUnavailable)
	}
	return c.Store.LoadAll(ctx)
}

func (c *countingStore) loadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newService(t *testing.T, seed []core.Reservation, opts ...Option) (*ReservationService, *countingStore) {
	t.Helper()
	st := &countingStore{Store: memory.New(seed)}
	opts = append([]Option{
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return time.Date(2025, 11, 15, 9, 0, 0, 0, time.UTC) }),
	}, opts...)
	return NewReservationService(st, opts...), st
}

func input(date, name string, typ core.CustomerType, unit, people int64) core.Reservation {
	return core.Reservation{Date: date, CustomerName: name, Type: typ, UnitPrice: unit, NumberOfPeople: people}
}

func TestCreateAssignsIDAndDerivesTotal(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newService(t, nil, WithPublisher(pub))
	ctx := context.Background()

	in := input("2025-03-10", "  Tanaka ", core.General, 8000, 99)
	in.TennisCourt = 2000
	in.Rooms = []core.RoomAllocation{{RoomType: "本館1", GuestCount: 2}, {RoomType: "別館", GuestCount: 1}}

	got, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, "Tanaka", got.CustomerName)
	assert.EqualValues(t, 3, got.NumberOfPeople)
	assert.EqualValues(t, 26000, got.TotalAmount)

	stored, err := svc.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, got, stored)
	assert.Equal(t, []recordedEvent{{ID: "id-1", Op: core.OpUpsert}}, pub.events)
}

func TestCreateRejectsInvalid(t *testing.T) {
	pub := &fakePublisher{}
	svc, st := newService(t, nil, WithPublisher(pub))

	_, err := svc.Create(context.Background(), input("2025-02-30", "", core.General, 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidReservation))
	assert.Equal(t, 0, st.Len())
	assert.Empty(t, pub.events)
}

func TestUpdateForcesPathID(t *testing.T) {
	seed := []core.Reservation{input("2025-03-01", "A", core.General, 1000, 2).Normalize()}
	seed[0].ID = "keep"
	svc, _ := newService(t, seed)
	ctx := context.Background()

	change := input("2025-03-02", "B", core.Student, 500, 4)
	change.ID = "ignored"
	got, err := svc.Update(ctx, "keep", change)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
	assert.EqualValues(t, 2000, got.TotalAmount)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "B", all[0].CustomerName)
}

func TestUpdateAndDeleteMissing(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, "nope", input("2025-03-02", "B", core.Student, 500, 4))
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
	assert.True(t, errors.Is(svc.Delete(ctx, "nope"), store.ErrNotFound))
	_, err = svc.Get(ctx, "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSnapshotCachedAndInvalidatedOnWrite(t *testing.T) {
	svc, st := newService(t, nil)
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)
	_, err = svc.MonthlySummaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.loadCount(), "second query served from cache")

	created, err := svc.Create(ctx, input("2025-03-10", "A", core.General, 1000, 1))
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.loadCount())
	require.Len(t, all, 1)
	assert.Equal(t, created.ID, all[0].ID)

	require.NoError(t, svc.Delete(ctx, created.ID))
	all, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConcurrentQueriesShareOneLoad(t *testing.T) {
	svc, st := newService(t, []core.Reservation{{ID: "a", Date: "2025-03-01", CustomerName: "A", Type: core.General, TotalAmount: 5}})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.YearSummary(ctx, 2025)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, st.loadCount(), 20)
	assert.GreaterOrEqual(t, st.loadCount(), 1)

	before := st.loadCount()
	_, err := svc.YearSummary(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, before, st.loadCount())
}

// pausingCache holds the first Set until release is closed.
type pausingCache struct {
	cache.Cache[[]core.Reservation]
	once    sync.Once
	setting chan struct{}
	release chan struct{}
}

func (c *pausingCache) Set(key string, v []core.Reservation) {
	c.once.Do(func() {
		close(c.setting)
		<-c.release
	})
	c.Cache.Set(key, v)
}

// signallingStore reports each completed Add.
type signallingStore struct {
	*memory.Store
	added chan struct{}
}

func (s *signallingStore) Add(ctx context.Context, r core.Reservation) error {
	err := s.Store.Add(ctx, r)
	s.added <- struct{}{}
	return err
}

func TestWriteDuringSnapshotStoreIsNotLost(t *testing.T) {
	snapshots := &pausingCache{
		Cache:   cache.NewLRUCache[[]core.Reservation](1, 0),
		setting: make(chan struct{}),
		release: make(chan struct{}),
	}
	st := &signallingStore{
		Store: memory.New([]core.Reservation{{ID: "a", Date: "2025-03-01", CustomerName: "A", Type: core.General}}),
		added: make(chan struct{}, 1),
	}
	svc := NewReservationService(st, WithCache(snapshots), WithIDGenerator(sequentialIDs()))
	ctx := context.Background()

	listed := make(chan error, 1)
	go func() {
		_, err := svc.List(ctx)
		listed <- err
	}()
	<-snapshots.setting

	created := make(chan error, 1)
	go func() {
		_, err := svc.Create(ctx, input("2025-03-02", "B", core.General, 1000, 1))
		created <- err
	}()
	<-st.added
	close(snapshots.release)

	require.NoError(t, <-listed)
	require.NoError(t, <-created)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "snapshot cached before the write must not outlive it")
}

func TestRoomCatalogOption(t *testing.T) {
	seed := []core.Reservation{
		{ID: "1", Date: "2025-03-05", CustomerName: "A", Type: core.General,
			Rooms: []core.RoomAllocation{{RoomType: "別館", GuestCount: 4}, {RoomType: "本館1", GuestCount: 1}}},
	}
	svc, _ := newService(t, seed, WithRoomCatalog([]core.RoomType{"別館"}))

	occ, err := svc.Occupancy(context.Background(), 2025, 3)
	require.NoError(t, err)
	assert.Equal(t, []core.RoomType{"別館"}, occ.Rooms)
	assert.EqualValues(t, 4, occ.Guests(5, "別館"))
	assert.EqualValues(t, 3, occ.Rates["別館"])
}

func TestStoreUnavailableSurfaces(t *testing.T) {
	svc, st := newService(t, nil)
	st.down = true

	_, err := svc.MonthlySummaries(context.Background())
	assert.True(t, errors.Is(err, store.ErrUnavailable), "got %v", err)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, st := newService(t, nil, WithPublisher(pub))

	_, err := svc.Create(context.Background(), input("2025-03-10", "A", core.General, 1000, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())
	assert.Len(t, pub.events, 1)
}

func TestImportReplacesAndKeepsLegacyTypes(t *testing.T) {
	seed := []core.Reservation{{ID: "old", Date: "2025-01-01", CustomerName: "Old", Type: core.General}}
	pub := &fakePublisher{}
	svc, _ := newService(t, seed, WithPublisher(pub))
	ctx := context.Background()

	n, err := svc.Import(ctx, []core.Reservation{
		{ID: "x", Date: "2025-03-01", CustomerName: "Legacy", Type: "団体", UnitPrice: 1000, NumberOfPeople: 3},
		{Date: "2025-03-02", CustomerName: "New", Type: core.Student, UnitPrice: 500, NumberOfPeople: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "x", all[0].ID)
	assert.EqualValues(t, 3000, all[0].TotalAmount)
	assert.Equal(t, "id-1", all[1].ID)

	ys, err := svc.YearSummary(ctx, 2025)
	require.NoError(t, err)
	assert.EqualValues(t, 3000, ys.Other())
	assert.EqualValues(t, 1000, ys.Student())
	assert.Len(t, pub.events, 2)
}

func TestImportRejectsWholeBatch(t *testing.T) {
	seed := []core.Reservation{{ID: "old", Date: "2025-01-01", CustomerName: "Old", Type: core.General}}
	svc, st := newService(t, seed)

	_, err := svc.Import(context.Background(), []core.Reservation{
		{ID: "a", Date: "2025-03-01", CustomerName: "A", Type: core.General},
		{ID: "a", Date: "2025-03-02", CustomerName: "B", Type: core.General},
		{ID: "c", Date: "bad", CustomerName: "C", Type: core.General},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidReservation))
	assert.Contains(t, err.Error(), "record 1")
	assert.Contains(t, err.Error(), "record 2")
	assert.Equal(t, 1, st.Len(), "store untouched")
}

func TestQueries(t *testing.T) {
	seed := []core.Reservation{
		{ID: "1", Date: "2025-03-05", CustomerName: "A", Type: core.General, TotalAmount: 10000,
			Rooms: []core.RoomAllocation{{RoomType: "本館1", GuestCount: 2}}},
		{ID: "2", Date: "2025-03-20", CustomerName: "B", Type: core.Student, TotalAmount: 4000},
		{ID: "3", Date: "2025-12-01", CustomerName: "C", Type: core.SchoolTrip, TotalAmount: 7000},
	}
	svc, _ := newService(t, seed)
	ctx := context.Background()

	ms, err := svc.MonthSales(ctx, core.NewMonthKey(2025, 3))
	require.NoError(t, err)
	assert.EqualValues(t, 14000, ms.TotalAmount)
	assert.EqualValues(t, 10000, ms.GeneralTotal)
	assert.EqualValues(t, 4000, ms.StudentTotal)
	assert.Equal(t, "2025年3月", ms.Name)

	_, err = svc.MonthSales(ctx, core.MonthKey("2025-13"))
	assert.True(t, errors.Is(err, core.ErrInvalidMonth))

	up, err := svc.UpcomingSales(ctx)
	require.NoError(t, err)
	require.Len(t, up, 6)
	assert.Equal(t, core.NewMonthKey(2025, 11), up[0].Month)
	assert.EqualValues(t, 7000, up[1].TotalAmount)
	assert.Equal(t, core.NewMonthKey(2026, 4), up[5].Month)

	summaries, err := svc.MonthlySummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	occ, err := svc.Occupancy(ctx, 2025, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, occ.Guests(5, "本館1"))

	_, err = svc.Occupancy(ctx, 2025, 0)
	assert.True(t, errors.Is(err, core.ErrInvalidMonth))
}

func TestExports(t *testing.T) {
	seed := []core.Reservation{
		{ID: "1", Date: "2025-03-05", CustomerName: "A", Type: core.General, TotalAmount: 10000},
	}
	svc, _ := newService(t, seed)
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, svc.ExportMonth(ctx, &buf, 2025, 3))
	assert.Contains(t, buf.String(), "A")

	buf.Reset()
	require.NoError(t, svc.ExportYear(ctx, &buf, 2025))
	assert.Contains(t, buf.String(), "2025-03-05")

	buf.Reset()
	err := svc.ExportMonth(ctx, &buf, 2025, 4)
	assert.True(t, errors.Is(err, export.ErrNoData))
}

func TestPreviewTotal(t *testing.T) {
	svc, _ := newService(t, nil)
	got := svc.PreviewTotal(core.Reservation{UnitPrice: 1000, NumberOfPeople: 3, Other: 500, BanquetHall: -10})
	assert.EqualValues(t, 3500, got.TotalAmount)
}
