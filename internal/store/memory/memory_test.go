package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/events"
	"pawbook/backend/internal/store"
)

var day = domain.MustDate("2026-03-02")

func newBooking(emp uuid.UUID, start, end string) domain.Booking {
	return domain.Booking{
		CustomerID:    uuid.New(),
		EmployeeID:    emp,
		ServiceID:     uuid.New(),
		PetID:         uuid.New(),
		ScheduledDate: day,
		StartTime:     domain.MustTimeOfDay(start),
		EndTime:       domain.MustTimeOfDay(end),
		Status:        domain.StatusPending,
		CreatedBy:     domain.RoleCustomer,
	}
}

func TestInsertIfNonOverlapping(t *testing.T) {
	s := New()
	emp := uuid.New()
	ctx := context.Background()

	first, err := s.Bookings().InsertIfNonOverlapping(ctx, newBooking(emp, "10:00", "11:00"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = s.Bookings().InsertIfNonOverlapping(ctx, newBooking(emp, "10:30", "11:30"))
	assert.ErrorIs(t, err, store.ErrConflict)

	// adjacent intervals do not overlap
	_, err = s.Bookings().InsertIfNonOverlapping(ctx, newBooking(emp, "11:00", "12:00"))
	require.NoError(t, err)

	// another employee's calendar is independent
	_, err = s.Bookings().InsertIfNonOverlapping(ctx, newBooking(uuid.New(), "10:00", "11:00"))
	require.NoError(t, err)

	active, err := s.Bookings().FindActiveFor(ctx, emp, day)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "10:00", active[0].StartTime.String())
	assert.Equal(t, "11:00", active[1].StartTime.String())
}

func TestInsertIfNonOverlapping_IdempotentID(t *testing.T) {
	s := New()
	ctx := context.Background()
	b := newBooking(uuid.New(), "09:00", "09:30")
	b.ID = uuid.New()

	first, err := s.Bookings().InsertIfNonOverlapping(ctx, b)
	require.NoError(t, err)
	again, err := s.Bookings().InsertIfNonOverlapping(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, s.Outbox(), 1)

	b.EndTime = domain.MustTimeOfDay("10:00")
	_, err = s.Bookings().InsertIfNonOverlapping(ctx, b)
	assert.ErrorIs(t, err, store.ErrIdempotencyConflict)
}

func TestInsertIfNonOverlapping_ConcurrentSingleWinner(t *testing.T) {
	s := New()
	emp := uuid.New()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Bookings().InsertIfNonOverlapping(context.Background(), newBooking(emp, "14:00", "15:00"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestUpdateStatus_CompareAndSwap(t *testing.T) {
	s := New()
	ctx := context.Background()
	emp := uuid.New()
	b, err := s.Bookings().InsertIfNonOverlapping(ctx, newBooking(emp, "10:00", "11:00"))
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	_, err = s.Bookings().UpdateStatus(ctx, store.StatusUpdate{
		BookingID: b.ID, From: domain.StatusConfirmed, To: domain.StatusInProgress, Actor: domain.RoleEmployee, At: at,
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.Bookings().UpdateStatus(ctx, store.StatusUpdate{
		BookingID: uuid.New(), From: domain.StatusPending, To: domain.StatusConfirmed, At: at,
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	cancelled, err := s.Bookings().UpdateStatus(ctx, store.StatusUpdate{
		BookingID: b.ID,
		From:      domain.StatusPending,
		To:        domain.StatusCancelled,
		Actor:     domain.RoleCustomer,
		Cancellation: &domain.Cancellation{
			Initiator: domain.RoleCustomer, Reason: "moved", CancelledAt: at,
		},
		At: at,
	})
	require.NoError(t, err)
	require.NotNil(t, cancelled.Cancellation())
	assert.Equal(t, "moved", cancelled.Cancellation().Reason)
	assert.Equal(t, at, cancelled.UpdatedAt)

	// a cancelled booking frees its interval
	active, err := s.Bookings().FindActiveFor(ctx, emp, day)
	require.NoError(t, err)
	assert.Empty(t, active)
	_, err = s.Bookings().InsertIfNonOverlapping(ctx, newBooking(emp, "10:00", "11:00"))
	require.NoError(t, err)
}

func TestPublishBatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	emp := uuid.New()
	for _, start := range []string{"09:00", "10:00", "11:00"} {
		end := domain.MustTimeOfDay(start) + 30
		_, err := s.Bookings().InsertIfNonOverlapping(ctx, newBooking(emp, start, end.String()))
		require.NoError(t, err)
	}
	require.Len(t, s.Outbox(), 3)

	n, err := s.PublishBatch(ctx, 2, func(ctx context.Context, recs []events.Record) error {
		return errors.New("broker down")
	})
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Len(t, s.Outbox(), 3)

	var seen []events.Record
	n, err = s.PublishBatch(ctx, 2, func(ctx context.Context, recs []events.Record) error {
		seen = append(seen, recs...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, seen, 2)
	assert.Equal(t, events.TypeBookingCreated, seen[0].EventType)
	assert.Less(t, seen[0].ID, seen[1].ID)
	assert.Len(t, s.Outbox(), 1)
}

func TestPublishBatch_CallbackMayUseStore(t *testing.T) {
	s := New()
	ctx := context.Background()
	emp := s.AddEmployee(domain.Employee{DisplayName: "Dana", IsActive: true})
	for _, start := range []string{"09:00", "10:00"} {
		end := domain.MustTimeOfDay(start) + 30
		_, err := s.Bookings().InsertIfNonOverlapping(ctx, newBooking(emp.ID, start, end.String()))
		require.NoError(t, err)
	}

	done := make(chan struct{})
	var (
		n        int
		err      error
		inFlight []events.Record
	)
	go func() {
		defer close(done)
		n, err = s.PublishBatch(ctx, 10, func(ctx context.Context, recs []events.Record) error {
			inFlight = s.Outbox()
			if ok, err := s.EmployeeExists(ctx, emp.ID); err != nil || !ok {
				return errors.New("employee lookup failed")
			}
			_, err := s.Bookings().InsertIfNonOverlapping(ctx, newBooking(emp.ID, "13:00", "13:30"))
			return err
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("PublishBatch did not return while its callback used the store")
	}
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, inFlight, 2)

	// the record written during publishing survives the trim
	rest := s.Outbox()
	require.Len(t, rest, 1)
	assert.Greater(t, rest[0].ID, inFlight[1].ID)
}

func TestScheduleLookups(t *testing.T) {
	s := New()
	ctx := context.Background()
	active := s.AddEmployee(domain.Employee{DisplayName: "A", IsActive: true})
	inactive := s.AddEmployee(domain.Employee{DisplayName: "B"})

	ok, err := s.EmployeeExists(ctx, active.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = s.EmployeeExists(ctx, inactive.ID)
	assert.False(t, ok)
	ok, _ = s.EmployeeExists(ctx, uuid.New())
	assert.False(t, ok)

	_, err = s.FindFor(ctx, active.ID, day)
	assert.ErrorIs(t, err, store.ErrNotFound)
	s.PutShiftOverride(domain.ShiftOverride{EmployeeID: active.ID, Date: day})
	o, err := s.FindFor(ctx, active.ID, day)
	require.NoError(t, err)
	assert.False(t, o.IsWorking)

	_, err = s.FindService(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
