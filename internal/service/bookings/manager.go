// Package bookings owns the booking lifecycle: creation against live
// availability and role-gated status transitions.
package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pawbook/backend/internal/domain"
	"pawbook/backend/internal/events"
	"pawbook/backend/internal/metrics"
	"pawbook/backend/internal/service/availability"
	"pawbook/backend/internal/store"
)

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// SlotResolver re-checks a requested interval against live availability.
type SlotResolver interface {
	Fits(ctx context.Context, employeeID uuid.UUID, date domain.Date, iv domain.Interval) (bool, error)
}

type Manager struct {
	resolver SlotResolver
	bookings store.BookingStore
	catalog  availability.DurationLookup
	table    TransitionTable
	events   events.Publisher
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Manager)

// WithCatalog is required for Create: every booking takes the catalog
// duration of its service.
func WithCatalog(c availability.DurationLookup) Option {
	return func(m *Manager) { m.catalog = c }
}

func WithTransitionTable(t TransitionTable) Option {
	return func(m *Manager) { m.table = t }
}

// WithPublisher receives events after the store has committed them.
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.events = p }
}

func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(resolver SlotResolver, bookings store.BookingStore, opts ...Option) *Manager {
	m := &Manager{
		resolver: resolver,
		bookings: bookings,
		table:    DefaultTransitionTable(),
		events:   events.Discard{},
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(slog.String("component", "bookings"))
	return m
}

func (m *Manager) TransitionTable() TransitionTable {
	return m.table
}

type CreateInput struct {
	Actor      domain.Role
	CustomerID uuid.UUID
	EmployeeID uuid.UUID
	ServiceID  uuid.UUID
	PetID      uuid.UUID
	Date       domain.Date
	StartTime  domain.TimeOfDay
	// IdempotencyKey makes retries of the same request return one booking.
	IdempotencyKey string
}

// Create books [StartTime, StartTime+duration) in pending, where duration is
// the catalog duration of ServiceID. The interval must still be bookable at
// call time; losing it to a concurrent booking is
// domain.ErrSlotNoLongerAvailable.
func (m *Manager) Create(ctx context.Context, in CreateInput) (domain.Booking, error) {
	if in.Actor == "" {
		in.Actor = domain.RoleCustomer
	}
	if in.Actor != domain.RoleCustomer && in.Actor != domain.RoleAdmin {
		return domain.Booking{}, validationError("bookings are created by a customer or an admin")
	}
	switch {
	case in.CustomerID == uuid.Nil:
		return domain.Booking{}, validationError("customer_id is required")
	case in.EmployeeID == uuid.Nil:
		return domain.Booking{}, validationError("employee_id is required")
	case in.ServiceID == uuid.Nil:
		return domain.Booking{}, validationError("service_id is required")
	case in.PetID == uuid.Nil:
		return domain.Booking{}, validationError("pet_id is required")
	case in.Date.IsZero():
		return domain.Booking{}, validationError("date is required")
	case !in.StartTime.Valid():
		return domain.Booking{}, validationError("start_time must be HH:mm")
	}

	if m.catalog == nil {
		return domain.Booking{}, errors.New("bookings: no service catalog configured")
	}
	duration, err := m.catalog.Duration(ctx, in.ServiceID)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := domain.ValidateDuration(duration); err != nil {
		return domain.Booking{}, err
	}

	b := domain.Booking{
		CustomerID:    in.CustomerID,
		EmployeeID:    in.EmployeeID,
		ServiceID:     in.ServiceID,
		PetID:         in.PetID,
		ScheduledDate: in.Date,
		StartTime:     in.StartTime,
		EndTime:       in.StartTime + domain.TimeOfDay(duration),
		Status:        domain.StatusPending,
		CreatedBy:     in.Actor,
		CreatedAt:     m.now().UTC(),
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Booking{}, validationError("idempotency_key too long")
		}
		b.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("pawbook:create_booking:"+in.CustomerID.String()+":"+key))

		// a replay would otherwise be rejected by its own booking
		existing, err := m.bookings.Get(ctx, b.ID)
		switch {
		case err == nil:
			if !existing.SameRequest(b) {
				return domain.Booking{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Booking{}, err
		}
	}

	fits, err := m.resolver.Fits(ctx, in.EmployeeID, in.Date, b.Interval())
	if err != nil {
		return domain.Booking{}, err
	}
	if !fits {
		metrics.IncBookingConflict()
		return domain.Booking{}, fmt.Errorf("%w: %s %s on %s", domain.ErrSlotNoLongerAvailable, in.EmployeeID, b.Interval(), in.Date)
	}

	created, err := m.bookings.InsertIfNonOverlapping(ctx, b)
	if errors.Is(err, store.ErrConflict) {
		metrics.IncBookingConflict()
		m.log.Info("booking lost slot race",
			slog.String("employee_id", in.EmployeeID.String()),
			slog.String("date", in.Date.String()),
			slog.String("slot", b.Interval().String()),
		)
		return domain.Booking{}, fmt.Errorf("%w: %s %s on %s", domain.ErrSlotNoLongerAvailable, in.EmployeeID, b.Interval(), in.Date)
	}
	if err != nil {
		return domain.Booking{}, err
	}

	metrics.IncBookingCreated()
	m.events.Publish(ctx, events.Created(created, created.CreatedAt))
	return created, nil
}

type TransitionInput struct {
	BookingID uuid.UUID
	Actor     domain.Role
	Target    domain.BookingStatus
	// Initiator and Reason are only read when Target is cancelled.
	Initiator domain.Role
	Reason    string
}

// Transition moves a booking to in.Target if the transition table allows
// it for in.Actor. Asking for the current status is domain.ErrNoOpTransition.
func (m *Manager) Transition(ctx context.Context, in TransitionInput) (domain.Booking, error) {
	if in.BookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	if _, err := domain.ParseRole(string(in.Actor)); err != nil {
		return domain.Booking{}, validationError("actor_role is invalid")
	}
	if _, err := domain.ParseBookingStatus(string(in.Target)); err != nil {
		return domain.Booking{}, validationError("target_status is invalid")
	}

	current, err := m.Get(ctx, in.BookingID)
	if err != nil {
		return domain.Booking{}, err
	}

	var cancellation *domain.Cancellation
	if in.Target == domain.StatusCancelled {
		if in.Initiator == "" {
			return domain.Booking{}, validationError("cancellation initiator is required")
		}
		if _, err := domain.ParseRole(string(in.Initiator)); err != nil {
			return domain.Booking{}, validationError("cancellation initiator is invalid")
		}
		if in.Actor != domain.RoleAdmin && in.Initiator != in.Actor {
			return domain.Booking{}, validationError("only an admin may attribute a cancellation to another role")
		}
		cancellation = &domain.Cancellation{
			Initiator:   in.Initiator,
			Reason:      strings.TrimSpace(in.Reason),
			CancelledAt: m.now().UTC(),
		}
	}

	if err := m.check(current, in.Actor, in.Target); err != nil {
		return domain.Booking{}, err
	}

	at := m.now().UTC()
	updated, err := m.bookings.UpdateStatus(ctx, store.StatusUpdate{
		BookingID:    in.BookingID,
		From:         current.Status,
		To:           in.Target,
		Actor:        in.Actor,
		Cancellation: cancellation,
		At:           at,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.Booking{}, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, in.BookingID)
	case errors.Is(err, store.ErrConflict):
		return domain.Booking{}, m.lostRace(ctx, in)
	case err != nil:
		return domain.Booking{}, err
	}

	metrics.IncTransition(string(current.Status), string(in.Target), string(in.Actor))
	m.log.Info("booking transitioned",
		slog.String("booking_id", updated.ID.String()),
		slog.String("from", string(current.Status)),
		slog.String("to", string(updated.Status)),
		slog.String("actor", string(in.Actor)),
	)
	m.events.Publish(ctx, events.Transitioned(updated, current.Status, in.Actor, at))
	return updated, nil
}

func (m *Manager) check(current domain.Booking, actor domain.Role, target domain.BookingStatus) error {
	if current.Status == target {
		metrics.IncTransitionRejected("noop")
		return fmt.Errorf("%w: booking %s is already %s", domain.ErrNoOpTransition, current.ID, target)
	}
	if !m.table.Allowed(actor, current.Status, target) {
		metrics.IncTransitionRejected("illegal")
		m.log.Info("transition rejected",
			slog.String("booking_id", current.ID.String()),
			slog.String("from", string(current.Status)),
			slog.String("to", string(target)),
			slog.String("actor", string(actor)),
		)
		return fmt.Errorf("%w: %s may not move %s to %s", domain.ErrIllegalTransition, actor, current.Status, target)
	}
	return nil
}

// lostRace re-reads once after a concurrent transition won.
func (m *Manager) lostRace(ctx context.Context, in TransitionInput) error {
	metrics.IncTransitionRejected("lost_race")
	current, err := m.Get(ctx, in.BookingID)
	if err != nil {
		return err
	}
	if current.Status == in.Target {
		return fmt.Errorf("%w: booking %s is already %s", domain.ErrNoOpTransition, current.ID, in.Target)
	}
	return fmt.Errorf("%w: booking %s moved to %s concurrently", domain.ErrIllegalTransition, current.ID, current.Status)
}

func (m *Manager) Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error) {
	if bookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	b, err := m.bookings.Get(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Booking{}, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, bookingID)
	}
	return b, err
}
