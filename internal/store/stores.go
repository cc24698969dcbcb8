package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pawbook/backend/internal/domain"
)

type EmployeeStore interface {
	// EmployeeExists reports whether an active employee with the id exists.
	EmployeeExists(ctx context.Context, employeeID uuid.UUID) (bool, error)
}

type ShiftTemplateStore interface {
	// FindActiveFor returns every active template whose weekday matches date
	// and whose effective range contains it. More than one result is a data
	// error the caller must surface.
	FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.ShiftTemplate, error)
}

type ShiftOverrideStore interface {
	// FindFor returns the override for (employeeID, date) or ErrNotFound.
	FindFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) (domain.ShiftOverride, error)
}

type BreakTemplateStore interface {
	FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.BreakTemplate, error)
}

type ServiceStore interface {
	// FindService returns the service or ErrNotFound.
	FindService(ctx context.Context, serviceID uuid.UUID) (domain.Service, error)
}

// StatusUpdate is a compare-and-swap of a booking's status.
type StatusUpdate struct {
	BookingID    uuid.UUID
	From         domain.BookingStatus
	To           domain.BookingStatus
	Actor        domain.Role
	Cancellation *domain.Cancellation
	At           time.Time
}

type BookingStore interface {
	// FindActiveFor returns the employee's bookings on date that still block
	// the calendar, ordered by start time.
	FindActiveFor(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.Booking, error)

	// InsertIfNonOverlapping stores b unless a calendar-blocking booking for
	// the same employee and date overlaps it, in which case it returns
	// ErrConflict. Re-inserting an identical booking id returns the stored row;
	// a different payload under the same id returns ErrIdempotencyConflict.
	InsertIfNonOverlapping(ctx context.Context, b domain.Booking) (domain.Booking, error)

	// UpdateStatus applies u only if the booking is still in u.From. It returns
	// ErrNotFound for an unknown id and ErrConflict when the status moved.
	UpdateStatus(ctx context.Context, u StatusUpdate) (domain.Booking, error)

	Get(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
}
