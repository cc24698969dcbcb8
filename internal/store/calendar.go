package store

import (
	"context"

	"github.com/google/uuid"

	"pawbook/backend/internal/domain"
)

// CalendarTx is the view of one employee's day held under that day's lock.
type CalendarTx interface {
	GetBooking(ctx context.Context, bookingID uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, employeeID uuid.UUID, date domain.Date) ([]domain.Booking, error)
	InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
}
