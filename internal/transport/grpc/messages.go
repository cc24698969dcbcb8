package grpc

import (
	"time"

	"pawbook/backend/internal/domain"
)

// Dates travel as YYYY-MM-DD and times of day as HH:mm.

type ResolveAvailabilityRequest struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	// ServiceID is resolved through the catalog when DurationMinutes is zero.
	// A zero GranularityMinutes uses the server default.
	ServiceID          string `json:"service_id,omitempty"`
	DurationMinutes    int    `json:"duration_minutes,omitempty"`
	GranularityMinutes int    `json:"granularity_minutes,omitempty"`
}

type Slot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type ResolveAvailabilityResponse struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Slots      []Slot `json:"slots"`
}

// CreateBookingRequest carries no duration: the booked length is always the
// catalog duration of ServiceID.
type CreateBookingRequest struct {
	ActorRole  string `json:"actor_role,omitempty"`
	CustomerID string `json:"customer_id"`
	EmployeeID string `json:"employee_id"`
	ServiceID  string `json:"service_id"`
	PetID      string `json:"pet_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
}

type CreateBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type TransitionBookingRequest struct {
	BookingID    string `json:"booking_id"`
	ActorRole    string `json:"actor_role"`
	TargetStatus string `json:"target_status"`
	Initiator    string `json:"initiator,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type TransitionBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type GetBookingRequest struct {
	BookingID string `json:"booking_id"`
}

type GetBookingResponse struct {
	Booking *Booking `json:"booking"`
}

type Cancellation struct {
	Initiator   string    `json:"initiator"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type Booking struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customer_id"`
	EmployeeID   string        `json:"employee_id"`
	ServiceID    string        `json:"service_id"`
	PetID        string        `json:"pet_id"`
	Date         string        `json:"date"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	Status       string        `json:"status"`
	CreatedBy    string        `json:"created_by"`
	Cancellation *Cancellation `json:"cancellation,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func toWireBooking(b domain.Booking) *Booking {
	out := &Booking{
		ID:         b.ID.String(),
		CustomerID: b.CustomerID.String(),
		EmployeeID: b.EmployeeID.String(),
		ServiceID:  b.ServiceID.String(),
		PetID:      b.PetID.String(),
		Date:       b.ScheduledDate.String(),
		StartTime:  b.StartTime.String(),
		EndTime:    b.EndTime.String(),
		Status:     string(b.Status),
		CreatedBy:  string(b.CreatedBy),
		CreatedAt:  b.CreatedAt.UTC(),
		UpdatedAt:  b.UpdatedAt.UTC(),
	}
	if c := b.Cancellation(); c != nil {
		out.Cancellation = &Cancellation{
			Initiator:   string(c.Initiator),
			Reason:      c.Reason,
			CancelledAt: c.CancelledAt.UTC(),
		}
	}
	return out
}

func toWireSlots(slots []domain.AvailableSlot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		out = append(out, Slot{Start: s.Start.String(), End: s.End.String()})
	}
	return out
}
