package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	StatusPending    BookingStatus = "pending"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusInProgress BookingStatus = "in-progress"
	StatusCompleted  BookingStatus = "completed"
	StatusCancelled  BookingStatus = "cancelled"
)

// Statuses lists every booking status in lifecycle order.
var Statuses = []BookingStatus{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled}

func ParseBookingStatus(s string) (BookingStatus, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// BlocksCalendar reports whether a booking in this status occupies its
// interval for availability purposes.
func (s BookingStatus) BlocksCalendar() bool {
	return s != StatusCancelled
}

// CanReschedule reports whether a booking in this status may be moved.
func (s BookingStatus) CanReschedule() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

var Roles = []Role{RoleCustomer, RoleEmployee, RoleAdmin, RoleSystem}

func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Cancellation records who cancelled a booking and why.
type Cancellation struct {
	Initiator   Role      `json:"initiator"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID            uuid.UUID     `bun:"id,pk,type:uuid"`
	CustomerID    uuid.UUID     `bun:"customer_id,notnull,type:uuid"`
	EmployeeID    uuid.UUID     `bun:"employee_id,notnull,type:uuid"`
	ServiceID     uuid.UUID     `bun:"service_id,notnull,type:uuid"`
	PetID         uuid.UUID     `bun:"pet_id,notnull,type:uuid"`
	ScheduledDate Date          `bun:"scheduled_date,notnull,type:date"`
	StartTime     TimeOfDay     `bun:"start_time,notnull,type:char(5)"`
	EndTime       TimeOfDay     `bun:"end_time,notnull,type:char(5)"`
	Status        BookingStatus `bun:"status,notnull"`
	CreatedBy     Role          `bun:"created_by,notnull"`

	CancelInitiator *Role      `bun:"cancel_initiator"`
	CancelReason    string     `bun:"cancel_reason"`
	CancelledAt     *time.Time `bun:"cancelled_at"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (b Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// Cancellation returns the recorded provenance, or nil when the booking was
// never cancelled.
func (b Booking) Cancellation() *Cancellation {
	if b.CancelInitiator == nil || b.CancelledAt == nil {
		return nil
	}
	return &Cancellation{
		Initiator:   *b.CancelInitiator,
		Reason:      b.CancelReason,
		CancelledAt: *b.CancelledAt,
	}
}

func (b *Booking) SetCancellation(c Cancellation) {
	initiator := c.Initiator
	at := c.CancelledAt.UTC()
	b.CancelInitiator = &initiator
	b.CancelReason = c.Reason
	b.CancelledAt = &at
}

// SameRequest reports whether two bookings describe the same appointment.
// Status and timestamps are ignored.
func (b Booking) SameRequest(o Booking) bool {
	return b.CustomerID == o.CustomerID &&
		b.EmployeeID == o.EmployeeID &&
		b.ServiceID == o.ServiceID &&
		b.PetID == o.PetID &&
		b.ScheduledDate.Equal(o.ScheduledDate) &&
		b.StartTime == o.StartTime &&
		b.EndTime == o.EndTime
}
