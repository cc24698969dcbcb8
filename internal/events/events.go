// Package events carries booking state changes to collaborators: in-process
// subscribers through Bus, and other services through the transactional
// outbox and Relay.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pawbook/backend/internal/domain"
)

const (
	TypeBookingCreated = "booking.created"
	TypeStatusChanged  = "booking.status_changed"
)

// StatusChanged is emitted for every successful transition. Creation is
// reported with an empty PreviousStatus and Type TypeBookingCreated.
type StatusChanged struct {
	Type           string               `json:"type"`
	BookingID      uuid.UUID            `json:"booking_id"`
	EmployeeID     uuid.UUID            `json:"employee_id"`
	PreviousStatus domain.BookingStatus `json:"previous_status,omitempty"`
	NewStatus      domain.BookingStatus `json:"new_status"`
	ActorRole      domain.Role          `json:"actor_role"`
	OccurredAt     time.Time            `json:"occurred_at"`
	Cancellation   *domain.Cancellation `json:"cancellation,omitempty"`
}

func Created(b domain.Booking, at time.Time) StatusChanged {
	return StatusChanged{
		Type:       TypeBookingCreated,
		BookingID:  b.ID,
		EmployeeID: b.EmployeeID,
		NewStatus:  b.Status,
		ActorRole:  b.CreatedBy,
		OccurredAt: at.UTC(),
	}
}

func Transitioned(b domain.Booking, from domain.BookingStatus, actor domain.Role, at time.Time) StatusChanged {
	return StatusChanged{
		Type:           TypeStatusChanged,
		BookingID:      b.ID,
		EmployeeID:     b.EmployeeID,
		PreviousStatus: from,
		NewStatus:      b.Status,
		ActorRole:      actor,
		OccurredAt:     at.UTC(),
		Cancellation:   b.Cancellation(),
	}
}

// Record is one outbox row.
type Record struct {
	ID          int64
	EventID     uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

func NewRecord(evt StatusChanged) (Record, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Record{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, err
	}
	return Record{
		EventID:     id,
		AggregateID: evt.BookingID.String(),
		EventType:   evt.Type,
		Payload:     payload,
		CreatedAt:   evt.OccurredAt,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, evt StatusChanged)
}

type Handler func(ctx context.Context, evt StatusChanged) error

// Bus provides in-process pub/sub. Handlers run synchronously in
// subscription order; a failing handler is logged and does not stop the rest.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	log         *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string][]Handler),
		log:         log.With(slog.String("component", "events.bus")),
	}
}

func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], h)
}

func (b *Bus) Publish(ctx context.Context, evt StatusChanged) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[evt.Type]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, evt); err != nil {
			b.log.Warn("event handler failed",
				slog.Any("err", err),
				slog.String("event_type", evt.Type),
				slog.String("booking_id", evt.BookingID.String()),
			)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, StatusChanged) {}
