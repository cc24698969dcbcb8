package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Service is a bookable offering from the catalog.
type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	Name            string    `bun:"name,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	IsActive        bool      `bun:"is_active,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
}

func (s *Service) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// AvailableSlot is a bookable [Start, End) on one date for one employee. It
// is only valid for the duration it was computed against.
type AvailableSlot struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func (s AvailableSlot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// MinGranularityMinutes is the finest step between offered start times.
const MinGranularityMinutes = 5

// ValidateGranularity accepts 5..240 minutes that either divide an hour or
// are a whole number of hours.
func ValidateGranularity(minutes int) error {
	if minutes < MinGranularityMinutes || minutes > 240 {
		return fmt.Errorf("%w: must be within 5..240, got %d", ErrInvalidGranularity, minutes)
	}
	if 60%minutes != 0 && minutes%60 != 0 {
		return fmt.Errorf("%w: must divide 60 or be a multiple of it, got %d", ErrInvalidGranularity, minutes)
	}
	return nil
}

// ValidateDuration accepts a service length that can fit within one day.
func ValidateDuration(minutes int) error {
	if minutes <= 0 || minutes > MinutesPerDay {
		return fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
	}
	return nil
}
