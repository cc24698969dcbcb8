package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ShiftTemplate is an employee's recurring availability for one weekday.
type ShiftTemplate struct {
	bun.BaseModel `bun:"table:shift_templates"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	EmployeeID    uuid.UUID `bun:"employee_id,notnull,type:uuid"`
	DayOfWeek     int       `bun:"day_of_week,notnull"`
	StartTime     TimeOfDay `bun:"start_time,notnull,type:char(5)"`
	EndTime       TimeOfDay `bun:"end_time,notnull,type:char(5)"`
	EffectiveFrom Date      `bun:"effective_from,notnull,type:date"`
	EffectiveTo   *Date     `bun:"effective_to,type:date"`
	IsActive      bool      `bun:"is_active,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (s *ShiftTemplate) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// AppliesOn reports whether the template is active for d's weekday and its
// effective range contains d.
func (s ShiftTemplate) AppliesOn(d Date) bool {
	return s.IsActive && s.DayOfWeek == d.Weekday() && s.effective().Contains(d)
}

func (s ShiftTemplate) Window() (Interval, error) {
	return workingWindow(s.StartTime, s.EndTime, "shift template "+s.ID.String())
}

func (s ShiftTemplate) effective() DateRange {
	return DateRange{From: s.EffectiveFrom, To: s.EffectiveTo}
}

// ShiftOverride replaces the template for exactly one date.
type ShiftOverride struct {
	bun.BaseModel `bun:"table:shift_overrides"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	EmployeeID uuid.UUID  `bun:"employee_id,notnull,type:uuid"`
	Date       Date       `bun:"date,notnull,type:date"`
	IsWorking  bool       `bun:"is_working,notnull"`
	StartTime  *TimeOfDay `bun:"start_time,type:char(5)"`
	EndTime    *TimeOfDay `bun:"end_time,type:char(5)"`
	Reason     string     `bun:"reason"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
}

func (o *ShiftOverride) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &o.ID, &o.CreatedAt, &o.UpdatedAt)
}

// Window returns the override's working window. It must only be called on a
// working override; hours are required iff IsWorking.
func (o ShiftOverride) Window() (Interval, error) {
	name := "shift override " + o.Date.String()
	if !o.IsWorking {
		return Interval{}, fmt.Errorf("%w: %s is a day off", ErrInvalidScheduleConfiguration, name)
	}
	if o.StartTime == nil || o.EndTime == nil {
		return Interval{}, fmt.Errorf("%w: %s is working but has no hours", ErrInvalidScheduleConfiguration, name)
	}
	return workingWindow(*o.StartTime, *o.EndTime, name)
}

// BreakTemplate subtracts a window from whatever working window applies.
// A nil DayOfWeek applies on every working day.
type BreakTemplate struct {
	bun.BaseModel `bun:"table:break_templates"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	EmployeeID    uuid.UUID `bun:"employee_id,notnull,type:uuid"`
	DayOfWeek     *int      `bun:"day_of_week"`
	Name          string    `bun:"name,notnull"`
	StartTime     TimeOfDay `bun:"start_time,notnull,type:char(5)"`
	EndTime       TimeOfDay `bun:"end_time,notnull,type:char(5)"`
	EffectiveFrom Date      `bun:"effective_from,notnull,type:date"`
	EffectiveTo   *Date     `bun:"effective_to,type:date"`
	IsActive      bool      `bun:"is_active,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (b *BreakTemplate) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (b BreakTemplate) AppliesOn(d Date) bool {
	if !b.IsActive {
		return false
	}
	if b.DayOfWeek != nil && *b.DayOfWeek != d.Weekday() {
		return false
	}
	return DateRange{From: b.EffectiveFrom, To: b.EffectiveTo}.Contains(d)
}

func (b BreakTemplate) Window() (Interval, error) {
	return workingWindow(b.StartTime, b.EndTime, "break "+b.Name)
}

// Employee is the minimal record the engine needs to tell an unknown
// employee apart from one who is simply not working.
type Employee struct {
	bun.BaseModel `bun:"table:employees"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	DisplayName string    `bun:"display_name,notnull"`
	IsActive    bool      `bun:"is_active,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (e *Employee) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stampModel(query, &e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func workingWindow(start, end TimeOfDay, name string) (Interval, error) {
	if !start.Valid() || !end.Valid() {
		return Interval{}, fmt.Errorf("%w: %s has out of range hours", ErrInvalidScheduleConfiguration, name)
	}
	if end <= start {
		return Interval{}, fmt.Errorf("%w: %s ends at %s, not after %s", ErrInvalidScheduleConfiguration, name, end, start)
	}
	return Interval{Start: start, End: end}, nil
}

func stampModel(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			v, err := uuid.NewV7()
			if err != nil {
				return err
			}
			*id = v
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		*updatedAt = now
	}
	return nil
}
