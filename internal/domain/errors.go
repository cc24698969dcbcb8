package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDuration              = errors.New("invalid duration")
	ErrInvalidGranularity           = errors.New("invalid granularity")
	ErrInvalidScheduleConfiguration = errors.New("invalid schedule configuration")
	ErrSlotNoLongerAvailable        = errors.New("slot no longer available")
	ErrIllegalTransition            = errors.New("illegal transition")
	ErrNoOpTransition               = errors.New("no-op transition")
	ErrNotFound                     = errors.New("not found")
)

// Each of these matches ErrNotFound as well as itself under errors.Is.
var (
	ErrEmployeeNotFound = fmt.Errorf("employee %w", ErrNotFound)
	ErrServiceNotFound  = fmt.Errorf("service %w", ErrNotFound)
	ErrBookingNotFound  = fmt.Errorf("booking %w", ErrNotFound)
)
