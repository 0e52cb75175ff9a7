package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidScheduleInput = errors.New("invalid_schedule_input")
	ErrStoreUnavailable     = errors.New("store_unavailable")

	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidAmountPaid = errors.New("invalid_amount_paid")
	ErrInvalidPaidDate   = errors.New("invalid_paid_date")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotFound          = errors.New("not_found")
)

var (
	ErrInvalidStartDate   = &ScheduleInputError{Code: "invalid_start_date"}
	ErrInvalidMonthlyRent = &ScheduleInputError{Code: "invalid_monthly_rent"}
	ErrInvalidTenancy     = &ScheduleInputError{Code: "invalid_tenancy"}
	ErrInvalidAsOf        = &ScheduleInputError{Code: "invalid_as_of"}
)

// ScheduleInputError rejects engine input before any computation. It matches
// ErrInvalidScheduleInput.
type ScheduleInputError struct {
	Code string
}

func (e *ScheduleInputError) Error() string {
	return e.Code
}

func (e *ScheduleInputError) Is(target error) bool {
	if target == ErrInvalidScheduleInput {
		return true
	}
	other, ok := target.(*ScheduleInputError)
	return ok && other.Code == e.Code
}

// StoreError wraps a PaymentStore failure. It matches ErrStoreUnavailable and
// unwraps to the driver error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store_unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
