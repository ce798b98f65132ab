package service

import (
	"errors"
	"fmt"

	"github.com/tutorhive/tutorhive-server/internal/model"
)

// ErrDuplicateSlot is returned by SlotStore.Create when a slot for the
// same (tutor, start_at) already exists. The generator treats it as
// "already generated, skip".
var ErrDuplicateSlot = model.ErrDuplicateSlot

// SchedulingError reports malformed availability or recurrence input.
type SchedulingError struct {
	Msg string
	Err error
}

func (e *SchedulingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scheduling: %s: %v", e.Msg, e.Err)
	}
	return "scheduling: " + e.Msg
}

func (e *SchedulingError) Unwrap() error { return e.Err }

func schedulingErr(format string, args ...interface{}) *SchedulingError {
	return &SchedulingError{Msg: fmt.Sprintf(format, args...)}
}

// IsSchedulingError unwraps err into a *SchedulingError, or nil.
func IsSchedulingError(err error) *SchedulingError {
	var se *SchedulingError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// BookingReason classifies why a booking operation was refused.
type BookingReason string

const (
	ReasonSlotUnavailable BookingReason = "slot_unavailable"
	ReasonInvalidHold     BookingReason = "invalid_hold"
	ReasonExpiredHold     BookingReason = "expired_hold"
	ReasonPolicy          BookingReason = "policy"
	ReasonNotFound        BookingReason = "not_found"
	ReasonPayment         BookingReason = "payment"
)

// BookingError reports a refused hold/confirm/cancel/reschedule. All
// variants are recoverable by the caller.
type BookingError struct {
	Reason BookingReason
	Msg    string
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("booking: %s (%s)", e.Msg, e.Reason)
}

func bookingErr(reason BookingReason, format string, args ...interface{}) *BookingError {
	return &BookingError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// IsBookingError unwraps err into a *BookingError, or nil.
func IsBookingError(err error) *BookingError {
	var be *BookingError
	if errors.As(err, &be) {
		return be
	}
	return nil
}

// AvailabilityError reports a failed availability-store query.
type AvailabilityError struct {
	Msg string
	Err error
}

func (e *AvailabilityError) Error() string {
	return fmt.Sprintf("availability: %s: %v", e.Msg, e.Err)
}

func (e *AvailabilityError) Unwrap() error { return e.Err }

// IsAvailabilityError unwraps err into an *AvailabilityError, or nil.
func IsAvailabilityError(err error) *AvailabilityError {
	var ae *AvailabilityError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}
