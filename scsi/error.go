package scsi

import "fmt"

// Error is the sense exception a LogicalUnit returns instead of a successful
// result. The controller catches it with errors.As and turns it into a
// CHECK_CONDITION status plus the matching sense data, replacing the
// exceptions-as-control-flow pattern of the original C++ implementation.
type Error struct {
	SenseKey SenseKey
	Asc      Asc
	Ascq     Ascq
	// Status overrides the status byte the controller reports; zero value
	// means StatusCheckCondition, the common case.
	Status Status
}

// NewError builds a sense error with the default CHECK_CONDITION status.
func NewError(key SenseKey, asc Asc) *Error {
	return &Error{SenseKey: key, Asc: asc, Status: StatusCheckCondition}
}

// NewErrorStatus builds a sense error reporting an explicit status code,
// used by the reservation-conflict path (RESERVATION_CONFLICT, not
// CHECK_CONDITION).
func NewErrorStatus(key SenseKey, asc Asc, status Status) *Error {
	return &Error{SenseKey: key, Asc: asc, Status: status}
}

func (e *Error) Error() string {
	return fmt.Sprintf("scsi: sense key %#02x asc %#02x ascq %#02x", byte(e.SenseKey), byte(e.Asc), byte(e.Ascq))
}
