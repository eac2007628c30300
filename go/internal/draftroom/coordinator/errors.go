package coordinator

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrorKind is the closed set of validation failures a submission can
// produce. Anything else coming out of SubmitPick/SubmitAutoPick is an
// infrastructure failure from the store.
type ErrorKind string

const (
	KindRoomNotFound         ErrorKind = "ROOM_NOT_FOUND"
	KindRoomNotActive        ErrorKind = "ROOM_NOT_ACTIVE"
	KindPickNumberMismatch   ErrorKind = "PICK_NUMBER_MISMATCH"
	KindNotYourTurn          ErrorKind = "NOT_YOUR_TURN"
	KindSelectionUnavailable ErrorKind = "SELECTION_UNAVAILABLE"
)

// PickError is a rejected submission. PickNumberMismatch is the
// normal, anticipated outcome of a race, not a bug; callers refresh
// and retry with corrected inputs rather than resubmitting blindly.
type PickError struct {
	Kind        ErrorKind
	RoomID      uuid.UUID
	PickNumber  int
	Participant uuid.UUID
	Detail      string
}

func (e *PickError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("pick rejected (%s): %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("pick rejected (%s)", e.Kind)
}

// KindOf extracts the rejection kind from an error chain. The second
// return is false for infrastructure failures.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PickError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
