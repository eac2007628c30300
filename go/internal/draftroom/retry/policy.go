// Package retry maps submission errors to caller recovery decisions.
// It lives outside the coordinator on purpose: the coordinator only
// reports what happened; what to do next is caller policy.
package retry

import "github.com/topdogsports/draftroom/go/internal/draftroom/coordinator"

// Decision is what a caller should do after a failed submission.
type Decision int

const (
	// Abort: stop; retrying cannot succeed (room gone or not accepting picks).
	Abort Decision = iota
	// RefreshAndRetry: re-read fresh room state and retry with
	// corrected inputs. Never resubmit the same candidate values.
	RefreshAndRetry
	// Surface: show the rejection to the user; do not retry automatically.
	Surface
)

func (d Decision) String() string {
	switch d {
	case Abort:
		return "abort"
	case RefreshAndRetry:
		return "refresh-and-retry"
	case Surface:
		return "surface"
	default:
		return "unknown"
	}
}

// Decide returns the recovery decision for an error from
// SubmitPick/SubmitAutoPick. Infrastructure failures (anything that is
// not a PickError) are retryable with backoff since the store
// guarantees no partial state was applied.
func Decide(err error) Decision {
	kind, ok := coordinator.KindOf(err)
	if !ok {
		return RefreshAndRetry
	}

	switch kind {
	case coordinator.KindPickNumberMismatch:
		return RefreshAndRetry
	case coordinator.KindNotYourTurn, coordinator.KindSelectionUnavailable:
		return Surface
	case coordinator.KindRoomNotFound, coordinator.KindRoomNotActive:
		return Abort
	default:
		return Abort
	}
}
