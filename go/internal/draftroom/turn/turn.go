// Package turn computes snake-draft turn assignments. It is pure and
// side-effect free so the coordinator (for authorization) and the
// gateway (for on-the-clock display) always agree without consulting
// each other.
package turn

import (
	"errors"

	"github.com/google/uuid"
)

// ErrInvalidInput is returned when the draft order is empty or the
// pick number is not positive.
var ErrInvalidInput = errors.New("invalid turn input")

// Assignment identifies who owns a pick slot and where it falls.
type Assignment struct {
	Round            int
	IndexWithinRound int
	Participant      uuid.UUID
}

// Resolve returns the assignment for a 1-based overall pick number in
// standard snake order: odd rounds run forward through order, even
// rounds reversed.
func Resolve(pickNumber int, order []uuid.UUID) (Assignment, error) {
	return resolve(pickNumber, order, false)
}

// ResolveWithReversal applies the third-round-reversal variant: when
// enabled, every round from round 3 onward is reversed instead of
// alternating.
func ResolveWithReversal(pickNumber int, order []uuid.UUID, thirdRoundReversal bool) (Assignment, error) {
	return resolve(pickNumber, order, thirdRoundReversal)
}

func resolve(pickNumber int, order []uuid.UUID, thirdRoundReversal bool) (Assignment, error) {
	n := len(order)
	if n == 0 || pickNumber < 1 {
		return Assignment{}, ErrInvalidInput
	}

	round := (pickNumber-1)/n + 1
	idx := (pickNumber - 1) % n

	reversed := round%2 == 0
	if thirdRoundReversal && round >= 3 {
		reversed = true
	}

	a := Assignment{Round: round, IndexWithinRound: idx}
	if reversed {
		a.Participant = order[n-1-idx]
	} else {
		a.Participant = order[idx]
	}
	return a, nil
}
