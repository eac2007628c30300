package turn

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(n int) []uuid.UUID {
	order := make([]uuid.UUID, n)
	for i := range order {
		order[i] = uuid.New()
	}
	return order
}

func TestResolveSnakeOrder(t *testing.T) {
	order := testOrder(3)
	a, b, c := order[0], order[1], order[2]

	// Three participants: round 1 forward, round 2 reversed, round 3
	// forward again.
	expected := []struct {
		pick        int
		round       int
		idx         int
		participant uuid.UUID
	}{
		{1, 1, 0, a},
		{2, 1, 1, b},
		{3, 1, 2, c},
		{4, 2, 0, c},
		{5, 2, 1, b},
		{6, 2, 2, a},
		{7, 3, 0, a},
	}

	for _, tc := range expected {
		got, err := Resolve(tc.pick, order)
		require.NoError(t, err, "pick %d", tc.pick)
		assert.Equal(t, tc.round, got.Round, "round for pick %d", tc.pick)
		assert.Equal(t, tc.idx, got.IndexWithinRound, "index for pick %d", tc.pick)
		assert.Equal(t, tc.participant, got.Participant, "participant for pick %d", tc.pick)
	}
}

func TestResolveSingleParticipant(t *testing.T) {
	order := testOrder(1)
	for pick := 1; pick <= 5; pick++ {
		got, err := Resolve(pick, order)
		require.NoError(t, err)
		assert.Equal(t, order[0], got.Participant)
		assert.Equal(t, pick, got.Round)
		assert.Equal(t, 0, got.IndexWithinRound)
	}
}

func TestResolveDeterministic(t *testing.T) {
	order := testOrder(4)
	first, err := Resolve(11, order)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := Resolve(11, order)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestResolveEachRoundCoversEveryParticipant(t *testing.T) {
	order := testOrder(5)
	rounds := 4

	for round := 1; round <= rounds; round++ {
		seen := make(map[uuid.UUID]bool)
		for i := 0; i < len(order); i++ {
			pick := (round-1)*len(order) + i + 1
			got, err := Resolve(pick, order)
			require.NoError(t, err)
			assert.Equal(t, round, got.Round)
			assert.False(t, seen[got.Participant], "participant drafted twice in round %d", round)
			seen[got.Participant] = true
		}
		assert.Len(t, seen, len(order))
	}
}

func TestResolveWithThirdRoundReversal(t *testing.T) {
	order := testOrder(3)
	a, b, c := order[0], order[1], order[2]

	expected := []struct {
		pick        int
		participant uuid.UUID
	}{
		{1, a}, {2, b}, {3, c}, // round 1 forward
		{4, c}, {5, b}, {6, a}, // round 2 reversed
		{7, c}, {8, b}, {9, a}, // round 3 reversed again
		{10, c}, {11, b}, {12, a}, // and every round after
	}

	for _, tc := range expected {
		got, err := ResolveWithReversal(tc.pick, order, true)
		require.NoError(t, err, "pick %d", tc.pick)
		assert.Equal(t, tc.participant, got.Participant, "participant for pick %d", tc.pick)
	}
}

func TestResolveWithReversalDisabledMatchesResolve(t *testing.T) {
	order := testOrder(4)
	for pick := 1; pick <= 16; pick++ {
		plain, err := Resolve(pick, order)
		require.NoError(t, err)
		variant, err := ResolveWithReversal(pick, order, false)
		require.NoError(t, err)
		assert.Equal(t, plain, variant)
	}
}

func TestResolveInvalidInput(t *testing.T) {
	order := testOrder(2)

	t.Run("zero pick number", func(t *testing.T) {
		_, err := Resolve(0, order)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("negative pick number", func(t *testing.T) {
		_, err := Resolve(-3, order)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("empty order", func(t *testing.T) {
		_, err := Resolve(1, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
