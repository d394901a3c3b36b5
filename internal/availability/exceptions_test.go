package availability

import (
	"testing"

	"classbook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddException_Idempotent(t *testing.T) {
	once, added := AddException(nil, "2024-06-10")
	assert.True(t, added)
	twice, added := AddException(once, "2024-06-10")
	assert.False(t, added)
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"2024-06-10"}, twice)
}

func TestAddException_DoesNotMutateInput(t *testing.T) {
	in := make([]string, 1, 4)
	in[0] = "2024-06-03"
	out, _ := AddException(in, "2024-06-10")
	assert.Equal(t, []string{"2024-06-03"}, in)
	assert.Equal(t, []string{"2024-06-03", "2024-06-10"}, out)

	out[0] = "changed"
	assert.Equal(t, "2024-06-03", in[0])
}

func TestRemoveException(t *testing.T) {
	in := []string{"2024-06-03", "2024-06-10"}

	out, removed := RemoveException(in, "2024-06-10")
	assert.True(t, removed)
	assert.Equal(t, []string{"2024-06-03"}, out)
	assert.Len(t, in, 2)

	same, removed := RemoveException(out, "2024-06-17")
	assert.False(t, removed)
	assert.Equal(t, out, same)

	empty, removed := RemoveException(nil, "2024-06-17")
	assert.False(t, removed)
	assert.Empty(t, empty)
}

func TestSnapshotExceptions_UnknownSeries(t *testing.T) {
	snap := Snapshot{Recurring: []model.RecurringBooking{{ID: "r1", Exceptions: []string{"2024-06-03"}}}}

	_, _, err := snap.AddException("missing", "2024-06-10")
	assert.ErrorIs(t, err, ErrRecurringNotFound)
	_, _, err = snap.RemoveException("missing", "2024-06-10")
	assert.ErrorIs(t, err, ErrRecurringNotFound)

	updated, added, err := snap.AddException("r1", "2024-06-10")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"2024-06-03", "2024-06-10"}, updated)
	assert.Equal(t, []string{"2024-06-03"}, snap.Recurring[0].Exceptions, "snapshot untouched")
}
