package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusHistory_AppendDoesNotMutate(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	base := NewConfirmedHistory(at, "")
	require.Len(t, base, 2)

	next := base.Append(StatusEntry{Status: StatusPreparing, At: at.Add(time.Minute), ActorID: "cook"})

	assert.Len(t, base, 2)
	assert.Len(t, next, 3)
	assert.Equal(t, base[0], next[0])

	last, ok := next.Last()
	require.True(t, ok)
	assert.Equal(t, StatusPreparing, last.Status)
	assert.Equal(t, "cook", last.ActorID)
}

func TestNewConfirmedHistory(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	h := NewConfirmedHistory(at, "u1")

	assert.Equal(t, StatusPending, h[0].Status)
	assert.Equal(t, at.Add(-time.Second), h[0].At)
	assert.Equal(t, StatusConfirmed, h[1].Status)
	assert.Equal(t, at, h[1].At)

	_, ok := StatusHistory{}.Last()
	assert.False(t, ok)
}
