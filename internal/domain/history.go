package domain

import (
	"slices"
	"time"
)

type StatusEntry struct {
	Status  OrderStatus `json:"status"`
	At      time.Time   `json:"at"`
	ActorID string      `json:"actor_id,omitempty"`
	Note    string      `json:"note,omitempty"`
}

// StatusHistory is the append-only audit trail of an order.
type StatusHistory []StatusEntry

// Append returns a new history with e at the end. h is never modified.
func (h StatusHistory) Append(e StatusEntry) StatusHistory {
	out := make(StatusHistory, 0, len(h)+1)
	out = append(out, h...)
	return append(out, e)
}

func (h StatusHistory) Last() (StatusEntry, bool) {
	if len(h) == 0 {
		return StatusEntry{}, false
	}
	return h[len(h)-1], true
}

func (h StatusHistory) Entries() []StatusEntry {
	return slices.Clone(h)
}

// NewConfirmedHistory is the history of a freshly paid order: a synthetic
// PENDING entry one second before the CONFIRMED one.
func NewConfirmedHistory(at time.Time, actorID string) StatusHistory {
	return StatusHistory{}.
		Append(StatusEntry{Status: StatusPending, At: at.Add(-time.Second), ActorID: actorID}).
		Append(StatusEntry{Status: StatusConfirmed, At: at, ActorID: actorID, Note: "payment captured"})
}
