// Package presence tracks which catalog ids are currently on screen.
package presence

import (
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/itemwatch/internal/types"
)

// DefaultTTL is how long an id stays displayed after its last detection.
const DefaultTTL = 2 * time.Second

// ErrUnknownID means a detected id has no description: the catalog and the
// description set disagree.
var ErrUnknownID = errors.New("detected id has no description")

// Lookup resolves a catalog id to its description.
type Lookup interface {
	Lookup(id uint32) (types.Description, bool)
}

// Entry is an ACTIVE id with its description and timestamps.
type Entry struct {
	ID          uint32
	Description types.Description
	FirstSeen   time.Time
	LastSeen    time.Time
}

// Tracker holds at most one Entry per id. It is not safe for concurrent use;
// the control loop owns it.
type Tracker struct {
	lookup  Lookup
	ttl     time.Duration
	entries []Entry
	index   map[uint32]int
}

// NewTracker creates an empty tracker.
func NewTracker(lookup Lookup, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		lookup: lookup,
		ttl:    ttl,
		index:  make(map[uint32]int),
	}
}

// Update marks ids as seen at now. New ids are appended in the order given.
// It stops at the first id the lookup cannot resolve. Ids before it in the
// batch have already been inserted or refreshed and those after it are not
// touched, so the tracker holds a partial update when an error is returned.
func (t *Tracker) Update(ids []uint32, now time.Time) error {
	for _, id := range ids {
		if i, ok := t.index[id]; ok {
			t.entries[i].LastSeen = now
			continue
		}
		desc, ok := t.lookup.Lookup(id)
		if !ok {
			return fmt.Errorf("id %d: %w", id, ErrUnknownID)
		}
		t.index[id] = len(t.entries)
		t.entries = append(t.entries, Entry{
			ID:          id,
			Description: desc,
			FirstSeen:   now,
			LastSeen:    now,
		})
	}
	return nil
}

// Evict drops entries not seen for longer than the TTL and returns their ids.
func (t *Tracker) Evict(now time.Time) []uint32 {
	var evicted []uint32
	kept := t.entries[:0]
	for _, e := range t.entries {
		if now.Sub(e.LastSeen) > t.ttl {
			evicted = append(evicted, e.ID)
			delete(t.index, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	t.entries = kept
	for i, e := range t.entries {
		t.index[e.ID] = i
	}
	return evicted
}

// Active returns a copy of the ACTIVE entries in first-detection order.
func (t *Tracker) Active() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of ACTIVE entries.
func (t *Tracker) Len() int {
	return len(t.entries)
}
