package listview

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/inkwellhq/inkwell/internal/feed"
)

// ErrRefetchRequired signals that an event could not be reconciled
// incrementally and the collection must be reloaded from a full query.
var ErrRefetchRequired = errors.New("listview: refetch required")

// Descriptor decides membership and relative order for records under the
// active filter and sort state. Matches returns an error when the record does
// not carry enough information to decide.
type Descriptor interface {
	Matches(record feed.Record) (bool, error)
	Less(a, b feed.Record) bool
	Limit() int
	Fingerprint() string
}

// Reconciler holds the ordered collection a view renders and merges change
// events into it without refetching. A single view owns each reconciler; all
// mutation goes through Seed and Apply.
type Reconciler struct {
	mu         sync.Mutex
	descriptor Descriptor
	records    []feed.Record
}

// NewReconciler constructs an empty reconciler for the given descriptor.
func NewReconciler(descriptor Descriptor) *Reconciler {
	return &Reconciler{descriptor: descriptor}
}

// Reset replaces the active descriptor and clears the held collection. Used
// when the view's filter state changes before the new query result arrives.
func (r *Reconciler) Reset(descriptor Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptor = descriptor
	r.records = nil
}

// Seed replaces the held collection wholesale with a query result.
func (r *Reconciler) Seed(records []feed.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make([]feed.Record, len(records))
	copy(r.records, records)
	r.trimLocked()
}

// Records returns a copy of the current collection.
func (r *Reconciler) Records() []feed.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]feed.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Len reports the current collection size.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Apply merges one change event into the collection. It reports whether the
// visible collection changed, and returns ErrRefetchRequired when membership
// or order cannot be decided from the event payload.
func (r *Reconciler) Apply(event feed.Event) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Kind {
	case feed.KindInsert, feed.KindUpdate:
		if event.NewRecord == nil {
			return false, fmt.Errorf("%w: %s event without new record", ErrRefetchRequired, event.Kind)
		}
		matches, err := r.descriptor.Matches(event.NewRecord)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrRefetchRequired, err)
		}
		removed := r.removeLocked(event.NewRecord.RecordID())
		if !matches {
			return removed, nil
		}
		position := r.insertSortedLocked(event.NewRecord)
		r.trimLocked()
		if limit := r.descriptor.Limit(); limit > 0 && position >= limit {
			// The record sorted past the limit and was trimmed straight back
			// out; the visible collection only changed if the removal did.
			return removed, nil
		}
		return true, nil
	case feed.KindDelete:
		record := event.OldRecord
		if record == nil {
			record = event.NewRecord
		}
		if record == nil {
			return false, fmt.Errorf("%w: delete event without record", ErrRefetchRequired)
		}
		// Removing an absent id is a no-op, which makes replayed deletes
		// idempotent.
		return r.removeLocked(record.RecordID()), nil
	default:
		return false, fmt.Errorf("%w: unknown event kind %q", ErrRefetchRequired, event.Kind)
	}
}

func (r *Reconciler) removeLocked(recordID string) bool {
	for index, record := range r.records {
		if record.RecordID() == recordID {
			r.records = append(r.records[:index], r.records[index+1:]...)
			return true
		}
	}
	return false
}

func (r *Reconciler) insertSortedLocked(record feed.Record) int {
	position := sort.Search(len(r.records), func(index int) bool {
		return r.descriptor.Less(record, r.records[index])
	})
	r.records = append(r.records, nil)
	copy(r.records[position+1:], r.records[position:])
	r.records[position] = record
	return position
}

func (r *Reconciler) trimLocked() {
	limit := r.descriptor.Limit()
	if limit > 0 && len(r.records) > limit {
		r.records = r.records[:limit]
	}
}
