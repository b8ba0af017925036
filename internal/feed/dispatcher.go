package feed

import (
	"context"
	"sync"
	"time"
)

// Kind enumerates the row-level change notifications a collection can emit.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Record is an entity that can travel through the change feed.
type Record interface {
	RecordID() string
}

// Event carries a single row-level change for one collection. NewRecord is
// set for inserts and updates, OldRecord for updates and deletes.
type Event struct {
	Collection string
	Kind       Kind
	NewRecord  Record
	OldRecord  Record
	Timestamp  time.Time
}

// Dispatcher fans collection change events out to live subscribers. Publish
// never blocks: a subscriber whose buffer is full misses the event, and heals
// via a full refetch on its side.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
	bufferSize  int
}

type subscriber struct {
	id     int64
	kinds  map[Kind]struct{}
	stream chan Event
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener for the named collection. When kinds is
// empty all three event kinds are delivered. The returned cancel func
// releases the subscription; cancellation of ctx does the same.
func (d *Dispatcher) Subscribe(ctx context.Context, collection string, kinds ...Kind) (<-chan Event, func()) {
	if collection == "" {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	var kindSet map[Kind]struct{}
	if len(kinds) > 0 {
		kindSet = make(map[Kind]struct{}, len(kinds))
		for _, kind := range kinds {
			kindSet[kind] = struct{}{}
		}
	}

	sub := &subscriber{
		id:     d.nextSequence(),
		kinds:  kindSet,
		stream: make(chan Event, d.bufferSize),
	}
	d.register(collection, sub)
	cleanup := func() {
		d.unregister(collection, sub.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers the event to every live subscriber of its collection.
// Callers publish serially per collection, which preserves commit order.
func (d *Dispatcher) Publish(event Event) {
	if event.Collection == "" || event.Kind == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.Collection]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		if sub.kinds != nil {
			if _, ok := sub.kinds[event.Kind]; !ok {
				continue
			}
		}
		select {
		case sub.stream <- event:
		default:
		}
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(collection string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[collection]; !ok {
		d.subscribers[collection] = make(map[int64]*subscriber)
	}
	d.subscribers[collection][sub.id] = sub
}

func (d *Dispatcher) unregister(collection string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[collection]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, collection)
		}
	}
	d.mu.Unlock()
}
