package listview

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwellhq/inkwell/internal/feed"
)

// State names the lifecycle phase a list view is in.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

var (
	errMissingQuery      = errors.New("listview: query function is required")
	errMissingDescriptor = errors.New("listview: descriptor is required")
	errControllerClosed  = errors.New("listview: controller is closed")
)

// QueryFunc executes a descriptor against the backing store.
type QueryFunc func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error)

// SubscribeFunc opens the change feed for the controller's collection. The
// returned release func must fully tear the subscription down.
type SubscribeFunc func(ctx context.Context) (<-chan feed.Event, func(), error)

// Snapshot is the immutable view state handed to the presentation layer.
type Snapshot struct {
	State   State
	Records []feed.Record
	Err     error
}

// ControllerConfig wires a list view controller.
type ControllerConfig struct {
	Query            QueryFunc
	Subscribe        SubscribeFunc
	Descriptor       Descriptor
	SearchDescriptor func(term string) Descriptor
	DebounceInterval time.Duration
	OnChange         func(Snapshot)
	Logger           *zap.Logger
}

// Controller orchestrates query execution, debounced search, and change-feed
// reconciliation for one list view. Its collection has a single writer: the
// controller itself.
type Controller struct {
	mu               sync.Mutex
	query            QueryFunc
	subscribe        SubscribeFunc
	searchDescriptor func(term string) Descriptor
	onChange         func(Snapshot)
	logger           *zap.Logger

	descriptor  Descriptor
	reconciler  *Reconciler
	debouncer   *Debouncer
	searchCtx   context.Context
	state       State
	lastErr     error
	generation  int64
	unsubscribe func()
	closed      bool
}

// NewController validates the configuration and returns an idle controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Query == nil {
		return nil, errMissingQuery
	}
	if cfg.Descriptor == nil {
		return nil, errMissingDescriptor
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	controller := &Controller{
		query:            cfg.Query,
		subscribe:        cfg.Subscribe,
		searchDescriptor: cfg.SearchDescriptor,
		onChange:         cfg.OnChange,
		logger:           logger,
		descriptor:       cfg.Descriptor,
		reconciler:       NewReconciler(cfg.Descriptor),
		state:            StateIdle,
	}
	controller.debouncer = NewDebouncer(cfg.DebounceInterval, controller.searchFired)
	return controller, nil
}

// Start runs the initial query and, on success, opens the change feed.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	descriptor := c.descriptor
	c.mu.Unlock()
	return c.load(ctx, descriptor)
}

// SetFilter replaces the active filter state. The view only re-queries when
// the new descriptor actually differs from the current one.
func (c *Controller) SetFilter(ctx context.Context, descriptor Descriptor) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errControllerClosed
	}
	if descriptor.Fingerprint() == c.descriptor.Fingerprint() {
		c.mu.Unlock()
		return nil
	}
	c.descriptor = descriptor
	c.mu.Unlock()
	return c.load(ctx, descriptor)
}

// Search feeds a keystroke into the debouncer; the query runs only after the
// quiet interval, with the last value received.
func (c *Controller) Search(ctx context.Context, term string) {
	c.mu.Lock()
	if c.closed || c.searchDescriptor == nil {
		c.mu.Unlock()
		return
	}
	c.searchCtx = ctx
	debouncer := c.debouncer
	c.mu.Unlock()

	debouncer.Trigger(term)
}

func (c *Controller) searchFired(term string) {
	c.mu.Lock()
	build := c.searchDescriptor
	ctx := c.searchCtx
	c.mu.Unlock()
	if build == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.SetFilter(ctx, build(term)); err != nil && !errors.Is(err, errControllerClosed) {
		c.logger.Warn("debounced search query failed", zap.Error(err))
	}
}

// Refetch reruns the current query, replacing the collection wholesale. It is
// the recovery path for missed feed events.
func (c *Controller) Refetch(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errControllerClosed
	}
	descriptor := c.descriptor
	c.mu.Unlock()
	return c.load(ctx, descriptor)
}

// Retry re-enters loading from the error state.
func (c *Controller) Retry(ctx context.Context) error {
	return c.Refetch(ctx)
}

// Snapshot returns the current view state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:   c.state,
		Records: c.reconciler.Records(),
		Err:     c.lastErr,
	}
}

// Close releases the subscription and any pending debounce timer. No resource
// owned by the view outlives it.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	debouncer := c.debouncer
	c.mu.Unlock()

	debouncer.Stop()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// load runs a query for the descriptor and seeds the collection if the result
// is still current. A query superseded by a newer trigger is discarded when
// it resolves, regardless of network arrival order.
func (c *Controller) load(ctx context.Context, descriptor Descriptor) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errControllerClosed
	}
	c.generation++
	generation := c.generation
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.state = StateLoading
	c.lastErr = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.notify()

	records, err := c.query(ctx, descriptor)

	c.mu.Lock()
	if c.closed || generation != c.generation {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.reconciler.Reset(descriptor)
	c.reconciler.Seed(records)
	c.state = StateReady
	c.mu.Unlock()

	c.openFeed(ctx, generation)
	c.notify()
	return nil
}

func (c *Controller) openFeed(ctx context.Context, generation int64) {
	if c.subscribe == nil {
		return
	}

	subCtx, cancel := context.WithCancel(ctx)
	stream, release, err := c.subscribe(subCtx)
	if err != nil {
		cancel()
		// The view still works without live updates; manual refetch heals.
		c.logger.Warn("change feed subscription failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	if c.closed || generation != c.generation {
		c.mu.Unlock()
		cancel()
		release()
		return
	}
	c.unsubscribe = func() {
		cancel()
		release()
	}
	c.mu.Unlock()

	go c.pump(subCtx, stream, generation)
}

func (c *Controller) pump(ctx context.Context, stream <-chan feed.Event, generation int64) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			changed, stale, err := c.applyEvent(event, generation)
			if stale {
				return
			}
			if errors.Is(err, ErrRefetchRequired) {
				// The refetch outlives this subscription, which load tears
				// down before it queries.
				if refetchErr := c.Refetch(context.WithoutCancel(ctx)); refetchErr != nil && !errors.Is(refetchErr, errControllerClosed) {
					c.logger.Warn("refetch after unreconcilable event failed", zap.Error(refetchErr))
				}
				return
			}
			if err != nil {
				c.logger.Warn("event reconciliation failed", zap.Error(err))
				continue
			}
			if changed {
				c.notify()
			}
		}
	}
}

// applyEvent merges one feed event into the collection. The generation check
// and the apply share one critical section with load's reseed, so an event
// from a superseded subscription can never land on a freshly seeded
// collection.
func (c *Controller) applyEvent(event feed.Event, generation int64) (changed bool, stale bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || generation != c.generation {
		return false, true, nil
	}
	changed, err = c.reconciler.Apply(event)
	return changed, false, err
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.Snapshot())
}
