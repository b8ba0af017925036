package listview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inkwellhq/inkwell/internal/feed"
)

type queryLog struct {
	mu           sync.Mutex
	fingerprints []string
}

func (l *queryLog) add(descriptor Descriptor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fingerprints = append(l.fingerprints, descriptor.Fingerprint())
}

func (l *queryLog) calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.fingerprints))
	copy(out, l.fingerprints)
	return out
}

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal(message)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestControllerStartReachesReady(t *testing.T) {
	var states []State
	var statesMu sync.Mutex
	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			return []feed.Record{article{id: "a", views: 2}, article{id: "b", views: 1}}, nil
		},
		Descriptor: viewDescriptor{},
		OnChange: func(snapshot Snapshot) {
			statesMu.Lock()
			states = append(states, snapshot.State)
			statesMu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	defer controller.Close()

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	snapshot := controller.Snapshot()
	if snapshot.State != StateReady {
		t.Fatalf("expected ready state, got %s", snapshot.State)
	}
	if got := recordIDs(snapshot.Records); len(got) != 2 || got[0] != "a" {
		t.Fatalf("unexpected records %v", got)
	}

	statesMu.Lock()
	defer statesMu.Unlock()
	if len(states) < 2 || states[0] != StateLoading || states[len(states)-1] != StateReady {
		t.Fatalf("expected loading then ready transitions, got %v", states)
	}
}

func TestControllerQueryErrorEntersErrorStateAndRetryRecovers(t *testing.T) {
	queryErr := errors.New("backend unavailable")
	var failing = true
	var mu sync.Mutex
	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			mu.Lock()
			defer mu.Unlock()
			if failing {
				return nil, queryErr
			}
			return []feed.Record{article{id: "a"}}, nil
		},
		Descriptor: viewDescriptor{},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	defer controller.Close()

	if err := controller.Start(context.Background()); !errors.Is(err, queryErr) {
		t.Fatalf("expected the query error back from start, got %v", err)
	}
	snapshot := controller.Snapshot()
	if snapshot.State != StateError || !errors.Is(snapshot.Err, queryErr) {
		t.Fatalf("expected error state carrying the cause, got %#v", snapshot)
	}

	mu.Lock()
	failing = false
	mu.Unlock()

	if err := controller.Retry(context.Background()); err != nil {
		t.Fatalf("unexpected retry error: %v", err)
	}
	snapshot = controller.Snapshot()
	if snapshot.State != StateReady || snapshot.Err != nil {
		t.Fatalf("expected recovery to ready, got %#v", snapshot)
	}
}

func TestControllerSetFilterSkipsEquivalentDescriptor(t *testing.T) {
	log := &queryLog{}
	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			log.add(descriptor)
			return nil, nil
		},
		Descriptor: viewDescriptor{category: "design"},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	defer controller.Close()

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := controller.SetFilter(context.Background(), viewDescriptor{category: "design"}); err != nil {
		t.Fatalf("unexpected filter error: %v", err)
	}
	if calls := log.calls(); len(calls) != 1 {
		t.Fatalf("an equivalent descriptor must not re-query, got %d calls", len(calls))
	}

	if err := controller.SetFilter(context.Background(), viewDescriptor{category: "tech"}); err != nil {
		t.Fatalf("unexpected filter error: %v", err)
	}
	if calls := log.calls(); len(calls) != 2 {
		t.Fatalf("a differing descriptor must re-query, got %d calls", len(calls))
	}
}

func TestControllerDiscardsStaleQueryResult(t *testing.T) {
	slow := viewDescriptor{label: "slow"}
	fast := viewDescriptor{label: "fast"}
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})

	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			if descriptor.Fingerprint() == slow.Fingerprint() {
				close(slowStarted)
				<-releaseSlow
				return []feed.Record{article{id: "stale"}}, nil
			}
			return []feed.Record{article{id: "fresh"}}, nil
		},
		Descriptor: slow,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	defer controller.Close()

	startDone := make(chan error, 1)
	go func() {
		startDone <- controller.Start(context.Background())
	}()
	<-slowStarted

	if err := controller.SetFilter(context.Background(), fast); err != nil {
		t.Fatalf("unexpected filter error: %v", err)
	}
	close(releaseSlow)
	if err := <-startDone; err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	snapshot := controller.Snapshot()
	if snapshot.State != StateReady {
		t.Fatalf("expected ready state, got %s", snapshot.State)
	}
	if got := recordIDs(snapshot.Records); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("the late slow result must be discarded, got %v", got)
	}
}

func TestControllerDropsEventFromSupersededSubscription(t *testing.T) {
	fresh := viewDescriptor{label: "fresh"}
	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			if descriptor.Fingerprint() == fresh.Fingerprint() {
				return []feed.Record{article{id: "fresh"}}, nil
			}
			return []feed.Record{article{id: "old"}}, nil
		},
		Descriptor: viewDescriptor{label: "old"},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	defer controller.Close()

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	controller.mu.Lock()
	supersededGeneration := controller.generation
	controller.mu.Unlock()

	if err := controller.SetFilter(context.Background(), fresh); err != nil {
		t.Fatalf("unexpected filter error: %v", err)
	}

	changed, stale, err := controller.applyEvent(feed.Event{
		Kind:      feed.KindInsert,
		NewRecord: article{id: "zombie", views: 99},
	}, supersededGeneration)
	if err != nil {
		t.Fatalf("unexpected apply error: %v", err)
	}
	if !stale {
		t.Fatal("an event carrying a superseded generation must be dropped")
	}
	if changed {
		t.Fatal("a dropped event must not report a change")
	}
	if got := recordIDs(controller.Snapshot().Records); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("the reseeded collection must stay intact, got %v", got)
	}
}

func TestControllerAppliesFeedEvents(t *testing.T) {
	dispatcher := feed.NewDispatcher()
	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			return []feed.Record{
				article{id: "id2", views: 30, created: 200},
				article{id: "id1", views: 10, created: 100},
			}, nil
		},
		Subscribe: func(ctx context.Context) (<-chan feed.Event, func(), error) {
			stream, release := dispatcher.Subscribe(ctx, "articles")
			return stream, release, nil
		},
		Descriptor: viewDescriptor{},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	defer controller.Close()

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	dispatcher.Publish(feed.Event{
		Collection: "articles",
		Kind:       feed.KindUpdate,
		NewRecord:  article{id: "id1", views: 40, created: 100},
	})

	waitFor(t, func() bool {
		got := recordIDs(controller.Snapshot().Records)
		return len(got) == 2 && got[0] == "id1"
	}, "expected the feed update to resort the collection")
}

func TestControllerRefetchesOnUnreconcilableEvent(t *testing.T) {
	dispatcher := feed.NewDispatcher()
	log := &queryLog{}
	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			log.add(descriptor)
			return []feed.Record{article{id: "a"}}, nil
		},
		Subscribe: func(ctx context.Context) (<-chan feed.Event, func(), error) {
			stream, release := dispatcher.Subscribe(ctx, "articles")
			return stream, release, nil
		},
		Descriptor: viewDescriptor{},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	defer controller.Close()

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// An insert without a payload cannot be merged and must force a refetch.
	dispatcher.Publish(feed.Event{Collection: "articles", Kind: feed.KindInsert})

	waitFor(t, func() bool {
		return len(log.calls()) >= 2
	}, "expected an unreconcilable event to trigger a refetch")
	waitFor(t, func() bool {
		return controller.Snapshot().State == StateReady
	}, "expected the refetch to land back in ready state")
}

func TestControllerDebouncedSearchRunsLastTermOnly(t *testing.T) {
	log := &queryLog{}
	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			log.add(descriptor)
			return nil, nil
		},
		Descriptor: viewDescriptor{},
		SearchDescriptor: func(term string) Descriptor {
			return viewDescriptor{label: term}
		},
		DebounceInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	defer controller.Close()

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	controller.Search(context.Background(), "g")
	controller.Search(context.Background(), "go")
	controller.Search(context.Background(), "gopher")

	waitFor(t, func() bool {
		return len(log.calls()) >= 2
	}, "expected the debounced search to query")
	time.Sleep(100 * time.Millisecond)

	calls := log.calls()
	if len(calls) != 2 {
		t.Fatalf("expected exactly one search query after the initial load, got %v", calls)
	}
	expected := viewDescriptor{label: "gopher"}.Fingerprint()
	if calls[1] != expected {
		t.Fatalf("expected the last term to win, got %q", calls[1])
	}
}

func TestControllerCloseReleasesSubscription(t *testing.T) {
	released := make(chan struct{})
	var releaseOnce sync.Once
	controller, err := NewController(ControllerConfig{
		Query: func(ctx context.Context, descriptor Descriptor) ([]feed.Record, error) {
			return nil, nil
		},
		Subscribe: func(ctx context.Context) (<-chan feed.Event, func(), error) {
			stream := make(chan feed.Event)
			return stream, func() { releaseOnce.Do(func() { close(released) }) }, nil
		},
		Descriptor: viewDescriptor{},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if err := controller.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	controller.Close()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("expected close to release the subscription")
	}

	if err := controller.SetFilter(context.Background(), viewDescriptor{label: "post-close"}); err == nil {
		t.Fatal("expected an error from a closed controller")
	}
	if err := controller.Refetch(context.Background()); err == nil {
		t.Fatal("expected an error from a closed controller")
	}
}
