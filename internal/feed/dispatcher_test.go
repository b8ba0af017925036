package feed

import (
	"context"
	"testing"
	"time"
)

type testRecord struct {
	id string
}

func (r testRecord) RecordID() string {
	return r.id
}

func receiveEvent(t *testing.T, stream <-chan Event) Event {
	t.Helper()
	select {
	case event := <-stream:
		return event
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected an event within deadline")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, stream <-chan Event) {
	t.Helper()
	select {
	case event := <-stream:
		t.Fatalf("expected no event, got %#v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherDeliversToSubscriber(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cancel := dispatcher.Subscribe(context.Background(), "posts")
	defer cancel()

	dispatcher.Publish(Event{
		Collection: "posts",
		Kind:       KindInsert,
		NewRecord:  testRecord{id: "r-1"},
	})

	event := receiveEvent(t, stream)
	if event.Kind != KindInsert || event.NewRecord.RecordID() != "r-1" {
		t.Fatalf("unexpected event %#v", event)
	}
}

func TestDispatcherIsolatesCollections(t *testing.T) {
	dispatcher := NewDispatcher()
	posts, cancelPosts := dispatcher.Subscribe(context.Background(), "posts")
	defer cancelPosts()
	comments, cancelComments := dispatcher.Subscribe(context.Background(), "comments")
	defer cancelComments()

	dispatcher.Publish(Event{
		Collection: "comments",
		Kind:       KindInsert,
		NewRecord:  testRecord{id: "c-1"},
	})

	event := receiveEvent(t, comments)
	if event.NewRecord.RecordID() != "c-1" {
		t.Fatalf("unexpected event %#v", event)
	}
	assertNoEvent(t, posts)
}

func TestDispatcherFiltersByKind(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cancel := dispatcher.Subscribe(context.Background(), "posts", KindDelete)
	defer cancel()

	dispatcher.Publish(Event{Collection: "posts", Kind: KindInsert, NewRecord: testRecord{id: "r-1"}})
	dispatcher.Publish(Event{Collection: "posts", Kind: KindDelete, OldRecord: testRecord{id: "r-1"}})

	event := receiveEvent(t, stream)
	if event.Kind != KindDelete {
		t.Fatalf("expected only delete events, got %s", event.Kind)
	}
	assertNoEvent(t, stream)
}

func TestDispatcherCancelStopsDelivery(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cancel := dispatcher.Subscribe(context.Background(), "posts")
	cancel()

	dispatcher.Publish(Event{Collection: "posts", Kind: KindInsert, NewRecord: testRecord{id: "r-1"}})
	assertNoEvent(t, stream)
}

func TestDispatcherContextCancellationReleasesSubscriber(t *testing.T) {
	dispatcher := NewDispatcher()
	ctx, cancelCtx := context.WithCancel(context.Background())
	stream, cancel := dispatcher.Subscribe(ctx, "posts")
	defer cancel()

	cancelCtx()
	deadline := time.Now().Add(time.Second)
	for {
		dispatcher.mu.RLock()
		remaining := len(dispatcher.subscribers["posts"])
		dispatcher.mu.RUnlock()
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected context cancellation to release the subscriber")
		}
		time.Sleep(5 * time.Millisecond)
	}

	dispatcher.Publish(Event{Collection: "posts", Kind: KindInsert, NewRecord: testRecord{id: "r-1"}})
	assertNoEvent(t, stream)
}

func TestDispatcherPublishNeverBlocksOnFullBuffer(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cancel := dispatcher.Subscribe(context.Background(), "posts")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < dispatcher.bufferSize+5; i++ {
			dispatcher.Publish(Event{Collection: "posts", Kind: KindInsert, NewRecord: testRecord{id: "r"}})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish must not block when a subscriber buffer is full")
	}
	if got := len(stream); got != dispatcher.bufferSize {
		t.Fatalf("expected buffer to hold %d events, got %d", dispatcher.bufferSize, got)
	}
}

func TestDispatcherIgnoresEmptyCollectionSubscription(t *testing.T) {
	dispatcher := NewDispatcher()
	stream, cancel := dispatcher.Subscribe(context.Background(), "")
	defer cancel()

	if _, open := <-stream; open {
		t.Fatal("expected a closed stream for an empty collection name")
	}
}
