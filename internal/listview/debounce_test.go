package listview

import (
	"sync"
	"testing"
	"time"
)

type debounceRecorder struct {
	mu     sync.Mutex
	values []string
}

func (r *debounceRecorder) record(value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, value)
}

func (r *debounceRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

func TestDebouncerFiresOnceWithLastValue(t *testing.T) {
	recorder := &debounceRecorder{}
	debouncer := NewDebouncer(20*time.Millisecond, recorder.record)
	defer debouncer.Stop()

	debouncer.Trigger("g")
	debouncer.Trigger("go")
	debouncer.Trigger("gol")
	debouncer.Trigger("gola")
	debouncer.Trigger("golan")
	debouncer.Trigger("golang")

	time.Sleep(100 * time.Millisecond)
	values := recorder.snapshot()
	if len(values) != 1 {
		t.Fatalf("expected one fire, got %d: %v", len(values), values)
	}
	if values[0] != "golang" {
		t.Fatalf("expected the last value to fire, got %q", values[0])
	}
}

func TestDebouncerFiresAgainAfterQuietPeriod(t *testing.T) {
	recorder := &debounceRecorder{}
	debouncer := NewDebouncer(20*time.Millisecond, recorder.record)
	defer debouncer.Stop()

	debouncer.Trigger("first")
	time.Sleep(100 * time.Millisecond)
	debouncer.Trigger("second")
	time.Sleep(100 * time.Millisecond)

	values := recorder.snapshot()
	if len(values) != 2 || values[0] != "first" || values[1] != "second" {
		t.Fatalf("expected two separate fires, got %v", values)
	}
}

func TestDebouncerStopCancelsPendingFire(t *testing.T) {
	recorder := &debounceRecorder{}
	debouncer := NewDebouncer(20*time.Millisecond, recorder.record)

	debouncer.Trigger("doomed")
	debouncer.Stop()

	time.Sleep(100 * time.Millisecond)
	if values := recorder.snapshot(); len(values) != 0 {
		t.Fatalf("expected no fires after stop, got %v", values)
	}

	// A stopped debouncer ignores later triggers too.
	debouncer.Trigger("late")
	time.Sleep(100 * time.Millisecond)
	if values := recorder.snapshot(); len(values) != 0 {
		t.Fatalf("expected no fires after stop, got %v", values)
	}
}

func TestDebouncerDefaultsInterval(t *testing.T) {
	debouncer := NewDebouncer(0, func(string) {})
	defer debouncer.Stop()
	if debouncer.interval != DefaultDebounceInterval {
		t.Fatalf("expected default interval %v, got %v", DefaultDebounceInterval, debouncer.interval)
	}
}
