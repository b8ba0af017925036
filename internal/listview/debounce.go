package listview

import (
	"sync"
	"time"
)

// DefaultDebounceInterval is the quiet period applied to search input.
const DefaultDebounceInterval = 300 * time.Millisecond

// Debouncer buffers rapid input events and invokes its callback once with the
// most recent value after the quiet interval elapses without new input.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	callback func(value string)
	timer    *time.Timer
	stopped  bool
}

// NewDebouncer constructs a Debouncer firing callback after interval of quiet.
func NewDebouncer(interval time.Duration, callback func(value string)) *Debouncer {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	return &Debouncer{interval: interval, callback: callback}
}

// Trigger records a new input value. Any pending fire is cancelled and the
// quiet interval restarts; only the last value before the interval elapses
// reaches the callback.
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.callback == nil {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		stopped := d.stopped
		d.mu.Unlock()
		if stopped {
			return
		}
		d.callback(value)
	})
}

// Stop cancels any pending fire. A stopped debouncer ignores further triggers,
// so no work can execute against a torn-down view.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
