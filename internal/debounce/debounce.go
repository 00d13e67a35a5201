// Package debounce coalesces bursts of per-maildir events into batches.
//
// Each key is Idle until the first Bump, then Accumulating until its quiet
// period elapses with no further Bump. Timers run on their own goroutines
// but only send an Expiry on a channel; all batch state is touched by the
// goroutine that owns the Debouncer.
package debounce

import (
	"time"
)

// DefaultQuiet is the quiet period used when none is configured. It is long
// enough to merge a delivery agent writing several messages back to back and
// short enough that a single message still feels immediate.
const DefaultQuiet = 2 * time.Second

// Batch is the aggregation state of one key.
type Batch struct {
	Key   string
	Count int
	First time.Time
	Last  time.Time

	gen   uint64
	timer *time.Timer
}

// Expiry reports that the quiet period of a key elapsed.
type Expiry struct {
	Key string
	gen uint64
}

// Debouncer owns the pending batches.
type Debouncer struct {
	quiet   time.Duration
	batches map[string]*Batch
	expired chan Expiry
	done    chan struct{}
	gen     uint64
	now     func() time.Time
}

// New creates a Debouncer. A non-positive quiet uses DefaultQuiet.
func New(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Debouncer{
		quiet:   quiet,
		batches: make(map[string]*Batch),
		expired: make(chan Expiry, 16),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Quiet returns the quiet period.
func (d *Debouncer) Quiet() time.Duration {
	return d.quiet
}

// Expired delivers quiet-period expiries. Pass them to Flush.
func (d *Debouncer) Expired() <-chan Expiry {
	return d.expired
}

// Bump records one event for key and restarts its quiet period. It returns
// a copy of the batch after the update.
func (d *Debouncer) Bump(key string) Batch {
	now := d.now()
	b, ok := d.batches[key]
	if !ok {
		b = &Batch{Key: key, First: now}
		d.batches[key] = b
	}
	b.Count++
	b.Last = now
	d.schedule(b)
	return b.snapshot()
}

// schedule cancels any pending firing for b and starts a new one.
func (d *Debouncer) schedule(b *Batch) {
	if b.timer != nil {
		b.timer.Stop()
	}
	d.gen++
	b.gen = d.gen
	exp := Expiry{Key: b.Key, gen: b.gen}
	b.timer = time.AfterFunc(d.quiet, func() {
		select {
		case d.expired <- exp:
		case <-d.done:
		}
	})
}

// Flush turns an expiry into the finished batch and removes it. ok is false
// when the batch was cancelled or bumped again after the timer was armed.
func (d *Debouncer) Flush(e Expiry) (Batch, bool) {
	b, ok := d.batches[e.Key]
	if !ok || b.gen != e.gen {
		return Batch{}, false
	}
	delete(d.batches, e.Key)
	return b.snapshot(), true
}

// Cancel drops the batch for key without producing anything. It reports
// whether a batch existed; cancelling twice is harmless.
func (d *Debouncer) Cancel(key string) bool {
	b, ok := d.batches[key]
	if !ok {
		return false
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	delete(d.batches, key)
	return true
}

// CancelAll drops every batch and returns how many were dropped.
func (d *Debouncer) CancelAll() int {
	n := 0
	for key := range d.batches {
		if d.Cancel(key) {
			n++
		}
	}
	return n
}

// Pending returns the batch for key, if Accumulating.
func (d *Debouncer) Pending(key string) (Batch, bool) {
	b, ok := d.batches[key]
	if !ok {
		return Batch{}, false
	}
	return b.snapshot(), true
}

// Len returns the number of Accumulating keys.
func (d *Debouncer) Len() int {
	return len(d.batches)
}

// Stop cancels all timers and releases goroutines blocked on Expired.
// The Debouncer must not be used afterwards.
func (d *Debouncer) Stop() {
	select {
	case <-d.done:
		return
	default:
	}
	close(d.done)
	for _, b := range d.batches {
		if b.timer != nil {
			b.timer.Stop()
		}
	}
	d.batches = make(map[string]*Batch)
}

func (b *Batch) snapshot() Batch {
	return Batch{Key: b.Key, Count: b.Count, First: b.First, Last: b.Last, gen: b.gen}
}
