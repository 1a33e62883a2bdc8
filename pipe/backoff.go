package pipe

import "time"

// backoff tracks the delay between reconnect attempts. The delay doubles
// after every failed cycle, capped at max, and a successful connection
// resets it to the floor. It is mutated only by the pipe's run loop,
// serially, between cycles; reads for the status snapshot go through the
// pipe's lock.
type backoff struct {
	floor time.Duration
	max   time.Duration
	cur   time.Duration
}

func newBackoff(floor, max time.Duration) *backoff {
	return &backoff{floor: floor, max: max, cur: floor}
}

// delay returns the current delay without advancing it.
func (b *backoff) delay() time.Duration { return b.cur }

// advance doubles the delay, bounded at max.
func (b *backoff) advance() {
	b.cur *= 2
	if b.cur > b.max {
		b.cur = b.max
	}
}

// reset drops the delay back to the floor.
func (b *backoff) reset() { b.cur = b.floor }
