package hub

import "sync"

// outboundQueue is the per-session delivery queue. It grows instead of
// blocking so a slow client can never stall the room fan-out: enqueues
// under the room lock always complete immediately.
type outboundQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []Envelope
	head   int // read position
	tail   int // write position
	count  int
	closed bool
}

// newOutboundQueue creates a queue with the given initial capacity.
func newOutboundQueue(initialCapacity int) *outboundQueue {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	q := &outboundQueue{
		buf: make([]Envelope, initialCapacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send adds an envelope to the queue, doubling capacity when the queue
// reaches 70% full. Returns false if the queue is closed.
func (q *outboundQueue) Send(env Envelope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := (len(q.buf) * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = env
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++

	q.cond.Signal()
	return true
}

// Receive removes and returns the oldest envelope, blocking until one
// is available or the queue is closed. Returns false once the queue is
// closed and drained.
func (q *outboundQueue) Receive() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	if q.count == 0 && q.closed {
		return Envelope{}, false
	}

	env := q.buf[q.head]
	q.buf[q.head] = Envelope{} // clear reference
	q.head = (q.head + 1) % len(q.buf)
	q.count--

	return env, true
}

// TryReceive attempts to receive without blocking.
func (q *outboundQueue) TryReceive() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Envelope{}, false
	}

	env := q.buf[q.head]
	q.buf[q.head] = Envelope{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--

	return env, true
}

// Close closes the queue. After closing, Send returns false; receivers
// drain the remaining envelopes and then get the closed signal.
func (q *outboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued envelopes.
func (q *outboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// grow doubles the queue capacity. Must be called with the lock held.
func (q *outboundQueue) grow() {
	newBuf := make([]Envelope, len(q.buf)*2)

	if q.count > 0 {
		if q.head < q.tail {
			copy(newBuf, q.buf[q.head:q.tail])
		} else {
			n := copy(newBuf, q.buf[q.head:])
			copy(newBuf[n:], q.buf[:q.tail])
		}
	}

	q.buf = newBuf
	q.head = 0
	q.tail = q.count
}
