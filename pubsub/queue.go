package pubsub

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// msgHeap orders messages by Message.Before.
type msgHeap []*Message

func (h msgHeap) Len() int           { return len(h) }
func (h msgHeap) Less(i, j int) bool { return h[i].Before(h[j]) }
func (h msgHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *msgHeap) Push(x any) {
	*h = append(*h, x.(*Message))
}

func (h *msgHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// QueueStats is a consistent point-in-time copy of a queue's counters.
type QueueStats struct {
	TotalEnqueued   uint64 `json:"total_enqueued"`
	TotalDequeued   uint64 `json:"total_dequeued"`
	CurrentSize     uint64 `json:"current_size"`
	PeakSize        uint64 `json:"peak_size"`
	TotalWaitTimeUS uint64 `json:"total_wait_time_us"`
	WaitCount       uint64 `json:"wait_count"`
}

type queueStats struct {
	totalEnqueued atomic.Uint64
	totalDequeued atomic.Uint64
	currentSize   atomic.Int64
	peakSize      atomic.Uint64
	totalWaitUS   atomic.Uint64
	waitCount     atomic.Uint64
}

// raisePeak lifts peakSize to size unless a concurrent update already
// recorded a larger value.
func (s *queueStats) raisePeak(size int64) {
	for {
		cur := s.peakSize.Load()
		if uint64(size) <= cur || s.peakSize.CompareAndSwap(cur, uint64(size)) {
			return
		}
	}
}

// Queue is a bounded, mutex-protected priority queue of messages.
//
// Overflow and timeout are normal outcomes signaled by the return value,
// never errors. Statistics counters are atomic so snapshot readers never
// block enqueuers.
//
// Example:
//
//	q := pubsub.NewQueue(1000)
//	q.Enqueue(pubsub.NewMessage(0, "payload"))
//	msg := q.DequeueBlock(100 * time.Millisecond)
type Queue struct {
	mu   sync.Mutex
	heap msgHeap

	// signal carries at most one wake token. Each consumer that pops a
	// message re-arms it when messages remain, so a single token is enough
	// to drain any backlog across multiple waiters.
	signal chan struct{}

	capacity int
	stats    queueStats
}

// NewQueue creates a queue holding at most capacity messages.
// A capacity <= 0 means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{
		signal:   make(chan struct{}, 1),
		capacity: capacity,
	}
}

// Cap returns the configured capacity (<= 0 means unbounded).
func (q *Queue) Cap() int { return q.capacity }

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Enqueue inserts msg, assigning its timestamp inside the critical section so
// timestamp order matches lock-acquisition order. Returns false for a nil
// message or a full queue; a full queue is the back-pressure signal and the
// message is not queued. O(log n).
func (q *Queue) Enqueue(msg *Message) bool {
	if msg == nil {
		return false
	}

	q.mu.Lock()
	if q.capacity > 0 && len(q.heap) >= q.capacity {
		q.mu.Unlock()
		return false
	}
	msg.Timestamp = time.Now().UnixMicro()
	heap.Push(&q.heap, msg)

	q.stats.totalEnqueued.Add(1)
	size := q.stats.currentSize.Add(1)
	q.stats.raisePeak(size)
	q.mu.Unlock()

	q.wake()
	return true
}

// EnqueueBatch inserts messages in order under one critical section, sharing
// a single timestamp across the batch so intra-batch order among equal
// priorities is decided entirely by sequence number. It stops at the first
// nil entry or when the queue is full and returns how many were accepted.
func (q *Queue) EnqueueBatch(msgs []*Message) int {
	if len(msgs) == 0 {
		return 0
	}

	q.mu.Lock()
	ts := time.Now().UnixMicro()
	accepted := 0
	for _, msg := range msgs {
		if msg == nil {
			break
		}
		if q.capacity > 0 && len(q.heap) >= q.capacity {
			break
		}
		msg.Timestamp = ts
		heap.Push(&q.heap, msg)
		accepted++
	}
	if accepted > 0 {
		q.stats.totalEnqueued.Add(uint64(accepted))
		size := q.stats.currentSize.Add(int64(accepted))
		q.stats.raisePeak(size)
	}
	q.mu.Unlock()

	if accepted > 0 {
		q.wake()
	}
	return accepted
}

// popLocked removes and returns the highest-ranked message. Caller holds mu.
func (q *Queue) popLocked() *Message {
	if len(q.heap) == 0 {
		return nil
	}
	msg := heap.Pop(&q.heap).(*Message)
	q.stats.totalDequeued.Add(1)
	q.stats.currentSize.Add(-1)
	if len(q.heap) > 0 {
		q.wake()
	}
	return msg
}

// Dequeue pops the highest-ranked message, or returns nil if the queue is
// empty. O(log n).
func (q *Queue) Dequeue() *Message {
	q.mu.Lock()
	msg := q.popLocked()
	q.mu.Unlock()
	return msg
}

// DequeueBlock blocks until a message is available or timeout elapses.
// A negative timeout blocks indefinitely. The elapsed wait is recorded in the
// statistics on both outcomes; nil is returned only on timeout.
func (q *Queue) DequeueBlock(timeout time.Duration) *Message {
	start := time.Now()
	var deadline <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if msg := q.popLocked(); msg != nil {
			q.mu.Unlock()
			q.recordWait(start)
			return msg
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-deadline:
			// The timer can fire while a message sits queued; take one
			// last look before reporting a timeout.
			q.mu.Lock()
			msg := q.popLocked()
			q.mu.Unlock()
			q.recordWait(start)
			return msg
		}
	}
}

func (q *Queue) recordWait(start time.Time) {
	q.stats.totalWaitUS.Add(uint64(time.Since(start).Microseconds()))
	q.stats.waitCount.Add(1)
}

// DequeueBatch pops up to max messages in one critical section and returns
// however many were available.
func (q *Queue) DequeueBatch(max int) []*Message {
	if max <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil
	}

	n := max
	if len(q.heap) < n {
		n = len(q.heap)
	}
	out := make([]*Message, 0, n)
	for len(out) < max && len(q.heap) > 0 {
		out = append(out, heap.Pop(&q.heap).(*Message))
	}

	q.stats.totalDequeued.Add(uint64(len(out)))
	q.stats.currentSize.Add(-int64(len(out)))
	if len(q.heap) > 0 {
		q.wake()
	}
	return out
}

// Size returns the number of messages currently stored.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Empty reports whether the queue holds no messages.
func (q *Queue) Empty() bool {
	return q.Size() == 0
}

// Clear drops all stored messages. Historical counters (enqueued, dequeued,
// peak, wait) are untouched.
func (q *Queue) Clear() {
	q.mu.Lock()
	for i := range q.heap {
		q.heap[i] = nil
	}
	q.heap = q.heap[:0]
	q.stats.currentSize.Store(0)
	q.mu.Unlock()
}

// Stats returns a point-in-time snapshot of the queue statistics.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		TotalEnqueued:   q.stats.totalEnqueued.Load(),
		TotalDequeued:   q.stats.totalDequeued.Load(),
		CurrentSize:     uint64(q.stats.currentSize.Load()),
		PeakSize:        q.stats.peakSize.Load(),
		TotalWaitTimeUS: q.stats.totalWaitUS.Load(),
		WaitCount:       q.stats.waitCount.Load(),
	}
}

// ResetStats zeroes the enqueue/dequeue/wait counters and re-seeds the peak
// from the current size, so peak tracking stays meaningful after a reset.
func (q *Queue) ResetStats() {
	q.stats.totalEnqueued.Store(0)
	q.stats.totalDequeued.Store(0)
	q.stats.peakSize.Store(uint64(q.stats.currentSize.Load()))
	q.stats.totalWaitUS.Store(0)
	q.stats.waitCount.Store(0)
}
