package pubsub

import (
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// workerBatchSize is the maximum number of messages one worker drains from a
// single topic per scan, so a busy topic cannot monopolize a worker.
const workerBatchSize = 10

// idleSleep is how long a worker sleeps after a scan that found no work.
const idleSleep = time.Millisecond

type subscriberEntry struct {
	id         uint64
	dispatcher Dispatcher
}

type topicStats struct {
	published    atomic.Uint64
	processed    atomic.Uint64
	subscribers  atomic.Int64
	processingUS atomic.Uint64
}

func (s *topicStats) snapshot() TopicStatistics {
	return TopicStatistics{
		MessagesPublished:     s.published.Load(),
		MessagesProcessed:     s.processed.Load(),
		ActiveSubscribers:     int(s.subscribers.Load()),
		TotalProcessingTimeUS: s.processingUS.Load(),
	}
}

// TopicStatistics is a point-in-time copy of one topic's counters.
type TopicStatistics struct {
	MessagesPublished     uint64 `json:"messages_published"`
	MessagesProcessed     uint64 `json:"messages_processed"`
	ActiveSubscribers     int    `json:"active_subscribers"`
	TotalProcessingTimeUS uint64 `json:"total_processing_time_us"`
}

// topicEntry is created lazily on first publish or subscribe for a topic and
// persists until Clear or teardown.
type topicEntry struct {
	queue *Queue
	subs  []subscriberEntry
	stats topicStats
}

// Router owns one priority queue and one subscriber list per topic, and a
// pool of worker goroutines that drain the queues in priority order and fan
// messages out to subscribers.
//
// The lifecycle is Stopped -> Running -> Stopped and re-startable. Publish
// fails while stopped; Subscribe works in either state.
//
// Example:
//
//	r := pubsub.NewRouter(pubsub.WithWorkerCount(2))
//	r.Start()
//	defer r.Stop()
//
//	id := pubsub.Subscribe(r, "sensor.lidar", func(msg *pubsub.Message, scan Scan) {
//		process(scan)
//	})
//	defer r.Unsubscribe("sensor.lidar", id)
//
//	r.Publish("sensor.lidar", Scan{...}, 5)
type Router struct {
	config Config
	logger *zap.Logger

	// mu guards topics: topic administration and the worker scan are
	// mutually exclusive, a deliberate simplicity-over-throughput tradeoff.
	mu     sync.Mutex
	topics map[string]*topicEntry

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	nextSubID atomic.Uint64
	dedup     *gocache.Cache
}

// NewRouter creates a stopped router with the given options applied over
// DefaultConfig.
func NewRouter(opts ...Option) *Router {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewRouterFromConfig(cfg)
}

// NewRouterFromConfig creates a stopped router from an explicit Config,
// normalizing out-of-range values to their defaults.
func NewRouterFromConfig(cfg Config) *Router {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Router{
		config: cfg,
		logger: logger,
		topics: make(map[string]*topicEntry),
	}
	if cfg.DedupWindow > 0 {
		r.dedup = gocache.New(cfg.DedupWindow, 2*cfg.DedupWindow)
	}
	return r
}

// Start spawns the configured worker goroutines. It is idempotent: starting a
// running router returns true without side effects.
func (r *Router) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running.Load() {
		return true
	}

	r.stopCh = make(chan struct{})
	r.running.Store(true)
	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.workerLoop(r.stopCh)
	}
	r.logger.Info("router started", zap.Int("workers", r.config.WorkerCount))
	return true
}

// Stop signals all workers to exit and joins them. Safe to call on a stopped
// router. In-flight producer calls are not cancelled; messages already queued
// stay queued for the next Start.
func (r *Router) Stop() {
	r.mu.Lock()
	if !r.running.Load() {
		r.mu.Unlock()
		return
	}
	r.running.Store(false)
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("router stopped")
}

// IsRunning reports whether the worker pool is active.
func (r *Router) IsRunning() bool {
	return r.running.Load()
}

// topicLocked returns the entry for topic, creating it lazily. Caller holds mu.
func (r *Router) topicLocked(topic string) *topicEntry {
	entry := r.topics[topic]
	if entry == nil {
		entry = &topicEntry{queue: NewQueue(r.config.DefaultQueueSize)}
		r.topics[topic] = entry
	}
	return entry
}

// Subscribe registers fn for payload type T on topic and returns the
// subscription id (0 when topic is empty or fn is nil). Messages on the topic
// carrying other payload types are silently skipped for this subscriber.
func Subscribe[T any](r *Router, topic string, fn func(msg *Message, payload T)) uint64 {
	return r.SubscribeDispatcher(topic, NewCallback(fn))
}

// SubscribeDispatcher registers a pre-built dispatcher on topic. The topic
// entry is created lazily. Returns the subscription id, or 0 for an empty
// topic or nil dispatcher.
func (r *Router) SubscribeDispatcher(topic string, d Dispatcher) uint64 {
	if topic == "" || d == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.topicLocked(topic)
	id := r.nextSubID.Add(1)
	entry.subs = append(entry.subs, subscriberEntry{id: id, dispatcher: d})
	if r.config.EnableStats {
		entry.stats.subscribers.Add(1)
	}
	r.logger.Debug("subscribed",
		zap.String("topic", topic),
		zap.Uint64("subscription_id", id),
		zap.Stringer("payload_type", d.PayloadType()),
	)
	return id
}

// Unsubscribe removes the subscription with the given id from topic and
// reports whether a match was found. An id is valid for unsubscription
// exactly once, for exactly the topic it was created under.
func (r *Router) Unsubscribe(topic string, id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.topics[topic]
	if entry == nil {
		return false
	}
	for i, sub := range entry.subs {
		if sub.id == id {
			entry.subs = append(entry.subs[:i], entry.subs[i+1:]...)
			if r.config.EnableStats {
				entry.stats.subscribers.Add(-1)
			}
			r.logger.Debug("unsubscribed",
				zap.String("topic", topic),
				zap.Uint64("subscription_id", id),
			)
			return true
		}
	}
	return false
}

// Publish constructs a message around payload and enqueues it into topic's
// queue. Returns false when the router is not running, the payload is nil, or
// the topic queue is full.
func (r *Router) Publish(topic string, payload any, priority int) bool {
	if payload == nil {
		return false
	}
	return r.PublishMessage(topic, NewMessage(priority, payload))
}

// PublishMessage enqueues a pre-built message. When deduplication is enabled,
// a message whose ID was already seen within the window is dropped and false
// is returned.
func (r *Router) PublishMessage(topic string, msg *Message) bool {
	if topic == "" || msg == nil || !r.running.Load() {
		return false
	}
	if r.dedup != nil && msg.ID != "" {
		if _, seen := r.dedup.Get(msg.ID); seen {
			r.logger.Debug("duplicate message dropped",
				zap.String("topic", topic),
				zap.String("message_id", msg.ID),
			)
			return false
		}
		r.dedup.SetDefault(msg.ID, struct{}{})
	}

	msg.Topic = topic
	r.mu.Lock()
	entry := r.topicLocked(topic)
	r.mu.Unlock()

	if !entry.queue.Enqueue(msg) {
		return false
	}
	if r.config.EnableStats {
		entry.stats.published.Add(1)
	}
	return true
}

// PublishBatch constructs one message per payload and enqueues them as a
// single batch sharing one timestamp. It stops at the first nil payload and
// returns how many messages were actually enqueued (0 when not running).
func PublishBatch[T any](r *Router, topic string, payloads []T, priority int) int {
	if topic == "" || len(payloads) == 0 || !r.running.Load() {
		return 0
	}

	msgs := make([]*Message, 0, len(payloads))
	for _, p := range payloads {
		if any(p) == nil {
			break
		}
		msg := NewMessage(priority, p)
		msg.Topic = topic
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return 0
	}

	r.mu.Lock()
	entry := r.topicLocked(topic)
	r.mu.Unlock()

	accepted := entry.queue.EnqueueBatch(msgs)
	if accepted > 0 && r.config.EnableStats {
		entry.stats.published.Add(uint64(accepted))
	}
	return accepted
}

// TopicStats returns a snapshot of topic's counters. Unknown topics yield a
// zero snapshot.
func (r *Router) TopicStats(topic string) TopicStatistics {
	r.mu.Lock()
	entry := r.topics[topic]
	r.mu.Unlock()
	if entry == nil {
		return TopicStatistics{}
	}
	return entry.stats.snapshot()
}

// QueueStats returns a snapshot of topic's queue counters. Unknown topics
// yield a zero snapshot.
func (r *Router) QueueStats(topic string) QueueStats {
	r.mu.Lock()
	entry := r.topics[topic]
	r.mu.Unlock()
	if entry == nil {
		return QueueStats{}
	}
	return entry.queue.Stats()
}

// Topics returns the names of all known topics.
func (r *Router) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		out = append(out, topic)
	}
	return out
}

// SubscriberCount returns the number of active subscriptions on topic.
func (r *Router) SubscriberCount(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.topics[topic]
	if entry == nil {
		return 0
	}
	return len(entry.subs)
}

// Clear drops all topics, queues, subscriptions, and per-topic statistics.
func (r *Router) Clear() {
	r.mu.Lock()
	r.topics = make(map[string]*topicEntry)
	r.mu.Unlock()
	if r.dedup != nil {
		r.dedup.Flush()
	}
}

// workerLoop repeatedly scans every topic queue, draining a bounded batch
// from each non-empty one, and sleeps briefly when a scan finds no work.
func (r *Router) workerLoop(stopCh chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if !r.scanTopics() {
			select {
			case <-stopCh:
				return
			case <-time.After(idleSleep):
			}
		}
	}
}

// scanTopics walks all topics under the shared lock and reports whether any
// work was found. Every worker performs the full scan; the shared lock makes
// topic administration and delivery mutually exclusive.
func (r *Router) scanTopics() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	worked := false
	for _, entry := range r.topics {
		if entry.queue.Empty() {
			continue
		}
		r.drainTopicLocked(entry)
		worked = true
	}
	return worked
}

// drainTopicLocked dequeues up to workerBatchSize messages from entry's queue
// and delivers each synchronously to every subscriber in registration order.
// Dispatchers absorb type mismatches and callback failures, so a bad
// subscriber never affects the others. Caller holds mu.
func (r *Router) drainTopicLocked(entry *topicEntry) {
	start := time.Now()
	processed := 0
	for processed < workerBatchSize {
		if time.Since(start) > r.config.ProcessingTimeout {
			break
		}
		msg := entry.queue.Dequeue()
		if msg == nil {
			break
		}
		for _, sub := range entry.subs {
			sub.dispatcher.Call(msg)
		}
		processed++
	}

	if processed > 0 && r.config.EnableStats {
		entry.stats.processed.Add(uint64(processed))
		entry.stats.processingUS.Add(uint64(time.Since(start).Microseconds()))
	}
}
