package pubsub

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// go-cache janitors stop via finalizer, not Close; ignore them.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func newRunningRouter(t *testing.T, opts ...Option) *Router {
	t.Helper()
	r := NewRouter(opts...)
	require.True(t, r.Start())
	t.Cleanup(r.Stop)
	return r
}

func TestRouter_StartStop(t *testing.T) {
	r := NewRouter()
	require.False(t, r.IsRunning())

	require.True(t, r.Start())
	require.True(t, r.IsRunning())
	require.True(t, r.Start(), "start on a running router is idempotent")

	r.Stop()
	require.False(t, r.IsRunning())
	r.Stop() // safe on a stopped router
}

func TestRouter_Restartable(t *testing.T) {
	r := NewRouter()
	var delivered atomic.Int64
	Subscribe(r, "t", func(msg *Message, payload int) { delivered.Add(1) })

	require.True(t, r.Start())
	require.True(t, r.Publish("t", 1, 0))
	require.Eventually(t, func() bool { return delivered.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	r.Stop()
	require.False(t, r.Publish("t", 2, 0), "publish fails while stopped")

	require.True(t, r.Start())
	defer r.Stop()
	require.True(t, r.Publish("t", 3, 0))
	require.Eventually(t, func() bool { return delivered.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRouter_PublishNotRunning(t *testing.T) {
	r := NewRouter()
	require.False(t, r.Publish("t", "payload", 0))
	require.Zero(t, PublishBatch(r, "t", []int{1, 2}, 0))
}

func TestRouter_FanOut(t *testing.T) {
	r := newRunningRouter(t)

	const subscribers = 5
	counters := make([]atomic.Int64, subscribers)
	for i := 0; i < subscribers; i++ {
		i := i
		require.NotZero(t, Subscribe(r, "alpha", func(msg *Message, payload string) {
			counters[i].Add(1)
		}))
	}
	var unrelated atomic.Int64
	Subscribe(r, "beta", func(msg *Message, payload string) { unrelated.Add(1) })

	require.True(t, r.Publish("alpha", "event", 0))

	require.Eventually(t, func() bool {
		for i := range counters {
			if counters[i].Load() != 1 {
				return false
			}
		}
		return true
	}, 2*time.Second, 5*time.Millisecond)

	// No duplicate deliveries and no cross-topic leakage.
	time.Sleep(20 * time.Millisecond)
	for i := range counters {
		require.EqualValues(t, 1, counters[i].Load())
	}
	require.Zero(t, unrelated.Load())
}

func TestRouter_MixedPayloadTypes(t *testing.T) {
	r := newRunningRouter(t)

	var ints, strings atomic.Int64
	Subscribe(r, "mixed", func(msg *Message, payload int) { ints.Add(1) })
	Subscribe(r, "mixed", func(msg *Message, payload string) { strings.Add(1) })

	require.True(t, r.Publish("mixed", 42, 0))
	require.Eventually(t, func() bool { return ints.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, strings.Load(), "foreign payload types are silently skipped")
}

func TestRouter_DeliveryOrder(t *testing.T) {
	r := newRunningRouter(t)

	var mu sync.Mutex
	var got []int
	Subscribe(r, "ordered", func(msg *Message, payload int) {
		mu.Lock()
		got = append(got, payload)
		mu.Unlock()
	})

	payloads := make([]int, 20)
	for i := range payloads {
		payloads[i] = i
	}
	require.Equal(t, len(payloads), PublishBatch(r, "ordered", payloads, 0))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(payloads)
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, payloads, got, "equal-priority batch must arrive in enqueue order")
}

func TestRouter_Unsubscribe(t *testing.T) {
	r := newRunningRouter(t)

	var delivered atomic.Int64
	id := Subscribe(r, "t", func(msg *Message, payload int) { delivered.Add(1) })
	require.NotZero(t, id)

	require.True(t, r.Unsubscribe("t", id))
	require.False(t, r.Unsubscribe("t", id), "an id unsubscribes exactly once")
	require.False(t, r.Unsubscribe("other", id))

	require.True(t, r.Publish("t", 1, 0))
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, delivered.Load())
}

func TestRouter_SubscribeRejectsInvalid(t *testing.T) {
	r := NewRouter()
	require.Zero(t, Subscribe(r, "", func(msg *Message, payload int) {}))
	require.Zero(t, Subscribe[int](r, "t", nil))
	require.Zero(t, r.SubscribeDispatcher("t", nil))
}

func TestRouter_PublishRejectsInvalid(t *testing.T) {
	r := newRunningRouter(t)
	require.False(t, r.Publish("t", nil, 0))
	require.False(t, r.Publish("", "payload", 0))
	require.False(t, r.PublishMessage("t", nil))
}

func TestRouter_PublishBatchStopsAtNil(t *testing.T) {
	r := newRunningRouter(t)

	require.Zero(t, PublishBatch(r, "t", []any{nil, "x"}, 0),
		"leading nil payload must stop the batch before anything is enqueued")
	require.Zero(t, r.TopicStats("t").MessagesPublished)
	require.Zero(t, r.QueueStats("t").TotalEnqueued)

	require.Equal(t, 1, PublishBatch(r, "t", []any{"a", nil, "b"}, 0))
	require.EqualValues(t, 1, r.QueueStats("t").TotalEnqueued)
}

func TestRouter_TopicsAndSubscriberCount(t *testing.T) {
	r := NewRouter()
	Subscribe(r, "a", func(msg *Message, payload int) {})
	Subscribe(r, "a", func(msg *Message, payload int) {})
	Subscribe(r, "b", func(msg *Message, payload string) {})

	require.ElementsMatch(t, []string{"a", "b"}, r.Topics())
	require.Equal(t, 2, r.SubscriberCount("a"))
	require.Equal(t, 1, r.SubscriberCount("b"))
	require.Zero(t, r.SubscriberCount("missing"))
}

func TestRouter_TopicStats(t *testing.T) {
	r := newRunningRouter(t)

	var delivered atomic.Int64
	Subscribe(r, "t", func(msg *Message, payload int) { delivered.Add(1) })

	for i := 0; i < 3; i++ {
		require.True(t, r.Publish("t", i, 0))
	}
	require.Eventually(t, func() bool { return delivered.Load() == 3 }, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return r.TopicStats("t").MessagesProcessed == 3
	}, 2*time.Second, 5*time.Millisecond)

	stats := r.TopicStats("t")
	require.EqualValues(t, 3, stats.MessagesPublished)
	require.Equal(t, 1, stats.ActiveSubscribers)
	require.Equal(t, TopicStatistics{}, r.TopicStats("missing"))
}

func TestRouter_QueueStats(t *testing.T) {
	r := newRunningRouter(t)
	require.True(t, r.Publish("t", 1, 0))

	require.Eventually(t, func() bool {
		return r.QueueStats("t").TotalDequeued == 1
	}, 2*time.Second, 5*time.Millisecond)

	stats := r.QueueStats("t")
	require.EqualValues(t, 1, stats.TotalEnqueued)
	require.Equal(t, QueueStats{}, r.QueueStats("missing"))
}

func TestRouter_StatsDisabled(t *testing.T) {
	r := newRunningRouter(t, WithStats(false))

	var delivered atomic.Int64
	Subscribe(r, "t", func(msg *Message, payload int) { delivered.Add(1) })
	require.True(t, r.Publish("t", 1, 0))
	require.Eventually(t, func() bool { return delivered.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, TopicStatistics{}, r.TopicStats("t"))
}

func TestRouter_Clear(t *testing.T) {
	r := newRunningRouter(t)
	Subscribe(r, "a", func(msg *Message, payload int) {})
	require.True(t, r.Publish("a", 1, 0))

	r.Clear()
	require.Empty(t, r.Topics())
	require.Zero(t, r.SubscriberCount("a"))
}

func TestRouter_Dedup(t *testing.T) {
	r := newRunningRouter(t, WithDedupWindow(time.Minute))

	msg := NewMessage(0, "once")
	require.True(t, r.PublishMessage("t", msg))
	require.False(t, r.PublishMessage("t", msg), "same message id within the window is dropped")

	other := NewMessage(0, "other")
	require.True(t, r.PublishMessage("t", other))
}

func TestRouter_ConcurrentPublish(t *testing.T) {
	r := newRunningRouter(t, WithWorkerCount(2))

	var delivered atomic.Int64
	Subscribe(r, "load", func(msg *Message, payload int) { delivered.Add(1) })

	const producers = 4
	const perProducer = 50
	var wg sync.WaitGroup
	var rejected atomic.Int64
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if !r.Publish("load", i, i%3) {
					rejected.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	require.Zero(t, rejected.Load())

	require.Eventually(t, func() bool {
		return delivered.Load() == producers*perProducer
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRouterFromConfig_Normalizes(t *testing.T) {
	r := NewRouterFromConfig(Config{WorkerCount: -1})
	require.Equal(t, 1, r.config.WorkerCount)
	require.NotZero(t, r.config.ProcessingTimeout)
}
