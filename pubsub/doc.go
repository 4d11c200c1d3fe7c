// Package pubsub implements an in-process, topic-based publish/subscribe
// core for multi-threaded producer/consumer pipelines.
//
// It is built from four pieces: Message, an immutable envelope with a total
// dequeue order (priority descending, then enqueue time, then sequence
// number); Queue, a bounded thread-safe priority queue with blocking and
// batch operations plus running statistics; Dispatcher, a type-erased wrapper
// that invokes a typed callback only when the payload type matches; and
// Router, which owns one queue and one subscriber list per topic and drains
// them with a pool of worker goroutines.
//
// Ordering holds within a single topic queue; there is no ordering guarantee
// across topics. Expected conditions (full queue, blocking timeout, payload
// type mismatch, failing subscriber callback) are signaled by boolean or
// count returns and never fault the router.
//
//	r := pubsub.NewRouter()
//	r.Start()
//	defer r.Stop()
//
//	pubsub.Subscribe(r, "sensor.lidar", func(msg *pubsub.Message, scan Scan) {
//		process(scan)
//	})
//	r.Publish("sensor.lidar", Scan{...}, 5)
package pubsub
