// Package msgflow is an embeddable, in-process, topic-based publish/subscribe
// core: a priority-ordered thread-safe message queue, a type-erased callback
// dispatch mechanism, and a multi-topic routing engine built on top of them.
//
// The core lives in the pubsub package; config loads router configuration
// from YAML files and logging builds the zap loggers the router reports
// through.
package msgflow

// Version is the module version. Configuration files may pin a compatible
// range through their "requires" field.
const Version = "1.0.0"
