// Package notifications delivers review outcomes to submitters and alerts
// moderators.
//
// Dispatcher.Deliver makes exactly one Channel.Send call per Job and never
// retries. Failures are logged and reported through the Observer hook; they
// are never returned to the caller. When a Marker is configured the
// dispatcher claims the submission's notification marker before sending, so
// a duplicate job for the same submission is skipped instead of sent twice.
//
// Pool fans jobs out to a fixed set of workers. Jobs are sharded by
// submission ID, which keeps per-submission order while letting a slow
// recipient hold up only its own shard.
//
// Service is the moderator side: ntfy pushes for new submissions and feed
// outages, with a noop implementation when no topic is configured.
package notifications
