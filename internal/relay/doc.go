// Package relay wires the change feed, the classifier, and the notification
// dispatcher into one long-running pipeline.
//
// Relay implements feed.Handler: each event is counted, classified, and,
// when it yields a job, queued on the dispatcher pool. Queueing never waits
// on a delivery, so a slow or failing recipient cannot hold up the feed.
// Relay also implements feed.SessionObserver to keep the feed metrics
// current and to alert moderators when the feed drops and recovers.
package relay
