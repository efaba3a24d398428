// Package feed turns the submission change log into a push-style event
// stream.
//
// Adapter.Run loops over sessions until its context is cancelled. A session
// starts from a store snapshot, replays every reviewed submission as an
// added event, then polls the change log for new rows. Any source error ends
// the session; Run waits with exponential backoff and opens a new one, which
// replays the snapshot again. The change log cursor survives the reconnect,
// so changes committed while the session was down are still delivered after
// the replay. With a Checkpoint the cursor also survives process restarts.
//
// Events are pushed to the Handler synchronously; handlers hand work off
// rather than performing delivery inline.
package feed
