// Package intake runs the Telegram side of submission intake.
//
// A Poller long-polls getUpdates and answers the bot commands: /start
// registers the sender, /history reports their submission counts, and a
// bare Gmail address is stored as a pending submission and acknowledged.
// Anything else is ignored. The poller never notifies on status changes;
// that is the relay's job.
package intake
