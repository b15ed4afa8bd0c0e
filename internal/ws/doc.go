// Package ws maintains the persistent channel to the warren gateway.
//
// # Lifecycle
//
// The client moves through Disconnected → Connecting → Connected and back
// to Disconnected on close or error. When a closure was not intentional
// (close code 1000 is reserved for client-initiated disconnects) the
// client schedules a reconnect with bounded exponential backoff,
// min(1000·2^attempt, 5000) milliseconds, giving up after five attempts
// until Connect is called explicitly again.
//
// # Events
//
// Inbound frames are JSON envelopes {type, payload}. Each recognized type
// is validated and decoded into a typed event published on the Events
// channel; the session engine is the sole subscriber. Malformed frames are
// dropped with a warning and never disconnect the channel; unknown types
// are ignored.
//
// A 30 second keep-alive ping runs while connected. Outbound commands
// (SendCommand, RequestContextStats) fail immediately with ErrNotConnected
// when the channel is down; nothing is queued.
package ws
