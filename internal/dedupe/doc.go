// Package dedupe provides a small TTL cache for tracking recently seen
// keys. The session engine uses it to rate-limit duplicate-drop
// diagnostics when the transport replays the same frame.
package dedupe
