// Package session owns per-agent transcript state and the agent roster,
// reconciling three input kinds into one gap-free, duplicate-free,
// chronologically ordered sequence per agent:
//
//   - fetched history pages (authoritative for everything they contain)
//   - live output frames (streaming deltas and terminal full-text frames)
//   - full-object roster updates
//
// # Ownership
//
// The engine is the only writer of the transcript map and the roster. All
// live events are serialized through one worker (Run); snapshot readers
// receive copies and can never observe torn state. History fetches resolve
// on their own goroutines and serialize through the engine's lock. State
// is keyed by agent identifier, not screen lifetime, so a fetch completing
// after the user navigated away is still applied.
//
// # Merge heuristic
//
// When a history fetch lands on a non-empty sequence, locally-originated
// messages (identifiers carrying the "-user-" or "-output-" marker) are
// always retained; server-confirmed messages are retained only when absent
// from the fetch. The combined set is sorted by timestamp and deduplicated
// by identifier, first occurrence wins. Under adversarial interleaving a
// shallower page can drop a live message that a later page would contain;
// that is a known limitation of the single-page heuristic, kept as is.
package session
