// Package store persists agent transcripts to a local SQLite database so
// the client can show the last known conversation before the gateway
// answers (or while offline). The cache is strictly a read-optimization:
// the session engine's merge rules treat fetched history as authoritative.
package store
