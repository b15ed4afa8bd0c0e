// Package config handles warren client configuration.
//
// Two layers feed the effective configuration:
//
//  1. An optional YAML file (logging options, initial server URL and token)
//     with ${VAR} environment expansion, loaded once at startup.
//  2. A mutable settings blob persisted as JSON under a fixed key in a
//     key-value store, updated when the user changes the server URL, auth
//     token, or notification preference at runtime.
//
// An absent or corrupt settings blob always falls back to Default() rather
// than failing; a missing server URL is the only validation error, and it
// is reported before any network call is attempted.
package config
