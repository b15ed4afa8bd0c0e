// Package api implements the request/response client for the warren
// gateway HTTP API.
//
// # Operations
//
//   - Health: connectivity probe, best-effort boolean
//   - ListAgents / GetAgent: roster retrieval
//   - History: paginated session history for one agent
//   - SendMessage: submit a command for an agent
//   - UpdateAgent / DeleteAgent: descriptor mutations
//
// Every call is bounded by a 10 second timeout. Read operations used for
// probing and cold-start listing recover transport failures at the
// boundary (logged, typed result); mutations propagate errors to the
// caller. Reconfiguring the base URL or token affects the next call only.
package api
