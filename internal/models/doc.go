// Package models defines the domain types shared by the API client, the
// persistent channel client, and the session reconciliation engine: agent
// descriptors, transcript messages, raw session records, and the auxiliary
// payloads (activity, notifications, context stats) the gateway pushes.
package models
