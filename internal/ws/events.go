// ABOUTME: Typed events decoded from channel envelopes at the transport boundary
// ABOUTME: One concrete struct per recognized frame type; payloads validated before dispatch

package ws

import (
	"encoding/json"
	"fmt"

	"github.com/2389/warren/internal/models"
)

// Event is a validated inbound event from the persistent channel. Exactly
// one concrete type exists per recognized frame type, plus the two
// connection lifecycle events.
type Event interface {
	event()
}

// Connected is published when the channel opens.
type Connected struct{}

// Disconnected is published when the channel closes for any reason.
type Disconnected struct{}

// AgentsUpdate carries a full roster snapshot; it replaces the roster.
type AgentsUpdate struct {
	Agents []models.Agent
}

// AgentCreated announces a new agent.
type AgentCreated struct {
	Agent models.Agent
}

// AgentUpdated carries a full replacement descriptor for one agent.
type AgentUpdated struct {
	Agent models.Agent
}

// AgentDeleted removes one agent from the roster.
type AgentDeleted struct {
	ID string `json:"id"`
}

// Output carries one live output frame for an agent's transcript.
type Output struct {
	Output models.Output
}

// ActivityEvent carries a transient status line for an agent.
type ActivityEvent struct {
	Activity models.Activity
}

// CommandStarted signals that a submitted command began executing.
type CommandStarted struct {
	AgentID string `json:"agentId"`
	Command string `json:"command"`
}

// SessionUpdated signals that an agent's server-side session changed and a
// history refresh is worthwhile.
type SessionUpdated struct {
	AgentID string `json:"agentId"`
}

// ContextStatsEvent carries context-window usage for one agent.
type ContextStatsEvent struct {
	AgentID string              `json:"agentId"`
	Stats   models.ContextStats `json:"stats"`
}

// NotificationEvent carries a user-facing alert from an agent.
type NotificationEvent struct {
	Notification models.Notification
}

func (Connected) event()         {}
func (Disconnected) event()      {}
func (AgentsUpdate) event()      {}
func (AgentCreated) event()      {}
func (AgentUpdated) event()      {}
func (AgentDeleted) event()      {}
func (Output) event()            {}
func (ActivityEvent) event()     {}
func (CommandStarted) event()    {}
func (SessionUpdated) event()    {}
func (ContextStatsEvent) event() {}
func (NotificationEvent) event() {}

// envelope is the wire shape of every frame in both directions.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// isJSONObject reports whether raw is a JSON object (after whitespace).
func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		default:
			return b == '{'
		}
	}
	return false
}

// decodeEvent validates and decodes one envelope into a typed event.
// A nil event with nil error means the frame is recognized but carries
// nothing for subscribers (pong) or is an unknown type to ignore.
func decodeEvent(env envelope) (Event, error) {
	// pong needs no payload; everything else does.
	if env.Type == "pong" {
		return nil, nil
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%s frame without payload", env.Type)
	}

	switch env.Type {
	case "agents_update":
		var agents []models.Agent
		if err := json.Unmarshal(env.Payload, &agents); err != nil {
			return nil, fmt.Errorf("agents_update payload is not an array: %w", err)
		}
		return AgentsUpdate{Agents: agents}, nil

	case "agent_created", "agent_updated":
		if !isJSONObject(env.Payload) {
			return nil, fmt.Errorf("%s payload is not an object", env.Type)
		}
		var agent models.Agent
		if err := json.Unmarshal(env.Payload, &agent); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		if env.Type == "agent_created" {
			return AgentCreated{Agent: agent}, nil
		}
		return AgentUpdated{Agent: agent}, nil

	case "agent_deleted":
		var ev AgentDeleted
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decoding agent_deleted payload: %w", err)
		}
		if ev.ID == "" {
			return nil, fmt.Errorf("agent_deleted payload missing id")
		}
		return ev, nil

	case "output":
		var out models.Output
		if err := json.Unmarshal(env.Payload, &out); err != nil {
			return nil, fmt.Errorf("decoding output payload: %w", err)
		}
		if out.AgentID == "" {
			return nil, fmt.Errorf("output payload missing agentId")
		}
		return Output{Output: out}, nil

	case "activity":
		if !isJSONObject(env.Payload) {
			return nil, fmt.Errorf("activity payload is not an object")
		}
		var act models.Activity
		if err := json.Unmarshal(env.Payload, &act); err != nil {
			return nil, fmt.Errorf("decoding activity payload: %w", err)
		}
		return ActivityEvent{Activity: act}, nil

	case "command_started":
		var ev CommandStarted
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decoding command_started payload: %w", err)
		}
		return ev, nil

	case "session_updated":
		var ev SessionUpdated
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decoding session_updated payload: %w", err)
		}
		return ev, nil

	case "context_stats":
		var ev ContextStatsEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("decoding context_stats payload: %w", err)
		}
		return ev, nil

	case "agent_notification":
		if !isJSONObject(env.Payload) {
			return nil, fmt.Errorf("agent_notification payload is not an object")
		}
		var n models.Notification
		if err := json.Unmarshal(env.Payload, &n); err != nil {
			return nil, fmt.Errorf("decoding agent_notification payload: %w", err)
		}
		return NotificationEvent{Notification: n}, nil

	default:
		// Unknown types are ignored, not errors: the gateway may be newer
		// than this client.
		return nil, nil
	}
}
