// ABOUTME: Live incremental output payload pushed over the persistent channel
// ABOUTME: UUID is the durable identifier linking deltas to one transcript message

package models

import "encoding/json"

// Output is one live output frame for an agent. When Streaming is true,
// Text is a delta to append; a terminal frame (Streaming false) carries
// the full text, not a delta.
type Output struct {
	AgentID    string          `json:"agentId"`
	Text       string          `json:"text"`
	Streaming  bool            `json:"isStreaming"`
	Timestamp  int64           `json:"timestamp"`
	UUID       string          `json:"uuid,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`
	ToolOutput json.RawMessage `json:"toolOutput,omitempty"`
}
