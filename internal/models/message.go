// ABOUTME: Transcript message and raw session record types
// ABOUTME: Message identity is the deduplication key across the history/live-stream boundary

package models

import "encoding/json"

// Message is one turn in an agent's transcript. ID is stable across the
// history-fetch/live-stream boundary: either a server-issued UUID or a
// client-synthesized identifier carrying a local-origin marker.
type Message struct {
	ID         string          `json:"id"`
	AgentID    string          `json:"agentId"`
	Text       string          `json:"text"`
	Timestamp  int64           `json:"timestamp"` // epoch milliseconds
	IsAgent    bool            `json:"isAgent"`
	Streaming  bool            `json:"isStreaming,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`
	ToolOutput json.RawMessage `json:"toolOutput,omitempty"`
}

// SessionRecord is one raw history record as returned by
// GET /agents/{id}/history. Content is left raw because the gateway emits
// strings, arrays of blocks, or bare objects depending on the record kind.
type SessionRecord struct {
	Type      string          `json:"type"`
	Content   json.RawMessage `json:"content,omitempty"`
	Text      string          `json:"text,omitempty"` // legacy field, pre-content schema
	Timestamp string          `json:"timestamp,omitempty"`
	UUID      string          `json:"uuid,omitempty"`
	ToolName  string          `json:"toolName,omitempty"`
	ToolInput json.RawMessage `json:"toolInput,omitempty"`
}

// HistoryPage is the envelope around a history fetch. Only Messages is
// consumed by the reconciliation engine; the pagination metadata is exposed
// for callers that page backwards.
type HistoryPage struct {
	Messages   []SessionRecord `json:"messages"`
	SessionID  string          `json:"sessionId,omitempty"`
	TotalCount int             `json:"totalCount,omitempty"`
	HasMore    bool            `json:"hasMore,omitempty"`
}

// Activity is a transient status line pushed for an agent.
type Activity struct {
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Notification is a user-facing alert pushed by an agent.
type Notification struct {
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
