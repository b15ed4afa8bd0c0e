// ABOUTME: Agent descriptor and status enumeration mirroring the gateway schema
// ABOUTME: Descriptors are owned by the roster store and replaced wholesale, never field-merged

package models

// AgentStatus is the lifecycle status reported by the gateway. The client
// stores and republishes it; no transition table is enforced here.
type AgentStatus string

const (
	StatusIdle              AgentStatus = "idle"
	StatusWorking           AgentStatus = "working"
	StatusWaiting           AgentStatus = "waiting"
	StatusWaitingPermission AgentStatus = "waiting_permission"
	StatusError             AgentStatus = "error"
	StatusOffline           AgentStatus = "offline"
	StatusOrphaned          AgentStatus = "orphaned"
)

// Agent describes one remote agent's current state as reported by the
// gateway, either from GET /agents or from roster push events.
type Agent struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Class       string      `json:"class"`
	Cwd         string      `json:"cwd"`
	Status      AgentStatus `json:"status"`
	CurrentTask string      `json:"currentTask,omitempty"`
	CurrentTool string      `json:"currentTool,omitempty"`
	SessionID   string      `json:"sessionId,omitempty"`
	CreatedAt   int64       `json:"createdAt"`
	UpdatedAt   int64       `json:"updatedAt"`
}

// AgentPatch is a partial descriptor for PATCH /agents/{id}. Nil fields are
// omitted from the request body and left untouched by the gateway.
type AgentPatch struct {
	Name               *string `json:"name,omitempty"`
	Class              *string `json:"class,omitempty"`
	CustomInstructions *string `json:"customInstructions,omitempty"`
}

// ContextStats reports context-window usage for one agent, delivered over
// the channel in response to a request_context_stats frame.
type ContextStats struct {
	Model         string  `json:"model"`
	ContextWindow int     `json:"contextWindow"`
	TotalTokens   int     `json:"totalTokens"`
	UsedPercent   float64 `json:"usedPercent"`
	LastUpdated   int64   `json:"lastUpdated"`
}
