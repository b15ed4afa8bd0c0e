// ABOUTME: Roster store plus context stats, activity feed, and notification retention
// ABOUTME: Descriptors are replaced wholesale by id match; delete removes the entry outright

package session

import (
	"context"

	"github.com/2389/warren/internal/models"
)

// ReplaceRoster swaps the whole roster for a fresh snapshot.
func (e *Engine) ReplaceRoster(agents []models.Agent) {
	e.mu.Lock()
	e.agents = append([]models.Agent(nil), agents...)
	e.mu.Unlock()
	e.logger.Debug("roster replaced", "count", len(agents))
}

// AddAgent appends a newly created agent to the roster.
func (e *Engine) AddAgent(agent models.Agent) {
	e.mu.Lock()
	e.agents = append(e.agents, agent)
	e.mu.Unlock()
	e.logger.Debug("agent added", "agent_id", agent.ID)
}

// UpdateAgent replaces the matching descriptor wholesale. An unmatched
// identifier is a no-op; other roster entries are untouched.
func (e *Engine) UpdateAgent(agent models.Agent) {
	e.mu.Lock()
	for i := range e.agents {
		if e.agents[i].ID == agent.ID {
			e.agents[i] = agent
			break
		}
	}
	e.mu.Unlock()
}

// RemoveAgent deletes the matching descriptor. No tombstoning.
func (e *Engine) RemoveAgent(id string) {
	e.mu.Lock()
	kept := e.agents[:0:0]
	for _, a := range e.agents {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	e.agents = kept
	e.mu.Unlock()
	e.logger.Debug("agent removed", "agent_id", id)
}

// Agents returns a copy of the current roster.
func (e *Engine) Agents() []models.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.Agent(nil), e.agents...)
}

// Agent returns the descriptor for id, if present.
func (e *Engine) Agent(id string) (models.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, a := range e.agents {
		if a.ID == id {
			return a, true
		}
	}
	return models.Agent{}, false
}

// RefreshRoster replaces the roster from a cold-start fetch. A transport
// failure leaves the roster untouched.
func (e *Engine) RefreshRoster(ctx context.Context) {
	agents := e.api.ListAgents(ctx)
	if agents == nil {
		return
	}
	e.ReplaceRoster(agents)
}

func (e *Engine) setStats(agentID string, stats models.ContextStats) {
	if agentID == "" {
		return
	}
	e.mu.Lock()
	e.stats[agentID] = stats
	e.mu.Unlock()
}

// ContextStats returns the last pushed context-window usage for an agent.
func (e *Engine) ContextStats(agentID string) (models.ContextStats, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.stats[agentID]
	return s, ok
}

func (e *Engine) recordActivity(act models.Activity) {
	e.mu.Lock()
	e.activities = append(e.activities, act)
	if len(e.activities) > activityRingSize {
		e.activities = e.activities[len(e.activities)-activityRingSize:]
	}
	e.mu.Unlock()
}

// Activities returns a copy of the retained activity feed, oldest first.
func (e *Engine) Activities() []models.Activity {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.Activity(nil), e.activities...)
}

func (e *Engine) recordNotification(n models.Notification) {
	e.mu.Lock()
	if !e.notifyEnabled {
		e.mu.Unlock()
		return
	}
	e.notifications = append(e.notifications, n)
	if len(e.notifications) > notificationRingSize {
		e.notifications = e.notifications[len(e.notifications)-notificationRingSize:]
	}
	e.mu.Unlock()
	e.logger.Info("notification", "agent_id", n.AgentID, "title", n.Title)
}

// Notifications returns a copy of retained notifications, oldest first.
func (e *Engine) Notifications() []models.Notification {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.Notification(nil), e.notifications...)
}
