// ABOUTME: Optimistic message sending: local echo first, then REST, then channel push
// ABOUTME: A failed send leaves the echo in place; rollback is presentation policy

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/warren/internal/models"
)

// Send synthesizes a locally-originated message, appends it immediately,
// then submits the command via the API and, when the channel is up,
// additionally pushes it there. The API failure propagates to the caller;
// the optimistic message is not rolled back here.
func (e *Engine) Send(ctx context.Context, agentID, text string) error {
	now := time.Now().UnixMilli()
	echo := models.Message{
		ID:        fmt.Sprintf("%s-user-%d-%s", agentID, now, uuid.NewString()[:8]),
		AgentID:   agentID,
		Text:      text,
		Timestamp: now,
		IsAgent:   false,
	}

	e.mu.Lock()
	e.messages[agentID] = append(e.messages[agentID], echo)
	e.mu.Unlock()

	e.logger.Debug("optimistic message appended", "agent_id", agentID, "id", echo.ID)

	if err := e.api.SendMessage(ctx, agentID, text); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	if e.channel != nil && e.channel.Connected() {
		if err := e.channel.SendCommand(agentID, text); err != nil {
			e.logger.Warn("channel push failed", "agent_id", agentID, "error", err)
		}
	}
	return nil
}
