// ABOUTME: Live output ingestion: in-place streaming mutation or append of new messages
// ABOUTME: Streaming frames carry deltas, terminal frames carry full text

package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/warren/internal/models"
)

// indexByID returns the position of id in msgs or -1.
func indexByID(msgs []models.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// IngestOutput applies one live output frame to the agent's sequence.
//
// A frame whose durable identifier resolves to an existing message mutates
// it in place: streaming frames append their text delta, terminal frames
// replace the text outright (keeping the accumulated text when the
// terminal frame is empty). Anything else becomes a new message appended
// to the end, guarded against duplicate identifiers.
func (e *Engine) IngestOutput(out models.Output) {
	if out.AgentID == "" {
		e.logger.Warn("dropping output without agentId")
		return
	}

	ts := out.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	e.mu.Lock()
	seq := e.messages[out.AgentID]

	// Point mutation for a known durable identifier.
	if out.UUID != "" {
		if idx := indexByID(seq, out.UUID); idx >= 0 {
			m := &seq[idx]
			if out.Streaming {
				m.Text += out.Text
			} else if out.Text != "" {
				m.Text = out.Text
			}
			if out.Timestamp != 0 {
				m.Timestamp = out.Timestamp
			}
			m.Streaming = out.Streaming
			if out.ToolName != "" {
				m.ToolName = out.ToolName
			}
			if out.ToolInput != nil {
				m.ToolInput = out.ToolInput
			}
			if out.ToolOutput != nil {
				m.ToolOutput = out.ToolOutput
			}

			var snapshot []models.Message
			if !out.Streaming {
				snapshot = append([]models.Message(nil), seq...)
			}
			e.mu.Unlock()

			e.logger.Debug("message updated", "agent_id", out.AgentID, "id", out.UUID, "streaming", out.Streaming)
			if snapshot != nil {
				e.persistTranscript(out.AgentID, snapshot)
			}
			return
		}
	}

	id := out.UUID
	if id == "" {
		// The marker prefix guarantees no collision with durable ids.
		id = fmt.Sprintf("%s-output-%d-%s", out.AgentID, ts, uuid.NewString()[:8])
	}

	// Defensive double-check: a replayed frame with a known id is dropped,
	// not inserted.
	if indexByID(seq, id) >= 0 {
		e.mu.Unlock()
		if !e.dupes.CheckAndMark(id) {
			e.logger.Warn("duplicate live event dropped", "agent_id", out.AgentID, "id", id)
		}
		return
	}

	text := out.Text
	if text == "" {
		text = "[No content]"
	}

	seq = append(seq, models.Message{
		ID:         id,
		AgentID:    out.AgentID,
		Text:       text,
		Timestamp:  ts,
		IsAgent:    true,
		Streaming:  out.Streaming,
		ToolName:   out.ToolName,
		ToolInput:  out.ToolInput,
		ToolOutput: out.ToolOutput,
	})

	// Final consistency guard over the whole sequence.
	e.messages[out.AgentID] = dedupeMessages(seq, e.logger)
	e.mu.Unlock()

	e.logger.Debug("message added", "agent_id", out.AgentID, "id", id, "streaming", out.Streaming)
}
