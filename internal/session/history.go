// ABOUTME: History ingestion: raw record mapping and the history/live merge
// ABOUTME: History is authoritative for anything it contains; local echoes are always retained

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/2389/warren/internal/models"
)

// isLocalID reports whether an identifier was synthesized client-side.
// Durable identifiers are server-issued UUIDs and never contain these
// markers.
func isLocalID(id string) bool {
	return strings.Contains(id, "-user-") || strings.Contains(id, "-output-")
}

// parseRecordTimestamp parses a history record timestamp, accepting
// RFC 3339 or epoch milliseconds, falling back to now.
func parseRecordTimestamp(raw string) int64 {
	if raw == "" {
		return time.Now().UnixMilli()
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UnixMilli()
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms
	}
	return time.Now().UnixMilli()
}

// recordText derives display text from a record, in preference order:
// string content, first array element's text, JSON-rendered object
// content, the legacy text field, else a placeholder.
func recordText(rec models.SessionRecord) string {
	if len(rec.Content) > 0 {
		var s string
		if err := json.Unmarshal(rec.Content, &s); err == nil {
			return s
		}

		var blocks []struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(rec.Content, &blocks); err == nil {
			if len(blocks) > 0 && blocks[0].Text != "" {
				return blocks[0].Text
			}
			return string(rec.Content)
		}

		return string(rec.Content)
	}
	if rec.Text != "" {
		return rec.Text
	}
	return "[Empty message]"
}

// mapRecord converts one raw history record into a Message. The second
// return is false for records that fail structural validation; they are
// skipped, not fatal.
func mapRecord(agentID string, rec models.SessionRecord, index int) (models.Message, bool) {
	if rec.Type == "" {
		return models.Message{}, false
	}

	ts := parseRecordTimestamp(rec.Timestamp)
	isAgent := rec.Type == "assistant" || rec.Type == "tool_use" || rec.Type == "tool_result"

	text := recordText(rec)
	switch {
	case rec.Type == "tool_use" && rec.ToolName != "":
		text = fmt.Sprintf("[Tool: %s]\n%s", rec.ToolName, text)
	case rec.Type == "tool_result":
		text = "[Tool Result]\n" + text
	}

	id := rec.UUID
	if id == "" {
		// Unique within one fetch even without a durable id.
		id = fmt.Sprintf("%s-history-%d-%d", agentID, ts, index)
	}

	return models.Message{
		ID:        id,
		AgentID:   agentID,
		Text:      text,
		Timestamp: ts,
		IsAgent:   isAgent,
		ToolName:  rec.ToolName,
		ToolInput: rec.ToolInput,
	}, true
}

// dedupeMessages removes duplicate identifiers, keeping the first
// occurrence. Duplicates are a defect signal, logged, never surfaced.
func dedupeMessages(msgs []models.Message, logger *slog.Logger) []models.Message {
	seen := make(map[string]struct{}, len(msgs))
	out := msgs[:0:0]
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			logger.Warn("duplicate message removed", "id", m.ID, "agent_id", m.AgentID)
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// IngestHistory merges one fetched history page (oldest first) into the
// agent's sequence. History is authoritative for every identifier it
// contains; locally-originated messages are always retained. The merge is
// order-insensitive with respect to racing live events, except that a
// shallower page can drop a live message a later page would contain (see
// the package comment).
func (e *Engine) IngestHistory(agentID string, records []models.SessionRecord) {
	mapped := make([]models.Message, 0, len(records))
	for i, rec := range records {
		m, ok := mapRecord(agentID, rec, i)
		if !ok {
			e.logger.Warn("skipping invalid history record", "agent_id", agentID, "index", i)
			continue
		}
		mapped = append(mapped, m)
	}

	e.mu.Lock()
	existing := e.messages[agentID]

	var merged []models.Message
	if len(existing) == 0 {
		merged = dedupeMessages(mapped, e.logger)
	} else {
		fetched := make(map[string]struct{}, len(mapped))
		for _, m := range mapped {
			if !isLocalID(m.ID) {
				fetched[m.ID] = struct{}{}
			}
		}

		retained := make([]models.Message, 0, len(existing))
		for _, m := range existing {
			if isLocalID(m.ID) {
				retained = append(retained, m)
				continue
			}
			if _, inFetch := fetched[m.ID]; !inFetch {
				retained = append(retained, m)
			}
		}

		merged = append(mapped, retained...)
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Timestamp < merged[j].Timestamp
		})
		merged = dedupeMessages(merged, e.logger)
	}

	e.messages[agentID] = merged
	e.dirty[agentID] = false
	snapshot := append([]models.Message(nil), merged...)
	e.mu.Unlock()

	e.logger.Debug("history ingested",
		"agent_id", agentID,
		"fetched", len(mapped),
		"total", len(snapshot))
	e.persistTranscript(agentID, snapshot)
}

// LoadHistory fetches one page of history and ingests it. A transport
// failure is recovered here: the in-memory sequence is left untouched,
// which is equivalent to merging an empty page.
func (e *Engine) LoadHistory(ctx context.Context, agentID string) {
	page, err := e.api.History(ctx, agentID, historyPageSize, 0)
	if err != nil {
		e.logger.Warn("history fetch failed", "agent_id", agentID, "error", err)
		return
	}
	e.IngestHistory(agentID, page.Messages)
}

// Messages returns a copy of the agent's current sequence, sorted by
// timestamp ascending and free of duplicate identifiers.
func (e *Engine) Messages(agentID string) []models.Message {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.Message(nil), e.messages[agentID]...)
}
