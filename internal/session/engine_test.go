// ABOUTME: Tests for the reconciliation engine's ordering and duplicate invariants
// ABOUTME: Covers streaming accumulation, optimistic sends, and the history/live merge

package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/warren/internal/models"
	"github.com/2389/warren/internal/ws"
)

// fakeAPI implements APIClient for tests.
type fakeAPI struct {
	agents   []models.Agent
	history  map[string][]models.SessionRecord
	sendErr  error
	sent     []string
	histErr  error
	apiCalls int
}

func (f *fakeAPI) ListAgents(ctx context.Context) []models.Agent {
	return f.agents
}

func (f *fakeAPI) History(ctx context.Context, agentID string, limit, offset int) (*models.HistoryPage, error) {
	f.apiCalls++
	if f.histErr != nil {
		return nil, f.histErr
	}
	return &models.HistoryPage{Messages: f.history[agentID]}, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, agentID, message string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, agentID+":"+message)
	return nil
}

// fakeChannel implements Channel for tests.
type fakeChannel struct {
	connected bool
	commands  []string
	err       error
}

func (f *fakeChannel) Connected() bool { return f.connected }

func (f *fakeChannel) SendCommand(agentID, command string) error {
	if f.err != nil {
		return f.err
	}
	f.commands = append(f.commands, agentID+":"+command)
	return nil
}

func newTestEngine(t *testing.T, api *fakeAPI, ch *fakeChannel) *Engine {
	t.Helper()
	if api == nil {
		api = &fakeAPI{}
	}
	if ch == nil {
		return New(api, nil, nil, nil)
	}
	return New(api, ch, nil, nil)
}

// checkInvariants asserts the two standing invariants: unique identifiers
// and non-decreasing timestamps.
func checkInvariants(t *testing.T, msgs []models.Message) {
	t.Helper()
	seen := make(map[string]struct{}, len(msgs))
	for i, m := range msgs {
		_, dup := seen[m.ID]
		assert.False(t, dup, "duplicate identifier %s", m.ID)
		seen[m.ID] = struct{}{}
		if i > 0 {
			assert.LessOrEqual(t, msgs[i-1].Timestamp, m.Timestamp,
				"timestamps must be non-decreasing at index %d", i)
		}
	}
}

func record(uuid, kind, content string, ts time.Time) models.SessionRecord {
	return models.SessionRecord{
		Type:      kind,
		UUID:      uuid,
		Content:   []byte(fmt.Sprintf("%q", content)),
		Timestamp: ts.Format(time.RFC3339),
	}
}

func TestIngestHistoryInitial(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	base := time.Now().Add(-time.Hour)

	e.IngestHistory("a1", []models.SessionRecord{
		record("u1", "user", "hello", base),
		record("u2", "assistant", "hi there", base.Add(time.Second)),
	})

	msgs := e.Messages("a1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "u1", msgs[0].ID)
	assert.False(t, msgs[0].IsAgent)
	assert.Equal(t, "hi there", msgs[1].Text)
	assert.True(t, msgs[1].IsAgent)
	checkInvariants(t, msgs)
}

func TestIngestHistoryIdempotent(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	base := time.Now().Add(-time.Hour)
	records := []models.SessionRecord{
		record("u1", "user", "one", base),
		record("u2", "assistant", "two", base.Add(time.Second)),
		record("u3", "assistant", "three", base.Add(2*time.Second)),
	}

	e.IngestHistory("a1", records)
	first := e.Messages("a1")

	// Ingesting the same fetch twice leaves the sequence unchanged.
	e.IngestHistory("a1", records)
	assert.Equal(t, first, e.Messages("a1"))
}

func TestIngestHistoryRetainsLocalEchoes(t *testing.T) {
	e := newTestEngine(t, &fakeAPI{}, nil)
	require.NoError(t, e.Send(context.Background(), "a1", "build it"))

	base := time.Now().Add(-time.Hour)
	e.IngestHistory("a1", []models.SessionRecord{
		record("u1", "user", "earlier turn", base),
	})

	msgs := e.Messages("a1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "u1", msgs[0].ID)
	assert.Contains(t, msgs[1].ID, "-user-")
	assert.Equal(t, "build it", msgs[1].Text)
	checkInvariants(t, msgs)
}

func TestIngestHistoryDropsSupersededServerMessages(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	// A server-confirmed message arrives live first.
	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u9", Text: "stale", Timestamp: 500})

	// History does not contain u9: it is superseded.
	e.IngestHistory("a1", []models.SessionRecord{
		record("u1", "user", "kept", time.Now()),
	})

	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "u1", msgs[0].ID)
}

func TestHistorySupersedesLiveDuplicate(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	// Live streaming frame lands first.
	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "partial", Streaming: true, Timestamp: 1000})

	// Then a history fetch with the same durable id and the full text.
	e.IngestHistory("a1", []models.SessionRecord{
		{Type: "assistant", UUID: "u1", Content: []byte(`"partial done"`), Timestamp: "1970-01-01T00:00:01Z"},
	})

	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "u1", msgs[0].ID)
	assert.Equal(t, "partial done", msgs[0].Text)
	checkInvariants(t, msgs)
}

func TestStreamingAccumulation(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "Hel", Streaming: true, Timestamp: 1000})
	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "lo", Streaming: true, Timestamp: 1001})

	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Text)
	assert.True(t, msgs[0].Streaming)

	// Terminal frame replaces outright.
	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "Hello, world", Streaming: false, Timestamp: 1002})

	msgs = e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello, world", msgs[0].Text)
	assert.False(t, msgs[0].Streaming)
}

func TestTerminalFrameWithoutTextKeepsAccumulated(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "done already", Streaming: true, Timestamp: 1000})
	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Streaming: false, Timestamp: 1001})

	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "done already", msgs[0].Text)
	assert.False(t, msgs[0].Streaming)
}

func TestOutputPreservesToolFieldsAcrossUpdates(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.IngestOutput(models.Output{
		AgentID: "a1", UUID: "u1", Text: "running", Streaming: true,
		Timestamp: 1000, ToolName: "bash", ToolInput: []byte(`{"cmd":"ls"}`),
	})
	// Terminal frame omits tool fields; previously-set ones survive.
	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "done", Timestamp: 1001})

	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "bash", msgs[0].ToolName)
	assert.JSONEq(t, `{"cmd":"ls"}`, string(msgs[0].ToolInput))
}

func TestOutputWithoutTextStoresPlaceholder(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Timestamp: 1000})

	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "[No content]", msgs[0].Text)
}

func TestOutputDuplicateDropped(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "first", Timestamp: 1000})
	before := e.Messages("a1")
	require.Len(t, before, 1)

	// Replayed frame with a known id mutates in place rather than
	// inserting a second entry.
	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "first", Timestamp: 1000})
	after := e.Messages("a1")
	require.Len(t, after, 1)
	checkInvariants(t, after)
}

func TestNoDuplicateIdentifiersUnderMixedIngest(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 20; i++ {
		e.IngestOutput(models.Output{
			AgentID:   "a1",
			UUID:      fmt.Sprintf("u%d", i%7),
			Text:      "x",
			Streaming: i%2 == 0,
			Timestamp: base.UnixMilli() + int64(i),
		})
	}
	e.IngestHistory("a1", []models.SessionRecord{
		record("u1", "assistant", "one", base),
		record("u3", "assistant", "three", base.Add(time.Second)),
	})
	for i := 0; i < 20; i++ {
		e.IngestOutput(models.Output{
			AgentID:   "a1",
			UUID:      fmt.Sprintf("u%d", i%5),
			Text:      "y",
			Timestamp: base.UnixMilli() + 100 + int64(i),
		})
	}

	checkInvariants(t, e.Messages("a1"))
}

func TestSendOptimisticAppend(t *testing.T) {
	api := &fakeAPI{}
	ch := &fakeChannel{connected: true}
	e := newTestEngine(t, api, ch)

	require.NoError(t, e.Send(context.Background(), "a1", "build it"))

	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsAgent)
	assert.Equal(t, "build it", msgs[0].Text)
	assert.Contains(t, msgs[0].ID, "-user-")

	assert.Equal(t, []string{"a1:build it"}, api.sent)
	assert.Equal(t, []string{"a1:build it"}, ch.commands)
}

func TestSendFailureKeepsOptimisticMessage(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("gateway unreachable")}
	e := newTestEngine(t, api, nil)

	err := e.Send(context.Background(), "a1", "build it")
	require.Error(t, err)

	// No auto-rollback: the echo remains for presentation policy to handle.
	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "build it", msgs[0].Text)
}

func TestSendSkipsChannelWhenDisconnected(t *testing.T) {
	api := &fakeAPI{}
	ch := &fakeChannel{connected: false}
	e := newTestEngine(t, api, ch)

	require.NoError(t, e.Send(context.Background(), "a1", "hello"))
	assert.Empty(t, ch.commands)
	assert.Len(t, api.sent, 1)
}

func TestLoadHistoryFailureLeavesStateUntouched(t *testing.T) {
	api := &fakeAPI{histErr: errors.New("timeout")}
	e := newTestEngine(t, api, nil)

	e.IngestOutput(models.Output{AgentID: "a1", UUID: "u1", Text: "live", Timestamp: 1000})
	e.LoadHistory(context.Background(), "a1")

	msgs := e.Messages("a1")
	require.Len(t, msgs, 1)
	assert.Equal(t, "u1", msgs[0].ID)
}

func TestRosterOperations(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.ReplaceRoster([]models.Agent{
		{ID: "a1", Name: "scout", Status: models.StatusIdle},
		{ID: "a2", Name: "builder", Status: models.StatusWorking},
	})
	assert.Len(t, e.Agents(), 2)

	e.AddAgent(models.Agent{ID: "a3", Name: "debugger"})
	assert.Len(t, e.Agents(), 3)

	e.UpdateAgent(models.Agent{ID: "a2", Name: "builder", Status: models.StatusError})
	a, ok := e.Agent("a2")
	require.True(t, ok)
	assert.Equal(t, models.StatusError, a.Status)

	// Unmatched identifier is a no-op.
	e.UpdateAgent(models.Agent{ID: "missing", Status: models.StatusIdle})
	assert.Len(t, e.Agents(), 3)

	e.RemoveAgent("a1")
	assert.Len(t, e.Agents(), 2)
	_, ok = e.Agent("a1")
	assert.False(t, ok)
}

func TestRunDispatchesEvents(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	events := make(chan ws.Event, 8)
	events <- ws.Connected{}
	events <- ws.AgentsUpdate{Agents: []models.Agent{{ID: "a1"}}}
	events <- ws.Output{Output: models.Output{AgentID: "a1", UUID: "u1", Text: "hi", Timestamp: 1000}}
	events <- ws.SessionUpdated{AgentID: "a1"}
	events <- ws.ContextStatsEvent{AgentID: "a1", Stats: models.ContextStats{UsedPercent: 42}}
	events <- ws.Disconnected{}
	close(events)

	e.Run(context.Background(), events)

	assert.False(t, e.IsConnected())
	assert.Len(t, e.Agents(), 1)
	require.Len(t, e.Messages("a1"), 1)
	assert.True(t, e.Dirty("a1"))
	stats, ok := e.ContextStats("a1")
	require.True(t, ok)
	assert.Equal(t, 42.0, stats.UsedPercent)
}

func TestDirtyClearedByHistoryIngest(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	e.markDirty("a1")
	require.True(t, e.Dirty("a1"))

	e.IngestHistory("a1", nil)
	assert.False(t, e.Dirty("a1"))
}

func TestNotificationsRespectToggle(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	e.recordNotification(models.Notification{AgentID: "a1", Title: "kept"})
	e.SetNotificationsEnabled(false)
	e.recordNotification(models.Notification{AgentID: "a1", Title: "dropped"})

	notes := e.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, "kept", notes[0].Title)
}

func TestActivityFeedBounded(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	for i := 0; i < activityRingSize+10; i++ {
		e.recordActivity(models.Activity{AgentID: "a1", Message: fmt.Sprintf("m%d", i)})
	}
	acts := e.Activities()
	require.Len(t, acts, activityRingSize)
	assert.Equal(t, fmt.Sprintf("m%d", activityRingSize+9), acts[len(acts)-1].Message)
}
