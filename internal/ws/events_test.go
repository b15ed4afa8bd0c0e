// ABOUTME: Tests for envelope decoding and boundary validation of frame payloads
// ABOUTME: Malformed payloads for recognized types are errors; unknown types are ignored

package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, frameType, payload string) (Event, error) {
	t.Helper()
	env := envelope{Type: frameType}
	if payload != "" {
		env.Payload = json.RawMessage(payload)
	}
	return decodeEvent(env)
}

func TestDecodeAgentsUpdate(t *testing.T) {
	ev, err := decode(t, "agents_update", `[{"id":"a1","name":"scout","status":"idle"}]`)
	require.NoError(t, err)

	update, ok := ev.(AgentsUpdate)
	require.True(t, ok)
	require.Len(t, update.Agents, 1)
	assert.Equal(t, "a1", update.Agents[0].ID)
}

func TestDecodeAgentsUpdateRejectsNonArray(t *testing.T) {
	_, err := decode(t, "agents_update", `{"id":"a1"}`)
	assert.Error(t, err)
}

func TestDecodeAgentLifecycle(t *testing.T) {
	ev, err := decode(t, "agent_created", `{"id":"a1","name":"scout"}`)
	require.NoError(t, err)
	created, ok := ev.(AgentCreated)
	require.True(t, ok)
	assert.Equal(t, "a1", created.Agent.ID)

	ev, err = decode(t, "agent_updated", `{"id":"a1","status":"working"}`)
	require.NoError(t, err)
	updated, ok := ev.(AgentUpdated)
	require.True(t, ok)
	assert.Equal(t, "a1", updated.Agent.ID)

	ev, err = decode(t, "agent_deleted", `{"id":"a1"}`)
	require.NoError(t, err)
	deleted, ok := ev.(AgentDeleted)
	require.True(t, ok)
	assert.Equal(t, "a1", deleted.ID)
}

func TestDecodeAgentDeletedRequiresID(t *testing.T) {
	_, err := decode(t, "agent_deleted", `{}`)
	assert.Error(t, err)
}

func TestDecodeAgentCreatedRejectsNonObject(t *testing.T) {
	_, err := decode(t, "agent_created", `[1,2]`)
	assert.Error(t, err)
}

func TestDecodeOutput(t *testing.T) {
	ev, err := decode(t, "output", `{"agentId":"a1","text":"Hel","isStreaming":true,"timestamp":1000,"uuid":"u1"}`)
	require.NoError(t, err)

	out, ok := ev.(Output)
	require.True(t, ok)
	assert.Equal(t, "a1", out.Output.AgentID)
	assert.Equal(t, "Hel", out.Output.Text)
	assert.True(t, out.Output.Streaming)
	assert.Equal(t, "u1", out.Output.UUID)
}

func TestDecodeOutputRequiresAgentID(t *testing.T) {
	_, err := decode(t, "output", `{"text":"orphan"}`)
	assert.Error(t, err)
}

func TestDecodeOutputRequiresPayload(t *testing.T) {
	_, err := decode(t, "output", "")
	assert.Error(t, err)
}

func TestDecodeAuxiliaryFrames(t *testing.T) {
	ev, err := decode(t, "activity", `{"agentId":"a1","agentName":"scout","message":"thinking","timestamp":1}`)
	require.NoError(t, err)
	act, ok := ev.(ActivityEvent)
	require.True(t, ok)
	assert.Equal(t, "thinking", act.Activity.Message)

	ev, err = decode(t, "command_started", `{"agentId":"a1","command":"build"}`)
	require.NoError(t, err)
	cmd, ok := ev.(CommandStarted)
	require.True(t, ok)
	assert.Equal(t, "build", cmd.Command)

	ev, err = decode(t, "session_updated", `{"agentId":"a1"}`)
	require.NoError(t, err)
	sess, ok := ev.(SessionUpdated)
	require.True(t, ok)
	assert.Equal(t, "a1", sess.AgentID)

	ev, err = decode(t, "context_stats", `{"agentId":"a1","stats":{"usedPercent":61.5}}`)
	require.NoError(t, err)
	stats, ok := ev.(ContextStatsEvent)
	require.True(t, ok)
	assert.Equal(t, 61.5, stats.Stats.UsedPercent)

	ev, err = decode(t, "agent_notification", `{"agentId":"a1","title":"done","message":"task finished"}`)
	require.NoError(t, err)
	note, ok := ev.(NotificationEvent)
	require.True(t, ok)
	assert.Equal(t, "done", note.Notification.Title)
}

func TestDecodePongNeedsNoPayload(t *testing.T) {
	ev, err := decode(t, "pong", "")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestDecodeUnknownTypeIgnored(t *testing.T) {
	ev, err := decode(t, "future_type", `{"whatever":true}`)
	require.NoError(t, err)
	assert.Nil(t, ev)
}
