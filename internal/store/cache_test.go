// ABOUTME: Tests for the SQLite transcript cache: round trips and whole-transcript replace

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/warren/internal/models"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "warren", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	msgs := []models.Message{
		{ID: "u1", AgentID: "a1", Text: "hello", Timestamp: 1000, IsAgent: false},
		{ID: "u2", AgentID: "a1", Text: "[Tool: bash]\nls", Timestamp: 2000, IsAgent: true, ToolName: "bash"},
	}
	require.NoError(t, c.SaveTranscript(ctx, "a1", msgs))

	got, err := c.LoadTranscript(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].ID)
	assert.Equal(t, "a1", got[0].AgentID)
	assert.False(t, got[0].IsAgent)
	assert.Equal(t, "bash", got[1].ToolName)
	assert.True(t, got[1].IsAgent)
}

func TestSaveReplacesTranscript(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SaveTranscript(ctx, "a1", []models.Message{
		{ID: "old", AgentID: "a1", Text: "stale", Timestamp: 1},
	}))
	require.NoError(t, c.SaveTranscript(ctx, "a1", []models.Message{
		{ID: "new", AgentID: "a1", Text: "fresh", Timestamp: 2},
	}))

	got, err := c.LoadTranscript(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestLoadMissingAgent(t *testing.T) {
	c := openTestCache(t)

	got, err := c.LoadTranscript(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTranscriptsAreIsolatedPerAgent(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SaveTranscript(ctx, "a1", []models.Message{{ID: "m1", Timestamp: 1}}))
	require.NoError(t, c.SaveTranscript(ctx, "a2", []models.Message{{ID: "m2", Timestamp: 1}}))

	got, err := c.LoadTranscript(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
}
