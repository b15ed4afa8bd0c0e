// ABOUTME: SQLite-backed offline transcript cache using modernc.org/sqlite
// ABOUTME: Whole-transcript replace per agent; schema created automatically on open

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/2389/warren/internal/models"
)

// Cache is a SQLite-backed transcript cache.
type Cache struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the cache database at the given path. Parent
// directories are created if needed.
func Open(path string) (*Cache, error) {
	logger := slog.Default().With("component", "store")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	// WAL keeps background writes from blocking foreground reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	c := &Cache{db: db, logger: logger}
	if err := c.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("transcript cache opened", "path", path)
	return c, nil
}

func (c *Cache) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transcripts (
			agent_id    TEXT NOT NULL,
			message_id  TEXT NOT NULL,
			text        TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			is_agent    INTEGER NOT NULL,
			tool_name   TEXT,
			PRIMARY KEY (agent_id, message_id)
		);

		CREATE INDEX IF NOT EXISTS idx_transcripts_agent_ts
			ON transcripts(agent_id, timestamp);
	`
	_, err := c.db.Exec(schema)
	return err
}

// SaveTranscript replaces the cached transcript for one agent.
func (c *Cache) SaveTranscript(ctx context.Context, agentID string, msgs []models.Message) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcripts WHERE agent_id = ?", agentID); err != nil {
		return fmt.Errorf("clearing transcript: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO transcripts
			(agent_id, message_id, text, timestamp, is_agent, tool_name)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		isAgent := 0
		if m.IsAgent {
			isAgent = 1
		}
		if _, err := stmt.ExecContext(ctx, agentID, m.ID, m.Text, m.Timestamp, isAgent, m.ToolName); err != nil {
			return fmt.Errorf("inserting message %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transcript: %w", err)
	}

	c.logger.Debug("transcript cached", "agent_id", agentID, "messages", len(msgs))
	return nil
}

// LoadTranscript returns the cached transcript for one agent, oldest
// first. A missing transcript yields an empty slice, not an error.
func (c *Cache) LoadTranscript(ctx context.Context, agentID string) ([]models.Message, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT message_id, text, timestamp, is_agent, tool_name
		FROM transcripts
		WHERE agent_id = ?
		ORDER BY timestamp ASC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("querying transcript: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var isAgent int
		var toolName sql.NullString
		if err := rows.Scan(&m.ID, &m.Text, &m.Timestamp, &isAgent, &toolName); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.AgentID = agentID
		m.IsAgent = isAgent == 1
		m.ToolName = toolName.String
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
