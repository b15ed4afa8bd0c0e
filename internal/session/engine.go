// ABOUTME: Session reconciliation engine owning per-agent transcripts and the roster
// ABOUTME: One worker drains the channel events; snapshot readers get copies

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/warren/internal/dedupe"
	"github.com/2389/warren/internal/models"
	"github.com/2389/warren/internal/ws"
)

const (
	// historyPageSize is how many records a transcript refresh requests.
	historyPageSize = 50

	// activityRingSize bounds the retained activity feed.
	activityRingSize = 100

	// notificationRingSize bounds retained notifications.
	notificationRingSize = 50

	// persistTimeout bounds background transcript cache writes.
	persistTimeout = 5 * time.Second
)

// APIClient is what the engine needs from the request/response client.
type APIClient interface {
	ListAgents(ctx context.Context) []models.Agent
	History(ctx context.Context, agentID string, limit, offset int) (*models.HistoryPage, error)
	SendMessage(ctx context.Context, agentID, message string) error
}

// Channel is what the engine needs from the persistent channel client.
type Channel interface {
	Connected() bool
	SendCommand(agentID, command string) error
}

// TranscriptCache persists transcripts for offline reads. Optional.
type TranscriptCache interface {
	SaveTranscript(ctx context.Context, agentID string, msgs []models.Message) error
	LoadTranscript(ctx context.Context, agentID string) ([]models.Message, error)
}

// Engine reconciles history fetches and live events into per-agent
// message sequences and keeps the roster in sync. All its snapshot
// methods return copies.
type Engine struct {
	mu            sync.RWMutex
	messages      map[string][]models.Message
	agents        []models.Agent
	stats         map[string]models.ContextStats
	activities    []models.Activity
	notifications []models.Notification
	dirty         map[string]bool
	connected     bool
	notifyEnabled bool

	api     APIClient
	channel Channel
	cache   TranscriptCache
	dupes   *dedupe.Cache
	logger  *slog.Logger
}

// New creates an engine. channel and cache may be nil; pass nil logger for
// the default.
func New(api APIClient, channel Channel, cache TranscriptCache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		messages:      make(map[string][]models.Message),
		stats:         make(map[string]models.ContextStats),
		dirty:         make(map[string]bool),
		notifyEnabled: true,
		api:           api,
		channel:       channel,
		cache:         cache,
		dupes:         dedupe.New(time.Minute, 1024),
		logger:        logger.With("component", "session"),
	}
}

// Run drains the channel event stream until ctx is done or the stream
// closes. Handlers run to completion before the next event is processed.
func (e *Engine) Run(ctx context.Context, events <-chan ws.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.handleEvent(ev)
		}
	}
}

func (e *Engine) handleEvent(ev ws.Event) {
	switch ev := ev.(type) {
	case ws.Connected:
		e.setConnected(true)
	case ws.Disconnected:
		e.setConnected(false)
	case ws.AgentsUpdate:
		e.ReplaceRoster(ev.Agents)
	case ws.AgentCreated:
		e.AddAgent(ev.Agent)
	case ws.AgentUpdated:
		e.UpdateAgent(ev.Agent)
	case ws.AgentDeleted:
		e.RemoveAgent(ev.ID)
	case ws.Output:
		e.IngestOutput(ev.Output)
	case ws.ActivityEvent:
		e.recordActivity(ev.Activity)
	case ws.CommandStarted:
		e.markDirty(ev.AgentID)
	case ws.SessionUpdated:
		e.markDirty(ev.AgentID)
	case ws.ContextStatsEvent:
		e.setStats(ev.AgentID, ev.Stats)
	case ws.NotificationEvent:
		e.recordNotification(ev.Notification)
	default:
		e.logger.Debug("unhandled event", "event", ev)
	}
}

func (e *Engine) setConnected(connected bool) {
	e.mu.Lock()
	e.connected = connected
	e.mu.Unlock()
	e.logger.Info("channel state changed", "connected", connected)
}

// IsConnected reports the persistent channel state as last observed.
func (e *Engine) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

// SetNotificationsEnabled toggles retention of pushed notifications.
func (e *Engine) SetNotificationsEnabled(enabled bool) {
	e.mu.Lock()
	e.notifyEnabled = enabled
	e.mu.Unlock()
}

func (e *Engine) markDirty(agentID string) {
	if agentID == "" {
		return
	}
	e.mu.Lock()
	e.dirty[agentID] = true
	e.mu.Unlock()
}

// Dirty reports whether a history refresh for the agent is worthwhile
// (the gateway signalled session or command activity since the last fetch).
func (e *Engine) Dirty(agentID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dirty[agentID]
}

// persistTranscript writes the agent's sequence to the offline cache on a
// background goroutine with its own timeout. Best-effort.
func (e *Engine) persistTranscript(agentID string, msgs []models.Message) {
	if e.cache == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := e.cache.SaveTranscript(ctx, agentID, msgs); err != nil {
			e.logger.Warn("transcript cache write failed", "agent_id", agentID, "error", err)
		}
	}()
}

// PrimeFromCache seeds an agent's sequence from the offline cache when
// nothing is in memory yet. Called before the first history fetch resolves
// so a cold start shows the last known transcript.
func (e *Engine) PrimeFromCache(ctx context.Context, agentID string) {
	if e.cache == nil {
		return
	}

	e.mu.RLock()
	populated := len(e.messages[agentID]) > 0
	e.mu.RUnlock()
	if populated {
		return
	}

	msgs, err := e.cache.LoadTranscript(ctx, agentID)
	if err != nil {
		e.logger.Warn("transcript cache read failed", "agent_id", agentID, "error", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	e.mu.Lock()
	if len(e.messages[agentID]) == 0 {
		e.messages[agentID] = dedupeMessages(msgs, e.logger)
	}
	e.mu.Unlock()
}
