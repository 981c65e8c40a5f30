package events

import (
	"sync"
	"time"

	"github.com/serverwave/serverwave/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// Server lifecycle events
	EventServerCreated    EventType = "server.created"
	EventServerStarted    EventType = "server.started"
	EventServerStopped    EventType = "server.stopped"
	EventServerDeleted    EventType = "server.deleted"
	EventInstallStarted   EventType = "server.install_started"
	EventInstallCompleted EventType = "server.install_completed"
	EventInstallFailed    EventType = "server.install_failed"

	// Console output, one event per log line
	EventServerLog EventType = "server.log"
)

// Event is one notification delivered to the UI/transport layer.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	ServerID  string                 `json:"server_id,omitempty"`
	Line      string                 `json:"line,omitempty"`
	Result    *models.CommandResult  `json:"result,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler is a function that handles events
type EventHandler func(event Event)

// Bus fans events out to subscribers. Handlers run synchronously on the
// publisher's goroutine so per-server log lines keep their order; handlers
// must not block.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]EventHandler
	all         []EventHandler
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, handler)
}

// Publish delivers an event to all matching subscribers.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.subscribers[event.Type])+len(b.all))
	handlers = append(handlers, b.subscribers[event.Type]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// PublishLog emits one console line tagged with its server id.
func (b *Bus) PublishLog(serverID, line string) {
	b.Publish(Event{
		Type:     EventServerLog,
		ServerID: serverID,
		Line:     line,
	})
}

// PublishLifecycle emits a successful lifecycle transition with the updated
// server snapshot.
func (b *Bus) PublishLifecycle(eventType EventType, server *models.Server) {
	b.Publish(Event{
		Type:     eventType,
		ServerID: server.ID,
		Result: &models.CommandResult{
			Success: true,
			Server:  server,
		},
	})
}

// PublishFailure emits a failed lifecycle command with its error text.
func (b *Bus) PublishFailure(eventType EventType, server *models.Server, err error) {
	result := &models.CommandResult{
		Success: false,
		Server:  server,
	}
	if err != nil {
		result.Error = err.Error()
	}
	b.Publish(Event{
		Type:     eventType,
		ServerID: server.ID,
		Result:   result,
	})
}
