package service

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/serverwave/serverwave/internal/docker"
	"github.com/serverwave/serverwave/internal/events"
	"github.com/serverwave/serverwave/internal/models"
	"github.com/serverwave/serverwave/internal/monitoring"
	"github.com/serverwave/serverwave/pkg/logger"
)

// LogStreamer is the slice of the runtime client the stream manager needs.
type LogStreamer interface {
	ContainerStatus(ctx context.Context, containerID string) (models.ServerStatus, error)
	FollowLogs(ctx context.Context, containerID string, tail string) (io.ReadCloser, bool, error)
}

type streamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StreamManager owns the per-server log stream tasks. It is the only shared
// mutable state in the orchestrator: a mutex-guarded map from server id to
// the live stream handle, mutated only by insert-replacing-previous and
// remove. At most one task is live per server id; attaching a second stream
// supersedes the first.
type StreamManager struct {
	mu      sync.Mutex
	streams map[string]*streamHandle

	runtime LogStreamer
	bus     *events.Bus

	tail           int
	maxReconnects  int
	reconnectDelay time.Duration
}

func NewStreamManager(runtime LogStreamer, bus *events.Bus, tail, maxReconnects int, reconnectDelay time.Duration) *StreamManager {
	return &StreamManager{
		streams:        make(map[string]*streamHandle),
		runtime:        runtime,
		bus:            bus,
		tail:           tail,
		maxReconnects:  maxReconnects,
		reconnectDelay: reconnectDelay,
	}
}

// Attach starts a log stream task for a server, first cancelling and waiting
// out any task already live for the same id.
func (m *StreamManager) Attach(serverID, containerID string) {
	m.mu.Lock()
	if prev, ok := m.streams[serverID]; ok {
		prev.cancel()
		m.mu.Unlock()
		waitDone(prev.done, time.Second)
		m.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := &streamHandle{cancel: cancel, done: make(chan struct{})}
	m.streams[serverID] = handle
	m.mu.Unlock()

	monitoring.ActiveLogStreams.Inc()
	go m.run(ctx, serverID, containerID, handle)
}

// Detach cancels a server's stream without touching the container.
func (m *StreamManager) Detach(serverID string) {
	m.mu.Lock()
	handle, ok := m.streams[serverID]
	if ok {
		delete(m.streams, serverID)
	}
	m.mu.Unlock()

	if ok {
		handle.cancel()
	}
}

// Active reports whether a stream task is currently registered for an id.
func (m *StreamManager) Active(serverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.streams[serverID]
	return ok
}

// Shutdown cancels every live stream and waits for the tasks to finish.
func (m *StreamManager) Shutdown() {
	m.mu.Lock()
	handles := make([]*streamHandle, 0, len(m.streams))
	for id, handle := range m.streams {
		handles = append(handles, handle)
		delete(m.streams, id)
	}
	m.mu.Unlock()

	for _, handle := range handles {
		handle.cancel()
		waitDone(handle.done, time.Second)
	}
}

// run is the stream task loop: connect, forward lines, reconnect on failure
// with a bounded attempt budget that resets on any successfully received
// line. Cancellation wins races against incoming log lines.
func (m *StreamManager) run(ctx context.Context, serverID, containerID string, handle *streamHandle) {
	defer close(handle.done)
	defer monitoring.ActiveLogStreams.Dec()
	defer m.remove(serverID, handle)

	reconnects := 0

	for {
		if ctx.Err() != nil {
			return
		}

		status, err := m.runtime.ContainerStatus(ctx, containerID)
		if err != nil {
			// Runtime unreachable; back off and retry a bounded
			// number of times, then give up silently. A lost log
			// view is not a down server.
			reconnects++
			monitoring.LogStreamReconnects.Inc()
			if reconnects > m.maxReconnects {
				logger.Warn("Log stream giving up after repeated runtime failures", map[string]interface{}{
					"server_id": serverID,
				})
				return
			}
			if !sleepCtx(ctx, m.reconnectDelay) {
				return
			}
			continue
		}

		// Only running (or installing) containers produce logs
		if status != models.StatusRunning && status != models.StatusInstalling {
			return
		}

		reader, tty, err := m.runtime.FollowLogs(ctx, containerID, strconv.Itoa(m.tail))
		if err != nil {
			reconnects++
			monitoring.LogStreamReconnects.Inc()
			if reconnects > m.maxReconnects {
				return
			}
			if !sleepCtx(ctx, m.reconnectDelay) {
				return
			}
			continue
		}

		streamEnded := m.forward(ctx, serverID, reader, tty, &reconnects)
		reader.Close()
		if !streamEnded {
			// cancelled
			return
		}

		reconnects++
		monitoring.LogStreamReconnects.Inc()
		if reconnects > m.maxReconnects {
			return
		}
		if !sleepCtx(ctx, m.reconnectDelay) {
			return
		}
	}
}

// forward pumps lines from an open stream to the event bus until the stream
// ends (returns true) or the context is cancelled (returns false).
func (m *StreamManager) forward(ctx context.Context, serverID string, reader io.ReadCloser, tty bool, reconnects *int) bool {
	lineCh := make(chan string, 64)
	go func() {
		defer close(lineCh)
		_ = docker.ForEachLine(reader, tty, func(line string) {
			select {
			case lineCh <- line:
			case <-ctx.Done():
			}
		})
	}()

	for {
		// Cancellation is checked before draining data so it wins a
		// race against a flood of log lines.
		select {
		case <-ctx.Done():
			reader.Close()
			return false
		default:
		}

		select {
		case <-ctx.Done():
			reader.Close()
			return false
		case line, ok := <-lineCh:
			if !ok {
				return true
			}
			*reconnects = 0
			m.bus.PublishLog(serverID, line)
		}
	}
}

// remove drops the handle from the table unless it was already superseded by
// a newer stream for the same id.
func (m *StreamManager) remove(serverID string, handle *streamHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.streams[serverID]; ok && current == handle {
		delete(m.streams, serverID)
	}
}

func waitDone(done chan struct{}, timeout time.Duration) {
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
