package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serverwave/serverwave/internal/events"
	"github.com/serverwave/serverwave/internal/models"
)

// fakeStreamer hands out pipe-backed log streams that stay open until the
// test writes to or closes them.
type fakeStreamer struct {
	mu      sync.Mutex
	status  models.ServerStatus
	writers []*io.PipeWriter
	follows int
}

func newFakeStreamer(status models.ServerStatus) *fakeStreamer {
	return &fakeStreamer{status: status}
}

func (f *fakeStreamer) ContainerStatus(ctx context.Context, containerID string) (models.ServerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *fakeStreamer) FollowLogs(ctx context.Context, containerID string, tail string) (io.ReadCloser, bool, error) {
	pr, pw := io.Pipe()
	f.mu.Lock()
	f.writers = append(f.writers, pw)
	f.follows++
	f.mu.Unlock()
	return pr, true, nil
}

func (f *fakeStreamer) write(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writers) > 0 {
		f.writers[len(f.writers)-1].Write([]byte(line + "\n"))
	}
}

func (f *fakeStreamer) followCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follows
}

func collectLogs(bus *events.Bus) (func() []string, func() int) {
	var mu sync.Mutex
	var lines []string
	bus.Subscribe(events.EventServerLog, func(event events.Event) {
		mu.Lock()
		lines = append(lines, event.Line)
		mu.Unlock()
	})
	get := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(lines)
	}
	return get, count
}

func TestStreamManager_ForwardsLines(t *testing.T) {
	streamer := newFakeStreamer(models.StatusRunning)
	bus := events.NewBus()
	getLines, lineCount := collectLogs(bus)

	m := NewStreamManager(streamer, bus, 50, 3, 10*time.Millisecond)
	defer m.Shutdown()

	m.Attach("srv1", "ctr1")
	require.Eventually(t, func() bool { return streamer.followCount() >= 1 }, time.Second, 5*time.Millisecond)

	streamer.write("[Server] Done (3.2s)!")
	require.Eventually(t, func() bool { return lineCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "[Server] Done (3.2s)!", getLines()[0])
}

func TestStreamManager_SingleStreamPerServer(t *testing.T) {
	streamer := newFakeStreamer(models.StatusRunning)
	bus := events.NewBus()

	m := NewStreamManager(streamer, bus, 50, 3, 10*time.Millisecond)
	defer m.Shutdown()

	m.Attach("srv1", "ctr1")
	require.Eventually(t, func() bool { return streamer.followCount() >= 1 }, time.Second, 5*time.Millisecond)

	// A second attach supersedes the first task instead of stacking
	m.Attach("srv1", "ctr1")
	require.Eventually(t, func() bool { return streamer.followCount() >= 2 }, time.Second, 5*time.Millisecond)

	m.mu.Lock()
	count := len(m.streams)
	m.mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestStreamManager_DetachStopsStream(t *testing.T) {
	streamer := newFakeStreamer(models.StatusRunning)
	bus := events.NewBus()
	_, lineCount := collectLogs(bus)

	m := NewStreamManager(streamer, bus, 50, 3, 10*time.Millisecond)
	m.Attach("srv1", "ctr1")
	require.Eventually(t, func() bool { return streamer.followCount() >= 1 }, time.Second, 5*time.Millisecond)

	m.Detach("srv1")
	require.Eventually(t, func() bool { return !m.Active("srv1") }, time.Second, 5*time.Millisecond)

	// Lines written after detach never reach the bus
	before := lineCount()
	streamer.write("too late")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, lineCount())
}

func TestStreamManager_StopsWhenContainerNotRunning(t *testing.T) {
	streamer := newFakeStreamer(models.StatusStopped)
	bus := events.NewBus()

	m := NewStreamManager(streamer, bus, 50, 3, 10*time.Millisecond)
	m.Attach("srv1", "ctr1")

	require.Eventually(t, func() bool { return !m.Active("srv1") }, time.Second, 5*time.Millisecond)
	assert.Zero(t, streamer.followCount())
}

func TestStreamManager_BoundedReconnects(t *testing.T) {
	streamer := newFakeStreamer(models.StatusRunning)
	bus := events.NewBus()

	m := NewStreamManager(streamer, bus, 50, 2, time.Millisecond)
	m.Attach("srv1", "ctr1")

	require.Eventually(t, func() bool { return streamer.followCount() >= 1 }, time.Second, time.Millisecond)

	// Ending the stream repeatedly burns the reconnect budget
	for i := 0; i < 4; i++ {
		streamer.mu.Lock()
		if len(streamer.writers) > 0 {
			streamer.writers[len(streamer.writers)-1].Close()
		}
		streamer.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return !m.Active("srv1") }, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, streamer.followCount(), 3)
}
