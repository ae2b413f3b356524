package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/posthog/posthog-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEnqueuer struct {
	mu     sync.Mutex
	events []posthog.Capture
	closed bool
}

func (m *mockEnqueuer) Enqueue(msg posthog.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := msg.(posthog.Capture); ok {
		m.events = append(m.events, c)
	}
	return nil
}

func (m *mockEnqueuer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockEnqueuer) captured() []posthog.Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]posthog.Capture(nil), m.events...)
}

func TestPostHogClient_Track(t *testing.T) {
	mock := &mockEnqueuer{}
	c := newPostHogClient(mock, "anon-1", "0.3.0")

	c.Track(EventSessionCompleted, Properties{
		"status":   "completed",
		"steps":    7,
		"degraded": false,
		"goal":     strings.Repeat("launch the mobile app ", 4),
		"tasks":    []string{"t1"},
	})

	events := mock.captured()
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, "anon-1", e.DistinctId)
	assert.Equal(t, EventSessionCompleted, e.Event)
	assert.Equal(t, "completed", e.Properties["status"])
	assert.Equal(t, 7, e.Properties["steps"])
	assert.Equal(t, "0.3.0", e.Properties["version"])
	assert.Equal(t, false, e.Properties["$process_person_profile"])
	assert.NotContains(t, e.Properties, "goal")
	assert.NotContains(t, e.Properties, "tasks")
}

func TestPostHogClient_CloseStopsTracking(t *testing.T) {
	mock := &mockEnqueuer{}
	c := newPostHogClient(mock, "anon-1", "dev")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	c.Track(EventGapsDetected, nil)

	assert.True(t, mock.closed)
	assert.Empty(t, mock.captured())
}

func TestPostHogClient_ConcurrentTrack(t *testing.T) {
	mock := &mockEnqueuer{}
	c := newPostHogClient(mock, "anon-1", "dev")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Track(EventReflectionToggled, Properties{"active": true})
		}()
	}
	wg.Wait()
	assert.Len(t, mock.captured(), 20)
}

func TestNew_DisabledIsNoop(t *testing.T) {
	c, err := New(Options{Enabled: false, APIKey: "phc_x"})
	require.NoError(t, err)
	assert.IsType(t, NoopClient{}, c)

	c, err = New(Options{Enabled: true})
	require.NoError(t, err)
	assert.IsType(t, NoopClient{}, c)
	assert.NoError(t, c.Close())
}

func TestAnonymousID_Persists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := AnonymousID(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := AnonymousID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(filepath.Join(dir, StateFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAnonymousID_RejectsCorruptState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, StateFileName), []byte("{"), 0600))
	_, err := AnonymousID(dir)
	assert.Error(t, err)
}
