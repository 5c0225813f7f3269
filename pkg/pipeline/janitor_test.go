package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJanitor_InvalidSchedule(t *testing.T) {
	_, err := NewJanitor(NewResultCache(0), "not a schedule")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sweep schedule")
}

func TestJanitor_EmptyScheduleUsesDefault(t *testing.T) {
	j, err := NewJanitor(NewResultCache(0), "")
	require.NoError(t, err)
	require.NotNil(t, j)
}

func TestJanitor_SweepsExpiredEntries(t *testing.T) {
	cache := NewResultCache(0)
	cache.Set("stale", InvocationResult{ToolName: "a"}, 10*time.Millisecond)
	cache.Set("fresh", InvocationResult{ToolName: "b"}, time.Minute)

	j, err := NewJanitor(cache, "@every 50ms")
	require.NoError(t, err)

	j.Start()
	defer j.Stop()

	// Size only shrinks when entries are physically removed, so it shows
	// the sweep ran without touching Get's lazy expiry path.
	assert.Eventually(t, func() bool {
		return cache.Size() == 1
	}, time.Second, 20*time.Millisecond)

	assert.True(t, cache.Has("fresh"))
}
