package pipeline

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCache_SetGet(t *testing.T) {
	c := NewResultCache(0)

	result := InvocationResult{ToolName: "echo", Output: "hi", Duration: time.Millisecond}
	c.Set("k", result, 0)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, result, got)
	assert.True(t, c.Has("k"))
}

func TestResultCache_Expiry(t *testing.T) {
	c := NewResultCache(0)
	c.Set("k", InvocationResult{ToolName: "echo"}, 50*time.Millisecond)

	// Present just before the TTL elapses.
	assert.True(t, c.Has("k"))

	time.Sleep(80 * time.Millisecond)

	// Absent just after, and lazily deleted.
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Size())
}

func TestResultCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewResultCache(0)
	c.Set("k", InvocationResult{ToolName: "echo"}, 0)

	time.Sleep(20 * time.Millisecond)

	assert.True(t, c.Has("k"))
}

func TestResultCache_CapacityEvictsOldest(t *testing.T) {
	c := NewResultCache(3)

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), InvocationResult{ToolName: "echo"}, 0)
		time.Sleep(2 * time.Millisecond)
	}

	c.Set("k3", InvocationResult{ToolName: "echo"}, 0)

	assert.Equal(t, 3, c.Size())
	assert.False(t, c.Has("k0"))
	assert.True(t, c.Has("k1"))
	assert.True(t, c.Has("k3"))
}

func TestResultCache_OverwriteDoesNotEvict(t *testing.T) {
	c := NewResultCache(2)
	c.Set("a", InvocationResult{}, 0)
	c.Set("b", InvocationResult{}, 0)

	c.Set("a", InvocationResult{Output: "updated"}, 0)

	assert.Equal(t, 2, c.Size())
	assert.True(t, c.Has("b"))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "updated", got.Output)
}

func TestResultCache_DeleteAndClear(t *testing.T) {
	c := NewResultCache(0)
	c.Set("a", InvocationResult{}, 0)
	c.Set("b", InvocationResult{}, 0)

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestResultCache_Sweep(t *testing.T) {
	c := NewResultCache(0)
	c.Set("expired", InvocationResult{}, time.Millisecond)
	c.Set("fresh", InvocationResult{}, time.Hour)
	c.Set("eternal", InvocationResult{}, 0)

	time.Sleep(10 * time.Millisecond)

	removed := c.Sweep()

	assert.Equal(t, 1, removed)
	assert.False(t, c.Has("expired"))
	assert.True(t, c.Has("fresh"))
	assert.True(t, c.Has("eternal"))
}

func TestFingerprint_Deterministic(t *testing.T) {
	a, err := Fingerprint("sum", map[string]interface{}{"a": 2, "b": 3})
	require.NoError(t, err)

	b, err := Fingerprint("sum", map[string]interface{}{"b": 3, "a": 2})
	require.NoError(t, err)

	// Key order of the input map must not matter.
	assert.Equal(t, a, b)
}

func TestFingerprint_DistinguishesToolAndInput(t *testing.T) {
	a, err := Fingerprint("sum", map[string]interface{}{"a": 2})
	require.NoError(t, err)

	b, err := Fingerprint("sum", map[string]interface{}{"a": 3})
	require.NoError(t, err)

	c, err := Fingerprint("mul", map[string]interface{}{"a": 2})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprint_Unserializable(t *testing.T) {
	_, err := Fingerprint("bad", map[string]interface{}{"ch": make(chan int)})
	assert.Error(t, err)
}
