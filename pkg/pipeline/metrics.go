package pipeline

import (
	"sync"
	"time"
)

const defaultSampleLimit = 1000

// Sample captures timing and size measurements for one invocation.
type Sample struct {
	ToolName       string        `json:"tool_name"`
	ExecutionTime  time.Duration `json:"execution_time"`
	ValidationTime time.Duration `json:"validation_time"`
	InputSize      int           `json:"input_size"`
	OutputSize     int           `json:"output_size"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Collector keeps a bounded ring of the most recent samples across all
// tools, oldest dropped first.
type Collector struct {
	mu      sync.RWMutex
	samples []Sample
	limit   int
}

// NewCollector creates a collector retaining at most limit samples. A limit
// of zero or less uses the default of 1000.
func NewCollector(limit int) *Collector {
	if limit <= 0 {
		limit = defaultSampleLimit
	}
	return &Collector{limit: limit}
}

// Record appends a sample, dropping the single oldest one when over limit.
func (c *Collector) Record(sample Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, sample)
	if len(c.samples) > c.limit {
		c.samples = c.samples[1:]
	}
}

// ForTool returns all samples for a tool in recording order.
func (c *Collector) ForTool(name string) []Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []Sample
	for _, s := range c.samples {
		if s.ToolName == name {
			matched = append(matched, s)
		}
	}
	return matched
}

// AverageExecutionTime returns the mean execution time for a tool. The
// second return value is false when no samples exist.
func (c *Collector) AverageExecutionTime(name string) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var total time.Duration
	count := 0
	for _, s := range c.samples {
		if s.ToolName == name {
			total += s.ExecutionTime
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return total / time.Duration(count), true
}

// Len returns the number of retained samples.
func (c *Collector) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.samples)
}

// Clear drops all samples.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = nil
}
