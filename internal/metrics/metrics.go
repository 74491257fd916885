package metrics

import (
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Counter names emitted by the pipeline.
const (
	FilesProcessed   = "FilesProcessed"
	ProcessingErrors = "ProcessingErrors"
	JobsCompleted    = "JobsCompleted"
)

// Tags are free-form counter dimensions, e.g. {fileType, shard}.
type Tags map[string]string

// Sink accepts fire-and-forget counters. Emission must never block or fail
// the caller.
type Sink interface {
	Count(name string, value float64, tags Tags)
}

// LogSink writes counters to the structured log so emission stays
// observable without a metrics backend.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Count(name string, value float64, tags Tags) {
	fields := []zap.Field{
		zap.String("metric", name),
		zap.Float64("value", value),
	}
	for k, v := range tags {
		fields = append(fields, zap.String(k, v))
	}
	s.log.Debug("counter", fields...)
}

// MemorySink accumulates counters in memory, keyed by name plus sorted tags.
type MemorySink struct {
	mu     sync.Mutex
	counts map[string]float64
}

func NewMemorySink() *MemorySink {
	return &MemorySink{counts: make(map[string]float64)}
}

func (s *MemorySink) Count(name string, value float64, tags Tags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[counterKey(name, tags)] += value
}

// Value returns the accumulated total for a name/tags combination.
func (s *MemorySink) Value(name string, tags Tags) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[counterKey(name, tags)]
}

// Total sums a counter across all tag combinations.
func (s *MemorySink) Total(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total float64
	for key, v := range s.counts {
		if key == name || strings.HasPrefix(key, name+"|") {
			total += v
		}
	}
	return total
}

func counterKey(name string, tags Tags) string {
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(tags[k])
	}
	return b.String()
}
