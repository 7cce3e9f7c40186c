package spies

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/library-circulation/circulation"
)

// SpySpanContext is the span handed out by TracingCollectorSpy.
type SpySpanContext struct {
	mu         sync.Mutex
	status     string
	attributes map[string]string
}

// SetStatus stores the span status.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
}

// AddAttribute stores one span attribute.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}

	c.attributes[key] = value
}

// SpySpanRecord represents a span started, and maybe finished, through the spy.
type SpySpanRecord struct {
	Name            string
	StartAttributes map[string]string
	Status          string
	EndAttributes   map[string]string
	Finished        bool
	span            *SpySpanContext
}

// TracingCollectorSpy captures tracing calls for inspection in tests.
type TracingCollectorSpy struct {
	mu          sync.Mutex
	spanRecords []SpySpanRecord
}

// NewTracingCollectorSpy creates an empty TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan records a started span.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, circulation.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	span := &SpySpanContext{}
	s.spanRecords = append(s.spanRecords, SpySpanRecord{Name: name, StartAttributes: maps.Clone(attrs), span: span})

	return ctx, span
}

// FinishSpan records the outcome of a span started through this spy.
func (s *TracingCollectorSpy) FinishSpan(spanCtx circulation.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.spanRecords {
		if s.spanRecords[i].span == span {
			s.spanRecords[i].Status = status
			s.spanRecords[i].EndAttributes = maps.Clone(attrs)
			s.spanRecords[i].Finished = true
		}
	}
}

// GetSpanRecords returns a copy of all captured spans.
func (s *TracingCollectorSpy) GetSpanRecords() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpySpanRecord(nil), s.spanRecords...)
}

// HasFinishedSpan reports whether a span with the name finished with the status.
func (s *TracingCollectorSpy) HasFinishedSpan(name, status string) bool {
	for _, record := range s.GetSpanRecords() {
		if record.Name == name && record.Finished && record.Status == status {
			return true
		}
	}

	return false
}
