package llm

import (
	"context"
	"strings"
	"time"
)

// ApiStream represents a stream of model response chunks.
// The producer closes the channel when the response is complete.
type ApiStream <-chan ApiStreamChunk

// ApiStreamChunk represents different types of streaming responses
type ApiStreamChunk interface {
	Type() string
}

// ApiStreamTextChunk represents a text fragment in the stream
type ApiStreamTextChunk struct {
	Text string `json:"text"`
}

func (c ApiStreamTextChunk) Type() string { return "text" }

// ApiStreamUsageChunk represents token usage reported at the end of a response
type ApiStreamUsageChunk struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

func (c ApiStreamUsageChunk) Type() string { return "usage" }

// ApiStreamErrorChunk carries a failure that ended the stream early
type ApiStreamErrorChunk struct {
	Err error `json:"-"`
}

func (c ApiStreamErrorChunk) Type() string { return "error" }

// StreamCollector helps collect and aggregate stream chunks
type StreamCollector struct {
	text      strings.Builder
	Usage     *ApiStreamUsageChunk
	Err       error
	StartTime time.Time
	EndTime   time.Time
}

// NewStreamCollector creates a new stream collector
func NewStreamCollector() *StreamCollector {
	return &StreamCollector{StartTime: time.Now()}
}

// Collect processes a stream chunk and adds it to the collector
func (sc *StreamCollector) Collect(chunk ApiStreamChunk) {
	switch c := chunk.(type) {
	case ApiStreamTextChunk:
		sc.text.WriteString(c.Text)
	case ApiStreamUsageChunk:
		sc.Usage = &c
		sc.EndTime = time.Now()
	case ApiStreamErrorChunk:
		sc.Err = c.Err
		sc.EndTime = time.Now()
	}
}

// GetFullText returns the concatenation of all text chunks received so far
func (sc *StreamCollector) GetFullText() string {
	return sc.text.String()
}

// GetDuration returns the total duration of the stream
func (sc *StreamCollector) GetDuration() time.Duration {
	if sc.EndTime.IsZero() {
		return time.Since(sc.StartTime)
	}
	return sc.EndTime.Sub(sc.StartTime)
}

// StreamProcessor provides utilities for processing streams
type StreamProcessor struct {
	ctx context.Context
}

// NewStreamProcessor creates a new stream processor
func NewStreamProcessor(ctx context.Context) *StreamProcessor {
	return &StreamProcessor{ctx: ctx}
}

// ProcessStreamWithCallback drains the stream, calling callback after each
// chunk is collected. An error chunk ends processing with that error.
func (sp *StreamProcessor) ProcessStreamWithCallback(
	stream ApiStream,
	callback func(*StreamCollector, ApiStreamChunk) error,
) (*StreamCollector, error) {
	collector := NewStreamCollector()

	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				if collector.EndTime.IsZero() {
					collector.EndTime = time.Now()
				}
				return collector, nil
			}
			collector.Collect(chunk)
			if collector.Err != nil {
				return collector, collector.Err
			}
			if callback != nil {
				if err := callback(collector, chunk); err != nil {
					return collector, err
				}
			}
		case <-sp.ctx.Done():
			return collector, sp.ctx.Err()
		}
	}
}

// StreamBuffer collects chunks up front and replays them as a stream
type StreamBuffer struct {
	chunks []ApiStreamChunk
}

// NewStreamBuffer creates a new stream buffer
func NewStreamBuffer() *StreamBuffer {
	return &StreamBuffer{chunks: make([]ApiStreamChunk, 0)}
}

// Add adds a chunk to the buffer
func (sb *StreamBuffer) Add(chunk ApiStreamChunk) {
	sb.chunks = append(sb.chunks, chunk)
}

// AddText is shorthand for adding a text chunk
func (sb *StreamBuffer) AddText(text string) {
	sb.Add(ApiStreamTextChunk{Text: text})
}

// ToChannel replays the buffered chunks as a stream
func (sb *StreamBuffer) ToChannel() ApiStream {
	ch := make(chan ApiStreamChunk, len(sb.chunks))
	for _, chunk := range sb.chunks {
		ch <- chunk
	}
	close(ch)
	return ch
}
