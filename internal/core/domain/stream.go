package domain

// StreamEventKind discriminates streaming response events.
type StreamEventKind string

const (
	// StreamDelta carries the next text unit of the answer.
	StreamDelta StreamEventKind = "delta"
	// StreamSources carries the grounding sources, emitted exactly once
	// after the final delta.
	StreamSources StreamEventKind = "sources"
	// StreamDone terminates a successful stream.
	StreamDone StreamEventKind = "done"
	// StreamError terminates a failed stream; no deltas precede it.
	StreamError StreamEventKind = "error"
)

// StreamEvent is one element of the incremental answer stream.
type StreamEvent struct {
	Kind    StreamEventKind `json:"kind"`
	Text    string          `json:"text,omitempty"`
	Sources []SourceRecord  `json:"sources,omitempty"`
	Err     string          `json:"error,omitempty"`
}
