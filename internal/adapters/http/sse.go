package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

// streamSSE drains the event channel onto the wire as server-sent
// events. Deltas are emitted one data frame per text unit, sources as a
// single [SOURCES]...[/SOURCES] frame, then [DONE]. Failed streams emit
// one [ERROR]...[/ERROR] frame. Returns the grounding source count for
// observability.
func streamSSE(w http.ResponseWriter, events <-chan domain.StreamEvent) (int, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return 0, fmt.Errorf("response writer does not implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sourceCount := 0
	for event := range events {
		var frame string
		switch event.Kind {
		case domain.StreamDelta:
			frame = event.Text
		case domain.StreamSources:
			payload, err := json.Marshal(event.Sources)
			if err != nil {
				return sourceCount, fmt.Errorf("marshal sources: %w", err)
			}
			sourceCount = len(event.Sources)
			frame = "[SOURCES]" + string(payload) + "[/SOURCES]"
		case domain.StreamDone:
			frame = "[DONE]"
		case domain.StreamError:
			frame = "[ERROR]" + event.Err + "[/ERROR]"
		default:
			continue
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			return sourceCount, fmt.Errorf("write sse frame: %w", err)
		}
		flusher.Flush()
	}
	return sourceCount, nil
}
