package usecase

import (
	"context"

	"github.com/kemingtech/catalog-assistant/internal/core/domain"
)

// AnswerStream answers the question and replays the completed result as
// a finite event stream: one delta per rune of the answer in order,
// then one sources event, then one done event. A failed answer yields
// exactly one error event with no preceding deltas. The channel is
// closed after the terminal event; abandoning the consumer's context
// stops emission promptly.
func (e *QueryEngine) AnswerStream(ctx context.Context, question string, history []domain.Message) <-chan domain.StreamEvent {
	result, err := e.Answer(ctx, question, history)
	if err != nil {
		return streamError(ctx, err.Error())
	}
	return streamResult(ctx, result)
}

func streamResult(ctx context.Context, result *domain.QueryResult) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)
	go func() {
		defer close(events)
		for _, r := range result.Answer {
			if !emit(ctx, events, domain.StreamEvent{Kind: domain.StreamDelta, Text: string(r)}) {
				return
			}
		}
		if !emit(ctx, events, domain.StreamEvent{Kind: domain.StreamSources, Sources: result.Sources}) {
			return
		}
		emit(ctx, events, domain.StreamEvent{Kind: domain.StreamDone})
	}()
	return events
}

func streamError(ctx context.Context, message string) <-chan domain.StreamEvent {
	events := make(chan domain.StreamEvent)
	go func() {
		defer close(events)
		emit(ctx, events, domain.StreamEvent{Kind: domain.StreamError, Err: message})
	}()
	return events
}

func emit(ctx context.Context, events chan<- domain.StreamEvent, event domain.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
