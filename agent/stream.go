package agent

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"
)

// Event is one streamed step of a run. Intermediate events carry the node
// that ran, the messages it added and the merged state. The final event has
// Done set and carries the run outcome.
type Event struct {
	Node       string
	Update     []llms.MessageContent
	State      State
	Done       bool
	Interrupts []Interrupt
	Err        error
}

// Stream runs the agent like Invoke and emits an Event per executed node.
// The channel is closed after the final event. Callers must drain it or
// cancel ctx.
func (a *Agent) Stream(ctx context.Context, in Input, cfg RunConfig) <-chan Event {
	return a.stream(ctx, func(onStep func(Event)) (State, error) {
		return a.run(ctx, in, nil, cfg, onStep)
	})
}

// StreamResume is the streaming form of Resume.
func (a *Agent) StreamResume(ctx context.Context, cmd Command, cfg RunConfig) <-chan Event {
	return a.stream(ctx, func(onStep func(Event)) (State, error) {
		return a.run(ctx, Input{}, &cmd, cfg, onStep)
	})
}

func (a *Agent) stream(ctx context.Context, run func(func(Event)) (State, error)) <-chan Event {
	ch := make(chan Event, 16)
	send := func(ev Event) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(ch)
		final, err := run(send)
		done := Event{Done: true, State: final, Err: err}
		var ie *InterruptError
		if errors.As(err, &ie) {
			done.Interrupts = ie.Interrupts
		}
		send(done)
	}()
	return ch
}
