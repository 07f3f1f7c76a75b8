package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/smallnest/langgraphgo/graph"

	"github.com/agentkit-go/ragagents/checkpoint"
)

// Checkpoint status values stored under checkpoint.MetaStatus.
const (
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
)

const (
	metaNext       = "next"
	metaInterrupts = "interrupts"
)

var (
	// ErrPendingInterrupt is returned by Invoke when the thread waits for Resume.
	ErrPendingInterrupt = errors.New("thread has a pending interrupt")
	// ErrNoPendingInterrupt is returned by Resume when there is nothing to resume.
	ErrNoPendingInterrupt = errors.New("thread has no pending interrupt")
	// ErrNoCheckpointer is returned by Resume for agents without a checkpointer.
	ErrNoCheckpointer = errors.New("resume needs a checkpointer and a thread id")
)

// RunConfig selects the thread of a run. An empty ThreadID makes the run
// stateless.
type RunConfig struct {
	ThreadID string
}

// Invoke runs the agent on in. With a checkpointer and a thread id, in is
// appended to the stored conversation and the result is saved.
func (a *Agent) Invoke(ctx context.Context, in Input, cfg RunConfig) (State, error) {
	return a.run(ctx, in, nil, cfg, nil)
}

// Resume continues an interrupted thread with the reviewer's decisions.
func (a *Agent) Resume(ctx context.Context, cmd Command, cfg RunConfig) (State, error) {
	return a.run(ctx, Input{}, &cmd, cfg, nil)
}

// State returns the stored state of a thread.
func (a *Agent) State(ctx context.Context, cfg RunConfig) (State, error) {
	saver := a.saverFor(ctx)
	if saver == nil || cfg.ThreadID == "" {
		return State{}, ErrNoCheckpointer
	}
	cp, err := saver.Latest(ctx, cfg.ThreadID)
	if err != nil {
		return State{}, err
	}
	return checkpoint.DecodeState[State](cp)
}

// Pending returns the interrupts a thread is waiting on.
func (a *Agent) Pending(ctx context.Context, cfg RunConfig) ([]Interrupt, error) {
	saver := a.saverFor(ctx)
	if saver == nil || cfg.ThreadID == "" {
		return nil, nil
	}
	cp, err := saver.Latest(ctx, cfg.ThreadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cp.Metadata[checkpoint.MetaStatus] != StatusInterrupted {
		return nil, nil
	}
	return decodeMeta[[]Interrupt](cp.Metadata[metaInterrupts]), nil
}

func (a *Agent) saverFor(ctx context.Context) checkpoint.Saver {
	if a.saver != nil {
		return a.saver
	}
	return scopeFrom(ctx).saver
}

func (a *Agent) run(ctx context.Context, in Input, resume *Command, cfg RunConfig, onStep func(Event)) (State, error) {
	saver := a.saverFor(ctx)
	persist := saver != nil && cfg.ThreadID != ""
	ctx = withScope(ctx, scope{threadID: cfg.ThreadID, saver: saver})

	var prior *checkpoint.Checkpoint
	if persist {
		cp, err := saver.Latest(ctx, cfg.ThreadID)
		switch {
		case errors.Is(err, checkpoint.ErrNotFound):
		case err != nil:
			return State{}, fmt.Errorf("agent %s: load thread %s: %w", a.name, cfg.ThreadID, err)
		default:
			prior = cp
		}
	}
	pending := prior != nil && prior.Metadata[checkpoint.MetaStatus] == StatusInterrupted

	var start State
	if prior != nil {
		st, err := checkpoint.DecodeState[State](prior)
		if err != nil {
			return State{}, fmt.Errorf("agent %s: %w", a.name, err)
		}
		start = st
	}

	gcfg := &graph.Config{
		Configurable: map[string]any{checkpoint.MetaThreadID: cfg.ThreadID},
		Metadata:     map[string]any{"agent": a.name},
	}
	if resume == nil {
		if pending {
			return State{}, fmt.Errorf("agent %s: thread %s: %w", a.name, cfg.ThreadID, ErrPendingInterrupt)
		}
		start.Messages = slices.Concat(start.Messages, in.Messages)
		start.StructuredResponse = nil
		start.Iterations = 0
	} else {
		if !persist {
			return State{}, ErrNoCheckpointer
		}
		if !pending {
			return State{}, fmt.Errorf("agent %s: thread %s: %w", a.name, cfg.ThreadID, ErrNoPendingInterrupt)
		}
		gcfg.ResumeFrom = decodeMeta[[]string](prior.Metadata[metaNext])
		if len(gcfg.ResumeFrom) == 0 {
			gcfg.ResumeFrom = []string{prior.NodeName}
		}
		gcfg.ResumeValue = *resume
		a.logger.Info("agent %s: resuming thread %s at %v", a.name, cfg.ThreadID, gcfg.ResumeFrom)
	}
	if onStep != nil {
		gcfg.Callbacks = []graph.CallbackHandler{newStepListener(len(start.Messages), onStep)}
	}

	final, err := a.runnable.InvokeWithConfig(ctx, start, gcfg)

	var gi *graph.GraphInterrupt
	if errors.As(err, &gi) {
		st, ok := gi.State.(State)
		if !ok {
			st = start
		}
		interrupts := interruptsOf(gi.InterruptValue)
		a.observer.Interrupted(ctx, a.name, len(interrupts))
		a.logger.Info("agent %s: thread %s interrupted at %s with %d pending review(s)",
			a.name, cfg.ThreadID, gi.Node, len(interrupts))
		if persist {
			next := gi.NextNodes
			if len(next) == 0 {
				next = []string{gi.Node}
			}
			meta := map[string]any{
				checkpoint.MetaStatus: StatusInterrupted,
				metaNext:              next,
				metaInterrupts:        interrupts,
			}
			if err := a.save(ctx, saver, prior, cfg.ThreadID, gi.Node, st, meta); err != nil {
				return st, err
			}
		}
		return st, &InterruptError{Interrupts: interrupts}
	}
	if err != nil {
		return State{}, err
	}
	if persist {
		meta := map[string]any{checkpoint.MetaStatus: StatusCompleted}
		if err := a.save(ctx, saver, prior, cfg.ThreadID, graph.END, final, meta); err != nil {
			return final, err
		}
	}
	return final, nil
}

func (a *Agent) save(ctx context.Context, saver checkpoint.Saver, prior *checkpoint.Checkpoint, threadID, node string, st State, meta map[string]any) error {
	version := 1
	if prior != nil {
		version = prior.Version + 1
	}
	meta["agent"] = a.name
	cp := checkpoint.New(threadID, node, st, version, meta)
	if err := saver.Save(ctx, cp); err != nil {
		return fmt.Errorf("agent %s: save thread %s: %w", a.name, threadID, err)
	}
	a.logger.Debug("agent %s: saved thread %s version %d", a.name, threadID, version)
	return nil
}
