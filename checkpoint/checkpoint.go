// Package checkpoint persists agent thread state between runs.
//
// Every backend stores langgraphgo store.Checkpoint records and indexes them
// by the thread id found in Metadata[MetaThreadID]. Versions increase by one
// per saved checkpoint of a thread, so the newest record is the one with the
// highest version.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/langgraphgo/store"
)

// Metadata keys written by the agent runner.
const (
	MetaThreadID = "thread_id"
	MetaStatus   = "status"
)

// ErrNotFound is returned when a checkpoint or thread has no record.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is the record type shared with the graph runtime.
type Checkpoint = store.Checkpoint

// Saver is a checkpoint store that can find the newest record of a thread.
type Saver interface {
	store.CheckpointStore
	// Latest returns the highest-version checkpoint of threadID, or
	// ErrNotFound when the thread has none.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)
}

// New builds a checkpoint for threadID with a fresh id.
func New(threadID, node string, state any, version int, metadata map[string]any) *Checkpoint {
	meta := maps.Clone(metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	meta[MetaThreadID] = threadID
	return &Checkpoint{
		ID:        uuid.NewString(),
		NodeName:  node,
		State:     state,
		Metadata:  meta,
		Timestamp: time.Now().UTC(),
		Version:   version,
	}
}

// ThreadID returns the thread a checkpoint belongs to.
func ThreadID(cp *Checkpoint) string {
	if cp == nil {
		return ""
	}
	id, _ := cp.Metadata[MetaThreadID].(string)
	return id
}

// DecodeState converts cp.State into T. In-memory backends hand back the
// value that was saved while the others hand back decoded JSON, so the
// state is round-tripped through JSON in both cases.
func DecodeState[T any](cp *Checkpoint) (T, error) {
	var out T
	if cp == nil {
		return out, ErrNotFound
	}
	if v, ok := cp.State.(T); ok {
		return v, nil
	}
	data, err := json.Marshal(cp.State)
	if err != nil {
		return out, fmt.Errorf("checkpoint %s: encode state: %w", cp.ID, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("checkpoint %s: decode state: %w", cp.ID, err)
	}
	return out, nil
}

// Versions returns the number of checkpoints saved for threadID.
func Versions(ctx context.Context, s Saver, threadID string) (int, error) {
	cp, err := s.Latest(ctx, threadID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cp.Version, nil
}

func sortByVersion(cps []*Checkpoint) {
	sort.SliceStable(cps, func(i, j int) bool {
		if cps[i].Version != cps[j].Version {
			return cps[i].Version < cps[j].Version
		}
		return cps[i].Timestamp.Before(cps[j].Timestamp)
	})
}

// latestOf picks the newest checkpoint from a List result.
func latestOf(cps []*Checkpoint, threadID string) (*Checkpoint, error) {
	if len(cps) == 0 {
		return nil, fmt.Errorf("%w: thread %s", ErrNotFound, threadID)
	}
	sortByVersion(cps)
	return cps[len(cps)-1], nil
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}
