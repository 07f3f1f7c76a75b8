package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File stores one JSON document per checkpoint under a directory.
type File struct {
	dir string
	mu  sync.RWMutex
}

// NewFile creates dir if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create %s: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("checkpoint: invalid id %q", id)
	}
	return filepath.Join(f.dir, id+".json"), nil
}

func (f *File) Save(ctx context.Context, cp *Checkpoint) error {
	p, err := f.path(cp.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal %s: %w", cp.ID, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", cp.ID, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", cp.ID, err)
	}
	return nil
}

func (f *File) Load(ctx context.Context, id string) (*Checkpoint, error) {
	p, err := f.path(id)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return readCheckpoint(p, id)
}

func readCheckpoint(p, id string) (*Checkpoint, error) {
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: read %s: %w", id, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal %s: %w", id, err)
	}
	return &cp, nil
}

// List reads every checkpoint file and keeps those of threadID.
func (f *File) List(ctx context.Context, threadID string) ([]*Checkpoint, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list %s: %w", f.dir, err)
	}
	var out []*Checkpoint
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		cp, err := readCheckpoint(filepath.Join(f.dir, name), strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if ThreadID(cp) == threadID {
			out = append(out, cp)
		}
	}
	sortByVersion(out)
	return out, nil
}

func (f *File) Latest(ctx context.Context, threadID string) (*Checkpoint, error) {
	cps, err := f.List(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return latestOf(cps, threadID)
}

func (f *File) Delete(ctx context.Context, id string) error {
	p, err := f.path(id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checkpoint: delete %s: %w", id, err)
	}
	return nil
}

func (f *File) Clear(ctx context.Context, threadID string) error {
	cps, err := f.List(ctx, threadID)
	if err != nil {
		return err
	}
	for _, cp := range cps {
		if err := f.Delete(ctx, cp.ID); err != nil {
			return err
		}
	}
	return nil
}
