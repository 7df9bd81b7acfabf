package file

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// collection is a directory of JSON documents, one file per entity.
// A mutex serializes writers; ticks within one process never race on reads
// of a half-written file.
type collection[T any] struct {
	dir string
	mu  sync.RWMutex
}

func newCollection[T any](root, name string) *collection[T] {
	return &collection[T]{dir: filepath.Join(root, name)}
}

func (c *collection[T]) path(id string) string {
	return filepath.Join(c.dir, id+".json")
}

func (c *collection[T]) get(id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", c.path(id), err)
	}

	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", c.path(id), err)
	}

	return &entity, nil
}

func (c *collection[T]) put(id string, entity *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	if err := os.WriteFile(c.path(id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.path(id), err)
	}

	return nil
}

func (c *collection[T]) all() ([]*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries, err := fs.Glob(os.DirFS(c.dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list collection: %w", err)
	}

	entities := make([]*T, 0, len(entries))

	for _, name := range entries {
		data, err := os.ReadFile(filepath.Join(c.dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", name, err)
		}

		entities = append(entities, &entity)
	}

	return entities, nil
}
