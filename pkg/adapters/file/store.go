package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
)

// Store implements ports.CheckpointStore using the local filesystem.
// Every run is one JSON file named after its execution id.
type Store struct {
	BasePath string
}

// NewStore creates a Store rooted at basePath. An empty path defaults to ".triage/checkpoints".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".triage", "checkpoints")
	}
	return &Store{BasePath: basePath}
}

// Save writes the state atomically: temp file, fsync, then rename over the destination.
func (s *Store) Save(ctx context.Context, executionID string, state *domain.State) error {
	if err := validID(executionID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure checkpoint directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(s.BasePath, "tmp-"+executionID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	dest := s.path(executionID)
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to replace checkpoint: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}

// Load reads the state of a previous run.
func (s *Store) Load(ctx context.Context, executionID string) (*domain.State, error) {
	if err := validID(executionID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &state, nil
}

// Delete removes the checkpoint file. Deleting a missing checkpoint is not an error.
func (s *Store) Delete(ctx context.Context, executionID string) error {
	if err := validID(executionID); err != nil {
		return err
	}
	if err := os.Remove(s.path(executionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns the stored execution ids in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) path(executionID string) string {
	return filepath.Join(s.BasePath, executionID+".json")
}

func validID(executionID string) error {
	if executionID == "" {
		return fmt.Errorf("executionID cannot be empty")
	}
	if strings.ContainsAny(executionID, `/\`) || executionID == "." || executionID == ".." {
		return fmt.Errorf("invalid executionID %q", executionID)
	}
	return nil
}
