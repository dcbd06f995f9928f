package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codeshare/internal/models"
)

const jsonExt = ".json"

// JSONStore writes one indented JSON document per room into a directory.
type JSONStore struct {
	root string
}

func NewJSONStore(root string) (*JSONStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save directory: %w", err)
	}
	return &JSONStore{root: root}, nil
}

func (s *JSONStore) path(roomID string) string {
	return filepath.Join(s.root, roomID+jsonExt)
}

func (s *JSONStore) Save(ctx context.Context, snap models.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(snap.ID); err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write to temporary file first
	tmp, err := os.CreateTemp(s.root, snap.ID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name()) // Clean up if rename fails
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(snap.ID)); err != nil {
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}

func (s *JSONStore) Load(ctx context.Context, roomID string) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkKey(roomID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(roomID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", roomID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", roomID, err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", roomID, err)
	}
	return &snap, nil
}

func (s *JSONStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list save directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, jsonExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, jsonExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *JSONStore) Close() error {
	return nil
}
