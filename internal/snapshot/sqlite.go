package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"codeshare/internal/models"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per room with the files map as JSON.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS room_snapshots (
		room_id TEXT PRIMARY KEY,
		files TEXT NOT NULL,
		active_file TEXT NOT NULL,
		last_saved INTEGER NOT NULL,
		user_count INTEGER NOT NULL DEFAULT 0
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, snap models.Snapshot) error {
	if err := checkKey(snap.ID); err != nil {
		return err
	}

	files, err := json.Marshal(snap.Files)
	if err != nil {
		return fmt.Errorf("failed to marshal files: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO room_snapshots (room_id, files, active_file, last_saved, user_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			files = excluded.files,
			active_file = excluded.active_file,
			last_saved = excluded.last_saved,
			user_count = excluded.user_count`,
		snap.ID, string(files), snap.ActiveFile, snap.LastSaved, snap.UserCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", snap.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, roomID string) (*models.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT room_id, files, active_file, last_saved, user_count FROM room_snapshots WHERE room_id = ?",
		roomID,
	)

	var (
		snap  models.Snapshot
		files string
	)
	err := row.Scan(&snap.ID, &files, &snap.ActiveFile, &snap.LastSaved, &snap.UserCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s: %w", roomID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", roomID, err)
	}
	if err := json.Unmarshal([]byte(files), &snap.Files); err != nil {
		return nil, fmt.Errorf("failed to decode files of %s: %w", roomID, err)
	}
	return &snap, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT room_id FROM room_snapshots ORDER BY room_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
