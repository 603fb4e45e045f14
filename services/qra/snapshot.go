// Copyright (C) 2026 Cornerline Software Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package qra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable record of one completed simulation, suitable for
// comparing runs across register revisions.
//
// # Fields
//
//   - SnapshotID: Unique identifier for this snapshot.
//   - ProjectID: The project the register belongs to (free-form).
//   - RevisionID: The register revision the run used (free-form).
//   - Result: The full simulation result.
//   - CreatedAt: When the snapshot was taken.
type Snapshot struct {
	SnapshotID string            `json:"snapshot_id"`
	ProjectID  string            `json:"project_id,omitempty"`
	RevisionID string            `json:"revision_id,omitempty"`
	Result     *SimulationResult `json:"result"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewSnapshot wraps a result in a snapshot with a fresh identifier.
func NewSnapshot(projectID, revisionID string, result *SimulationResult) *Snapshot {
	return &Snapshot{
		SnapshotID: uuid.NewString(),
		ProjectID:  projectID,
		RevisionID: revisionID,
		Result:     result,
		CreatedAt:  time.Now().UTC(),
	}
}

// SnapshotWriter persists simulation snapshots.
//
// Implementations can write to local disk, object storage, or a database.
// Write must not mutate the snapshot; Close releases any held resources and
// is called once during shutdown.
type SnapshotWriter interface {
	// Write persists one snapshot.
	//
	// Parameters:
	//   - ctx: Context for cancellation.
	//   - snap: The snapshot to persist.
	//
	// Returns:
	//   - error: Non-nil if the snapshot could not be stored.
	Write(ctx context.Context, snap *Snapshot) error

	// Close releases resources held by the writer.
	Close() error
}

// NopSnapshotWriter discards all snapshots.
//
// Used when persistence is not configured.
type NopSnapshotWriter struct{}

// Write discards the snapshot.
func (w *NopSnapshotWriter) Write(ctx context.Context, snap *Snapshot) error { return nil }

// Close is a no-op.
func (w *NopSnapshotWriter) Close() error { return nil }

// Ensure NopSnapshotWriter implements SnapshotWriter
var _ SnapshotWriter = (*NopSnapshotWriter)(nil)

// BufferedSnapshotWriter collects snapshots in memory.
//
// Useful for testing to verify what a run produced:
//
//	writer := qra.NewBufferedSnapshotWriter()
//	writer.Write(ctx, snap)
//
//	snaps := writer.Snapshots()
//	assert.Equal(t, snap.SnapshotID, snaps[0].SnapshotID)
type BufferedSnapshotWriter struct {
	mu    sync.Mutex
	snaps []*Snapshot
}

// NewBufferedSnapshotWriter creates a new BufferedSnapshotWriter.
func NewBufferedSnapshotWriter() *BufferedSnapshotWriter {
	return &BufferedSnapshotWriter{snaps: make([]*Snapshot, 0, 4)}
}

// Write adds the snapshot to the buffer.
func (w *BufferedSnapshotWriter) Write(ctx context.Context, snap *Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snaps = append(w.snaps, snap)
	return nil
}

// Close is a no-op.
func (w *BufferedSnapshotWriter) Close() error { return nil }

// Snapshots returns a copy of all collected snapshots.
func (w *BufferedSnapshotWriter) Snapshots() []*Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	result := make([]*Snapshot, len(w.snaps))
	copy(result, w.snaps)
	return result
}

var _ SnapshotWriter = (*BufferedSnapshotWriter)(nil)

// FileSnapshotWriter writes each snapshot as a JSON file under a directory.
//
// Files are named <snapshot_id>.json. The directory is created on first
// write if it does not exist.
type FileSnapshotWriter struct {
	dir string
	mu  sync.Mutex
}

// NewFileSnapshotWriter creates a writer rooted at dir.
func NewFileSnapshotWriter(dir string) *FileSnapshotWriter {
	return &FileSnapshotWriter{dir: dir}
}

// Write marshals the snapshot to an indented JSON file.
func (w *FileSnapshotWriter) Write(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(w.dir, snap.SnapshotID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Close is a no-op (writes are immediate).
func (w *FileSnapshotWriter) Close() error { return nil }

var _ SnapshotWriter = (*FileSnapshotWriter)(nil)
