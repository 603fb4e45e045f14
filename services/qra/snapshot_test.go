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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult(t *testing.T) *SimulationResult {
	t.Helper()
	engine := NewEngine(testEngineConfig())
	result, err := engine.Run(context.Background(), SimulationRequest{
		Risks: abRegister(), Iterations: 1000, TargetPercentile: 80, Seed: int64Ptr(1),
	})
	require.NoError(t, err)
	return result
}

func TestNewSnapshot(t *testing.T) {
	result := testResult(t)

	snap := NewSnapshot("harbor", "rev-4", result)
	assert.NotEmpty(t, snap.SnapshotID)
	assert.Equal(t, "harbor", snap.ProjectID)
	assert.Equal(t, "rev-4", snap.RevisionID)
	assert.Same(t, result, snap.Result)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestBufferedSnapshotWriter(t *testing.T) {
	writer := NewBufferedSnapshotWriter()
	snap := NewSnapshot("p", "r", testResult(t))

	require.NoError(t, writer.Write(context.Background(), snap))
	require.NoError(t, writer.Close())

	snaps := writer.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, snap.SnapshotID, snaps[0].SnapshotID)
}

func TestFileSnapshotWriter_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	writer := NewFileSnapshotWriter(dir)
	snap := NewSnapshot("harbor", "rev-4", testResult(t))

	require.NoError(t, writer.Write(context.Background(), snap))

	data, err := os.ReadFile(filepath.Join(dir, snap.SnapshotID+".json"))
	require.NoError(t, err)

	var loaded Snapshot
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, snap.SnapshotID, loaded.SnapshotID)
	assert.Equal(t, snap.Result.Mean, loaded.Result.Mean)
	assert.Equal(t, snap.Result.Metadata.Seed, loaded.Result.Metadata.Seed)
}

func TestFileSnapshotWriter_CancelledContext(t *testing.T) {
	writer := NewFileSnapshotWriter(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := writer.Write(ctx, NewSnapshot("", "", testResult(t)))
	assert.Error(t, err)
}

func TestNopSnapshotWriter(t *testing.T) {
	writer := &NopSnapshotWriter{}
	assert.NoError(t, writer.Write(context.Background(), nil))
	assert.NoError(t, writer.Close())
}
