package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/db"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

func TestInspectFiles_Empty(t *testing.T) {
	r, err := InspectFiles(afero.NewMemMapFs(), runsDir, types.RoleHR)
	require.NoError(t, err)
	assert.False(t, r.HasCheckpoint)
	assert.Empty(t, r.Location)
	assert.Equal(t, 0, r.Records)
	assert.True(t, r.Consistent())
}

func TestInspectFiles_InProgress(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, record(1, "a")))
	require.NoError(t, s.Commit(ctx, record(2, "")))
	require.NoError(t, s.Commit(ctx, record(3, "c")))
	require.NoError(t, s.Close())

	r, err := InspectFiles(fs, runsDir, types.RoleSWE)
	require.NoError(t, err)
	assert.True(t, r.HasCheckpoint)
	assert.Equal(t, 3, r.Checkpoint)
	assert.Equal(t, 3, r.Records)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 3, r.HighestIndex)
	assert.Equal(t, s.Location(), r.Location)
	assert.True(t, r.Consistent())
}

func TestInspectFiles_DetectsGapsDuplicatesAndCorruption(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(runsDir, 0o755))
	content := `{"global_index":1,"response_text":"a"}
{"global_index":3,"response_text":"b"}
{"global_index":3,"response_text":""}
not json
{"global_index":5,"response_text":"c"}
`
	require.NoError(t, afero.WriteFile(fs, filepath.Join(runsDir, LogFileName(types.RoleSWE, t0)), []byte(content), 0o644))

	r, err := InspectFiles(fs, runsDir, types.RoleSWE)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Records)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Corrupt)
	assert.Equal(t, 5, r.HighestIndex)
	assert.Equal(t, []int{2, 4}, r.Gaps)
	assert.Equal(t, []int{3}, r.Duplicates)
	assert.False(t, r.Consistent())
}

func TestReport_CheckpointAheadOfLog(t *testing.T) {
	r := &Report{HasCheckpoint: true, Checkpoint: 4}
	r.tally([]db.RecordSummary{{GlobalIndex: 1}, {GlobalIndex: 2}})
	assert.False(t, r.Consistent())
}

func TestInspectFiles_DoesNotModify(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(runsDir, 0o755))
	path := filepath.Join(runsDir, LogFileName(types.RoleSWE, t0))
	partial := "{\"global_index\":1}\n{\"glo"
	require.NoError(t, afero.WriteFile(fs, path, []byte(partial), 0o644))

	r, err := InspectFiles(afero.NewReadOnlyFs(fs), runsDir, types.RoleSWE)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Records)
	assert.Equal(t, 1, r.Corrupt)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, partial, string(data))
	_, err = fs.Stat(filepath.Join(runsDir, CheckpointFileName(types.RoleSWE)))
	assert.True(t, os.IsNotExist(err))
}
