package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

const runsDir = "/runs"

var (
	t0 = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
)

func record(i int, response string) *types.InvocationRecord {
	return &types.InvocationRecord{
		ScenarioID:         "sh0_b0_p0_formal_swe",
		Role:               types.RoleSWE,
		PromptStyle:        "formal",
		GlobalIndex:        i,
		PersonaIDs:         []string{"pers_001"},
		ResponseText:       response,
		SelectedPersonaIDs: []string{},
	}
}

func readLines(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func checkpointOnDisk(t *testing.T, fs afero.Fs, role types.Role) (int, bool) {
	t.Helper()
	done, exists, err := readCheckpoint(fs, filepath.Join(runsDir, CheckpointFileName(role)))
	require.NoError(t, err)
	return done, exists
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, ".last_checkpoint_hr.json", CheckpointFileName(types.RoleHR))
	assert.Equal(t, "swe_run_20250601T093000Z.jsonl", LogFileName(types.RoleSWE, t0))

	local := time.Date(2025, 6, 1, 11, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "swe_run_20250601T093000Z.jsonl", LogFileName(types.RoleSWE, local))
}

func TestLatestLog(t *testing.T) {
	fs := afero.NewMemMapFs()

	path, err := LatestLog(fs, runsDir, types.RoleSWE)
	require.NoError(t, err)
	assert.Empty(t, path, "missing directory means no log")
	require.NoError(t, fs.MkdirAll(runsDir, 0o755))

	for _, name := range []string{
		"swe_run_20250601T093000Z.jsonl",
		"swe_run_20250602T080000Z.jsonl",
		"hr_run_20250603T000000Z.jsonl",
		"swe_run_notes.txt",
	} {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(runsDir, name), nil, 0o644))
	}

	path, err = LatestLog(fs, runsDir, types.RoleSWE)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(runsDir, "swe_run_20250602T080000Z.jsonl"), path)

	path, err = LatestLog(fs, runsDir, types.RoleHR)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(runsDir, "hr_run_20250603T000000Z.jsonl"), path)
}

func TestFileStore_FreshRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	done, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, done)
	assert.Equal(t, filepath.Join(runsDir, "swe_run_20250601T093000Z.jsonl"), s.Location())

	cp, exists := checkpointOnDisk(t, fs, types.RoleSWE)
	assert.True(t, exists, "a fresh run marks itself in progress")
	assert.Equal(t, 0, cp)

	require.NoError(t, s.Commit(ctx, record(1, "<top-3>1</top-3>")))
	require.NoError(t, s.Commit(ctx, record(2, "")))

	lines := readLines(t, fs, s.Location())
	require.Len(t, lines, 2)
	var rec types.InvocationRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, 2, rec.GlobalIndex)
	assert.True(t, rec.Failed())

	cp, _ = checkpointOnDisk(t, fs, types.RoleSWE)
	assert.Equal(t, 2, cp)

	last, err := s.LastLogged(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, last)
}

func TestFileStore_CheckpointIsMonotonic(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, 5))
	require.NoError(t, s.Save(ctx, 5))

	err = s.Save(ctx, 4)
	assert.True(t, errors.Is(err, ErrCheckpointRegressed))

	err = s.Commit(ctx, record(5, "x"))
	assert.True(t, errors.Is(err, ErrCheckpointRegressed))

	cp, _ := checkpointOnDisk(t, fs, types.RoleSWE)
	assert.Equal(t, 5, cp)
	assert.Empty(t, strings.TrimSpace(readFile(t, fs, s.Location())), "rejected commit writes nothing")
}

func readFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return string(data)
}

func TestFileStore_ResumeAppendsToLatestLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, record(1, "a")))
	require.NoError(t, s.Commit(ctx, record(2, "b")))
	first := s.Location()
	require.NoError(t, s.Close())

	resumed, err := OpenFileStore(fs, runsDir, types.RoleSWE, t1, nil)
	require.NoError(t, err)
	defer resumed.Close()

	assert.Equal(t, first, resumed.Location())
	done, err := resumed.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, done)

	require.NoError(t, resumed.Commit(ctx, record(3, "c")))
	assert.Len(t, readLines(t, fs, first), 3)

	entries, err := afero.ReadDir(fs, runsDir)
	require.NoError(t, err)
	logs := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".jsonl") {
			logs++
		}
	}
	assert.Equal(t, 1, logs)
}

func TestFileStore_ReconcilesCheckpointBehindLog(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, record(1, "a")))
	// crash after the record was flushed but before the checkpoint moved
	require.NoError(t, s.Append(ctx, record(2, "b")))
	require.NoError(t, s.Close())

	cp, _ := checkpointOnDisk(t, fs, types.RoleSWE)
	require.Equal(t, 1, cp)

	resumed, err := OpenFileStore(fs, runsDir, types.RoleSWE, t1, nil)
	require.NoError(t, err)
	defer resumed.Close()

	done, err := resumed.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, done)
	cp, _ = checkpointOnDisk(t, fs, types.RoleSWE)
	assert.Equal(t, 2, cp)
}

func TestFileStore_TruncatesPartialLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, record(1, "a")))
	path := s.Location()
	require.NoError(t, s.Close())

	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte(`{"scenario_id":"sh0_b0_p0_terse_swe","glob`))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	resumed, err := OpenFileStore(fs, runsDir, types.RoleSWE, t1, nil)
	require.NoError(t, err)
	defer resumed.Close()

	done, err := resumed.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, done)

	require.NoError(t, resumed.Commit(ctx, record(2, "b")))
	lines := readLines(t, fs, path)
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), line)
	}
}

func TestFileStore_ClearStartsFreshLogNextTime(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx, record(1, "a")))
	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx), "clearing an absent checkpoint is fine")
	first := s.Location()
	require.NoError(t, s.Close())

	_, exists := checkpointOnDisk(t, fs, types.RoleSWE)
	assert.False(t, exists)

	next, err := OpenFileStore(fs, runsDir, types.RoleSWE, t1, nil)
	require.NoError(t, err)
	defer next.Close()

	assert.NotEqual(t, first, next.Location())
	done, err := next.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, done)
}

func TestFileStore_InvalidCheckpoint(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := filepath.Join(runsDir, CheckpointFileName(types.RoleHR))
	require.NoError(t, afero.WriteFile(fs, path, []byte(`{"done": -3}`), 0o644))

	_, err := OpenFileStore(fs, runsDir, types.RoleHR, t0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid checkpoint")
}

func TestFileStore_AppendAfterClose(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Commit(context.Background(), record(1, "a"))
	assert.Error(t, err)
}

func TestFileStore_ReadOnlyFsFailsCommit(t *testing.T) {
	base := afero.NewMemMapFs()
	s, err := OpenFileStore(base, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ro := afero.NewReadOnlyFs(base)
	_, err = OpenFileStore(ro, runsDir, types.RoleSWE, t1, nil)
	assert.Error(t, err)
}

func TestFileStore_KeepsTagsReadable(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := OpenFileStore(fs, runsDir, types.RoleSWE, t0, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Commit(context.Background(), record(1, "<explanation>ok</explanation><top-3>1</top-3>")))
	assert.Contains(t, readFile(t, fs, s.Location()), "<explanation>ok</explanation>")
}
