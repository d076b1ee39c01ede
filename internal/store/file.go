package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/schemas"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// LogTimestampLayout is the UTC timestamp embedded in run log file names
const LogTimestampLayout = "20060102T150405Z"

// CheckpointFileName returns the checkpoint file name for role
func CheckpointFileName(role types.Role) string {
	return fmt.Sprintf(".last_checkpoint_%s.json", role)
}

// LogFileName returns the run log file name for role started at t
func LogFileName(role types.Role, t time.Time) string {
	return fmt.Sprintf("%s_run_%s.jsonl", role, t.UTC().Format(LogTimestampLayout))
}

// LatestLog returns the path of the newest run log for role in dir, or "" when none exists.
// File names embed a sortable UTC timestamp.
func LatestLog(fs afero.Fs, dir string, role types.Role) (string, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to list %s: %w", dir, err)
	}

	prefix := string(role) + "_run_"
	var names []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".jsonl") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

type checkpointFile struct {
	Done int `json:"done"`
}

// readCheckpoint returns the stored value and whether the file exists
func readCheckpoint(fs afero.Fs, path string) (int, bool, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if err := schemas.ValidateDocument(schemas.KindCheckpoint, data); err != nil {
		return 0, true, fmt.Errorf("invalid checkpoint %s: %w", path, err)
	}
	var cp checkpointFile
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, true, fmt.Errorf("failed to parse checkpoint %s: %w", path, err)
	}
	return cp.Done, true, nil
}

// writeFileAtomic writes data to a temp file in the same directory, syncs it and renames it over path
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = fs.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

type logLine struct {
	GlobalIndex  int    `json:"global_index"`
	ResponseText string `json:"response_text"`
}

// splitComplete returns the byte length of data up to and including its last newline
func splitComplete(data []byte) int {
	return bytes.LastIndexByte(data, '\n') + 1
}

// lastIndexIn returns the global_index of the last complete line in data, or 0
func lastIndexIn(data []byte) (int, error) {
	complete := bytes.TrimRight(data[:splitComplete(data)], "\n")
	if len(complete) == 0 {
		return 0, nil
	}
	last := complete[bytes.LastIndexByte(complete, '\n')+1:]
	var line logLine
	if err := json.Unmarshal(last, &line); err != nil {
		return 0, fmt.Errorf("final log record is not valid JSON: %w", err)
	}
	return line.GlobalIndex, nil
}

// FileStore keeps the run log as JSON Lines and the checkpoint as a small JSON file.
type FileStore struct {
	fs     afero.Fs
	dir    string
	role   types.Role
	logger *zap.Logger

	mu         sync.Mutex
	done       int
	lastLogged int
	logPath    string
	log        afero.File
}

// OpenFileStore prepares the store for role in dir.
//
// When a checkpoint file exists the latest run log is reopened for append, a partially
// written final line is truncated, and the checkpoint is advanced if the log holds a
// record past it. Otherwise a new log named after now is created and a zero checkpoint
// is written.
func OpenFileStore(fs afero.Fs, dir string, role types.Role, now time.Time, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create runs directory %s: %w", dir, err)
	}

	s := &FileStore{fs: fs, dir: dir, role: role, logger: logger.With(zap.String("role", string(role)))}

	done, exists, err := readCheckpoint(fs, s.checkpointPath())
	if err != nil {
		return nil, err
	}
	s.done = done

	if exists {
		latest, err := LatestLog(fs, dir, role)
		if err != nil {
			return nil, err
		}
		if latest != "" {
			if err := s.resume(latest); err != nil {
				return nil, err
			}
			return s, nil
		}
		s.logger.Warn("checkpoint found without a run log, starting a new log", zap.Int("done", done))
	}

	if err := s.create(LogFileName(role, now)); err != nil {
		return nil, err
	}
	if !exists {
		if err := s.writeCheckpoint(done); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) checkpointPath() string {
	return filepath.Join(s.dir, CheckpointFileName(s.role))
}

func (s *FileStore) create(name string) error {
	s.logPath = filepath.Join(s.dir, name)
	f, err := s.fs.OpenFile(s.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create run log %s: %w", s.logPath, err)
	}
	s.log = f
	s.logger.Info("opened new run log", zap.String("path", s.logPath))
	return nil
}

func (s *FileStore) resume(path string) error {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return fmt.Errorf("failed to read run log %s: %w", path, err)
	}

	complete := splitComplete(data)
	if complete < len(data) {
		s.logger.Warn("truncating partial final record",
			zap.String("path", path),
			zap.Int("bytes", len(data)-complete))
		if err := truncateFile(s.fs, path, int64(complete)); err != nil {
			return err
		}
	}

	last, err := lastIndexIn(data)
	if err != nil {
		return fmt.Errorf("run log %s: %w", path, err)
	}
	s.lastLogged = last

	if last > s.done {
		s.logger.Info("checkpoint behind run log, advancing",
			zap.Int("checkpoint", s.done),
			zap.Int("last_logged", last))
		if err := s.writeCheckpoint(last); err != nil {
			return err
		}
		s.done = last
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to reopen run log %s: %w", path, err)
	}
	s.log = f
	s.logPath = path
	s.logger.Info("resuming run log", zap.String("path", path), zap.Int("done", s.done))
	return nil
}

func truncateFile(fs afero.Fs, path string, size int64) error {
	f, err := fs.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open run log %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to truncate run log %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync run log %s: %w", path, err)
	}
	return f.Close()
}

func (s *FileStore) writeCheckpoint(done int) error {
	data, err := json.Marshal(checkpointFile{Done: done})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := writeFileAtomic(s.fs, s.checkpointPath(), data); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint established when the store was opened or last saved
func (s *FileStore) Load(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done, nil
}

// Save atomically replaces the checkpoint file
func (s *FileStore) Save(_ context.Context, done int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(done)
}

func (s *FileStore) save(done int) error {
	if done < s.done {
		return fmt.Errorf("save %d below %d: %w", done, s.done, ErrCheckpointRegressed)
	}
	if err := s.writeCheckpoint(done); err != nil {
		return err
	}
	s.done = done
	return nil
}

// Clear deletes the checkpoint file. A missing file is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.checkpointPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove checkpoint: %w", err)
	}
	s.done = 0
	return nil
}

// Append writes one JSON line and syncs the log
func (s *FileStore) Append(_ context.Context, rec *types.InvocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(rec)
}

func (s *FileStore) append(rec *types.InvocationRecord) error {
	if s.log == nil {
		return fmt.Errorf("run log is closed")
	}
	// Encode terminates the line; tags in model output stay unescaped
	var line bytes.Buffer
	enc := json.NewEncoder(&line)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to marshal record %d: %w", rec.GlobalIndex, err)
	}

	if _, err := s.log.Write(line.Bytes()); err != nil {
		return fmt.Errorf("failed to append record %d: %w", rec.GlobalIndex, err)
	}
	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	s.lastLogged = rec.GlobalIndex
	return nil
}

// Commit appends rec and then advances the checkpoint to its global index
func (s *FileStore) Commit(_ context.Context, rec *types.InvocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.GlobalIndex <= s.done {
		return fmt.Errorf("record %d at or below checkpoint %d: %w", rec.GlobalIndex, s.done, ErrCheckpointRegressed)
	}
	if err := s.append(rec); err != nil {
		return err
	}
	return s.save(rec.GlobalIndex)
}

// LastLogged returns the highest global index written to the active log
func (s *FileStore) LastLogged(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLogged, nil
}

// Location returns the path of the active run log
func (s *FileStore) Location() string {
	return s.logPath
}

// Close closes the run log
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.log == nil {
		return nil
	}
	err := s.log.Close()
	s.log = nil
	return err
}
