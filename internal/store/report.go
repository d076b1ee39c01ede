package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/db"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// maxLineBytes bounds a single JSONL record when scanning a log
const maxLineBytes = 64 << 20

// Report is a read-only accounting of a role's progress
type Report struct {
	Role          types.Role
	Location      string
	HasCheckpoint bool
	Checkpoint    int
	Records       int
	Failed        int   // records with an empty response
	Corrupt       int   // lines that are not valid records
	HighestIndex  int   // highest global index seen
	Gaps          []int // indices in 1..HighestIndex with no record
	Duplicates    []int // indices recorded more than once
}

// Consistent reports whether every index up to the highest appears exactly once
// and the checkpoint does not run ahead of the log.
func (r *Report) Consistent() bool {
	return len(r.Gaps) == 0 && len(r.Duplicates) == 0 && r.Corrupt == 0 &&
		(!r.HasCheckpoint || r.Checkpoint <= r.HighestIndex)
}

// tally fills the index accounting from per-record summaries
func (r *Report) tally(summaries []db.RecordSummary) {
	counts := make(map[int]int, len(summaries))
	for _, s := range summaries {
		r.Records++
		if s.Failed {
			r.Failed++
		}
		counts[s.GlobalIndex]++
		if s.GlobalIndex > r.HighestIndex {
			r.HighestIndex = s.GlobalIndex
		}
	}
	for i := 1; i <= r.HighestIndex; i++ {
		switch n := counts[i]; {
		case n == 0:
			r.Gaps = append(r.Gaps, i)
		case n > 1:
			r.Duplicates = append(r.Duplicates, i)
		}
	}
	sort.Ints(r.Gaps)
	sort.Ints(r.Duplicates)
}

// InspectFiles reports on the checkpoint and latest run log of role without modifying either
func InspectFiles(fs afero.Fs, dir string, role types.Role) (*Report, error) {
	r := &Report{Role: role}

	done, exists, err := readCheckpoint(fs, filepath.Join(dir, CheckpointFileName(role)))
	if err != nil {
		return nil, err
	}
	r.Checkpoint, r.HasCheckpoint = done, exists

	latest, err := LatestLog(fs, dir, role)
	if err != nil {
		return nil, err
	}
	if latest == "" {
		return r, nil
	}
	r.Location = latest

	f, err := fs.Open(latest)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to open run log %s: %w", latest, err)
	}
	defer func() { _ = f.Close() }()

	var summaries []db.RecordSummary
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), maxLineBytes)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line logLine
		if err := json.Unmarshal(raw, &line); err != nil || line.GlobalIndex < 1 {
			r.Corrupt++
			continue
		}
		summaries = append(summaries, db.RecordSummary{GlobalIndex: line.GlobalIndex, Failed: line.ResponseText == ""})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan run log %s: %w", latest, err)
	}

	r.tally(summaries)
	return r, nil
}

// InspectPostgres reports on the role's active series, or its latest finished one
func InspectPostgres(ctx context.Context, database *db.DB, role types.Role) (*Report, error) {
	r := &Report{Role: role}

	cp, err := database.GetCheckpoint(ctx, string(role))
	if err != nil {
		return nil, err
	}

	var run *db.AuditRun
	if cp != nil {
		r.HasCheckpoint, r.Checkpoint = true, cp.Done
		run, err = database.GetAuditRun(ctx, cp.SeriesID)
	} else {
		run, err = database.LatestSeries(ctx, string(role))
	}
	if err != nil {
		return nil, err
	}
	if run == nil {
		return r, nil
	}
	r.Location = seriesLocation(run.ID.String(), run.Status)

	summaries, err := database.ListRecordSummaries(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	r.tally(summaries)
	return r, nil
}

func seriesLocation(id, status string) string {
	if status == "" {
		return fmt.Sprintf("postgres series %s", id)
	}
	return fmt.Sprintf("postgres series %s (%s)", id, status)
}
