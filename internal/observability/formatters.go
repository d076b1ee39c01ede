// Package observability provides formatted console output for audit runs.
package observability

import (
	"fmt"
	"io"
	"strings"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// ProgressEvent describes one logged scenario
type ProgressEvent struct {
	Done       int // global index just logged
	Total      int
	ScenarioID string
	Selected   []string
	Failed     bool // no usable response after retries
	KeySlot    int  // 0-based credential slot
}

// RunSummary is the end-of-run accounting shown to the user
type RunSummary struct {
	Role      string
	RunID     string
	Location  string
	Total     int
	Processed int
	Skipped   int
	Failed    int
	LastIndex int
	Completed bool
	DryRun    bool
}

// StatusReport is the read-only view printed by the status command
type StatusReport struct {
	Role          string
	Location      string
	HasCheckpoint bool
	Checkpoint    int
	Records       int
	Failed        int
	Corrupt       int
	HighestIndex  int
	Gaps          []int
	Duplicates    []int
}

// Printer handles formatted console output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// FormatProgress renders the one-line progress message for a logged scenario
func FormatProgress(e ProgressEvent) string {
	status := "SKIPPED"
	if !e.Failed {
		status = fmt.Sprintf("selected [%s]", strings.Join(e.Selected, " "))
	}
	return fmt.Sprintf("[%d/%d] %s → %s (key#%d)", e.Done, e.Total, e.ScenarioID, status, e.KeySlot+1)
}

// PrintProgress writes the progress line for one logged scenario
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(e ProgressEvent) {
	fmt.Fprintln(p.out, FormatProgress(e))
}

// PrintSummary outputs the end-of-run accounting.
func (p *Printer) PrintSummary(s RunSummary) {
	var sb strings.Builder

	title := fmt.Sprintf("%s RUN COMPLETE", strings.ToUpper(s.Role))
	switch {
	case s.DryRun:
		title = fmt.Sprintf("%s DRY RUN", strings.ToUpper(s.Role))
	case !s.Completed:
		title = fmt.Sprintf("%s RUN STOPPED", strings.ToUpper(s.Role))
	}

	sb.WriteString(fmt.Sprintf("Progress:  %d/%d\n", s.LastIndex, s.Total))
	sb.WriteString(fmt.Sprintf("Processed: %d\n", s.Processed))
	sb.WriteString(fmt.Sprintf("Skipped:   %d (already logged)\n", s.Skipped))
	sb.WriteString(fmt.Sprintf("No answer: %d\n", s.Failed))
	if s.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run ID:    %s\n", s.RunID))
	}
	if s.Location != "" {
		sb.WriteString(fmt.Sprintf("Log:       %s\n", s.Location))
	}

	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStatus outputs the progress and log accounting of a role.
func (p *Printer) PrintStatus(r StatusReport) {
	var sb strings.Builder

	if r.HasCheckpoint {
		sb.WriteString(fmt.Sprintf("Checkpoint: %d (in progress)\n", r.Checkpoint))
	} else {
		sb.WriteString("Checkpoint: none\n")
	}
	if r.Location == "" {
		sb.WriteString("Log:        none\n")
		p.printBox(fmt.Sprintf("%s STATUS", strings.ToUpper(r.Role)), strings.TrimSuffix(sb.String(), "\n"))
		return
	}

	sb.WriteString(fmt.Sprintf("Log:        %s\n", r.Location))
	sb.WriteString(fmt.Sprintf("Records:    %d (highest index %d)\n", r.Records, r.HighestIndex))
	sb.WriteString(fmt.Sprintf("No answer:  %d\n", r.Failed))
	if r.Corrupt > 0 {
		sb.WriteString(fmt.Sprintf("Corrupt:    %d lines\n", r.Corrupt))
	}
	if len(r.Gaps) > 0 {
		sb.WriteString(fmt.Sprintf("Gaps:       %s\n", formatIndices(r.Gaps)))
	}
	if len(r.Duplicates) > 0 {
		sb.WriteString(fmt.Sprintf("Duplicates: %s\n", formatIndices(r.Duplicates)))
	}
	if len(r.Gaps) == 0 && len(r.Duplicates) == 0 && r.Corrupt == 0 {
		sb.WriteString("✅ every index logged exactly once\n")
	}

	p.printBox(fmt.Sprintf("%s STATUS", strings.ToUpper(r.Role)), strings.TrimSuffix(sb.String(), "\n"))
}

func formatIndices(indices []int) string {
	count := min(len(indices), maxItemsToShow)
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("%d", indices[i])
	}
	out := strings.Join(parts, ", ")
	if len(indices) > maxItemsToShow {
		out += fmt.Sprintf(" ... and %d more", len(indices)-maxItemsToShow)
	}
	return out
}
