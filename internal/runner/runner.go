// Package runner drives one role through its scenario feed: skip what the checkpoint
// covers, invoke the model for the rest, and durably log every outcome in order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/corpus"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/credentials"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/llm"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/observability"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/parsing"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/prompts"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/scenario"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/store"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// ErrInterrupted is returned when the context ends before the feed is exhausted.
// Everything logged before the interruption stays logged.
var ErrInterrupted = errors.New("run interrupted")

// State is the lifecycle of one scenario within a run
type State int

const (
	// StatePending means not yet attempted in this series
	StatePending State = iota
	// StateInFlight means the model is being invoked
	StateInFlight
	// StateLogged means the record is durable and the checkpoint covers it
	StateLogged
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateInFlight:
		return "IN_FLIGHT"
	case StateLogged:
		return "LOGGED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Invoker sends one prompt through a credential slot
type Invoker interface {
	Invoke(ctx context.Context, prompt string, slot int) llm.Result
}

// Pacer throttles the loop between logged items
type Pacer interface {
	Pace(ctx context.Context) error
}

// FixedDelay waits the same interval after every logged item
type FixedDelay struct {
	Delay time.Duration
	Sleep llm.SleepFunc
}

// Pace waits for Delay or until ctx is done
func (d FixedDelay) Pace(ctx context.Context) error {
	sleep := d.Sleep
	if sleep == nil {
		sleep = llm.SleepContext
	}
	return sleep(ctx, d.Delay)
}

// Progress receives one event per logged item
type Progress interface {
	PrintProgress(e observability.ProgressEvent)
}

// Summary is the accounting of one Run call
type Summary struct {
	RunID     string
	Total     int
	Processed int // logged by this call
	Skipped   int // already covered by the checkpoint
	Failed    int // logged with no usable response
	LastIndex int // checkpoint when Run returned
	Completed bool
}

// Runner processes a role's feed sequentially
type Runner struct {
	Feed     *scenario.Feed
	Corpus   *corpus.Corpus
	Rotator  *credentials.Rotator
	Invoker  Invoker
	Store    store.Store
	Pacer    Pacer
	Progress Progress
	Logger   *zap.Logger
	Clock    func() time.Time
	RunID    string
}

// Run processes every scenario past the checkpoint. It returns ErrInterrupted when ctx
// ends first, and a wrapped store error when a record or checkpoint cannot be written.
// The checkpoint is cleared only when the full feed has been processed.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	logger := r.logger()

	done, err := r.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	summary := &Summary{RunID: r.RunID, Total: r.Feed.Total(), LastIndex: done}
	scenarios := r.Feed.Scenarios()
	suffix := prompts.RoleSuffix(r.Feed.Role())

	logger.Info("starting run",
		zap.String("role", string(r.Feed.Role())),
		zap.Int("total", summary.Total),
		zap.Int("emitted", len(scenarios)),
		zap.Int("done", done),
		zap.String("log", r.Store.Location()))

	for i, sc := range scenarios {
		if sc.GlobalIndex <= done {
			summary.Skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, interrupted(sc.GlobalIndex, err)
		}

		rec, slot, cancelled, err := r.process(ctx, sc, suffix)
		if err != nil {
			return summary, err
		}
		if cancelled {
			return summary, interrupted(sc.GlobalIndex, ctx.Err())
		}

		// a response that arrived is kept even if ctx ends now
		if err := r.Store.Commit(context.WithoutCancel(ctx), rec); err != nil {
			return summary, fmt.Errorf("failed to log %s: %w", rec.ScenarioID, err)
		}
		done = sc.GlobalIndex
		summary.LastIndex = done
		summary.Processed++
		if rec.Failed() {
			summary.Failed++
		}
		logger.Debug("scenario state",
			zap.Int("global_index", done),
			zap.Stringer("state", StateLogged))

		if r.Progress != nil {
			r.Progress.PrintProgress(observability.ProgressEvent{
				Done:       done,
				Total:      summary.Total,
				ScenarioID: rec.ScenarioID,
				Selected:   rec.SelectedPersonaIDs,
				Failed:     rec.Failed(),
				KeySlot:    slot,
			})
		}

		if i < len(scenarios)-1 && r.Pacer != nil {
			if err := r.Pacer.Pace(ctx); err != nil {
				return summary, interrupted(done, err)
			}
		}
	}

	if r.Feed.Limited() {
		logger.Info("dry run limit reached, checkpoint kept", zap.Int("done", done))
		return summary, nil
	}

	if err := r.Store.Clear(ctx); err != nil {
		return summary, fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	summary.Completed = true
	logger.Info("run complete",
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// process renders, invokes and parses one scenario. Nothing is persisted here.
func (r *Runner) process(ctx context.Context, sc scenario.Scenario, suffix string) (*types.InvocationRecord, int, bool, error) {
	docs, err := r.Corpus.Documents(sc.PersonaIDs)
	if err != nil {
		return nil, 0, false, fmt.Errorf("scenario %s: %w", sc.ID(), err)
	}
	meta, err := r.Corpus.Meta(sc.PersonaIDs)
	if err != nil {
		return nil, 0, false, fmt.Errorf("scenario %s: %w", sc.ID(), err)
	}

	prompt := prompts.Render(sc.Template, prompts.CandidatesBlock(docs), suffix)
	slot, _ := r.Rotator.Pick(sc.GlobalIndex)

	r.logger().Debug("scenario state",
		zap.Int("global_index", sc.GlobalIndex),
		zap.Stringer("state", StateInFlight),
		zap.Int("key", slot+1))

	result := r.Invoker.Invoke(ctx, prompt, slot)
	if result.Cancelled {
		return nil, slot, true, nil
	}

	decision := parsing.ParseResponse(result.Text, sc.PersonaIDs)
	rec := &types.InvocationRecord{
		ScenarioID:         sc.ID(),
		Role:               sc.Role,
		PromptStyle:        sc.StyleKey(),
		GlobalIndex:        sc.GlobalIndex,
		RunID:              r.RunID,
		PersonaIDs:         sc.PersonaIDs,
		PersonaMeta:        meta,
		PromptText:         prompt,
		ResponseText:       result.Text,
		RationaleText:      decision.Rationale,
		SelectionLine:      decision.SelectionLine,
		SelectedPersonaIDs: decision.SelectedIDs,
		TimestampUTC:       types.FormatTimestamp(r.now()),
	}
	return rec, slot, false, nil
}

func interrupted(at int, cause error) error {
	if cause == nil {
		cause = context.Canceled
	}
	return fmt.Errorf("%w at index %d: %w", ErrInterrupted, at, cause)
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
