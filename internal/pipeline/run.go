// Package pipeline wires configuration, inputs, model clients and storage into a
// runner for one role, and reports on a role's progress.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/config"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/corpus"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/credentials"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/db"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/llm"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/observability"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/prompts"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/ratelimit"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/runner"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/scenario"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/store"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// RunOptions holds everything needed to run one role
type RunOptions struct {
	Role   types.Role
	Config config.Config // merged and validated by the caller or by RunAudit
	Fs     afero.Fs      // inputs and file store; defaults to the OS filesystem
	Out    io.Writer     // progress lines and summary
	Logger *zap.Logger
	// ClientFactory builds one model client per key; defaults to llm.NewClient
	ClientFactory llm.Factory
	// Sleep replaces real waits for retries and pacing; nil sleeps for real
	Sleep llm.SleepFunc
	Now   func() time.Time
}

func (o *RunOptions) defaults() {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.ClientFactory == nil {
		o.ClientFactory = llm.NewClient
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// RunAudit loads the role's inputs, builds the client pool and store, and runs the feed.
// Configuration and input problems fail before any model call is made.
func RunAudit(ctx context.Context, opts RunOptions) (*runner.Summary, error) {
	opts.defaults()
	cfg := opts.Config
	logger := opts.Logger.With(zap.String("role", string(opts.Role)))
	printer := observability.NewPrinter(opts.Out)

	if !opts.Role.Valid() {
		return nil, &config.ConfigError{Field: "role", Message: fmt.Sprintf("unknown role %q", opts.Role)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Step 1: inputs
	paths := corpus.DefaultPaths(cfg.DataDir, opts.Role)
	c, err := corpus.Load(ctx, opts.Fs, paths, opts.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}

	feed, err := scenario.NewFeed(c.Variants, c.Templates, opts.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to build scenario feed: %w", err)
	}
	if cfg.DryRun {
		feed = feed.Limit(cfg.DryRunLimit)
	}
	logger.Info("inputs loaded",
		zap.Int("variants", len(c.Variants)),
		zap.Strings("styles", prompts.Styles(c.Templates)),
		zap.Int("total", feed.Total()),
		zap.Bool("dry_run", cfg.DryRun))

	// Step 2: credentials and clients
	rotator, err := credentials.NewRotator(cfg.APIKeys, cfg.PromptsPerKey)
	if err != nil {
		return nil, err
	}
	pool, err := llm.NewClientPool(ctx, cfg.LLMConfig(), cfg.APIKeys, opts.ClientFactory)
	if err != nil {
		return nil, fmt.Errorf("failed to create model clients: %w", err)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Warn("failed to close model clients", zap.Error(cerr))
		}
	}()

	invoker := llm.NewInvoker(pool, logger)
	invoker.Timeout = cfg.LLMConfig().Timeout
	invoker.MaxRetries = cfg.MaxRetries
	invoker.BackoffBase = cfg.BackoffBase
	if opts.Sleep != nil {
		invoker.Sleep = opts.Sleep
	}
	if cfg.RequestsPerMinute > 0 {
		limiter, err := ratelimit.NewKeyLimiter(len(cfg.APIKeys), cfg.RequestsPerMinute, cfg.RequestBurst)
		if err != nil {
			return nil, err
		}
		invoker.Limiter = limiter
		logger.Info("per-key rate limit enabled",
			zap.Float64("requests_per_minute", cfg.RequestsPerMinute),
			zap.Int("burst", max(cfg.RequestBurst, 1)))
	}

	// Step 3: storage
	st, err := OpenStore(ctx, opts.Fs, cfg, opts.Role, opts.Now(), logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("failed to close store", zap.Error(cerr))
		}
	}()

	// Step 4: run
	r := &runner.Runner{
		Feed:     feed,
		Corpus:   c,
		Rotator:  rotator,
		Invoker:  invoker,
		Store:    st,
		Pacer:    runner.FixedDelay{Delay: cfg.Delay(), Sleep: opts.Sleep},
		Progress: printer,
		Logger:   logger,
		Clock:    opts.Now,
		RunID:    uuid.New().String(),
	}

	summary, runErr := r.Run(ctx)
	if summary != nil {
		printer.PrintSummary(observability.RunSummary{
			Role:      string(opts.Role),
			RunID:     summary.RunID,
			Location:  st.Location(),
			Total:     summary.Total,
			Processed: summary.Processed,
			Skipped:   summary.Skipped,
			Failed:    summary.Failed,
			LastIndex: summary.LastIndex,
			Completed: summary.Completed,
			DryRun:    cfg.DryRun && feed.Limited(),
		})
	}
	return summary, runErr
}

// OpenStore opens the backend selected by cfg.Store
func OpenStore(ctx context.Context, fs afero.Fs, cfg config.Config, role types.Role, now time.Time, logger *zap.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		database, err := connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st, err := store.OpenPostgresStore(ctx, database, role, cfg.Model, logger)
		if err != nil {
			database.Close()
			return nil, err
		}
		return st, nil
	case config.StoreFile, "":
		return store.OpenFileStore(fs, cfg.RunsDir, role, now, logger)
	default:
		return nil, &config.ConfigError{Field: "store", Message: fmt.Sprintf("unknown backend %q", cfg.Store)}
	}
}

// Status reports the role's checkpoint and log accounting without changing anything
func Status(ctx context.Context, fs afero.Fs, cfg config.Config, role types.Role) (*store.Report, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if cfg.Store != config.StorePostgres {
		return store.InspectFiles(fs, cfg.RunsDir, role)
	}

	database, err := connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer database.Close()
	return store.InspectPostgres(ctx, database, role)
}

// StatusView converts a report for printing
func StatusView(r *store.Report) observability.StatusReport {
	return observability.StatusReport{
		Role:          string(r.Role),
		Location:      r.Location,
		HasCheckpoint: r.HasCheckpoint,
		Checkpoint:    r.Checkpoint,
		Records:       r.Records,
		Failed:        r.Failed,
		Corrupt:       r.Corrupt,
		HighestIndex:  r.HighestIndex,
		Gaps:          r.Gaps,
		Duplicates:    r.Duplicates,
	}
}

func connect(ctx context.Context, databaseURL string) (*db.DB, error) {
	if databaseURL == "" {
		return nil, &config.ConfigError{Field: "database_url", Message: "is required for the postgres store"}
	}
	database, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
