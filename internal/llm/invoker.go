package llm

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/parsing"
)

// Attempt is the outcome of one upstream call inside Invoke
type Attempt struct {
	Number  int
	Err     error         // nil on success, *APICallError or *ShapeError otherwise
	Backoff time.Duration // wait applied after this attempt, zero for the last one
}

// Result is the outcome of a full retry sequence. Text is empty when every attempt failed.
type Result struct {
	Text      string
	Attempts  []Attempt
	Cancelled bool // the context ended before a usable response arrived
}

// OK reports whether a usable response was obtained
func (r Result) OK() bool {
	return r.Text != ""
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Limiter gates each attempt through a credential slot
type Limiter interface {
	Wait(ctx context.Context, slot int) error
}

// Invoker sends one prompt through a credential slot with bounded retries.
// It never returns an error: exhaustion yields an empty Result.
type Invoker struct {
	Pool        *ClientPool
	MaxRetries  int
	BackoffBase float64 // seconds; attempt n waits BackoffBase^n
	Validate    func(raw string) bool
	Limiter     Limiter       // optional per-key request rate
	Timeout     time.Duration // per attempt; zero means none
	Sleep       SleepFunc
	Logger      *zap.Logger
}

// NewInvoker creates an invoker with the default policy and shape check
func NewInvoker(pool *ClientPool, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{
		Pool:        pool,
		MaxRetries:  DefaultMaxRetries,
		BackoffBase: DefaultBackoffBase,
		Validate:    parsing.CheckShape,
		Sleep:       SleepContext,
		Logger:      logger,
	}
}

// Backoff returns the wait after failed attempt n (1-based)
func (inv *Invoker) Backoff(n int) time.Duration {
	return time.Duration(math.Pow(inv.BackoffBase, float64(n)) * float64(time.Second))
}

// Invoke calls the client for slot until a response passes validation or MaxRetries
// attempts are used up.
func (inv *Invoker) Invoke(ctx context.Context, prompt string, slot int) Result {
	var result Result
	logger := inv.logger().With(zap.Int("key", slot+1))

	client, err := inv.Pool.Client(slot)
	if err != nil {
		logger.Error("no client for credential slot", zap.Error(err))
		return result
	}

	maxAttempts := max(inv.MaxRetries, 1)
	for n := 1; n <= maxAttempts; n++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			return result
		}

		if inv.Limiter != nil {
			if err := inv.Limiter.Wait(ctx, slot); err != nil {
				logger.Debug("rate limiter wait ended", zap.Error(err))
				result.Cancelled = true
				return result
			}
		}

		text, err := inv.attempt(ctx, client, prompt)
		if err == nil {
			result.Text = text
			result.Attempts = append(result.Attempts, Attempt{Number: n})
			return result
		}
		if ctx.Err() != nil {
			result.Cancelled = true
			result.Attempts = append(result.Attempts, Attempt{Number: n, Err: err})
			return result
		}

		att := Attempt{Number: n, Err: err}
		if n < maxAttempts {
			att.Backoff = inv.Backoff(n)
		}
		result.Attempts = append(result.Attempts, att)

		logger.Warn("model call failed",
			zap.Int("attempt", n),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", att.Backoff),
			zap.String("reason", failureReason(err)),
			zap.Error(err))

		if att.Backoff > 0 {
			if err := inv.sleep(ctx, att.Backoff); err != nil {
				result.Cancelled = true
				return result
			}
		}
	}

	logger.Warn("giving up after retries", zap.Int("attempts", len(result.Attempts)))
	return result
}

func (inv *Invoker) attempt(ctx context.Context, client Client, prompt string) (string, error) {
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}
	text, err := client.GenerateContent(ctx, prompt)
	if err != nil {
		return "", &APICallError{Message: "generate content", Cause: err}
	}
	if text == "" {
		return "", &ShapeError{Message: "empty response"}
	}
	validate := inv.Validate
	if validate == nil {
		validate = parsing.CheckShape
	}
	if !validate(text) {
		return "", &ShapeError{Message: "missing tags or digits", Length: len(text)}
	}
	return text, nil
}

func (inv *Invoker) sleep(ctx context.Context, d time.Duration) error {
	if inv.Sleep != nil {
		return inv.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (inv *Invoker) logger() *zap.Logger {
	if inv.Logger == nil {
		return zap.NewNop()
	}
	return inv.Logger
}

// SleepContext waits for d, returning early with ctx.Err() if ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsShapeError reports whether err is a failed output-shape check
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

func failureReason(err error) string {
	if IsShapeError(err) {
		return "shape"
	}
	return "transport"
}
