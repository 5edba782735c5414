package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Verified Operation Pattern: Perform → Verify
//
// Untrusted results (a remote response, a decoded blob) are never used until
// an independent verification step accepts them. The step that failed is
// carried in the returned error so callers can log or branch on it.

// ExecutionStep represents a step in an operation.
type ExecutionStep string

const (
	StepPerform ExecutionStep = "perform"
	StepVerify  ExecutionStep = "verify"
)

// ExecutionError wraps errors with the step where they occurred.
type ExecutionError struct {
	Step    ExecutionStep
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %s: %v", e.Step, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s failed: %s", e.Step, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Executor runs operations step by step with logging at each step.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates a new executor with the given logger.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Operation defines the functions for each step.
type Operation[P, V any] struct {
	// Name identifies this operation for logging.
	Name string

	// Perform executes the main operation, e.g. calling an external service.
	Perform func(ctx context.Context) (P, error)

	// Verify accepts or rejects what Perform returned.
	// A nil Verify rejects everything; an operation must say what it trusts.
	Verify func(ctx context.Context, performed P) (V, error)
}

// Execute runs op and returns the verified value.
// A panic inside a step is converted into an ExecutionError for that step.
func Execute[P, V any](ctx context.Context, exec *Executor, op Operation[P, V]) (V, error) {
	var zero V

	logger := exec.logger.With(slog.String("operation", op.Name))
	start := time.Now()

	performed, err := runStep(ctx, logger, StepPerform, func() (P, error) {
		if op.Perform == nil {
			var none P
			return none, errors.New("no perform step")
		}

		return op.Perform(ctx)
	})
	if err != nil {
		return zero, err
	}

	verified, err := runStep(ctx, logger, StepVerify, func() (V, error) {
		if op.Verify == nil {
			return zero, errors.New("no verify step")
		}

		return op.Verify(ctx, performed)
	})
	if err != nil {
		return zero, err
	}

	logger.DebugContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return verified, nil
}

// runStep runs fn, tagging any error or panic with step.
func runStep[T any](ctx context.Context, logger *slog.Logger, step ExecutionStep, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T

			result = zero
			err = &ExecutionError{Step: step, Message: "panic", Cause: fmt.Errorf("%v", r)}
			logger.ErrorContext(ctx, "step panicked", slog.String("step", string(step)), slog.Any("panic", r))
		}
	}()

	logger.DebugContext(ctx, "starting step", slog.String("step", string(step)))

	result, err = fn()
	if err != nil {
		logger.DebugContext(ctx, "step failed", slog.String("step", string(step)), slog.Any("error", err))

		return result, &ExecutionError{Step: step, Message: string(step) + " rejected", Cause: err}
	}

	return result, nil
}

// GetExecutionStep extracts the step from an execution error.
func GetExecutionStep(err error) (ExecutionStep, bool) {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Step, true
	}

	return "", false
}
