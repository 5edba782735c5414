package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Success(t *testing.T) {
	exec := NewExecutor(discardLogger())

	got, err := Execute(context.Background(), exec, Operation[int, string]{
		Name:    "double",
		Perform: func(context.Context) (int, error) { return 21, nil },
		Verify: func(_ context.Context, n int) (string, error) {
			if n*2 != 42 {
				return "", errors.New("bad math")
			}
			return "42", nil
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestExecute_StepErrors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		op       Operation[int, int]
		wantStep ExecutionStep
	}{
		{
			name: "perform fails",
			op: Operation[int, int]{
				Perform: func(context.Context) (int, error) { return 0, cause },
				Verify:  func(_ context.Context, n int) (int, error) { return n, nil },
			},
			wantStep: StepPerform,
		},
		{
			name: "verify rejects",
			op: Operation[int, int]{
				Perform: func(context.Context) (int, error) { return 1, nil },
				Verify:  func(context.Context, int) (int, error) { return 0, cause },
			},
			wantStep: StepVerify,
		},
		{
			name: "perform panics",
			op: Operation[int, int]{
				Perform: func(context.Context) (int, error) { panic("kaboom") },
				Verify:  func(_ context.Context, n int) (int, error) { return n, nil },
			},
			wantStep: StepPerform,
		},
		{
			name: "verify panics",
			op: Operation[int, int]{
				Perform: func(context.Context) (int, error) { return 1, nil },
				Verify:  func(context.Context, int) (int, error) { panic("kaboom") },
			},
			wantStep: StepVerify,
		},
		{
			name:     "missing perform",
			op:       Operation[int, int]{Verify: func(_ context.Context, n int) (int, error) { return n, nil }},
			wantStep: StepPerform,
		},
		{
			name:     "missing verify",
			op:       Operation[int, int]{Perform: func(context.Context) (int, error) { return 1, nil }},
			wantStep: StepVerify,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Execute(context.Background(), NewExecutor(discardLogger()), tt.op)

			require.Error(t, err)
			assert.Zero(t, got)

			step, ok := GetExecutionStep(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantStep, step)
		})
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := &ExecutionError{Step: StepPerform, Message: "perform rejected", Cause: cause}

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "perform failed: perform rejected: timeout", err.Error())
	assert.Equal(t, "verify failed: empty", (&ExecutionError{Step: StepVerify, Message: "empty"}).Error())
}

func TestGetExecutionStep_PlainError(t *testing.T) {
	_, ok := GetExecutionStep(errors.New("plain"))

	assert.False(t, ok)
}

func TestNewExecutor_DefaultsLogger(t *testing.T) {
	exec := NewExecutor(nil)

	require.NotNil(t, exec)
	assert.NotNil(t, exec.logger)
}
