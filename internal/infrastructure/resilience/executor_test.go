package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

func fastRetryConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), zerolog.Nop())

	attempts := 0
	err := exec.Execute(context.Background(), "ollama.chat", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return domain.WrapError(domain.ErrTemporary, "ollama.chat", errors.New("503"))
		}
		return nil
	}, TemporaryClassifier)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), zerolog.Nop())

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, TemporaryClassifier)

	require.ErrorIs(t, err, errPermanent)
	assert.Equal(t, 1, attempts)
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	exec := NewExecutor(fastRetryConfig(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Execute(ctx, "op", func(context.Context) error {
		called = true
		return nil
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}, zerolog.Nop())

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		require.ErrorIs(t, err, errTemp, "iteration %d", i)
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, domain.IsKind(err, domain.ErrTemporary))
}

func TestTemporaryClassifier(t *testing.T) {
	assert.Equal(t, ErrorClassification{}, TemporaryClassifier(context.Canceled))
	assert.True(t, TemporaryClassifier(context.DeadlineExceeded).Retryable)
	assert.True(t, TemporaryClassifier(domain.WrapError(domain.ErrTemporary, "x", errors.New("y"))).Retryable)

	invalid := TemporaryClassifier(domain.WrapError(domain.ErrInvalidInput, "x", errors.New("y")))
	assert.False(t, invalid.Retryable)
	assert.False(t, invalid.RecordFailure)
}

func TestExecuteUsesRetryBudgetOfOperationKind(t *testing.T) {
	cfg := fastRetryConfig()
	cfg.Operations = map[OperationKind]RetryPolicy{
		OperationCompletion: {MaxAttempts: 1},
		OperationEmbed:      {MaxAttempts: 5},
	}
	exec := NewExecutor(cfg, zerolog.Nop())

	count := func(operation string) int {
		attempts := 0
		_ = exec.Execute(context.Background(), operation, func(context.Context) error {
			attempts++
			return domain.WrapError(domain.ErrTemporary, operation, errors.New("503"))
		}, TemporaryClassifier)
		return attempts
	}

	assert.Equal(t, 1, count("openai.chat"))
	assert.Equal(t, 5, count("ollama.embed"))
	assert.Equal(t, 3, count("nats.publish"))
}

func TestRetryForFillsOverrideGaps(t *testing.T) {
	cfg := Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2,
		Operations: map[OperationKind]RetryPolicy{
			OperationCompletion: {MaxAttempts: 2, InitialBackoff: time.Second},
		},
	}

	chat := cfg.retryFor("ollama.chat")
	assert.Equal(t, 2, chat.MaxAttempts)
	assert.Equal(t, time.Second, chat.InitialBackoff)
	assert.Equal(t, time.Second, chat.MaxBackoff)
	assert.Equal(t, 2.0, chat.Multiplier)

	assert.Equal(t, RetryPolicy{MaxAttempts: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 400 * time.Millisecond, Multiplier: 2}, cfg.retryFor("op"))
	assert.Equal(t, OperationStreamOpen, kindOf("openai.chat_stream"))
}
