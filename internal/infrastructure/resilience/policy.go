package resilience

import (
	"strings"
	"time"
)

// OperationKind groups executor operations that share a retry budget. The
// kind is read from the last dot-separated segment of the operation name,
// so "ollama.embed" and "openai.embed" share OperationEmbed.
type OperationKind string

const (
	OperationEmbed      OperationKind = "embed"
	OperationCompletion OperationKind = "chat"
	OperationStreamOpen OperationKind = "chat_stream"
	OperationPublish    OperationKind = "publish"
)

func kindOf(operation string) OperationKind {
	if i := strings.LastIndexByte(operation, '.'); i >= 0 {
		operation = operation[i+1:]
	}
	return OperationKind(operation)
}

// RetryPolicy bounds the attempts of one operation kind. Zero fields fall
// back to the executor-wide retry settings.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// Config holds the executor-wide retry settings, per-kind overrides and the
// circuit breaker settings shared by every operation.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	// Operations overrides the retry budget per operation kind. Embedding
	// runs on every turn before retrieval and can afford a few quick retries;
	// a completion retry repeats a slow generation, so it gets fewer.
	Operations map[OperationKind]RetryPolicy

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		Operations: map[OperationKind]RetryPolicy{
			OperationEmbed:      {MaxAttempts: 3, InitialBackoff: 100 * time.Millisecond, MaxBackoff: 400 * time.Millisecond},
			OperationCompletion: {MaxAttempts: 2, InitialBackoff: 250 * time.Millisecond, MaxBackoff: time.Second},
			OperationStreamOpen: {MaxAttempts: 2, InitialBackoff: 250 * time.Millisecond, MaxBackoff: time.Second},
			OperationPublish:    {MaxAttempts: 2, InitialBackoff: 50 * time.Millisecond, MaxBackoff: 200 * time.Millisecond},
		},

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// retryFor resolves the retry policy of operation: the kind override with
// its zero fields taken from the executor-wide settings.
func (c Config) retryFor(operation string) RetryPolicy {
	base := RetryPolicy{
		MaxAttempts:    c.RetryMaxAttempts,
		InitialBackoff: c.RetryInitialBackoff,
		MaxBackoff:     c.RetryMaxBackoff,
		Multiplier:     c.RetryMultiplier,
	}
	override, ok := c.Operations[kindOf(operation)]
	if !ok {
		return base
	}
	if override.MaxAttempts > 0 {
		base.MaxAttempts = override.MaxAttempts
	}
	if override.InitialBackoff > 0 {
		base.InitialBackoff = override.InitialBackoff
	}
	if override.MaxBackoff > 0 {
		base.MaxBackoff = override.MaxBackoff
	}
	if override.Multiplier >= 1 {
		base.Multiplier = override.Multiplier
	}
	base.MaxBackoff = max(base.MaxBackoff, base.InitialBackoff)
	return base
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}
