package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/resilience"
)

func TestCompleteSendsSystemPromptAndHistory(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":" Oi! "},"done":true}`))
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic", Options{})
	reply, err := client.Complete(context.Background(), domain.CompletionRequest{
		SystemPrompt: "system text",
		Messages:     []domain.ChatMessage{{Role: domain.RoleUser, Content: "oi"}},
		Temperature:  0.4,
		MaxTokens:    200,
	})
	require.NoError(t, err)
	assert.Equal(t, "Oi!", reply)

	assert.Equal(t, "llama3", captured.Model)
	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "system text"}, captured.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "oi"}, captured.Messages[1])
	assert.Equal(t, 0.4, captured.Options.Temperature)
	assert.Equal(t, 200, captured.Options.NumPredict)
}

func TestStreamYieldsChunksUntilDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"Olá"},"done":false}`+"\n")
		_, _ = io.WriteString(w, "\n")
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":", tudo bem?"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":""},"done":true}`+"\n")
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic", Options{})
	stream, err := client.Stream(context.Background(), domain.CompletionRequest{SystemPrompt: "s"})
	require.NoError(t, err)
	defer stream.Close()

	var chunks []string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	assert.Equal(t, []string{"Olá", ", tudo bem?"}, chunks)
}

func TestStreamReportsTruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"Olá"},"done":false}`+"\n")
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic", Options{})
	stream, err := client.Stream(context.Background(), domain.CompletionRequest{})
	require.NoError(t, err)
	defer stream.Close()

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Olá", chunk)

	_, err = stream.Recv()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestEmbedQueryBlankTextReturnsZeroVector(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := New(server.URL, "llama3", "nomic", Options{Dimensions: 384})
	vector, err := client.EmbedQuery(context.Background(), "  ")
	require.NoError(t, err)
	assert.Len(t, vector, 384)
	assert.Zero(t, calls.Load())
}

func TestEmbedQueryChecksDimensions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, []string{"quanto custa"}, payload.Input)
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	vector, err := New(server.URL, "llama3", "nomic", Options{}).EmbedQuery(context.Background(), "quanto custa")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vector)

	_, err = New(server.URL, "llama3", "nomic", Options{Dimensions: 3}).EmbedQuery(context.Background(), "quanto custa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 2 dimensions")
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "llama3", "nomic", Options{}).EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.True(t, domain.IsKind(err, domain.ErrTemporary))
}

func TestCompleteRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     1,
	}, zerolog.Nop())
	client := New(server.URL, "llama3", "nomic", Options{ResilienceExecutor: executor})

	reply, err := client.Complete(context.Background(), domain.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCompleteDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	executor := resilience.NewExecutor(resilience.DefaultConfig(), zerolog.Nop())
	client := New(server.URL, "llama3", "nomic", Options{ResilienceExecutor: executor})

	_, err := client.Complete(context.Background(), domain.CompletionRequest{})
	require.Error(t, err)
	assert.False(t, domain.IsKind(err, domain.ErrTemporary))

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}
