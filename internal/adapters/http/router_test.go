package httpadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/sales-assistant/internal/config"
	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/observability/metrics"
)

type fakeService struct {
	state     *domain.ConversationState
	result    *domain.TurnResult
	chunks    []string
	err       error
	streamErr error
	lastMsg   string
}

func (f *fakeService) StartConversation(_ context.Context, chatbotID string) (*domain.ConversationState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewConversationState("conv-1", chatbotID, time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)), nil
}

func (f *fakeService) RestoreConversation(_ context.Context, _ string) (*domain.ConversationState, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.state, nil
}

func (f *fakeService) SendMessage(_ context.Context, _ string, message string) (*domain.TurnResult, error) {
	f.lastMsg = message
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeService) StreamMessage(_ context.Context, _ string, message string) (ports.ReplyStream, error) {
	f.lastMsg = message
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan string, len(f.chunks))
	for _, chunk := range f.chunks {
		ch <- chunk
	}
	close(ch)
	return fakeStream{chunks: ch, result: f.result, err: f.streamErr}, nil
}

type fakeStream struct {
	chunks chan string
	result *domain.TurnResult
	err    error
}

func (s fakeStream) Chunks() <-chan string { return s.chunks }

func (s fakeStream) Wait() (*domain.TurnResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testConfig() config.Config {
	return config.Config{APIRateLimitRPS: 0, APIBackpressureMax: 0}
}

func newTestHandler(cfg config.Config, svc ports.ConversationService) http.Handler {
	return NewRouter(cfg, svc, metrics.NewHTTPServerMetrics(serviceName), zerolog.Nop()).Handler()
}

func sampleResult() *domain.TurnResult {
	state := domain.NewConversationState("conv-1", "bot-1", time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	state.CurrentPhase = domain.PhaseNegotiation
	return &domain.TurnResult{
		ConversationID: "conv-1",
		Reply:          "Parcelamos em 12x.",
		State:          state,
		Debug:          &domain.TurnDebug{Prompt: "system prompt"},
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestStartConversationReturns201(t *testing.T) {
	handler := newTestHandler(testConfig(), &fakeService{})

	res := postJSON(t, handler, "/v1/chatbots/bot-9/conversations", map[string]any{})
	require.Equal(t, http.StatusCreated, res.Code)

	var state domain.ConversationState
	require.NoError(t, json.NewDecoder(res.Body).Decode(&state))
	assert.Equal(t, "bot-9", state.ChatbotID)
	assert.Equal(t, domain.PhaseGreeting, state.CurrentPhase)
	assert.NotEmpty(t, res.Header().Get(requestIDHeader))
}

func TestGetConversationMapsNotFoundTo404(t *testing.T) {
	handler := newTestHandler(testConfig(), &fakeService{
		err: domain.WrapError(domain.ErrConversationNotFound, "get conversation", errors.New("missing")),
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/conversations/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestSendMessageReturnsTurnResult(t *testing.T) {
	svc := &fakeService{result: sampleResult()}
	handler := newTestHandler(testConfig(), svc)

	res := postJSON(t, handler, "/v1/conversations/conv-1/messages", messageRequest{Message: "quanto fica a parcela?"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "quanto fica a parcela?", svc.lastMsg)

	var body map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "Parcelamos em 12x.", body["reply"])
	assert.Equal(t, false, body["human_handoff_requested"])
	assert.Contains(t, body, "debug")
}

func TestSendMessageValidatesBody(t *testing.T) {
	handler := newTestHandler(testConfig(), &fakeService{result: sampleResult()})

	res := postJSON(t, handler, "/v1/conversations/conv-1/messages", messageRequest{Message: "  "})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/conv-1/messages", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrRecordNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrProviderFailure, "op", errors.New("x")), http.StatusBadGateway},
		{domain.WrapError(domain.ErrProviderFailure, "op", domain.WrapError(domain.ErrTemporary, "embed", errors.New("x"))), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapErrorToHTTPStatus(tt.err), tt.err.Error())
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	handler := newTestHandler(testConfig(), &fakeService{err: errors.New("pq: password authentication failed")})

	res := postJSON(t, handler, "/v1/conversations/conv-1/messages", messageRequest{Message: "oi"})
	require.Equal(t, http.StatusInternalServerError, res.Code)
	assert.NotContains(t, res.Body.String(), "password")
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestStreamMessageWritesChunksThenDone(t *testing.T) {
	handler := newTestHandler(testConfig(), &fakeService{chunks: []string{"Parcelamos ", "em 12x."}, result: sampleResult()})

	res := postJSON(t, handler, "/v1/conversations/conv-1/messages/stream", messageRequest{Message: "parcela?"})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "text/event-stream", res.Header().Get("Content-Type"))

	events := readEvents(t, res.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "chunk", events[0].name)
	assert.JSONEq(t, `{"text":"Parcelamos "}`, events[0].data)
	assert.Equal(t, "done", events[2].name)

	var done map[string]any
	require.NoError(t, json.Unmarshal([]byte(events[2].data), &done))
	assert.Equal(t, "Parcelamos em 12x.", done["reply"])
}

func TestStreamMessageReportsFailureAsErrorEvent(t *testing.T) {
	handler := newTestHandler(testConfig(), &fakeService{
		chunks:    []string{"Parcelamos "},
		streamErr: domain.WrapError(domain.ErrProviderFailure, "stream reply", errors.New("reset")),
	})

	res := postJSON(t, handler, "/v1/conversations/conv-1/messages/stream", messageRequest{Message: "parcela?"})
	events := readEvents(t, res.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].name)
	assert.Contains(t, events[1].data, `"status":502`)
}

func TestStreamMessageOpenFailureIsPlainJSON(t *testing.T) {
	handler := newTestHandler(testConfig(), &fakeService{
		err: domain.WrapError(domain.ErrProviderFailure, "stream reply", errors.New("unauthorized")),
	})

	res := postJSON(t, handler, "/v1/conversations/conv-1/messages/stream", messageRequest{Message: "parcela?"})
	assert.Equal(t, http.StatusBadGateway, res.Code)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
}

func TestHealthzAndMetrics(t *testing.T) {
	handler := newTestHandler(testConfig(), &fakeService{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, res.Code)

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "salesbot_http_requests_total")
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	handler := recoverMiddleware(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("corrupt state")
	}))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}
