package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/v1/conversations/{conversation_id}/messages", normalizePath("/v1/conversations/abc-123/messages"))
	assert.Equal(t, "/v1/chatbots/{chatbot_id}/conversations", normalizePath("/v1/chatbots/bot-1/conversations"))
	assert.Equal(t, "/healthz", normalizePath("/healthz"))
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewHTTPServerMetrics("salesbot-api")
	handler := m.Middleware("salesbot-api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/conversations/c1", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/conversations/c2", nil))

	count := testutil.ToFloat64(m.requestTotal.WithLabelValues("salesbot-api", http.MethodGet, "/v1/conversations/{conversation_id}", "404"))
	assert.Equal(t, 2.0, count)
}

func TestTurnMetricsObserve(t *testing.T) {
	m := NewHTTPServerMetrics("salesbot-api")
	turns := NewTurnMetrics(m.Registry(), "salesbot-api")

	turns.ObserveTurn(domain.TurnObservation{
		Mode:          "blocking",
		Outcome:       "completed",
		PreviousPhase: domain.PhaseGreeting,
		Phase:         domain.PhaseNegotiation,
		Emotion:       domain.EmotionConcern,
		Knowledge:     2,
		Timings:       domain.StageTimings{Knowledge: 3 * time.Millisecond},
	})
	turns.ObserveTurn(domain.TurnObservation{Mode: "stream", Outcome: "handoff", Handoff: true, Phase: domain.PhaseNegotiation, PreviousPhase: domain.PhaseNegotiation})

	assert.Equal(t, 1.0, testutil.ToFloat64(turns.turnsTotal.WithLabelValues("salesbot-api", "blocking", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(turns.handoffsTotal.WithLabelValues("salesbot-api")))
	assert.Equal(t, 1.0, testutil.ToFloat64(turns.phaseTransitions.WithLabelValues("salesbot-api", "greeting", "negotiation")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "salesbot_turn_stage_duration_seconds"))
}
