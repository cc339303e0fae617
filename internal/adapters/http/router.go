package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/config"
	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/observability/metrics"
)

const (
	serviceName     = "salesbot-api"
	maxMessageBytes = 64 << 10
)

type Router struct {
	cfg     config.Config
	service ports.ConversationService
	metrics *metrics.HTTPServerMetrics
	logger  zerolog.Logger
}

// NewRouter builds the chat API. httpMetrics may be nil.
func NewRouter(
	cfg config.Config,
	service ports.ConversationService,
	httpMetrics *metrics.HTTPServerMetrics,
	logger zerolog.Logger,
) *Router {
	return &Router{
		cfg:     cfg,
		service: service,
		metrics: httpMetrics,
		logger:  logger,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(rt.logger))
	r.Use(recoverMiddleware(rt.logger))

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware(rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst))
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIBackpressureMax, rt.cfg.APIBackpressureWait)
		})

		r.Post("/chatbots/{chatbotID}/conversations", rt.startConversation)
		r.Route("/conversations/{conversationID}", func(r chi.Router) {
			r.Get("/", rt.getConversation)
			r.Post("/messages", rt.sendMessage)
			r.Post("/messages/stream", rt.streamMessage)
		})
	})

	if rt.metrics == nil {
		return r
	}
	return rt.metrics.Middleware(serviceName, r)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) startConversation(w http.ResponseWriter, r *http.Request) {
	state, err := rt.service.StartConversation(r.Context(), chi.URLParam(r, "chatbotID"))
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, state)
}

func (rt *Router) getConversation(w http.ResponseWriter, r *http.Request) {
	state, err := rt.service.RestoreConversation(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type messageRequest struct {
	Message string `json:"message"`
}

func decodeMessage(w http.ResponseWriter, r *http.Request) (string, error) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", domain.WrapError(domain.ErrInvalidInput, "decode message", errors.New("message body too large"))
		}
		return "", domain.WrapError(domain.ErrInvalidInput, "decode message", errors.New("invalid json"))
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "decode message", errors.New("message is required"))
	}
	return req.Message, nil
}

func (rt *Router) sendMessage(w http.ResponseWriter, r *http.Request) {
	message, err := decodeMessage(w, r)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	result, err := rt.service.SendMessage(r.Context(), chi.URLParam(r, "conversationID"), message)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) streamMessage(w http.ResponseWriter, r *http.Request) {
	message, err := decodeMessage(w, r)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	stream, err := rt.service.StreamMessage(r.Context(), chi.URLParam(r, "conversationID"), message)
	if err != nil {
		rt.writeServiceError(w, r, err)
		return
	}

	controller := http.NewResponseController(w)
	if rt.cfg.APIStreamWriteTimeout > 0 {
		_ = controller.SetWriteDeadline(time.Now().Add(rt.cfg.APIStreamWriteTimeout))
	}
	sse := newSSEWriter(w, controller)

	for chunk := range stream.Chunks() {
		sse.send("chunk", map[string]string{"text": chunk})
	}

	result, err := stream.Wait()
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		rt.logStreamError(r, status, err)
		sse.send("error", errorBody{Error: publicErrorMessage(status, err), Status: status})
		return
	}
	sse.send("done", result)
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
}

func (rt *Router) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error().
			Err(err).
			Str("request_id", requestIDFromContext(r.Context())).
			Int("status", status).
			Msg("request_failed")
	}
	writeError(w, status, publicErrorMessage(status, err))
}

func (rt *Router) logStreamError(r *http.Request, status int, err error) {
	rt.logger.Error().
		Err(err).
		Str("request_id", requestIDFromContext(r.Context())).
		Int("status", status).
		Msg("stream_failed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
