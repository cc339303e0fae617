package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/resilience"
)

// Bus publishes turn events and listens for corpus changes made by the
// curation service.
type Bus struct {
	conn          *nats.Conn
	turnSubject   string
	corpusSubject string
	executor      *resilience.Executor
	logger        zerolog.Logger
}

var _ ports.TurnEventPublisher = (*Bus)(nil)

type Options struct {
	TurnSubject          string
	CorpusSubject        string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func Connect(url string, options Options, logger zerolog.Logger) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("sales-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats_disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats_reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newBus(conn, options, logger), nil
}

func newBus(conn *nats.Conn, options Options, logger zerolog.Logger) *Bus {
	turnSubject := options.TurnSubject
	if turnSubject == "" {
		turnSubject = "salesbot.turn.completed"
	}
	corpusSubject := options.CorpusSubject
	if corpusSubject == "" {
		corpusSubject = "salesbot.corpus.changed"
	}
	return &Bus{
		conn:          conn,
		turnSubject:   turnSubject,
		corpusSubject: corpusSubject,
		executor:      options.ResilienceExecutor,
		logger:        logger,
	}
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishTurnCompleted(ctx context.Context, event domain.TurnEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode turn event: %w", err)
	}
	call := func(_ context.Context) error {
		if err := b.conn.Publish(b.turnSubject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeCorpusChanged calls handler with the chatbot id carried by each
// corpus change notification until ctx is done. Every instance receives every
// message, because each one owns a private corpus cache.
func (b *Bus) SubscribeCorpusChanged(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := b.conn.Subscribe(b.corpusSubject, func(msg *nats.Msg) {
		b.dispatchCorpusChanged(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (b *Bus) dispatchCorpusChanged(ctx context.Context, msg *nats.Msg, handler func(context.Context, string) error) {
	if ctx.Err() != nil {
		return
	}
	chatbotID := decodeCorpusChanged(msg.Data)
	if err := handler(ctx, chatbotID); err != nil {
		b.logger.Error().Err(err).Str("chatbot_id", chatbotID).Msg("corpus_change_handler_failed")
		return
	}
	b.logger.Debug().Str("chatbot_id", chatbotID).Msg("corpus_changed")
}

type corpusChanged struct {
	ChatbotID string `json:"chatbot_id"`
}

// decodeCorpusChanged accepts either {"chatbot_id": "..."} or the bare id.
// An empty result means every chatbot.
func decodeCorpusChanged(data []byte) string {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, "{") {
		var payload corpusChanged
		if err := json.Unmarshal([]byte(raw), &payload); err == nil {
			return strings.TrimSpace(payload.ChatbotID)
		}
	}
	return raw
}
