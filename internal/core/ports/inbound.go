package ports

import (
	"context"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

// ConversationService is the inbound contract for chat turns.
type ConversationService interface {
	StartConversation(ctx context.Context, chatbotID string) (*domain.ConversationState, error)
	RestoreConversation(ctx context.Context, conversationID string) (*domain.ConversationState, error)
	SendMessage(ctx context.Context, conversationID, message string) (*domain.TurnResult, error)
	StreamMessage(ctx context.Context, conversationID, message string) (ReplyStream, error)
}

// ReplyStream delivers reply chunks as they are generated. Chunks is closed
// when generation ends or the context is cancelled; Wait then blocks until
// the turn, partial or not, has been persisted.
type ReplyStream interface {
	Chunks() <-chan string
	Wait() (*domain.TurnResult, error)
}
