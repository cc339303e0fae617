package ports

import (
	"context"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

// Embedder turns message text into a vector comparable with stored records.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CompletionProvider generates assistant replies.
type CompletionProvider interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
	Stream(ctx context.Context, req domain.CompletionRequest) (TokenStream, error)
}

// TokenStream yields generated text chunks. Recv returns io.EOF after the
// last chunk.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// KnowledgeCorpus is the read side of the curated knowledge collection.
type KnowledgeCorpus interface {
	ListKnowledge(ctx context.Context, chatbotID string) ([]domain.KnowledgeRecord, error)
	GetKnowledge(ctx context.Context, chatbotID, id string) (*domain.KnowledgeRecord, error)
}

// MethodologyCorpus returns chatbot specific and shared methodology records.
type MethodologyCorpus interface {
	ListMethodology(ctx context.Context, chatbotID string) ([]domain.MethodologyRecord, error)
	GetMethodology(ctx context.Context, id string) (*domain.MethodologyRecord, error)
}

// ConversationStore persists conversation state, messages and turn records.
type ConversationStore interface {
	Create(ctx context.Context, state *domain.ConversationState) error
	Get(ctx context.Context, conversationID string) (*domain.ConversationState, error)
	Update(ctx context.Context, conversationID string, update domain.ConversationUpdate) error
	AppendMessage(ctx context.Context, conversationID string, message domain.ChatMessage) error
	AppendTurn(ctx context.Context, turn domain.TurnRecord) error
}

// ConversationLocker guarantees a single writer per conversation id.
type ConversationLocker interface {
	Acquire(ctx context.Context, conversationID string) (release func(), err error)
}

// ChatbotConfigStore resolves the effective configuration of a chatbot.
type ChatbotConfigStore interface {
	Get(ctx context.Context, chatbotID string) (domain.ChatbotConfig, error)
}

// TurnEventPublisher announces persisted turns to other services.
type TurnEventPublisher interface {
	PublishTurnCompleted(ctx context.Context, event domain.TurnEvent) error
}

// TurnObserver records turn level metrics.
type TurnObserver interface {
	ObserveTurn(obs domain.TurnObservation)
}
