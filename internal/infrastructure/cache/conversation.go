package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

// ConversationCache keeps recently active conversations in memory. Every
// write goes to the backing store first; the cached copy is only updated
// after the store accepted the write, and dropped when it did not.
type ConversationCache struct {
	store ports.ConversationStore
	items *gocache.Cache
}

var _ ports.ConversationStore = (*ConversationCache)(nil)

func NewConversationCache(store ports.ConversationStore, ttl time.Duration) *ConversationCache {
	return &ConversationCache{
		store: store,
		items: gocache.New(ttl, 2*ttl),
	}
}

func (c *ConversationCache) Create(ctx context.Context, state *domain.ConversationState) error {
	if err := c.store.Create(ctx, state); err != nil {
		return err
	}
	c.items.SetDefault(state.ID, state.Clone())
	return nil
}

func (c *ConversationCache) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	if cached, ok := c.items.Get(conversationID); ok {
		return cached.(*domain.ConversationState).Clone(), nil
	}
	state, err := c.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	c.items.SetDefault(conversationID, state.Clone())
	return state, nil
}

func (c *ConversationCache) Update(ctx context.Context, conversationID string, update domain.ConversationUpdate) error {
	if err := c.store.Update(ctx, conversationID, update); err != nil {
		c.Evict(conversationID)
		return err
	}
	if cached, ok := c.cached(conversationID); ok {
		cached.Apply(update)
		c.items.SetDefault(conversationID, cached)
	}
	return nil
}

func (c *ConversationCache) AppendMessage(ctx context.Context, conversationID string, message domain.ChatMessage) error {
	if err := c.store.AppendMessage(ctx, conversationID, message); err != nil {
		c.Evict(conversationID)
		return err
	}
	if cached, ok := c.cached(conversationID); ok {
		cached.MessageHistory = append(cached.MessageHistory, message)
		c.items.SetDefault(conversationID, cached)
	}
	return nil
}

func (c *ConversationCache) AppendTurn(ctx context.Context, turn domain.TurnRecord) error {
	return c.store.AppendTurn(ctx, turn)
}

func (c *ConversationCache) Evict(conversationID string) {
	c.items.Delete(conversationID)
}

// cached returns a private copy so concurrent readers never observe a
// half-applied write.
func (c *ConversationCache) cached(conversationID string) (*domain.ConversationState, bool) {
	v, ok := c.items.Get(conversationID)
	if !ok {
		return nil, false
	}
	return v.(*domain.ConversationState).Clone(), true
}
