package cache

import (
	"context"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

// CorpusCache keeps each chatbot's knowledge and methodology lists in memory
// for ttl. Concurrent misses for the same chatbot share one load.
type CorpusCache struct {
	knowledge   ports.KnowledgeCorpus
	methodology ports.MethodologyCorpus
	items       *gocache.Cache
	loads       singleflight.Group
}

var (
	_ ports.KnowledgeCorpus   = (*CorpusCache)(nil)
	_ ports.MethodologyCorpus = (*CorpusCache)(nil)
)

func NewCorpusCache(knowledge ports.KnowledgeCorpus, methodology ports.MethodologyCorpus, ttl time.Duration) *CorpusCache {
	return &CorpusCache{
		knowledge:   knowledge,
		methodology: methodology,
		items:       gocache.New(ttl, 2*ttl),
	}
}

func knowledgeKey(chatbotID string) string   { return "knowledge:" + chatbotID }
func methodologyKey(chatbotID string) string { return "methodology:" + chatbotID }

func (c *CorpusCache) ListKnowledge(ctx context.Context, chatbotID string) ([]domain.KnowledgeRecord, error) {
	key := knowledgeKey(chatbotID)
	if cached, ok := c.items.Get(key); ok {
		return slices.Clone(cached.([]domain.KnowledgeRecord)), nil
	}
	v, err, _ := c.loads.Do(key, func() (any, error) {
		records, err := c.knowledge.ListKnowledge(ctx, chatbotID)
		if err != nil {
			return nil, err
		}
		c.items.SetDefault(key, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]domain.KnowledgeRecord)), nil
}

func (c *CorpusCache) GetKnowledge(ctx context.Context, chatbotID, id string) (*domain.KnowledgeRecord, error) {
	if cached, ok := c.items.Get(knowledgeKey(chatbotID)); ok {
		for _, record := range cached.([]domain.KnowledgeRecord) {
			if record.ID == id {
				return &record, nil
			}
		}
	}
	return c.knowledge.GetKnowledge(ctx, chatbotID, id)
}

func (c *CorpusCache) ListMethodology(ctx context.Context, chatbotID string) ([]domain.MethodologyRecord, error) {
	key := methodologyKey(chatbotID)
	if cached, ok := c.items.Get(key); ok {
		return slices.Clone(cached.([]domain.MethodologyRecord)), nil
	}
	v, err, _ := c.loads.Do(key, func() (any, error) {
		records, err := c.methodology.ListMethodology(ctx, chatbotID)
		if err != nil {
			return nil, err
		}
		c.items.SetDefault(key, records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]domain.MethodologyRecord)), nil
}

func (c *CorpusCache) GetMethodology(ctx context.Context, id string) (*domain.MethodologyRecord, error) {
	return c.methodology.GetMethodology(ctx, id)
}

// Invalidate drops the cached corpus of one chatbot. An empty id clears
// everything, which is also how shared methodology changes are applied.
func (c *CorpusCache) Invalidate(chatbotID string) {
	if chatbotID == "" {
		c.items.Flush()
		return
	}
	c.items.Delete(knowledgeKey(chatbotID))
	c.items.Delete(methodologyKey(chatbotID))
}
