package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

type countingCorpus struct {
	knowledgeCalls   atomic.Int32
	methodologyCalls atomic.Int32
	gate             chan struct{}
	err              error
}

func (c *countingCorpus) ListKnowledge(_ context.Context, chatbotID string) ([]domain.KnowledgeRecord, error) {
	c.knowledgeCalls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return nil, c.err
	}
	return []domain.KnowledgeRecord{{ID: chatbotID + "-k1", Content: "frete grátis"}}, nil
}

func (c *countingCorpus) GetKnowledge(_ context.Context, _ string, id string) (*domain.KnowledgeRecord, error) {
	return &domain.KnowledgeRecord{ID: id, Content: "from store"}, nil
}

func (c *countingCorpus) ListMethodology(context.Context, string) ([]domain.MethodologyRecord, error) {
	c.methodologyCalls.Add(1)
	return []domain.MethodologyRecord{{ID: "spin"}}, nil
}

func (c *countingCorpus) GetMethodology(_ context.Context, id string) (*domain.MethodologyRecord, error) {
	return &domain.MethodologyRecord{ID: id}, nil
}

func TestCorpusCacheServesRepeatedLists(t *testing.T) {
	backing := &countingCorpus{}
	c := NewCorpusCache(backing, backing, time.Minute)
	ctx := context.Background()

	for n := 0; n < 3; n++ {
		records, err := c.ListKnowledge(ctx, "bot-1")
		require.NoError(t, err)
		require.Len(t, records, 1)
		_, err = c.ListMethodology(ctx, "bot-1")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, backing.knowledgeCalls.Load())
	assert.EqualValues(t, 1, backing.methodologyCalls.Load())

	_, err := c.ListKnowledge(ctx, "bot-2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, backing.knowledgeCalls.Load())
}

func TestCorpusCacheReturnsIndependentSlices(t *testing.T) {
	backing := &countingCorpus{}
	c := NewCorpusCache(backing, backing, time.Minute)

	first, err := c.ListKnowledge(context.Background(), "bot-1")
	require.NoError(t, err)
	first[0] = domain.KnowledgeRecord{ID: "mutated"}

	second, err := c.ListKnowledge(context.Background(), "bot-1")
	require.NoError(t, err)
	assert.Equal(t, "bot-1-k1", second[0].ID)
}

func TestCorpusCacheInvalidate(t *testing.T) {
	backing := &countingCorpus{}
	c := NewCorpusCache(backing, backing, time.Minute)
	ctx := context.Background()

	_, _ = c.ListKnowledge(ctx, "bot-1")
	_, _ = c.ListKnowledge(ctx, "bot-2")
	c.Invalidate("bot-1")
	_, _ = c.ListKnowledge(ctx, "bot-1")
	_, _ = c.ListKnowledge(ctx, "bot-2")
	assert.EqualValues(t, 3, backing.knowledgeCalls.Load())

	c.Invalidate("")
	_, _ = c.ListKnowledge(ctx, "bot-2")
	assert.EqualValues(t, 4, backing.knowledgeCalls.Load())
}

func TestCorpusCacheDoesNotCacheErrors(t *testing.T) {
	backing := &countingCorpus{err: errors.New("db down")}
	c := NewCorpusCache(backing, backing, time.Minute)

	_, err := c.ListKnowledge(context.Background(), "bot-1")
	require.Error(t, err)

	backing.err = nil
	records, err := c.ListKnowledge(context.Background(), "bot-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCorpusCacheCollapsesConcurrentMisses(t *testing.T) {
	backing := &countingCorpus{gate: make(chan struct{})}
	c := NewCorpusCache(backing, backing, time.Minute)

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListKnowledge(context.Background(), "bot-1")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return backing.knowledgeCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(backing.gate)
	wg.Wait()
	assert.LessOrEqual(t, backing.knowledgeCalls.Load(), int32(2))
}

func TestCorpusCacheGetKnowledgeUsesCachedList(t *testing.T) {
	backing := &countingCorpus{}
	c := NewCorpusCache(backing, backing, time.Minute)
	ctx := context.Background()

	record, err := c.GetKnowledge(ctx, "bot-1", "bot-1-k1")
	require.NoError(t, err)
	assert.Equal(t, "from store", record.Content)

	_, err = c.ListKnowledge(ctx, "bot-1")
	require.NoError(t, err)
	record, err = c.GetKnowledge(ctx, "bot-1", "bot-1-k1")
	require.NoError(t, err)
	assert.Equal(t, "frete grátis", record.Content)
}
