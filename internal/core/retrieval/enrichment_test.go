package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

func TestEnrichAppendsTagNeighbours(t *testing.T) {
	selected := []domain.KnowledgeMatch{{
		Record:     domain.KnowledgeRecord{ID: "a", SemanticTags: []string{"Financing", "installments", "credit"}},
		FinalScore: 0.8,
	}}
	pool := []domain.KnowledgeRecord{
		selected[0].Record,
		{ID: "b", SemanticTags: []string{"financing", "CREDIT"}, ImportanceWeight: 0.8},
		{ID: "c", SemanticTags: []string{"financing"}, ImportanceWeight: 1},
		{ID: "d", SemanticTags: []string{"installments", "credit", "boleto"}, ImportanceWeight: 0.2},
		{ID: domain.ConfigSentinelID, SemanticTags: []string{"financing", "credit"}, ImportanceWeight: 1},
		{ID: "e", SemanticTags: []string{"credit", "credit"}, ImportanceWeight: 1},
	}

	out := Enrich(selected, pool, 2)

	require.Len(t, out, 3)
	assert.Equal(t, selected[0], out[0])
	assert.Equal(t, "b", out[1].Record.ID)
	assert.True(t, out[1].Enrichment)
	assert.InDelta(t, 0.3+0.4, out[1].FinalScore, 1e-9)
	assert.Equal(t, "d", out[2].Record.ID)
}

func TestEnrichIsSupersetWithBoundedAdditions(t *testing.T) {
	selected := []domain.KnowledgeMatch{
		{Record: domain.KnowledgeRecord{ID: "x", SemanticTags: []string{"t1", "t2"}}},
		{Record: domain.KnowledgeRecord{ID: "y", SemanticTags: []string{"t3"}}},
	}
	var pool []domain.KnowledgeRecord
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		pool = append(pool, domain.KnowledgeRecord{ID: id, SemanticTags: []string{"t1", "t3"}, ImportanceWeight: 0.5})
	}

	for _, limit := range []int{0, 1, 2, 10} {
		out := Enrich(selected, pool, limit)
		require.GreaterOrEqual(t, len(out), len(selected))
		assert.Equal(t, selected, out[:len(selected)])
		assert.LessOrEqual(t, len(out)-len(selected), limit)
		for _, m := range out[len(selected):] {
			assert.True(t, m.Enrichment)
		}
	}
}

func TestEnrichWithoutSelectionAddsNothing(t *testing.T) {
	pool := []domain.KnowledgeRecord{{ID: "a", SemanticTags: []string{"t1", "t2"}}}
	assert.Empty(t, Enrich(nil, pool, 2))
}
