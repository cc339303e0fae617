package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var knowledgeRowColumns = []string{"id", "chatbot_id", "content", "metadata", "embedding", "created_at"}

func TestKnowledgeRepositoryListDecodesMetadata(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeRepository(db, zerolog.Nop())
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(knowledgeRowColumns).
		AddRow("pricing", "bot-1", "12x sem juros", []byte(`{
			"trigger_phrases": ["quanto fica a parcela", " "],
			"question_types": "parcela",
			"semantic_tags": ["pagamento"],
			"context_type": "Pricing",
			"sales_phase": ["negotiation", "post-sale", "nonsense"],
			"emotional_resonance": "urgency",
			"temporal_relevance": "persistent",
			"importance_weight": 0.9,
			"confidence_score": "0.8",
			"action_required": "true",
			"objection_pattern": false
		}`), "[0.1,0.2,0.3]", created)

	mock.ExpectQuery("FROM knowledge_records").
		WithArgs("bot-1").
		WillReturnRows(rows)

	records, err := repo.ListKnowledge(context.Background(), "bot-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, []string{"quanto fica a parcela"}, got.TriggerPhrases)
	assert.Equal(t, []string{"parcela"}, got.QuestionTypes)
	assert.Equal(t, domain.ContextPricing, got.ContextType)
	assert.Equal(t, []domain.SalesPhase{domain.PhaseNegotiation, domain.PhasePostSale}, got.SalesPhases)
	assert.Equal(t, domain.EmotionUrgency, got.EmotionalResonance)
	assert.Equal(t, domain.TemporalPersistent, got.TemporalRelevance)
	assert.InDelta(t, 0.9, got.ImportanceWeight, 1e-9)
	assert.InDelta(t, 0.8, got.ConfidenceScore, 1e-9)
	assert.True(t, got.ActionRequired)
	assert.False(t, got.ObjectionPattern)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
	assert.Equal(t, created, got.CreatedAt)
}

func TestKnowledgeRepositoryToleratesCorruptMetadata(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeRepository(db, zerolog.Nop())

	rows := sqlmock.NewRows(knowledgeRowColumns).
		AddRow("broken", "bot-1", "text", []byte(`"not an object"`), nil, nil).
		AddRow("partial", "bot-1", "text", []byte(`{"importance_weight": 7, "confidence_score": null, "trigger_phrases": 42}`), nil, nil)

	mock.ExpectQuery("FROM knowledge_records").
		WithArgs("bot-1").
		WillReturnRows(rows)

	records, err := repo.ListKnowledge(context.Background(), "bot-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	broken := records[0]
	assert.Equal(t, domain.DefaultUnitScore, broken.ImportanceWeight)
	assert.Equal(t, domain.DefaultUnitScore, broken.ConfidenceScore)
	assert.NotNil(t, broken.TriggerPhrases)
	assert.Empty(t, broken.TriggerPhrases)
	assert.Empty(t, broken.SalesPhases)
	assert.Nil(t, broken.Embedding)

	partial := records[1]
	assert.Equal(t, 1.0, partial.ImportanceWeight)
	assert.Equal(t, domain.DefaultUnitScore, partial.ConfidenceScore)
	assert.Empty(t, partial.TriggerPhrases)
}

func TestKnowledgeRepositoryGetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewKnowledgeRepository(db, zerolog.Nop())

	mock.ExpectQuery("FROM knowledge_records").
		WithArgs("bot-1", domain.ConfigSentinelID).
		WillReturnRows(sqlmock.NewRows(knowledgeRowColumns))

	_, err := repo.GetKnowledge(context.Background(), "bot-1", domain.ConfigSentinelID)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrRecordNotFound))
}

func TestMethodologyRepositoryListIncludesSharedRecords(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMethodologyRepository(db, zerolog.Nop())

	rows := sqlmock.NewRows([]string{"id", "chatbot_id", "title", "summary", "content", "metadata", "embedding"}).
		AddRow("spin", "", "SPIN", "Ask situation questions", "long text", []byte(`{
			"methodology_type": "qualification_question",
			"sales_phases": ["qualification"],
			"priority": "2",
			"trigger_phrases": ["estou procurando"],
			"applicable_emotions": ["confusion", "bogus"]
		}`), nil)

	mock.ExpectQuery("FROM methodology_records").
		WithArgs("bot-1").
		WillReturnRows(rows)

	records, err := repo.ListMethodology(context.Background(), "bot-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, "", got.ChatbotID)
	assert.Equal(t, domain.MethodologyQualificationQuestion, got.MethodologyType)
	assert.Equal(t, 2, got.Priority)
	assert.Equal(t, []domain.SalesPhase{domain.PhaseQualification}, got.SalesPhases)
	assert.Equal(t, []domain.Emotion{domain.EmotionConfusion}, got.ApplicableEmotions)
}
