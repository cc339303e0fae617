package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

type knowledgeMetadata struct {
	TriggerPhrases     flexStrings `json:"trigger_phrases"`
	QuestionTypes      flexStrings `json:"question_types"`
	SemanticTags       flexStrings `json:"semantic_tags"`
	ContextType        flexString  `json:"context_type"`
	SalesPhase         flexStrings `json:"sales_phase"`
	EmotionalResonance flexString  `json:"emotional_resonance"`
	TemporalRelevance  flexString  `json:"temporal_relevance"`
	ImportanceWeight   flexFloat   `json:"importance_weight"`
	ConfidenceScore    flexFloat   `json:"confidence_score"`
	ActionRequired     flexBool    `json:"action_required"`
	ObjectionPattern   flexBool    `json:"objection_pattern"`
	AntiTriggers       flexStrings `json:"anti_triggers"`
}

// KnowledgeRepository reads the curated knowledge corpus. Records are written
// by the curation service; this side never mutates them.
type KnowledgeRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewKnowledgeRepository(db *sql.DB, logger zerolog.Logger) *KnowledgeRepository {
	return &KnowledgeRepository{db: db, logger: logger.With().Str("component", "knowledge_repository").Logger()}
}

const knowledgeColumns = `id, chatbot_id, content, metadata, embedding, created_at`

func (r *KnowledgeRepository) ListKnowledge(ctx context.Context, chatbotID string) ([]domain.KnowledgeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+knowledgeColumns+`
FROM knowledge_records
WHERE chatbot_id = $1
ORDER BY id ASC
`, chatbotID)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	defer rows.Close()

	out := make([]domain.KnowledgeRecord, 0)
	for rows.Next() {
		record, err := r.scanKnowledge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge: %w", err)
	}
	return out, nil
}

func (r *KnowledgeRepository) GetKnowledge(ctx context.Context, chatbotID, id string) (*domain.KnowledgeRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+knowledgeColumns+`
FROM knowledge_records
WHERE chatbot_id = $1 AND id = $2
`, chatbotID, id)

	record, err := r.scanKnowledge(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get knowledge", fmt.Errorf("%s/%s", chatbotID, id))
		}
		return nil, fmt.Errorf("scan knowledge: %w", err)
	}
	return &record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *KnowledgeRepository) scanKnowledge(row rowScanner) (domain.KnowledgeRecord, error) {
	var (
		record    domain.KnowledgeRecord
		raw       []byte
		embedding nullableVector
		createdAt sql.NullTime
	)
	if err := row.Scan(&record.ID, &record.ChatbotID, &record.Content, &raw, &embedding, &createdAt); err != nil {
		return domain.KnowledgeRecord{}, err
	}

	var meta knowledgeMetadata
	if !decodeMetadata(raw, &meta) {
		r.logger.Warn().
			Str("chatbot_id", record.ChatbotID).
			Str("record_id", record.ID).
			Msg("knowledge_metadata_unreadable")
		meta = knowledgeMetadata{}
	}
	applyKnowledgeMetadata(&record, meta)
	record.Embedding = embedding.vec
	if createdAt.Valid {
		record.CreatedAt = createdAt.Time.UTC()
	}
	return record, nil
}

// applyKnowledgeMetadata maps stored metadata onto the record, substituting
// neutral defaults for missing or malformed values.
func applyKnowledgeMetadata(record *domain.KnowledgeRecord, meta knowledgeMetadata) {
	record.TriggerPhrases = domain.NormalizeStrings(meta.TriggerPhrases)
	record.QuestionTypes = domain.NormalizeStrings(meta.QuestionTypes)
	record.SemanticTags = domain.NormalizeStrings(meta.SemanticTags)
	record.AntiTriggers = domain.NormalizeStrings(meta.AntiTriggers)
	record.ContextType = domain.ContextType(strings.ToLower(string(meta.ContextType)))
	record.TemporalRelevance = domain.TemporalRelevance(strings.ToLower(string(meta.TemporalRelevance)))
	if emotion, ok := domain.ParseEmotion(string(meta.EmotionalResonance)); ok {
		record.EmotionalResonance = emotion
	}
	record.ImportanceWeight = domain.UnitOrDefault(meta.ImportanceWeight.value, domain.DefaultUnitScore)
	record.ConfidenceScore = domain.UnitOrDefault(meta.ConfidenceScore.value, domain.DefaultUnitScore)
	record.ActionRequired = bool(meta.ActionRequired)
	record.ObjectionPattern = bool(meta.ObjectionPattern)

	phases := make([]domain.SalesPhase, 0, len(meta.SalesPhase))
	for _, raw := range meta.SalesPhase {
		if phase, ok := domain.ParseSalesPhase(raw); ok {
			phases = append(phases, phase)
		}
	}
	record.SalesPhases = phases
}
