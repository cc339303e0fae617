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

type methodologyMetadata struct {
	MethodologyType    flexString  `json:"methodology_type"`
	SalesPhases        flexStrings `json:"sales_phases"`
	Priority           flexInt     `json:"priority"`
	TriggerPhrases     flexStrings `json:"trigger_phrases"`
	ApplicableEmotions flexStrings `json:"applicable_emotions"`
}

// MethodologyRepository reads sales technique records. Rows without a
// chatbot id are shared by every chatbot.
type MethodologyRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMethodologyRepository(db *sql.DB, logger zerolog.Logger) *MethodologyRepository {
	return &MethodologyRepository{db: db, logger: logger.With().Str("component", "methodology_repository").Logger()}
}

const methodologyColumns = `id, COALESCE(chatbot_id, ''), title, summary, content, metadata, embedding`

func (r *MethodologyRepository) ListMethodology(ctx context.Context, chatbotID string) ([]domain.MethodologyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+methodologyColumns+`
FROM methodology_records
WHERE chatbot_id = $1 OR chatbot_id IS NULL
ORDER BY id ASC
`, chatbotID)
	if err != nil {
		return nil, fmt.Errorf("list methodology: %w", err)
	}
	defer rows.Close()

	out := make([]domain.MethodologyRecord, 0)
	for rows.Next() {
		record, err := r.scanMethodology(rows)
		if err != nil {
			return nil, fmt.Errorf("scan methodology: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate methodology: %w", err)
	}
	return out, nil
}

func (r *MethodologyRepository) GetMethodology(ctx context.Context, id string) (*domain.MethodologyRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+methodologyColumns+`
FROM methodology_records
WHERE id = $1
`, id)

	record, err := r.scanMethodology(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get methodology", fmt.Errorf("%s", id))
		}
		return nil, fmt.Errorf("scan methodology: %w", err)
	}
	return &record, nil
}

func (r *MethodologyRepository) scanMethodology(row rowScanner) (domain.MethodologyRecord, error) {
	var (
		record    domain.MethodologyRecord
		raw       []byte
		embedding nullableVector
	)
	if err := row.Scan(&record.ID, &record.ChatbotID, &record.Title, &record.Summary, &record.Content, &raw, &embedding); err != nil {
		return domain.MethodologyRecord{}, err
	}

	var meta methodologyMetadata
	if !decodeMetadata(raw, &meta) {
		r.logger.Warn().Str("record_id", record.ID).Msg("methodology_metadata_unreadable")
		meta = methodologyMetadata{}
	}

	record.MethodologyType = domain.MethodologyType(strings.ToLower(string(meta.MethodologyType)))
	record.TriggerPhrases = domain.NormalizeStrings(meta.TriggerPhrases)
	if meta.Priority.value != nil {
		record.Priority = *meta.Priority.value
	}
	record.SalesPhases = make([]domain.SalesPhase, 0, len(meta.SalesPhases))
	for _, raw := range meta.SalesPhases {
		if phase, ok := domain.ParseSalesPhase(raw); ok {
			record.SalesPhases = append(record.SalesPhases, phase)
		}
	}
	record.ApplicableEmotions = make([]domain.Emotion, 0, len(meta.ApplicableEmotions))
	for _, raw := range meta.ApplicableEmotions {
		if emotion, ok := domain.ParseEmotion(raw); ok {
			record.ApplicableEmotions = append(record.ApplicableEmotions, emotion)
		}
	}
	record.Embedding = embedding.vec
	return record, nil
}
