package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

// ConversationRepository persists conversation state, message history and
// turn records. It is the authoritative source for restoring a conversation.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, state *domain.ConversationState) error {
	reached, err := json.Marshal(nonNilPhases(state.ReachedPhases))
	if err != nil {
		return fmt.Errorf("marshal reached phases: %w", err)
	}
	objections, err := json.Marshal(nonNilStrings(state.ObjectionsRaised))
	if err != nil {
		return fmt.Errorf("marshal objections: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO conversations (
	id, chatbot_id, current_phase, detected_emotion, reached_phases, objections_raised,
	message_count, turn_count, handoff_requested, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		state.ID, state.ChatbotID, string(state.CurrentPhase), string(state.DetectedEmotion), reached, objections,
		state.MessageCount, state.TurnCount, state.HandoffRequested, state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Get(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, chatbot_id, current_phase, detected_emotion, reached_phases, objections_raised,
	message_count, turn_count, handoff_requested, created_at, updated_at
FROM conversations
WHERE id = $1
`, conversationID)

	var (
		state                     domain.ConversationState
		phase, emotion            string
		reachedRaw, objectionsRaw []byte
	)
	err := row.Scan(
		&state.ID, &state.ChatbotID, &phase, &emotion, &reachedRaw, &objectionsRaw,
		&state.MessageCount, &state.TurnCount, &state.HandoffRequested, &state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrConversationNotFound, "get conversation", fmt.Errorf("%s", conversationID))
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	state.CurrentPhase = domain.SalesPhase(phase)
	state.DetectedEmotion = domain.Emotion(emotion)
	if err := json.Unmarshal(reachedRaw, &state.ReachedPhases); err != nil {
		return nil, fmt.Errorf("unmarshal reached phases: %w", err)
	}
	if err := json.Unmarshal(objectionsRaw, &state.ObjectionsRaised); err != nil {
		return nil, fmt.Errorf("unmarshal objections: %w", err)
	}
	state.ReachedPhases = nonNilPhases(state.ReachedPhases)
	state.ObjectionsRaised = nonNilStrings(state.ObjectionsRaised)

	history, err := r.listMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	state.MessageHistory = history
	return &state, nil
}

func (r *ConversationRepository) listMessages(ctx context.Context, conversationID string) ([]domain.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content, created_at
FROM conversation_messages
WHERE conversation_id = $1
ORDER BY seq ASC
`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatMessage, 0)
	for rows.Next() {
		var (
			msg  domain.ChatMessage
			role string
		)
		if err := rows.Scan(&role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = domain.Role(role)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// Update writes only the fields set in update.
func (r *ConversationRepository) Update(ctx context.Context, conversationID string, update domain.ConversationUpdate) error {
	if update.Empty() && update.UpdatedAt.IsZero() {
		return nil
	}

	sets := make([]string, 0, 8)
	args := make([]any, 0, 9)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.CurrentPhase != nil {
		add("current_phase", string(*update.CurrentPhase))
	}
	if update.DetectedEmotion != nil {
		add("detected_emotion", string(*update.DetectedEmotion))
	}
	if update.ReachedPhases != nil {
		raw, err := json.Marshal(update.ReachedPhases)
		if err != nil {
			return fmt.Errorf("marshal reached phases: %w", err)
		}
		add("reached_phases", raw)
	}
	if update.ObjectionsRaised != nil {
		raw, err := json.Marshal(update.ObjectionsRaised)
		if err != nil {
			return fmt.Errorf("marshal objections: %w", err)
		}
		add("objections_raised", raw)
	}
	if update.MessageCount != nil {
		add("message_count", *update.MessageCount)
	}
	if update.TurnCount != nil {
		add("turn_count", *update.TurnCount)
	}
	if update.HandoffRequested != nil {
		add("handoff_requested", *update.HandoffRequested)
	}
	if !update.UpdatedAt.IsZero() {
		add("updated_at", update.UpdatedAt)
	}

	args = append(args, conversationID)
	query := fmt.Sprintf("UPDATE conversations SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update conversation rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrConversationNotFound, "update conversation", fmt.Errorf("%s", conversationID))
	}
	return nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID string, message domain.ChatMessage) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_messages (conversation_id, seq, role, content, created_at)
SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3, $4
FROM conversation_messages
WHERE conversation_id = $1
`, conversationID, string(message.Role), message.Content, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn domain.TurnRecord) error {
	var debug any
	if turn.Debug != nil {
		raw, err := json.Marshal(turn.Debug)
		if err != nil {
			return fmt.Errorf("marshal turn debug: %w", err)
		}
		debug = raw
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO conversation_turns (
	id, conversation_id, turn, user_message, reply, phase, emotion, handoff_requested, partial, debug, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		turn.ID, turn.ConversationID, turn.Turn, turn.UserMessage, turn.Reply, string(turn.Phase), string(turn.Emotion),
		turn.HandoffRequested, turn.Partial, debug, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func nonNilPhases(in []domain.SalesPhase) []domain.SalesPhase {
	if in == nil {
		return []domain.SalesPhase{}
	}
	return in
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
