package domain

import (
	"slices"
	"time"
)

type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationState is the per-session state mutated once per inbound message.
type ConversationState struct {
	ID               string        `json:"id"`
	ChatbotID        string        `json:"chatbot_id"`
	CurrentPhase     SalesPhase    `json:"current_phase"`
	DetectedEmotion  Emotion       `json:"detected_emotion"`
	MessageHistory   []ChatMessage `json:"message_history"`
	ReachedPhases    []SalesPhase  `json:"reached_phases"`
	ObjectionsRaised []string      `json:"objections_raised"`
	MessageCount     int           `json:"message_count"`
	TurnCount        int           `json:"turn_count"`
	HandoffRequested bool          `json:"handoff_requested"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func NewConversationState(id, chatbotID string, now time.Time) *ConversationState {
	return &ConversationState{
		ID:               id,
		ChatbotID:        chatbotID,
		CurrentPhase:     PhaseGreeting,
		DetectedEmotion:  EmotionNeutral,
		MessageHistory:   []ChatMessage{},
		ReachedPhases:    []SalesPhase{PhaseGreeting},
		ObjectionsRaised: []string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Clone returns a copy that shares no slices with s.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.MessageHistory = slices.Clone(s.MessageHistory)
	out.ReachedPhases = slices.Clone(s.ReachedPhases)
	out.ObjectionsRaised = slices.Clone(s.ObjectionsRaised)
	return &out
}

// ConversationUpdate is a partial update; nil fields are left untouched.
type ConversationUpdate struct {
	CurrentPhase     *SalesPhase
	DetectedEmotion  *Emotion
	ReachedPhases    []SalesPhase
	ObjectionsRaised []string
	MessageCount     *int
	TurnCount        *int
	HandoffRequested *bool
	UpdatedAt        time.Time
}

func (u ConversationUpdate) Empty() bool {
	return u.CurrentPhase == nil &&
		u.DetectedEmotion == nil &&
		u.ReachedPhases == nil &&
		u.ObjectionsRaised == nil &&
		u.MessageCount == nil &&
		u.TurnCount == nil &&
		u.HandoffRequested == nil
}

func (s *ConversationState) Apply(u ConversationUpdate) {
	if u.CurrentPhase != nil {
		s.CurrentPhase = *u.CurrentPhase
	}
	if u.DetectedEmotion != nil {
		s.DetectedEmotion = *u.DetectedEmotion
	}
	if u.ReachedPhases != nil {
		s.ReachedPhases = slices.Clone(u.ReachedPhases)
	}
	if u.ObjectionsRaised != nil {
		s.ObjectionsRaised = slices.Clone(u.ObjectionsRaised)
	}
	if u.MessageCount != nil {
		s.MessageCount = *u.MessageCount
	}
	if u.TurnCount != nil {
		s.TurnCount = *u.TurnCount
	}
	if u.HandoffRequested != nil {
		s.HandoffRequested = *u.HandoffRequested
	}
	if !u.UpdatedAt.IsZero() {
		s.UpdatedAt = u.UpdatedAt
	}
}

// TurnRecord is the persisted trace of one processed message.
type TurnRecord struct {
	ID               string     `json:"id"`
	ConversationID   string     `json:"conversation_id"`
	Turn             int        `json:"turn"`
	UserMessage      string     `json:"user_message"`
	Reply            string     `json:"reply"`
	Phase            SalesPhase `json:"phase"`
	Emotion          Emotion    `json:"emotion"`
	HandoffRequested bool       `json:"handoff_requested"`
	Partial          bool       `json:"partial"`
	Debug            *TurnDebug `json:"debug,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}
