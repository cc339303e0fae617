package domain

import "time"

type CompletionRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	Temperature  float64
	MaxTokens    int
}

// StageTimings are wall-clock durations of the expensive turn stages.
type StageTimings struct {
	Embedding   time.Duration `json:"embedding_ns"`
	Knowledge   time.Duration `json:"knowledge_ns"`
	Enrichment  time.Duration `json:"enrichment_ns"`
	Methodology time.Duration `json:"methodology_ns"`
	Completion  time.Duration `json:"completion_ns"`
}

// TurnDebug is the glass-box trace of every decision taken for one turn.
type TurnDebug struct {
	Handoff     HandoffDecision       `json:"handoff"`
	Phase       *PhaseDecision        `json:"phase,omitempty"`
	Emotion     *EmotionDecision      `json:"emotion,omitempty"`
	Knowledge   []CandidateEvaluation `json:"knowledge,omitempty"`
	Selected    []KnowledgeMatch      `json:"selected,omitempty"`
	Enriched    []KnowledgeMatch      `json:"enriched,omitempty"`
	Methodology []CandidateEvaluation `json:"methodology,omitempty"`
	Techniques  []MethodologyMatch    `json:"techniques,omitempty"`
	Timings     StageTimings          `json:"timings"`
	Prompt      string                `json:"prompt,omitempty"`
}

// TurnResult is returned to the caller after a message is processed.
type TurnResult struct {
	ConversationID   string             `json:"conversation_id"`
	Reply            string             `json:"reply"`
	HandoffRequested bool               `json:"human_handoff_requested"`
	Partial          bool               `json:"partial"`
	State            *ConversationState `json:"state"`
	Debug            *TurnDebug         `json:"debug"`
}

// TurnEvent is published after a turn has been persisted.
type TurnEvent struct {
	ConversationID   string     `json:"conversation_id"`
	ChatbotID        string     `json:"chatbot_id"`
	Turn             int        `json:"turn"`
	Phase            SalesPhase `json:"phase"`
	Emotion          Emotion    `json:"emotion"`
	HandoffRequested bool       `json:"handoff_requested"`
	Partial          bool       `json:"partial"`
	KnowledgeIDs     []string   `json:"knowledge_ids"`
	OccurredAt       time.Time  `json:"occurred_at"`
}

// TurnObservation feeds metrics for a finished (or failed) turn.
type TurnObservation struct {
	Mode          string
	Outcome       string
	PreviousPhase SalesPhase
	Phase         SalesPhase
	Emotion       Emotion
	Handoff       bool
	Knowledge     int
	Timings       StageTimings
}
