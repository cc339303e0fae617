package domain

import (
	"strings"
	"time"
)

// ConfigSentinelID is the reserved knowledge record id holding per-chatbot
// configuration. It never takes part in retrieval.
const ConfigSentinelID = "__chatbot_config__"

// DefaultUnitScore is used for importance and confidence when the stored
// metadata is missing or unreadable.
const DefaultUnitScore = 0.5

// KnowledgeRecord is a curated unit of sales-relevant text plus the metadata
// used to retrieve it.
type KnowledgeRecord struct {
	ID                 string            `json:"id"`
	ChatbotID          string            `json:"chatbot_id"`
	Content            string            `json:"content"`
	TriggerPhrases     []string          `json:"trigger_phrases"`
	QuestionTypes      []string          `json:"question_types"`
	SemanticTags       []string          `json:"semantic_tags"`
	ContextType        ContextType       `json:"context_type"`
	SalesPhases        []SalesPhase      `json:"sales_phases"`
	EmotionalResonance Emotion           `json:"emotional_resonance"`
	TemporalRelevance  TemporalRelevance `json:"temporal_relevance"`
	ImportanceWeight   float64           `json:"importance_weight"`
	ConfidenceScore    float64           `json:"confidence_score"`
	ActionRequired     bool              `json:"action_required"`
	ObjectionPattern   bool              `json:"objection_pattern"`
	AntiTriggers       []string          `json:"anti_triggers,omitempty"`
	Embedding          []float32         `json:"-"`
	CreatedAt          time.Time         `json:"created_at"`
}

func (r KnowledgeRecord) IsSentinel() bool {
	return r.ID == ConfigSentinelID
}

// MethodologyRecord describes a sales technique rather than product facts.
type MethodologyRecord struct {
	ID                 string          `json:"id"`
	ChatbotID          string          `json:"chatbot_id,omitempty"`
	Title              string          `json:"title"`
	Summary            string          `json:"summary"`
	Content            string          `json:"content"`
	MethodologyType    MethodologyType `json:"methodology_type"`
	SalesPhases        []SalesPhase    `json:"sales_phases"`
	Priority           int             `json:"priority"`
	TriggerPhrases     []string        `json:"trigger_phrases"`
	ApplicableEmotions []Emotion       `json:"applicable_emotions"`
	Embedding          []float32       `json:"-"`
}

// UnitOrDefault clamps v into [0,1], falling back to def when v is nil.
func UnitOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return ClampUnit(*v)
}

func ClampUnit(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// NormalizeStrings drops blank entries and returns an empty, non-nil slice
// for missing input.
func NormalizeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
