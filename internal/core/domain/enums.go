package domain

import "strings"

type SalesPhase string

const (
	PhaseGreeting      SalesPhase = "greeting"
	PhaseQualification SalesPhase = "qualification"
	PhasePresentation  SalesPhase = "presentation"
	PhaseNegotiation   SalesPhase = "negotiation"
	PhaseClosing       SalesPhase = "closing"
	PhasePostSale      SalesPhase = "post_sale"
)

// PhaseOrder is the canonical funnel order used for phase distance.
var PhaseOrder = []SalesPhase{
	PhaseGreeting,
	PhaseQualification,
	PhasePresentation,
	PhaseNegotiation,
	PhaseClosing,
	PhasePostSale,
}

// PhaseIndex returns the funnel position of p, or -1 when p is unknown.
func PhaseIndex(p SalesPhase) int {
	for i, candidate := range PhaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

func (p SalesPhase) Valid() bool {
	return PhaseIndex(p) >= 0
}

func ParseSalesPhase(raw string) (SalesPhase, bool) {
	p := SalesPhase(strings.ToLower(strings.TrimSpace(raw)))
	if p == "postsale" || p == "post-sale" {
		p = PhasePostSale
	}
	return p, p.Valid()
}

type Emotion string

const (
	EmotionNeutral     Emotion = "neutral"
	EmotionExcitement  Emotion = "excitement"
	EmotionConcern     Emotion = "concern"
	EmotionSkepticism  Emotion = "skepticism"
	EmotionConfusion   Emotion = "confusion"
	EmotionUrgency     Emotion = "urgency"
	EmotionHesitation  Emotion = "hesitation"
	EmotionFrustration Emotion = "frustration"
)

// DetectableEmotions lists every emotion except neutral in detection order.
var DetectableEmotions = []Emotion{
	EmotionExcitement,
	EmotionConcern,
	EmotionSkepticism,
	EmotionConfusion,
	EmotionUrgency,
	EmotionHesitation,
	EmotionFrustration,
}

func (e Emotion) Valid() bool {
	if e == EmotionNeutral {
		return true
	}
	for _, candidate := range DetectableEmotions {
		if candidate == e {
			return true
		}
	}
	return false
}

func ParseEmotion(raw string) (Emotion, bool) {
	e := Emotion(strings.ToLower(strings.TrimSpace(raw)))
	return e, e.Valid()
}

// IsObjection reports whether the emotion signals resistance worth tracking.
func (e Emotion) IsObjection() bool {
	switch e {
	case EmotionConcern, EmotionSkepticism, EmotionHesitation:
		return true
	default:
		return false
	}
}

type ContextType string

const (
	ContextProductInfo          ContextType = "product_info"
	ContextPricing              ContextType = "pricing"
	ContextObjectionHandling    ContextType = "objection_handling"
	ContextCompetitorComparison ContextType = "competitor_comparison"
	ContextTrustBuilding        ContextType = "trust_building"
	ContextProcessExplanation   ContextType = "process_explanation"
	ContextLegalTerms           ContextType = "legal_terms"
	ContextFAQ                  ContextType = "faq"
	ContextClosingTechnique     ContextType = "closing_technique"
	ContextFollowUp             ContextType = "follow_up"
)

type TemporalRelevance string

const (
	TemporalPersistent  TemporalRelevance = "persistent"
	TemporalSeasonal    TemporalRelevance = "seasonal"
	TemporalConditional TemporalRelevance = "conditional"
	TemporalArchived    TemporalRelevance = "archived"
)

type MethodologyType string

const (
	MethodologyPhaseDefinition       MethodologyType = "phase_definition"
	MethodologyTransitionTrigger     MethodologyType = "transition_trigger"
	MethodologyObjectionResponse     MethodologyType = "objection_response"
	MethodologyClosingTechnique      MethodologyType = "closing_technique"
	MethodologyQualificationQuestion MethodologyType = "qualification_question"
	MethodologyValueProposition      MethodologyType = "value_proposition"
	MethodologyUrgencyCreator        MethodologyType = "urgency_creator"
	MethodologyTrustBuilder          MethodologyType = "trust_builder"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
