package domain

// RetrievalWeights holds the knowledge scoring tunables: four relevance
// weights, six value weights and the two gates.
type RetrievalWeights struct {
	TriggerPhrases   float64 `json:"trigger_phrases" yaml:"trigger_phrases"`
	VectorSimilarity float64 `json:"vector_similarity" yaml:"vector_similarity"`
	SemanticTags     float64 `json:"semantic_tags" yaml:"semantic_tags"`
	QuestionTypes    float64 `json:"question_types" yaml:"question_types"`

	ImportanceWeight   float64 `json:"importance_weight" yaml:"importance_weight"`
	TemporalRelevance  float64 `json:"temporal_relevance" yaml:"temporal_relevance"`
	ContextAlignment   float64 `json:"context_alignment" yaml:"context_alignment"`
	ConfidenceScore    float64 `json:"confidence_score" yaml:"confidence_score"`
	EmotionalResonance float64 `json:"emotional_resonance" yaml:"emotional_resonance"`
	ObjectionPattern   float64 `json:"objection_pattern" yaml:"objection_pattern"`

	RelevanceGatekeeper float64 `json:"relevance_gatekeeper" yaml:"relevance_gatekeeper"`
	MinimumFinalScore   float64 `json:"minimum_final_score" yaml:"minimum_final_score"`
}

func DefaultRetrievalWeights() RetrievalWeights {
	return RetrievalWeights{
		TriggerPhrases:   0.15,
		VectorSimilarity: 0.15,
		SemanticTags:     0.05,
		QuestionTypes:    0.05,

		ImportanceWeight:   0.20,
		TemporalRelevance:  0.10,
		ContextAlignment:   0.10,
		ConfidenceScore:    0.05,
		EmotionalResonance: 0.10,
		ObjectionPattern:   0.05,

		RelevanceGatekeeper: 0.05,
		MinimumFinalScore:   0.30,
	}
}

// ActionRequiredBoost is added to the final score of records flagged as
// requiring action, before the minimum final score gate.
const ActionRequiredBoost = 0.30

// RetrievalQuery is the per-turn input shared by every scorer. Phase and
// Emotion are optional; the zero value means "not supplied".
type RetrievalQuery struct {
	Text      string     `json:"text"`
	Embedding []float32  `json:"-"`
	Phase     SalesPhase `json:"phase,omitempty"`
	Emotion   Emotion    `json:"emotion,omitempty"`
}

// KnowledgeScores carries every sub-score of a knowledge evaluation.
type KnowledgeScores struct {
	Trigger    float64 `json:"trigger"`
	Vector     float64 `json:"vector"`
	Tag        float64 `json:"tag"`
	Question   float64 `json:"question"`
	Relevance  float64 `json:"relevance"`
	Importance float64 `json:"importance"`
	Temporal   float64 `json:"temporal"`
	Context    float64 `json:"context"`
	Confidence float64 `json:"confidence"`
	Emotion    float64 `json:"emotion"`
	Objection  float64 `json:"objection"`
	Value      float64 `json:"value"`
	Boost      float64 `json:"boost"`
	Final      float64 `json:"final"`
}

// KnowledgeMatch is a ranked knowledge record.
type KnowledgeMatch struct {
	Record     KnowledgeRecord `json:"record"`
	Scores     KnowledgeScores `json:"scores"`
	FinalScore float64         `json:"final_score"`
	// Enrichment marks records added by tag overlap rather than direct match.
	Enrichment bool `json:"enrichment"`
}

type MethodologyScores struct {
	Trigger   float64 `json:"trigger"`
	Vector    float64 `json:"vector"`
	Phase     float64 `json:"phase"`
	Emotion   float64 `json:"emotion"`
	Relevance float64 `json:"relevance"`
	Priority  float64 `json:"priority"`
	Final     float64 `json:"final"`
}

type MethodologyMatch struct {
	Record     MethodologyRecord `json:"record"`
	Scores     MethodologyScores `json:"scores"`
	FinalScore float64           `json:"final_score"`
}

type EvaluationOutcome string

const (
	OutcomeSelected        EvaluationOutcome = "selected"
	OutcomeTruncated       EvaluationOutcome = "truncated"
	OutcomeSentinel        EvaluationOutcome = "config_sentinel"
	OutcomeAntiTrigger     EvaluationOutcome = "anti_trigger"
	OutcomeBelowGatekeeper EvaluationOutcome = "below_gatekeeper"
	OutcomeBelowMinimum    EvaluationOutcome = "below_minimum"
	OutcomeFilteredType    EvaluationOutcome = "filtered_type"
	OutcomeScoringFailed   EvaluationOutcome = "scoring_failed"
)

// CandidateEvaluation records why a single candidate was kept or dropped.
type CandidateEvaluation struct {
	RecordID string            `json:"record_id"`
	Outcome  EvaluationOutcome `json:"outcome"`
	Detail   string            `json:"detail,omitempty"`

	Knowledge   *KnowledgeScores   `json:"knowledge_scores,omitempty"`
	Methodology *MethodologyScores `json:"methodology_scores,omitempty"`
}

// KnowledgeResult is the ranked output of one knowledge scoring pass.
type KnowledgeResult struct {
	Matches     []KnowledgeMatch      `json:"matches"`
	Evaluations []CandidateEvaluation `json:"evaluations"`
}

type MethodologyResult struct {
	Matches     []MethodologyMatch    `json:"matches"`
	Evaluations []CandidateEvaluation `json:"evaluations"`
}
