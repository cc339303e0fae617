package retrieval

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

// KnowledgeScorer ranks knowledge records with the two-stage relevance and
// value model.
type KnowledgeScorer struct {
	logger  zerolog.Logger
	workers int
}

// NewKnowledgeScorer returns a scorer. workers > 1 scores candidates
// concurrently; the output does not depend on it.
func NewKnowledgeScorer(logger zerolog.Logger, workers int) *KnowledgeScorer {
	return &KnowledgeScorer{
		logger:  logger.With().Str("component", "knowledge_scorer").Logger(),
		workers: workers,
	}
}

type knowledgeEvaluation struct {
	scores  domain.KnowledgeScores
	outcome domain.EvaluationOutcome
	detail  string
}

// Score evaluates every candidate and returns the top maxResults survivors
// together with the per-candidate trace in input order.
func (s *KnowledgeScorer) Score(
	candidates []domain.KnowledgeRecord,
	query domain.RetrievalQuery,
	weights domain.RetrievalWeights,
	maxResults int,
) domain.KnowledgeResult {
	if maxResults <= 0 {
		maxResults = domain.DefaultMaxKnowledgeResults
	}
	pq := prepare(query)

	evals := make([]knowledgeEvaluation, len(candidates))
	forEach(len(candidates), s.workers, func(i int) {
		evals[i] = s.evaluateIsolated(candidates[i], pq, weights)
	})

	survivors := make([]int, 0, len(candidates))
	for i, ev := range evals {
		if ev.outcome == domain.OutcomeSelected {
			survivors = append(survivors, i)
		}
	}
	slices.SortStableFunc(survivors, func(a, b int) int {
		if c := cmp.Compare(evals[b].scores.Final, evals[a].scores.Final); c != 0 {
			return c
		}
		if c := cmp.Compare(evals[b].scores.Importance, evals[a].scores.Importance); c != 0 {
			return c
		}
		return cmp.Compare(candidates[a].ID, candidates[b].ID)
	})

	matches := make([]domain.KnowledgeMatch, 0, min(len(survivors), maxResults))
	for rank, idx := range survivors {
		if rank >= maxResults {
			evals[idx].outcome = domain.OutcomeTruncated
			evals[idx].detail = fmt.Sprintf("ranked %d, limit %d", rank+1, maxResults)
			continue
		}
		matches = append(matches, domain.KnowledgeMatch{
			Record:     candidates[idx],
			Scores:     evals[idx].scores,
			FinalScore: evals[idx].scores.Final,
		})
	}

	trace := make([]domain.CandidateEvaluation, len(candidates))
	for i, ev := range evals {
		scores := ev.scores
		trace[i] = domain.CandidateEvaluation{
			RecordID:  candidates[i].ID,
			Outcome:   ev.outcome,
			Detail:    ev.detail,
			Knowledge: &scores,
		}
	}

	return domain.KnowledgeResult{Matches: matches, Evaluations: trace}
}

// evaluateIsolated keeps a single malformed record from aborting the pass.
func (s *KnowledgeScorer) evaluateIsolated(
	record domain.KnowledgeRecord,
	pq preparedQuery,
	weights domain.RetrievalWeights,
) (ev knowledgeEvaluation) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("record_id", record.ID).
				Interface("panic", r).
				Msg("candidate_scoring_failed")
			ev = knowledgeEvaluation{
				outcome: domain.OutcomeScoringFailed,
				detail:  fmt.Sprint(r),
			}
		}
	}()
	return evaluateKnowledge(record, pq, weights)
}

// EvaluateKnowledge scores a single record against query.
func EvaluateKnowledge(record domain.KnowledgeRecord, query domain.RetrievalQuery, weights domain.RetrievalWeights) domain.CandidateEvaluation {
	ev := evaluateKnowledge(record, prepare(query), weights)
	return domain.CandidateEvaluation{
		RecordID:  record.ID,
		Outcome:   ev.outcome,
		Detail:    ev.detail,
		Knowledge: &ev.scores,
	}
}

func evaluateKnowledge(record domain.KnowledgeRecord, pq preparedQuery, w domain.RetrievalWeights) knowledgeEvaluation {
	if record.IsSentinel() {
		return knowledgeEvaluation{outcome: domain.OutcomeSentinel, detail: "configuration record"}
	}
	if phrase, hit := pq.antiTriggered(record.AntiTriggers); hit {
		return knowledgeEvaluation{outcome: domain.OutcomeAntiTrigger, detail: phrase}
	}

	var sc domain.KnowledgeScores
	sc.Trigger = pq.triggerScore(record.TriggerPhrases)
	sc.Vector = CosineSimilarity(pq.Embedding, record.Embedding)
	sc.Tag = pq.tagScore(record.SemanticTags)
	sc.Question = pq.questionScore(record.QuestionTypes)
	sc.Relevance = sc.Trigger*w.TriggerPhrases +
		sc.Vector*w.VectorSimilarity +
		sc.Tag*w.SemanticTags +
		sc.Question*w.QuestionTypes

	if sc.Relevance < w.RelevanceGatekeeper {
		return knowledgeEvaluation{
			scores:  sc,
			outcome: domain.OutcomeBelowGatekeeper,
			detail:  fmt.Sprintf("relevance %.3f < %.3f", sc.Relevance, w.RelevanceGatekeeper),
		}
	}

	sc.Importance = domain.ClampUnit(record.ImportanceWeight)
	sc.Temporal = TemporalScore(record.TemporalRelevance)
	sc.Context = 0.5*contextDensity(record.ContextType, pq.phraseText) +
		0.5*PhaseAlignment(record.SalesPhases, pq.Phase)
	sc.Confidence = domain.ClampUnit(record.ConfidenceScore)
	sc.Emotion = emotionResonance(record.EmotionalResonance, pq.Emotion, pq.phraseText)
	if record.ObjectionPattern {
		sc.Objection = objectionFlagScore
	}
	sc.Value = sc.Importance*w.ImportanceWeight +
		sc.Temporal*w.TemporalRelevance +
		sc.Context*w.ContextAlignment +
		sc.Confidence*w.ConfidenceScore +
		sc.Emotion*w.EmotionalResonance +
		sc.Objection*w.ObjectionPattern

	sc.Final = sc.Relevance + sc.Value
	if record.ActionRequired {
		sc.Boost = domain.ActionRequiredBoost
		sc.Final += sc.Boost
	}

	if sc.Final < w.MinimumFinalScore {
		return knowledgeEvaluation{
			scores:  sc,
			outcome: domain.OutcomeBelowMinimum,
			detail:  fmt.Sprintf("final %.3f < %.3f", sc.Final, w.MinimumFinalScore),
		}
	}
	return knowledgeEvaluation{scores: sc, outcome: domain.OutcomeSelected}
}
