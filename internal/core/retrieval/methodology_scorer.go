package retrieval

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

const (
	methodologyTriggerWeight = 0.35
	methodologyVectorWeight  = 0.25
	methodologyPhaseWeight   = 0.20
	methodologyEmotionWeight = 0.20

	methodologyGate = 0.15

	phaseMismatchScore   = 0.3
	emotionMismatchScore = 0.4

	priorityStep     = 0.1
	minPriorityScore = 0.1
)

type MethodologyScorer struct {
	logger  zerolog.Logger
	workers int
}

func NewMethodologyScorer(logger zerolog.Logger, workers int) *MethodologyScorer {
	return &MethodologyScorer{
		logger:  logger.With().Str("component", "methodology_scorer").Logger(),
		workers: workers,
	}
}

type methodologyEvaluation struct {
	scores  domain.MethodologyScores
	outcome domain.EvaluationOutcome
	detail  string
}

// Score ranks methodology records. An empty typeFilter accepts every type.
func (s *MethodologyScorer) Score(
	candidates []domain.MethodologyRecord,
	query domain.RetrievalQuery,
	typeFilter []domain.MethodologyType,
	maxResults int,
) domain.MethodologyResult {
	if maxResults <= 0 {
		maxResults = domain.DefaultMaxMethodologyResults
	}
	pq := prepare(query)

	evals := make([]methodologyEvaluation, len(candidates))
	forEach(len(candidates), s.workers, func(i int) {
		evals[i] = s.evaluateIsolated(candidates[i], pq, typeFilter)
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
		if c := cmp.Compare(effectivePriority(candidates[a].Priority), effectivePriority(candidates[b].Priority)); c != 0 {
			return c
		}
		return cmp.Compare(candidates[a].ID, candidates[b].ID)
	})

	matches := make([]domain.MethodologyMatch, 0, min(len(survivors), maxResults))
	for rank, idx := range survivors {
		if rank >= maxResults {
			evals[idx].outcome = domain.OutcomeTruncated
			evals[idx].detail = fmt.Sprintf("ranked %d, limit %d", rank+1, maxResults)
			continue
		}
		matches = append(matches, domain.MethodologyMatch{
			Record:     candidates[idx],
			Scores:     evals[idx].scores,
			FinalScore: evals[idx].scores.Final,
		})
	}

	trace := make([]domain.CandidateEvaluation, len(candidates))
	for i, ev := range evals {
		scores := ev.scores
		trace[i] = domain.CandidateEvaluation{
			RecordID:    candidates[i].ID,
			Outcome:     ev.outcome,
			Detail:      ev.detail,
			Methodology: &scores,
		}
	}
	return domain.MethodologyResult{Matches: matches, Evaluations: trace}
}

func (s *MethodologyScorer) evaluateIsolated(
	record domain.MethodologyRecord,
	pq preparedQuery,
	typeFilter []domain.MethodologyType,
) (ev methodologyEvaluation) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("record_id", record.ID).
				Interface("panic", r).
				Msg("candidate_scoring_failed")
			ev = methodologyEvaluation{outcome: domain.OutcomeScoringFailed, detail: fmt.Sprint(r)}
		}
	}()
	return evaluateMethodology(record, pq, typeFilter)
}

func evaluateMethodology(record domain.MethodologyRecord, pq preparedQuery, typeFilter []domain.MethodologyType) methodologyEvaluation {
	if record.ID == domain.ConfigSentinelID {
		return methodologyEvaluation{outcome: domain.OutcomeSentinel, detail: "configuration record"}
	}
	if len(typeFilter) > 0 && !slices.Contains(typeFilter, record.MethodologyType) {
		return methodologyEvaluation{outcome: domain.OutcomeFilteredType, detail: string(record.MethodologyType)}
	}

	var sc domain.MethodologyScores
	sc.Trigger = pq.triggerScore(record.TriggerPhrases)
	sc.Vector = CosineSimilarity(pq.Embedding, record.Embedding)

	sc.Phase = 1.0
	if pq.Phase != "" && !slices.Contains(record.SalesPhases, pq.Phase) {
		sc.Phase = phaseMismatchScore
	}

	// An empty emotion set allows neither the detected emotion nor neutral.
	sc.Emotion = 1.0
	if pq.Emotion != "" &&
		!slices.Contains(record.ApplicableEmotions, pq.Emotion) &&
		!slices.Contains(record.ApplicableEmotions, domain.EmotionNeutral) {
		sc.Emotion = emotionMismatchScore
	}

	sc.Relevance = methodologyTriggerWeight*sc.Trigger +
		methodologyVectorWeight*sc.Vector +
		methodologyPhaseWeight*sc.Phase +
		methodologyEmotionWeight*sc.Emotion
	if sc.Relevance < methodologyGate {
		return methodologyEvaluation{
			scores:  sc,
			outcome: domain.OutcomeBelowGatekeeper,
			detail:  fmt.Sprintf("relevance %.3f < %.3f", sc.Relevance, methodologyGate),
		}
	}

	sc.Priority = PriorityScore(record.Priority)
	sc.Final = sc.Relevance * sc.Priority
	return methodologyEvaluation{scores: sc, outcome: domain.OutcomeSelected}
}

// PriorityScore maps priority 1 to 1.0 and decreases by 0.1 per level,
// never dropping below 0.1.
func PriorityScore(priority int) float64 {
	return max(1.0-float64(effectivePriority(priority)-1)*priorityStep, minPriorityScore)
}

func effectivePriority(priority int) int {
	if priority < 1 {
		return 1
	}
	return priority
}
