package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/sales-assistant/internal/core/classifier"
	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/core/retrieval"
)

// turnPlan holds everything decided for a turn before the completion call.
type turnPlan struct {
	phase      domain.PhaseDecision
	emotion    domain.EmotionDecision
	knowledge  []domain.KnowledgeMatch
	techniques []domain.MethodologyMatch
	prompt     string
	debug      *domain.TurnDebug
}

// turnPlanner runs classification, retrieval and prompt assembly. It never
// writes state and never calls the completion provider.
type turnPlanner struct {
	classifier  *classifier.Classifier
	knowledge   *retrieval.KnowledgeScorer
	methodology *retrieval.MethodologyScorer
	embedder    ports.Embedder
	corpus      ports.KnowledgeCorpus
	techniques  ports.MethodologyCorpus
	now         func() time.Time
}

func (p *turnPlanner) handoff(message string, cfg domain.ChatbotConfig) domain.HandoffDecision {
	return classifier.DetectHandoff(message, cfg.HandoffEnabled, cfg.HandoffTriggers)
}

func (p *turnPlanner) plan(
	ctx context.Context,
	state *domain.ConversationState,
	cfg domain.ChatbotConfig,
	message string,
	handoff domain.HandoffDecision,
) (*turnPlan, error) {
	phase := p.classifier.DetectPhase(message, state.CurrentPhase)
	emotion := p.classifier.DetectEmotion(message)
	debug := &domain.TurnDebug{
		Handoff: handoff,
		Phase:   &phase,
		Emotion: &emotion,
	}

	var embedding []float32
	if p.embedder != nil {
		started := p.now()
		vec, err := p.embedder.EmbedQuery(ctx, message)
		debug.Timings.Embedding = p.now().Sub(started)
		if err != nil {
			return nil, domain.WrapError(domain.ErrProviderFailure, "embed message", err)
		}
		embedding = vec
	}

	records, err := p.corpus.ListKnowledge(ctx, state.ChatbotID)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	methods, err := p.techniques.ListMethodology(ctx, state.ChatbotID)
	if err != nil {
		return nil, fmt.Errorf("list methodology: %w", err)
	}

	query := domain.RetrievalQuery{
		Text:      message,
		Embedding: embedding,
		Phase:     phase.Phase,
		Emotion:   emotion.Emotion,
	}

	started := p.now()
	knowledge := p.knowledge.Score(records, query, cfg.Weights, cfg.MaxKnowledgeResults)
	debug.Timings.Knowledge = p.now().Sub(started)
	debug.Knowledge = knowledge.Evaluations
	debug.Selected = knowledge.Matches

	selected := knowledge.Matches
	if cfg.EnrichmentEnabled && cfg.MaxEnrichment > 0 && len(selected) > 0 {
		started = p.now()
		selected = retrieval.Enrich(knowledge.Matches, enrichmentPool(records, knowledge.Evaluations), cfg.MaxEnrichment)
		debug.Timings.Enrichment = p.now().Sub(started)
		debug.Enriched = selected[len(knowledge.Matches):]
	}

	started = p.now()
	methodology := p.methodology.Score(methods, query, nil, cfg.MaxMethodologyResults)
	debug.Timings.Methodology = p.now().Sub(started)
	debug.Methodology = methodology.Evaluations
	debug.Techniques = methodology.Matches

	prompt := buildSystemPrompt(promptInput{
		Phase:      phase.Phase,
		Emotion:    emotion.Emotion,
		Knowledge:  selected,
		Techniques: methodology.Matches,
		Config:     cfg,
	})
	debug.Prompt = prompt

	return &turnPlan{
		phase:      phase,
		emotion:    emotion,
		knowledge:  selected,
		techniques: methodology.Matches,
		prompt:     prompt,
		debug:      debug,
	}, nil
}

// enrichmentPool drops records the scorer rejected on anti-triggers so that
// enrichment cannot bring them back.
func enrichmentPool(records []domain.KnowledgeRecord, evals []domain.CandidateEvaluation) []domain.KnowledgeRecord {
	excluded := make(map[string]struct{})
	for _, ev := range evals {
		if ev.Outcome == domain.OutcomeAntiTrigger {
			excluded[ev.RecordID] = struct{}{}
		}
	}
	if len(excluded) == 0 {
		return records
	}
	pool := make([]domain.KnowledgeRecord, 0, len(records)-len(excluded))
	for _, record := range records {
		if _, skip := excluded[record.ID]; skip {
			continue
		}
		pool = append(pool, record)
	}
	return pool
}
