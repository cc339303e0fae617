package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/core/classifier"
	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/core/retrieval"
)

// Explainer runs the retrieval side of a turn without a completion call or
// any persistence. The embedder may be nil, in which case vector similarity
// scores zero.
type Explainer struct {
	planner *turnPlanner
}

func NewExplainer(
	knowledge ports.KnowledgeCorpus,
	methodology ports.MethodologyCorpus,
	embedder ports.Embedder,
	logger zerolog.Logger,
) *Explainer {
	return &Explainer{
		planner: &turnPlanner{
			classifier:  classifier.New(),
			knowledge:   retrieval.NewKnowledgeScorer(logger, 0),
			methodology: retrieval.NewMethodologyScorer(logger, 0),
			embedder:    embedder,
			corpus:      knowledge,
			techniques:  methodology,
			now:         time.Now,
		},
	}
}

// Explain returns the debug trace the conversation service would produce for
// message in the given state. A handoff trace carries no retrieval.
func (e *Explainer) Explain(
	ctx context.Context,
	state *domain.ConversationState,
	cfg domain.ChatbotConfig,
	message string,
) (*domain.TurnDebug, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "explain", fmt.Errorf("message is required"))
	}
	if state == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "explain", fmt.Errorf("state is required"))
	}

	cfg = cfg.Normalize()
	handoff := e.planner.handoff(message, cfg)
	if handoff.Requested {
		return &domain.TurnDebug{Handoff: handoff}, nil
	}
	plan, err := e.planner.plan(ctx, state, cfg, message, handoff)
	if err != nil {
		return nil, err
	}
	return plan.debug, nil
}
