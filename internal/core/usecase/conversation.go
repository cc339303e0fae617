package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/core/classifier"
	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/core/retrieval"
)

const (
	modeBlocking = "blocking"
	modeStream   = "stream"

	outcomeCompleted       = "completed"
	outcomeHandoff         = "handoff"
	outcomePartial         = "partial"
	outcomeProviderFailure = "provider_failure"
	outcomeFailed          = "failed"
)

// ConversationDeps are the collaborators of the conversation service.
// Events and Observer are optional.
type ConversationDeps struct {
	Conversations ports.ConversationStore
	Knowledge     ports.KnowledgeCorpus
	Methodology   ports.MethodologyCorpus
	Configs       ports.ChatbotConfigStore
	Embedder      ports.Embedder
	Completion    ports.CompletionProvider
	Locker        ports.ConversationLocker
	Events        ports.TurnEventPublisher
	Observer      ports.TurnObserver
	Classifier    *classifier.Classifier
}

type ConversationOptions struct {
	ScoringWorkers int
	PersistTimeout time.Duration
	StreamBuffer   int
	Now            func() time.Time
}

// ConversationService runs one turn per inbound message: handoff check,
// classification, retrieval, prompt assembly, completion and persistence.
type ConversationService struct {
	conversations ports.ConversationStore
	configs       ports.ChatbotConfigStore
	completion    ports.CompletionProvider
	locker        ports.ConversationLocker
	events        ports.TurnEventPublisher
	observer      ports.TurnObserver
	planner       *turnPlanner
	logger        zerolog.Logger
	opts          ConversationOptions
}

var _ ports.ConversationService = (*ConversationService)(nil)

func NewConversationService(deps ConversationDeps, logger zerolog.Logger, opts ConversationOptions) *ConversationService {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = 8
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	cls := deps.Classifier
	if cls == nil {
		cls = classifier.New()
	}
	logger = logger.With().Str("component", "conversation").Logger()

	return &ConversationService{
		conversations: deps.Conversations,
		configs:       deps.Configs,
		completion:    deps.Completion,
		locker:        deps.Locker,
		events:        deps.Events,
		observer:      deps.Observer,
		planner: &turnPlanner{
			classifier:  cls,
			knowledge:   retrieval.NewKnowledgeScorer(logger, opts.ScoringWorkers),
			methodology: retrieval.NewMethodologyScorer(logger, opts.ScoringWorkers),
			embedder:    deps.Embedder,
			corpus:      deps.Knowledge,
			techniques:  deps.Methodology,
			now:         opts.Now,
		},
		logger: logger,
		opts:   opts,
	}
}

func (s *ConversationService) StartConversation(ctx context.Context, chatbotID string) (*domain.ConversationState, error) {
	chatbotID = strings.TrimSpace(chatbotID)
	if chatbotID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "start conversation", fmt.Errorf("chatbot id is required"))
	}

	state := domain.NewConversationState(uuid.NewString(), chatbotID, s.opts.Now())
	if err := s.conversations.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.logger.Info().
		Str("conversation_id", state.ID).
		Str("chatbot_id", chatbotID).
		Msg("conversation_started")
	return state.Clone(), nil
}

func (s *ConversationService) RestoreConversation(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "restore conversation", fmt.Errorf("conversation id is required"))
	}
	state, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// activeTurn is a turn holding the conversation lock.
type activeTurn struct {
	mode     string
	message  string
	state    *domain.ConversationState
	previous domain.SalesPhase
	config   domain.ChatbotConfig
	handoff  domain.HandoffDecision
	plan     *turnPlan
	release  func()
}

func (t *activeTurn) debug() *domain.TurnDebug {
	if t.plan != nil {
		return t.plan.debug
	}
	return &domain.TurnDebug{Handoff: t.handoff}
}

func (t *activeTurn) completionRequest() domain.CompletionRequest {
	messages := make([]domain.ChatMessage, 0, len(t.state.MessageHistory)+1)
	messages = append(messages, t.state.MessageHistory...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: t.message})
	return domain.CompletionRequest{
		SystemPrompt: t.plan.prompt,
		Messages:     messages,
		Temperature:  t.config.Temperature,
		MaxTokens:    t.config.MaxTokens,
	}
}

func (s *ConversationService) SendMessage(ctx context.Context, conversationID, message string) (*domain.TurnResult, error) {
	turn, err := s.beginTurn(ctx, modeBlocking, conversationID, message)
	if err != nil {
		return nil, err
	}
	defer turn.release()

	if turn.handoff.Requested {
		return s.commit(ctx, turn, turn.config.HandoffMessage, false)
	}

	if err := s.planTurn(ctx, turn); err != nil {
		return nil, err
	}

	started := s.opts.Now()
	reply, err := s.completion.Complete(ctx, turn.completionRequest())
	turn.plan.debug.Timings.Completion = s.opts.Now().Sub(started)
	if err != nil {
		s.fail(turn, outcomeProviderFailure, err)
		return nil, domain.WrapError(domain.ErrProviderFailure, "complete reply", err)
	}

	return s.commit(ctx, turn, reply, false)
}

// beginTurn validates input, takes the conversation lock and loads the state
// and chatbot configuration. The caller owns turn.release on success.
func (s *ConversationService) beginTurn(ctx context.Context, mode, conversationID, message string) (*activeTurn, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "send message", fmt.Errorf("conversation id is required"))
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "send message", fmt.Errorf("message is required"))
	}

	release, err := s.locker.Acquire(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("lock conversation: %w", err)
	}

	state, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		release()
		return nil, err
	}
	cfg, err := s.configs.Get(ctx, state.ChatbotID)
	if err != nil {
		release()
		return nil, fmt.Errorf("load chatbot config: %w", err)
	}
	cfg = cfg.Normalize()

	return &activeTurn{
		mode:     mode,
		message:  message,
		state:    state,
		previous: state.CurrentPhase,
		config:   cfg,
		handoff:  s.planner.handoff(message, cfg),
		release:  release,
	}, nil
}

func (s *ConversationService) planTurn(ctx context.Context, turn *activeTurn) error {
	plan, err := s.planner.plan(ctx, turn.state, turn.config, turn.message, turn.handoff)
	if err != nil {
		outcome := outcomeFailed
		if domain.IsKind(err, domain.ErrProviderFailure) {
			outcome = outcomeProviderFailure
		}
		s.fail(turn, outcome, err)
		return err
	}
	turn.plan = plan
	return nil
}

// commit persists the turn. Persistence runs on a context detached from the
// caller so a disconnecting client does not lose the exchange.
func (s *ConversationService) commit(ctx context.Context, turn *activeTurn, reply string, partial bool) (*domain.TurnResult, error) {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
	defer cancel()

	now := s.opts.Now()
	state := turn.state
	debug := turn.debug()

	phase, emotion := state.CurrentPhase, state.DetectedEmotion
	if turn.plan != nil {
		phase, emotion = turn.plan.phase.Phase, turn.plan.emotion.Emotion
	}

	messages := []domain.ChatMessage{{Role: domain.RoleUser, Content: turn.message, CreatedAt: now}}
	if reply != "" {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply, CreatedAt: now})
	}
	for _, msg := range messages {
		if err := s.conversations.AppendMessage(persistCtx, state.ID, msg); err != nil {
			s.fail(turn, outcomeFailed, err)
			return nil, fmt.Errorf("append message: %w", err)
		}
	}

	update := bookkeeping(state, phase, emotion, turn.message, len(messages), turn.handoff.Requested, now)
	if err := s.conversations.Update(persistCtx, state.ID, update); err != nil {
		s.fail(turn, outcomeFailed, err)
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	state.MessageHistory = append(state.MessageHistory, messages...)
	state.Apply(update)

	record := domain.TurnRecord{
		ID:               uuid.NewString(),
		ConversationID:   state.ID,
		Turn:             state.TurnCount,
		UserMessage:      turn.message,
		Reply:            reply,
		Phase:            phase,
		Emotion:          emotion,
		HandoffRequested: turn.handoff.Requested,
		Partial:          partial,
		Debug:            debug,
		CreatedAt:        now,
	}
	if err := s.conversations.AppendTurn(persistCtx, record); err != nil {
		s.fail(turn, outcomeFailed, err)
		return nil, fmt.Errorf("append turn: %w", err)
	}

	outcome := outcomeCompleted
	switch {
	case turn.handoff.Requested:
		outcome = outcomeHandoff
	case partial:
		outcome = outcomePartial
	}
	s.publish(persistCtx, turn, record)
	s.observe(turn, outcome, debug)
	s.logger.Info().
		Str("conversation_id", state.ID).
		Str("mode", turn.mode).
		Str("outcome", outcome).
		Str("phase", string(phase)).
		Str("emotion", string(emotion)).
		Int("turn", record.Turn).
		Int("knowledge", len(knowledgeIDs(turn))).
		Msg("turn_completed")

	return &domain.TurnResult{
		ConversationID:   state.ID,
		Reply:            reply,
		HandoffRequested: turn.handoff.Requested,
		Partial:          partial,
		State:            state.Clone(),
		Debug:            debug,
	}, nil
}

// bookkeeping computes the state update for one turn. A handoff turn keeps
// phase and emotion but still counts the exchange.
func bookkeeping(
	state *domain.ConversationState,
	phase domain.SalesPhase,
	emotion domain.Emotion,
	message string,
	appended int,
	handoff bool,
	now time.Time,
) domain.ConversationUpdate {
	messageCount := state.MessageCount + appended
	turnCount := state.TurnCount + 1
	update := domain.ConversationUpdate{
		CurrentPhase:    &phase,
		DetectedEmotion: &emotion,
		MessageCount:    &messageCount,
		TurnCount:       &turnCount,
		UpdatedAt:       now,
	}
	if !slices.Contains(state.ReachedPhases, phase) {
		update.ReachedPhases = append(slices.Clone(state.ReachedPhases), phase)
	}
	if !handoff && emotion.IsObjection() {
		update.ObjectionsRaised = append(slices.Clone(state.ObjectionsRaised), fmt.Sprintf("%s: %s", emotion, message))
	}
	if handoff && !state.HandoffRequested {
		requested := true
		update.HandoffRequested = &requested
	}
	return update
}

func (s *ConversationService) publish(ctx context.Context, turn *activeTurn, record domain.TurnRecord) {
	if s.events == nil {
		return
	}
	event := domain.TurnEvent{
		ConversationID:   record.ConversationID,
		ChatbotID:        turn.state.ChatbotID,
		Turn:             record.Turn,
		Phase:            record.Phase,
		Emotion:          record.Emotion,
		HandoffRequested: record.HandoffRequested,
		Partial:          record.Partial,
		KnowledgeIDs:     knowledgeIDs(turn),
		OccurredAt:       record.CreatedAt,
	}
	if err := s.events.PublishTurnCompleted(ctx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("conversation_id", record.ConversationID).
			Msg("turn_event_publish_failed")
	}
}

func (s *ConversationService) observe(turn *activeTurn, outcome string, debug *domain.TurnDebug) {
	if s.observer == nil {
		return
	}
	obs := domain.TurnObservation{
		Mode:          turn.mode,
		Outcome:       outcome,
		PreviousPhase: turn.previous,
		Phase:         turn.state.CurrentPhase,
		Emotion:       turn.state.DetectedEmotion,
		Handoff:       turn.handoff.Requested,
		Knowledge:     len(knowledgeIDs(turn)),
	}
	if debug != nil {
		obs.Timings = debug.Timings
	}
	s.observer.ObserveTurn(obs)
}

func (s *ConversationService) fail(turn *activeTurn, outcome string, err error) {
	s.logger.Error().
		Err(err).
		Str("conversation_id", turn.state.ID).
		Str("mode", turn.mode).
		Str("outcome", outcome).
		Msg("turn_failed")
	s.observe(turn, outcome, turn.debug())
}

func knowledgeIDs(turn *activeTurn) []string {
	if turn.plan == nil {
		return []string{}
	}
	ids := make([]string, 0, len(turn.plan.knowledge))
	for _, match := range turn.plan.knowledge {
		ids = append(ids, match.Record.ID)
	}
	return ids
}
