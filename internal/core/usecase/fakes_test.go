package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

type fakeConversationStore struct {
	mu      sync.Mutex
	states  map[string]*domain.ConversationState
	turns   []domain.TurnRecord
	updates int
	failOn  string
}

func newFakeConversationStore(states ...*domain.ConversationState) *fakeConversationStore {
	store := &fakeConversationStore{states: make(map[string]*domain.ConversationState)}
	for _, state := range states {
		store.states[state.ID] = state.Clone()
	}
	return store
}

func (f *fakeConversationStore) Create(_ context.Context, state *domain.ConversationState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.ID] = state.Clone()
	return nil
}

func (f *fakeConversationStore) Get(_ context.Context, id string) (*domain.ConversationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrConversationNotFound, "get conversation", errors.New(id))
	}
	return state.Clone(), nil
}

func (f *fakeConversationStore) Update(ctx context.Context, id string, update domain.ConversationUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn == "update" {
		return errors.New("update failed")
	}
	state, ok := f.states[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	state.Apply(update)
	f.updates++
	return nil
}

func (f *fakeConversationStore) AppendMessage(ctx context.Context, id string, message domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	state.MessageHistory = append(state.MessageHistory, message)
	return nil
}

func (f *fakeConversationStore) AppendTurn(ctx context.Context, turn domain.TurnRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	return nil
}

func (f *fakeConversationStore) snapshot(id string) *domain.ConversationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id].Clone()
}

func (f *fakeConversationStore) turnRecords() []domain.TurnRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TurnRecord(nil), f.turns...)
}

type fakeCorpus struct {
	knowledge   []domain.KnowledgeRecord
	methodology []domain.MethodologyRecord
	err         error
}

func (f *fakeCorpus) ListKnowledge(context.Context, string) ([]domain.KnowledgeRecord, error) {
	return f.knowledge, f.err
}

func (f *fakeCorpus) GetKnowledge(_ context.Context, _ string, id string) (*domain.KnowledgeRecord, error) {
	for _, record := range f.knowledge {
		if record.ID == id {
			return &record, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (f *fakeCorpus) ListMethodology(context.Context, string) ([]domain.MethodologyRecord, error) {
	return f.methodology, nil
}

func (f *fakeCorpus) GetMethodology(_ context.Context, id string) (*domain.MethodologyRecord, error) {
	for _, record := range f.methodology {
		if record.ID == id {
			return &record, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

type fakeConfigStore struct {
	cfg domain.ChatbotConfig
}

func (f fakeConfigStore) Get(_ context.Context, chatbotID string) (domain.ChatbotConfig, error) {
	cfg := f.cfg
	cfg.ChatbotID = chatbotID
	return cfg, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type fakeProvider struct {
	mu        sync.Mutex
	reply     string
	chunks    []string
	err       error
	streamErr error
	block     chan struct{}
	requests  []domain.CompletionRequest
}

func (f *fakeProvider) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func (f *fakeProvider) Stream(ctx context.Context, req domain.CompletionRequest) (ports.TokenStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &fakeTokenStream{ctx: ctx, chunks: append([]string(nil), f.chunks...), failWith: f.streamErr, block: f.block}, nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeTokenStream emits chunks, then either EOF, failWith, or blocks on block
// until the context is cancelled.
type fakeTokenStream struct {
	ctx      context.Context
	chunks   []string
	failWith error
	block    chan struct{}
	closed   bool
}

func (s *fakeTokenStream) Recv() (string, error) {
	if len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		return chunk, nil
	}
	if s.failWith != nil {
		return "", s.failWith
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	return "", io.EOF
}

func (s *fakeTokenStream) Close() error {
	s.closed = true
	return nil
}

type fakeLocker struct {
	mu       sync.Mutex
	acquired int
	released int
}

func (f *fakeLocker) Acquire(context.Context, string) (func(), error) {
	f.mu.Lock()
	f.acquired++
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}, nil
}

func (f *fakeLocker) balanced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquired == f.released
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.TurnEvent
	err    error
}

func (f *fakeEvents) PublishTurnCompleted(_ context.Context, event domain.TurnEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.err
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []domain.TurnObservation
}

func (f *fakeObserver) ObserveTurn(obs domain.TurnObservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, obs)
}

func (f *fakeObserver) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.obs))
	for _, obs := range f.obs {
		out = append(out, obs.Outcome)
	}
	return out
}

type serviceFixture struct {
	service  *ConversationService
	store    *fakeConversationStore
	corpus   *fakeCorpus
	embedder *fakeEmbedder
	provider *fakeProvider
	locker   *fakeLocker
	events   *fakeEvents
	observer *fakeObserver
	state    *domain.ConversationState
}

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newServiceFixture(corpus *fakeCorpus, cfg domain.ChatbotConfig) *serviceFixture {
	state := domain.NewConversationState("conv-1", "bot-1", fixedNow.Add(-time.Hour))
	f := &serviceFixture{
		store:    newFakeConversationStore(state),
		corpus:   corpus,
		embedder: &fakeEmbedder{vector: []float32{0.85, 0.15, 0.05}},
		provider: &fakeProvider{reply: "A parcela fica em 12x de R$ 99."},
		locker:   &fakeLocker{},
		events:   &fakeEvents{},
		observer: &fakeObserver{},
		state:    state,
	}
	f.service = NewConversationService(ConversationDeps{
		Conversations: f.store,
		Knowledge:     corpus,
		Methodology:   corpus,
		Configs:       fakeConfigStore{cfg: cfg},
		Embedder:      f.embedder,
		Completion:    f.provider,
		Locker:        f.locker,
		Events:        f.events,
		Observer:      f.observer,
	}, zerolog.Nop(), ConversationOptions{
		ScoringWorkers: 2,
		Now:            func() time.Time { return fixedNow },
	})
	return f
}

func salesCorpus() *fakeCorpus {
	return &fakeCorpus{
		knowledge: []domain.KnowledgeRecord{
			{
				ID:                 domain.ConfigSentinelID,
				Content:            "temperature: 0.2",
				TriggerPhrases:     []string{"quanto fica a parcela"},
				ImportanceWeight:   1,
				ConfidenceScore:    1,
				ContextType:        domain.ContextPricing,
				SalesPhases:        []domain.SalesPhase{domain.PhaseNegotiation},
				TemporalRelevance:  domain.TemporalPersistent,
				EmotionalResonance: domain.EmotionNeutral,
			},
			{
				ID:                 "pricing",
				Content:            "Parcelamos em até 12x sem juros no cartão.",
				TriggerPhrases:     []string{"when customer asks about monthly payments", "quanto fica a parcela"},
				QuestionTypes:      []string{"parcela"},
				SemanticTags:       []string{"pagamento", "parcelamento", "preco"},
				ContextType:        domain.ContextPricing,
				SalesPhases:        []domain.SalesPhase{domain.PhaseNegotiation},
				EmotionalResonance: domain.EmotionNeutral,
				TemporalRelevance:  domain.TemporalPersistent,
				ImportanceWeight:   0.9,
				ConfidenceScore:    0.9,
				Embedding:          []float32{0.9, 0.1, 0},
			},
			{
				ID:                 "boleto",
				Content:            "Também aceitamos boleto à vista com 5% de desconto.",
				SemanticTags:       []string{"pagamento", "parcelamento"},
				ContextType:        domain.ContextPricing,
				SalesPhases:        []domain.SalesPhase{domain.PhaseNegotiation},
				EmotionalResonance: domain.EmotionNeutral,
				TemporalRelevance:  domain.TemporalConditional,
				ImportanceWeight:   0.6,
				ConfidenceScore:    0.8,
			},
			{
				ID:                 "warranty",
				Content:            "Garantia de 2 anos direto com o fabricante.",
				TriggerPhrases:     []string{"qual a garantia"},
				SemanticTags:       []string{"garantia"},
				ContextType:        domain.ContextObjectionHandling,
				SalesPhases:        []domain.SalesPhase{domain.PhasePresentation},
				EmotionalResonance: domain.EmotionConcern,
				TemporalRelevance:  domain.TemporalConditional,
				ImportanceWeight:   0.5,
				ConfidenceScore:    0.5,
				Embedding:          []float32{0, 0, 1},
			},
		},
		methodology: []domain.MethodologyRecord{
			{
				ID:              "anchor",
				Title:           "Value anchoring",
				Summary:         "Restate the value before talking about the installment.",
				MethodologyType: domain.MethodologyValueProposition,
				SalesPhases:     []domain.SalesPhase{domain.PhaseNegotiation},
				Priority:        1,
				TriggerPhrases:  []string{"quanto fica"},
			},
		},
	}
}
