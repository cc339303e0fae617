// Package corpusfile loads a chatbot corpus from a YAML file so retrieval can
// be inspected offline.
package corpusfile

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/chatbotconfig"
)

// stringList accepts a YAML scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*l = nil
			return nil
		}
		*l = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
	}
}

type knowledgeEntry struct {
	ID                 string     `yaml:"id"`
	Content            string     `yaml:"content"`
	TriggerPhrases     stringList `yaml:"trigger_phrases"`
	QuestionTypes      stringList `yaml:"question_types"`
	SemanticTags       stringList `yaml:"semantic_tags"`
	ContextType        string     `yaml:"context_type"`
	SalesPhase         stringList `yaml:"sales_phase"`
	EmotionalResonance string     `yaml:"emotional_resonance"`
	TemporalRelevance  string     `yaml:"temporal_relevance"`
	ImportanceWeight   *float64   `yaml:"importance_weight"`
	ConfidenceScore    *float64   `yaml:"confidence_score"`
	ActionRequired     bool       `yaml:"action_required"`
	ObjectionPattern   bool       `yaml:"objection_pattern"`
	AntiTriggers       stringList `yaml:"anti_triggers"`
	Embedding          []float32  `yaml:"embedding"`
}

type methodologyEntry struct {
	ID                 string     `yaml:"id"`
	Title              string     `yaml:"title"`
	Summary            string     `yaml:"summary"`
	Content            string     `yaml:"content"`
	MethodologyType    string     `yaml:"methodology_type"`
	SalesPhases        stringList `yaml:"sales_phases"`
	Priority           int        `yaml:"priority"`
	TriggerPhrases     stringList `yaml:"trigger_phrases"`
	ApplicableEmotions stringList `yaml:"applicable_emotions"`
	Embedding          []float32  `yaml:"embedding"`
}

type document struct {
	ChatbotID   string             `yaml:"chatbot_id"`
	Config      yaml.Node          `yaml:"config"`
	Knowledge   []knowledgeEntry   `yaml:"knowledge"`
	Methodology []methodologyEntry `yaml:"methodology"`
}

// Corpus is an immutable in-memory corpus for one chatbot.
type Corpus struct {
	ChatbotID   string
	knowledge   []domain.KnowledgeRecord
	methodology []domain.MethodologyRecord
	config      string
}

var (
	_ ports.KnowledgeCorpus   = (*Corpus)(nil)
	_ ports.MethodologyCorpus = (*Corpus)(nil)
)

func Load(path string) (*Corpus, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}
	corpus, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return corpus, nil
}

func Parse(raw []byte) (*Corpus, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse corpus", err)
	}

	chatbotID := strings.TrimSpace(doc.ChatbotID)
	if chatbotID == "" {
		chatbotID = "local"
	}
	corpus := &Corpus{ChatbotID: chatbotID}

	if !doc.Config.IsZero() {
		encoded, err := yaml.Marshal(&doc.Config)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse corpus config", err)
		}
		corpus.config = string(encoded)
	}

	seen := make(map[string]struct{}, len(doc.Knowledge))
	for i, entry := range doc.Knowledge {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = fmt.Sprintf("knowledge-%d", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse corpus", fmt.Errorf("duplicate knowledge id %q", id))
		}
		seen[id] = struct{}{}
		if id == domain.ConfigSentinelID {
			corpus.config = entry.Content
			continue
		}
		corpus.knowledge = append(corpus.knowledge, entry.toRecord(id, chatbotID))
	}

	for i, entry := range doc.Methodology {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = fmt.Sprintf("methodology-%d", i+1)
		}
		corpus.methodology = append(corpus.methodology, entry.toRecord(id))
	}
	return corpus, nil
}

func (e knowledgeEntry) toRecord(id, chatbotID string) domain.KnowledgeRecord {
	record := domain.KnowledgeRecord{
		ID:                id,
		ChatbotID:         chatbotID,
		Content:           e.Content,
		TriggerPhrases:    domain.NormalizeStrings(e.TriggerPhrases),
		QuestionTypes:     domain.NormalizeStrings(e.QuestionTypes),
		SemanticTags:      domain.NormalizeStrings(e.SemanticTags),
		AntiTriggers:      domain.NormalizeStrings(e.AntiTriggers),
		ContextType:       domain.ContextType(strings.ToLower(strings.TrimSpace(e.ContextType))),
		TemporalRelevance: domain.TemporalRelevance(strings.ToLower(strings.TrimSpace(e.TemporalRelevance))),
		ImportanceWeight:  domain.UnitOrDefault(e.ImportanceWeight, domain.DefaultUnitScore),
		ConfidenceScore:   domain.UnitOrDefault(e.ConfidenceScore, domain.DefaultUnitScore),
		ActionRequired:    e.ActionRequired,
		ObjectionPattern:  e.ObjectionPattern,
		SalesPhases:       parsePhases(e.SalesPhase),
		Embedding:         e.Embedding,
	}
	if emotion, ok := domain.ParseEmotion(e.EmotionalResonance); ok {
		record.EmotionalResonance = emotion
	}
	return record
}

func (e methodologyEntry) toRecord(id string) domain.MethodologyRecord {
	record := domain.MethodologyRecord{
		ID:              id,
		Title:           e.Title,
		Summary:         e.Summary,
		Content:         e.Content,
		MethodologyType: domain.MethodologyType(strings.ToLower(strings.TrimSpace(e.MethodologyType))),
		SalesPhases:     parsePhases(e.SalesPhases),
		Priority:        e.Priority,
		TriggerPhrases:  domain.NormalizeStrings(e.TriggerPhrases),
		Embedding:       e.Embedding,
	}
	for _, raw := range e.ApplicableEmotions {
		if emotion, ok := domain.ParseEmotion(raw); ok {
			record.ApplicableEmotions = append(record.ApplicableEmotions, emotion)
		}
	}
	return record
}

func parsePhases(raw []string) []domain.SalesPhase {
	phases := make([]domain.SalesPhase, 0, len(raw))
	for _, item := range raw {
		if phase, ok := domain.ParseSalesPhase(item); ok {
			phases = append(phases, phase)
		}
	}
	return phases
}

func (c *Corpus) ListKnowledge(context.Context, string) ([]domain.KnowledgeRecord, error) {
	return append([]domain.KnowledgeRecord(nil), c.knowledge...), nil
}

func (c *Corpus) GetKnowledge(_ context.Context, _ string, id string) (*domain.KnowledgeRecord, error) {
	if id == domain.ConfigSentinelID && c.config != "" {
		return &domain.KnowledgeRecord{ID: id, ChatbotID: c.ChatbotID, Content: c.config}, nil
	}
	for _, record := range c.knowledge {
		if record.ID == id {
			return &record, nil
		}
	}
	return nil, domain.WrapError(domain.ErrRecordNotFound, "get knowledge", fmt.Errorf("%s", id))
}

func (c *Corpus) ListMethodology(context.Context, string) ([]domain.MethodologyRecord, error) {
	return append([]domain.MethodologyRecord(nil), c.methodology...), nil
}

func (c *Corpus) GetMethodology(_ context.Context, id string) (*domain.MethodologyRecord, error) {
	for _, record := range c.methodology {
		if record.ID == id {
			return &record, nil
		}
	}
	return nil, domain.WrapError(domain.ErrRecordNotFound, "get methodology", fmt.Errorf("%s", id))
}

// Config overlays the file's chatbot configuration onto defaults.
func (c *Corpus) Config(defaults domain.ChatbotConfig) (domain.ChatbotConfig, error) {
	cfg, err := chatbotconfig.Overlay(defaults, c.config)
	if err != nil {
		return domain.ChatbotConfig{}, err
	}
	cfg.ChatbotID = c.ChatbotID
	return cfg, nil
}

// Dimensions reports the embedding size shared by the records that carry
// one, or 0 when none do.
func (c *Corpus) Dimensions() int {
	for _, record := range c.knowledge {
		if len(record.Embedding) > 0 {
			return len(record.Embedding)
		}
	}
	for _, record := range c.methodology {
		if len(record.Embedding) > 0 {
			return len(record.Embedding)
		}
	}
	return 0
}
