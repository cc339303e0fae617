package chatbotconfig

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

// Store resolves a chatbot's configuration by overlaying the YAML content of
// its reserved config record onto the process defaults.
type Store struct {
	corpus   ports.KnowledgeCorpus
	defaults domain.ChatbotConfig
	logger   zerolog.Logger
}

var _ ports.ChatbotConfigStore = (*Store)(nil)

func NewStore(corpus ports.KnowledgeCorpus, defaults domain.ChatbotConfig, logger zerolog.Logger) *Store {
	return &Store{corpus: corpus, defaults: defaults, logger: logger}
}

func (s *Store) Get(ctx context.Context, chatbotID string) (domain.ChatbotConfig, error) {
	cfg := s.base(chatbotID)

	record, err := s.corpus.GetKnowledge(ctx, chatbotID, domain.ConfigSentinelID)
	if err != nil {
		if domain.IsKind(err, domain.ErrRecordNotFound) {
			return cfg, nil
		}
		return domain.ChatbotConfig{}, fmt.Errorf("load chatbot config: %w", err)
	}

	overlaid, err := Overlay(cfg, record.Content)
	if err != nil {
		s.logger.Warn().Err(err).Str("chatbot_id", chatbotID).Msg("chatbot_config_unreadable")
		return cfg, nil
	}
	overlaid.ChatbotID = chatbotID
	return overlaid, nil
}

func (s *Store) base(chatbotID string) domain.ChatbotConfig {
	cfg := s.defaults
	cfg.HandoffTriggers = slices.Clone(s.defaults.HandoffTriggers)
	cfg.ChatbotID = chatbotID
	return cfg
}

// Overlay applies the keys present in document on top of base. Keys that
// are absent keep the base value.
func Overlay(base domain.ChatbotConfig, document string) (domain.ChatbotConfig, error) {
	out := base
	out.HandoffTriggers = slices.Clone(base.HandoffTriggers)
	if strings.TrimSpace(document) == "" {
		return out, nil
	}
	if err := yaml.Unmarshal([]byte(document), &out); err != nil {
		return base, fmt.Errorf("decode chatbot config: %w", err)
	}
	return out, nil
}
