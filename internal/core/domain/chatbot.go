package domain

// ChatbotConfig is the per-chatbot configuration read by the orchestrator.
// It is never mutated during a turn.
type ChatbotConfig struct {
	ChatbotID string `json:"chatbot_id" yaml:"-"`

	Weights               RetrievalWeights `json:"weights" yaml:"weights"`
	MaxKnowledgeResults   int              `json:"max_knowledge_results" yaml:"max_knowledge_results"`
	MaxMethodologyResults int              `json:"max_methodology_results" yaml:"max_methodology_results"`

	EnrichmentEnabled bool `json:"enrichment_enabled" yaml:"enrichment_enabled"`
	MaxEnrichment     int  `json:"max_enrichment" yaml:"max_enrichment"`

	HandoffEnabled  bool     `json:"handoff_enabled" yaml:"handoff_enabled"`
	HandoffTriggers []string `json:"handoff_triggers" yaml:"handoff_triggers"`
	HandoffMessage  string   `json:"handoff_message" yaml:"handoff_message"`

	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`

	Personality        string `json:"personality" yaml:"personality"`
	Greeting           string `json:"greeting" yaml:"greeting"`
	CustomInstructions string `json:"custom_instructions" yaml:"custom_instructions"`
}

const (
	DefaultMaxKnowledgeResults   = 5
	DefaultMaxMethodologyResults = 5
	DefaultMaxEnrichment         = 2
)

var DefaultHandoffTriggers = []string{
	"talk to human",
	"real person",
	"speak to someone",
}

const DefaultHandoffMessage = "Of course. I'm passing this conversation to someone from our team, they will reply here as soon as possible."

func DefaultChatbotConfig() ChatbotConfig {
	return ChatbotConfig{
		Weights:               DefaultRetrievalWeights(),
		MaxKnowledgeResults:   DefaultMaxKnowledgeResults,
		MaxMethodologyResults: DefaultMaxMethodologyResults,
		EnrichmentEnabled:     true,
		MaxEnrichment:         DefaultMaxEnrichment,
		HandoffEnabled:        true,
		HandoffTriggers:       append([]string(nil), DefaultHandoffTriggers...),
		HandoffMessage:        DefaultHandoffMessage,
		Temperature:           0.7,
		MaxTokens:             800,
	}
}

// Normalize replaces unusable values with defaults.
func (c ChatbotConfig) Normalize() ChatbotConfig {
	def := DefaultChatbotConfig()
	if c.MaxKnowledgeResults <= 0 {
		c.MaxKnowledgeResults = def.MaxKnowledgeResults
	}
	if c.MaxMethodologyResults <= 0 {
		c.MaxMethodologyResults = def.MaxMethodologyResults
	}
	if c.MaxEnrichment < 0 {
		c.MaxEnrichment = def.MaxEnrichment
	}
	if c.HandoffMessage == "" {
		c.HandoffMessage = def.HandoffMessage
	}
	c.HandoffTriggers = NormalizeStrings(c.HandoffTriggers)
	if c.Temperature < 0 || c.Temperature > 2 {
		c.Temperature = def.Temperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	return c
}
