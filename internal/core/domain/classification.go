package domain

// PhaseDecision explains how the sales phase of a turn was chosen.
type PhaseDecision struct {
	Phase             SalesPhase   `json:"phase"`
	Previous          SalesPhase   `json:"previous"`
	Changed           bool         `json:"changed"`
	MatchedIndicators []string     `json:"matched_indicators"`
	Outranked         []SalesPhase `json:"outranked,omitempty"`
	Reasoning         string       `json:"reasoning"`
}

type EmotionDecision struct {
	Emotion           Emotion   `json:"emotion"`
	MatchedIndicators []string  `json:"matched_indicators"`
	Outranked         []Emotion `json:"outranked,omitempty"`
	Reasoning         string    `json:"reasoning"`
}

type HandoffDecision struct {
	Enabled        bool   `json:"enabled"`
	Requested      bool   `json:"requested"`
	MatchedTrigger string `json:"matched_trigger,omitempty"`
	Reasoning      string `json:"reasoning"`
}
