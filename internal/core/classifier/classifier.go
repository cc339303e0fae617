// Package classifier detects the sales phase, customer emotion and human
// handoff requests of a message using prioritized indicator lists.
package classifier

import (
	"fmt"
	"strings"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/lexical"
)

// indicator pairs the configured phrase with its word-start pattern.
type indicator struct {
	phrase  string
	pattern string
}

type phaseRule struct {
	phase      domain.SalesPhase
	indicators []indicator
}

type emotionRule struct {
	emotion    domain.Emotion
	indicators []indicator
}

// Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	phases   []phaseRule
	emotions []emotionRule
}

// New builds a classifier from the default indicator tables.
func New() *Classifier {
	return NewWithIndicators(PhaseIndicators, EmotionIndicators)
}

// NewWithIndicators builds a classifier from custom tables. Phases are still
// checked in PhasePriority order and emotions in domain.DetectableEmotions
// order; entries missing from the tables never match.
func NewWithIndicators(phases map[domain.SalesPhase][]string, emotions map[domain.Emotion][]string) *Classifier {
	c := &Classifier{}
	for _, phase := range PhasePriority {
		c.phases = append(c.phases, phaseRule{phase: phase, indicators: compile(phases[phase])})
	}
	for _, emotion := range domain.DetectableEmotions {
		c.emotions = append(c.emotions, emotionRule{emotion: emotion, indicators: compile(emotions[emotion])})
	}
	return c
}

// DetectPhase returns the first phase, in reverse-funnel order, whose
// indicators occur in message. Without a match the previous phase is kept.
func (c *Classifier) DetectPhase(message string, previous domain.SalesPhase) domain.PhaseDecision {
	if previous == "" {
		previous = domain.PhaseGreeting
	}
	text := lexical.PhraseText(message)

	decision := domain.PhaseDecision{Phase: previous, Previous: previous}
	for _, rule := range c.phases {
		hits := match(text, rule.indicators)
		if len(hits) == 0 {
			continue
		}
		if decision.MatchedIndicators == nil {
			decision.Phase = rule.phase
			decision.MatchedIndicators = hits
			continue
		}
		decision.Outranked = append(decision.Outranked, rule.phase)
	}

	if decision.MatchedIndicators == nil {
		decision.MatchedIndicators = []string{}
		decision.Reasoning = fmt.Sprintf("no phase indicator matched, keeping %s", previous)
		return decision
	}

	decision.Changed = decision.Phase != previous
	decision.Reasoning = fmt.Sprintf("matched %s indicator(s) %s", decision.Phase, quoteList(decision.MatchedIndicators))
	if len(decision.Outranked) > 0 {
		decision.Reasoning += fmt.Sprintf("; outranks %s", joinPhases(decision.Outranked))
	}
	return decision
}

// DetectEmotion returns the first emotion whose indicators occur in message,
// or neutral.
func (c *Classifier) DetectEmotion(message string) domain.EmotionDecision {
	text := lexical.PhraseText(message)

	decision := domain.EmotionDecision{Emotion: domain.EmotionNeutral}
	for _, rule := range c.emotions {
		hits := match(text, rule.indicators)
		if len(hits) == 0 {
			continue
		}
		if decision.MatchedIndicators == nil {
			decision.Emotion = rule.emotion
			decision.MatchedIndicators = hits
			continue
		}
		decision.Outranked = append(decision.Outranked, rule.emotion)
	}

	if decision.MatchedIndicators == nil {
		decision.MatchedIndicators = []string{}
		decision.Reasoning = "no emotion indicator matched, defaulting to neutral"
		return decision
	}
	decision.Reasoning = fmt.Sprintf("matched %s indicator(s) %s", decision.Emotion, quoteList(decision.MatchedIndicators))
	return decision
}

// DetectHandoff reports whether the message asks for a human. It must run
// before any other classification of the turn.
func DetectHandoff(message string, enabled bool, triggers []string) domain.HandoffDecision {
	if !enabled {
		return domain.HandoffDecision{Reasoning: "human handoff disabled"}
	}
	text := lexical.PhraseText(message)
	for _, trigger := range triggers {
		pattern := lexical.PhrasePattern(trigger)
		if pattern != "" && strings.Contains(text, pattern) {
			return domain.HandoffDecision{
				Enabled:        true,
				Requested:      true,
				MatchedTrigger: trigger,
				Reasoning:      fmt.Sprintf("message contains handoff trigger %q", trigger),
			}
		}
	}
	return domain.HandoffDecision{Enabled: true, Reasoning: "no handoff trigger matched"}
}

func compile(phrases []string) []indicator {
	out := make([]indicator, 0, len(phrases))
	for _, phrase := range phrases {
		if pattern := lexical.PhrasePattern(phrase); pattern != "" {
			out = append(out, indicator{phrase: phrase, pattern: pattern})
		}
	}
	return out
}

func match(phraseText string, indicators []indicator) []string {
	var hits []string
	for _, ind := range indicators {
		if strings.Contains(phraseText, ind.pattern) {
			hits = append(hits, ind.phrase)
		}
	}
	return hits
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return strings.Join(quoted, ", ")
}

func joinPhases(phases []domain.SalesPhase) string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
