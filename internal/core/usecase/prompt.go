package usecase

import (
	"fmt"
	"math"
	"strings"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

// ethicalPreamble is always the first prompt section and cannot be replaced
// by chatbot configuration.
const ethicalPreamble = `You are a sales assistant talking to a customer on behalf of a seller.
Rules that always apply:
- Be honest. Never invent prices, conditions, stock or deadlines that are not in the knowledge below.
- If the knowledge below does not answer the question, say you will check with the team.
- Never pressure, manipulate or mislead the customer.
- Respect the customer's decision when they decline.
- Offer a human contact whenever the customer asks for one.`

const noKnowledgeMarker = "No knowledge retrieved for this message. Do not guess facts about the product or its conditions."

const noMethodologyMarker = "No specific technique selected. Keep a consultative tone."

type promptInput struct {
	Phase      domain.SalesPhase
	Emotion    domain.Emotion
	Knowledge  []domain.KnowledgeMatch
	Techniques []domain.MethodologyMatch
	Config     domain.ChatbotConfig
}

// buildSystemPrompt renders the sections in a fixed order: preamble, state,
// knowledge, methodology, chatbot additions.
func buildSystemPrompt(in promptInput) string {
	var b strings.Builder
	b.WriteString(ethicalPreamble)

	b.WriteString("\n\n## Conversation state\n")
	fmt.Fprintf(&b, "Current sales phase: %s\n", in.Phase)
	fmt.Fprintf(&b, "Detected customer emotion: %s\n", in.Emotion)

	b.WriteString("\n## Knowledge\n")
	if len(in.Knowledge) == 0 {
		b.WriteString(noKnowledgeMarker)
		b.WriteString("\n")
	}
	for i, match := range in.Knowledge {
		fmt.Fprintf(&b, "%d. [%d%% relevance] %s\n", i+1, relevancePercent(match.FinalScore), singleLine(match.Record.Content))
		if match.Record.ActionRequired {
			b.WriteString("   Action required: bring this up with the customer.\n")
		}
		if match.Record.ObjectionPattern {
			b.WriteString("   Use it to answer the customer's objection.\n")
		}
	}

	b.WriteString("\n## Sales methodology\n")
	if len(in.Techniques) == 0 {
		b.WriteString(noMethodologyMarker)
		b.WriteString("\n")
	}
	for i, match := range in.Techniques {
		title := strings.TrimSpace(match.Record.Title)
		if title == "" {
			title = string(match.Record.MethodologyType)
		}
		body := strings.TrimSpace(match.Record.Summary)
		if body == "" {
			body = match.Record.Content
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, singleLine(title), singleLine(body))
	}

	additions := chatbotAdditions(in.Config)
	if additions != "" {
		b.WriteString("\n## Chatbot profile\n")
		b.WriteString(additions)
	}

	return strings.TrimRight(b.String(), "\n")
}

func chatbotAdditions(cfg domain.ChatbotConfig) string {
	var b strings.Builder
	if v := strings.TrimSpace(cfg.Personality); v != "" {
		fmt.Fprintf(&b, "Personality: %s\n", v)
	}
	if v := strings.TrimSpace(cfg.Greeting); v != "" {
		fmt.Fprintf(&b, "Greeting: %s\n", v)
	}
	if v := strings.TrimSpace(cfg.CustomInstructions); v != "" {
		fmt.Fprintf(&b, "Additional instructions:\n%s\n", v)
	}
	return b.String()
}

// relevancePercent reports boosted scores as 100%.
func relevancePercent(score float64) int {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	return int(math.Round(math.Min(score, 1) * 100))
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
