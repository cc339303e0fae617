package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/sales-assistant/internal/core/classifier"
	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

type classification struct {
	Phase   domain.PhaseDecision   `json:"phase"`
	Emotion domain.EmotionDecision `json:"emotion"`
	Handoff domain.HandoffDecision `json:"handoff"`
}

func newClassifyCmd(root *rootOptions) *cobra.Command {
	var previous string
	cmd := &cobra.Command{
		Use:   "classify <message>",
		Short: "Detect sales phase, customer emotion and handoff intent for one message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, err := parsePhaseFlag(previous)
			if err != nil {
				return err
			}
			message := strings.Join(args, " ")
			defaults := domain.DefaultChatbotConfig()

			c := classifier.New()
			result := classification{
				Phase:   c.DetectPhase(message, prev),
				Emotion: c.DetectEmotion(message),
				Handoff: classifier.DetectHandoff(message, defaults.HandoffEnabled, defaults.HandoffTriggers),
			}

			out := cmd.OutOrStdout()
			if root.jsonOutput {
				return writeJSON(out, result)
			}
			fmt.Fprintf(out, "phase:   %s (previous %s)\n", result.Phase.Phase, result.Phase.Previous)
			fmt.Fprintf(out, "         %s\n", result.Phase.Reasoning)
			fmt.Fprintf(out, "emotion: %s\n", result.Emotion.Emotion)
			fmt.Fprintf(out, "         %s\n", result.Emotion.Reasoning)
			fmt.Fprintf(out, "handoff: %t\n", result.Handoff.Requested)
			return nil
		},
	}
	cmd.Flags().StringVar(&previous, "previous-phase", string(domain.PhaseGreeting), "phase the conversation is currently in")
	return cmd
}

func parsePhaseFlag(raw string) (domain.SalesPhase, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.PhaseGreeting, nil
	}
	phase, ok := domain.ParseSalesPhase(raw)
	if !ok {
		return "", fmt.Errorf("unknown sales phase %q", raw)
	}
	return phase, nil
}
