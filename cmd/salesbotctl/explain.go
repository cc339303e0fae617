package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kirillkom/sales-assistant/internal/config"
	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
	"github.com/kirillkom/sales-assistant/internal/core/usecase"
	"github.com/kirillkom/sales-assistant/internal/infrastructure/corpusfile"
)

type explainOptions struct {
	corpusPath     string
	defaultsPath   string
	phase          string
	queryEmbedding string
	showPrompt     bool
}

func newExplainCmd(root *rootOptions) *cobra.Command {
	opts := &explainOptions{}
	cmd := &cobra.Command{
		Use:   "explain <message>",
		Short: "Score a YAML corpus against one message and print why each record was kept or dropped",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), root, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&opts.corpusPath, "corpus", "", "YAML corpus file (required)")
	cmd.Flags().StringVar(&opts.defaultsPath, "defaults", "", "chatbot defaults YAML applied before the corpus config")
	cmd.Flags().StringVar(&opts.phase, "phase", string(domain.PhaseGreeting), "phase the conversation is currently in")
	cmd.Flags().StringVar(&opts.queryEmbedding, "query-embedding", "", "comma separated query vector; vector similarity scores zero without it")
	cmd.Flags().BoolVar(&opts.showPrompt, "prompt", false, "print the assembled system prompt")
	_ = cmd.MarkFlagRequired("corpus")
	return cmd
}

// staticEmbedder returns the same vector for every message.
type staticEmbedder []float32

func (s staticEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return s, nil
}

func runExplain(ctx context.Context, out, errOut io.Writer, root *rootOptions, opts *explainOptions, message string) error {
	phase, err := parsePhaseFlag(opts.phase)
	if err != nil {
		return err
	}
	corpus, err := corpusfile.Load(opts.corpusPath)
	if err != nil {
		return err
	}
	defaults, err := config.LoadChatbotDefaults(opts.defaultsPath)
	if err != nil {
		return err
	}
	cfg, err := corpus.Config(defaults)
	if err != nil {
		return err
	}

	logger := zerolog.Nop()
	if root.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: errOut, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}

	var embedder ports.Embedder
	if strings.TrimSpace(opts.queryEmbedding) != "" {
		vector, err := parseVector(opts.queryEmbedding)
		if err != nil {
			return err
		}
		if dims := corpus.Dimensions(); dims > 0 && dims != len(vector) {
			fmt.Fprintf(errOut, "warning: query vector has %d dimensions, corpus records have %d\n", len(vector), dims)
		}
		embedder = vector
	}

	state := domain.NewConversationState("explain", corpus.ChatbotID, time.Now().UTC())
	state.CurrentPhase = phase

	explainer := usecase.NewExplainer(corpus, corpus, embedder, logger)
	trace, err := explainer.Explain(ctx, state, cfg, message)
	if err != nil {
		return err
	}

	if root.jsonOutput {
		return writeJSON(out, trace)
	}
	printTrace(out, trace, opts.showPrompt)
	return nil
}

func parseVector(raw string) (staticEmbedder, error) {
	parts := strings.Split(raw, ",")
	out := make(staticEmbedder, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid query embedding value %q: %w", part, err)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

func printTrace(out io.Writer, trace *domain.TurnDebug, showPrompt bool) {
	if trace.Handoff.Requested {
		fmt.Fprintf(out, "handoff requested: %s\n", trace.Handoff.Reasoning)
		return
	}
	if trace.Phase != nil {
		fmt.Fprintf(out, "phase:   %s (%s)\n", trace.Phase.Phase, trace.Phase.Reasoning)
	}
	if trace.Emotion != nil {
		fmt.Fprintf(out, "emotion: %s (%s)\n", trace.Emotion.Emotion, trace.Emotion.Reasoning)
	}

	fmt.Fprintln(out, "\nknowledge candidates:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOUTCOME\tRELEVANCE\tVALUE\tFINAL\tDETAIL")
	for _, ev := range trace.Knowledge {
		relevance, value, final := "-", "-", "-"
		if ev.Knowledge != nil {
			relevance = formatScore(ev.Knowledge.Relevance)
			value = formatScore(ev.Knowledge.Value)
			final = formatScore(ev.Knowledge.Final)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", ev.RecordID, ev.Outcome, relevance, value, final, ev.Detail)
	}
	_ = tw.Flush()

	if len(trace.Enriched) > 0 {
		fmt.Fprintln(out, "\nenriched:")
		for _, match := range trace.Enriched {
			fmt.Fprintf(out, "  %s (%s)\n", match.Record.ID, formatScore(match.FinalScore))
		}
	}

	fmt.Fprintln(out, "\nmethodology:")
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOUTCOME\tFINAL\tDETAIL")
	for _, ev := range trace.Methodology {
		final := "-"
		if ev.Methodology != nil {
			final = formatScore(ev.Methodology.Final)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ev.RecordID, ev.Outcome, final, ev.Detail)
	}
	_ = tw.Flush()

	if showPrompt {
		fmt.Fprintf(out, "\nprompt:\n%s\n", trace.Prompt)
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
