package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
)

const testCorpus = `
chatbot_id: loja-1
knowledge:
  - id: pricing
    content: Parcelamos em até 12x sem juros.
    trigger_phrases: ["quanto fica a parcela"]
    semantic_tags: [parcela, pagamento]
    context_type: pricing
    sales_phase: negotiation
    importance_weight: 1
    confidence_score: 1
    action_required: true
    embedding: [1, 0]
  - id: warranty
    content: Garantia de 2 anos.
    trigger_phrases: ["qual a garantia"]
    sales_phase: presentation
    embedding: [0, 1]
methodology:
  - id: anchor
    title: Value anchoring
    summary: Restate the value first.
    methodology_type: value_proposition
    sales_phases: [negotiation]
    trigger_phrases: ["quanto fica"]
`

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCorpus), 0o600))
	return path
}

func TestClassifyPrintsDecisions(t *testing.T) {
	out, _, err := run(t, "classify", "oi,", "quanto", "fica?")
	require.NoError(t, err)

	assert.Contains(t, out, "phase:   negotiation (previous greeting)")
	assert.Contains(t, out, `"quanto fica"`)
	assert.Contains(t, out, "emotion: neutral")
	assert.Contains(t, out, "handoff: false")
}

func TestClassifyJSON(t *testing.T) {
	out, _, err := run(t, "classify", "--json", "--previous-phase", "presentation", "I want a real person")
	require.NoError(t, err)

	var got classification
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, domain.PhasePresentation, got.Phase.Previous)
	assert.True(t, got.Handoff.Requested)
	assert.NotEmpty(t, got.Handoff.MatchedTrigger)
}

func TestClassifyRejectsUnknownPhase(t *testing.T) {
	_, _, err := run(t, "classify", "--previous-phase", "discovery", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown sales phase "discovery"`)
}

func TestExplainTable(t *testing.T) {
	path := writeCorpus(t)
	out, _, err := run(t, "explain", "--corpus", path, "--phase", "negotiation", "--prompt", "quanto fica a parcela?")
	require.NoError(t, err)

	assert.Contains(t, out, "phase:   negotiation")
	assert.Contains(t, out, "knowledge candidates:")
	assert.Regexp(t, `pricing\s+selected`, out)
	assert.Regexp(t, `warranty\s+below_gatekeeper`, out)
	assert.Contains(t, out, "methodology:")
	assert.Contains(t, out, "anchor")
	assert.Contains(t, out, "Parcelamos em até 12x sem juros.")
}

func TestExplainJSONWithQueryEmbedding(t *testing.T) {
	path := writeCorpus(t)
	out, stderr, err := run(t, "explain", "--json", "--corpus", path, "--query-embedding", "1,0,0", "quanto fica a parcela?")
	require.NoError(t, err)
	assert.Contains(t, stderr, "query vector has 3 dimensions, corpus records have 2")

	var trace domain.TurnDebug
	require.NoError(t, json.Unmarshal([]byte(out), &trace))
	require.NotNil(t, trace.Phase)
	assert.Equal(t, domain.PhaseNegotiation, trace.Phase.Phase)
	require.NotEmpty(t, trace.Selected)
	assert.Equal(t, "pricing", trace.Selected[0].Record.ID)
}

func TestExplainHandoffSkipsRetrieval(t *testing.T) {
	path := writeCorpus(t)
	out, _, err := run(t, "explain", "--corpus", path, "can I speak to someone?")
	require.NoError(t, err)
	assert.Contains(t, out, "handoff requested")
	assert.NotContains(t, out, "knowledge candidates:")
}

func TestExplainErrors(t *testing.T) {
	_, _, err := run(t, "explain", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"corpus" not set`)

	path := writeCorpus(t)
	_, _, err = run(t, "explain", "--corpus", path, "--query-embedding", "1,x", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid query embedding value "x"`)

	_, _, err = run(t, "explain", "--corpus", filepath.Join(t.TempDir(), "missing.yaml"), "hello")
	require.Error(t, err)
}

func TestParseVector(t *testing.T) {
	v, err := parseVector(" 0.5, -1 ,2")
	require.NoError(t, err)
	assert.Equal(t, staticEmbedder{0.5, -1, 2}, v)
}
