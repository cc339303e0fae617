package retrieval

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/lexical"
)

const minSharedTags = 2

// Enrich appends up to maxAdditional records from pool that share at least
// two semantic tags with the selected records. The selected matches are
// returned first and unchanged; additions carry Enrichment=true.
func Enrich(selected []domain.KnowledgeMatch, pool []domain.KnowledgeRecord, maxAdditional int) []domain.KnowledgeMatch {
	out := slices.Clone(selected)
	if maxAdditional <= 0 || len(selected) == 0 {
		return out
	}

	selectedTags := make(map[string]struct{})
	taken := make(map[string]struct{}, len(selected))
	for _, match := range selected {
		taken[match.Record.ID] = struct{}{}
		for _, tag := range match.Record.SemanticTags {
			if tag = normalizeTag(tag); tag != "" {
				selectedTags[tag] = struct{}{}
			}
		}
	}
	if len(selectedTags) < minSharedTags {
		return out
	}

	additions := make([]domain.KnowledgeMatch, 0)
	for _, record := range pool {
		if record.IsSentinel() {
			continue
		}
		if _, ok := taken[record.ID]; ok {
			continue
		}
		if sharedTagCount(record.SemanticTags, selectedTags) < minSharedTags {
			continue
		}
		taken[record.ID] = struct{}{}

		importance := domain.ClampUnit(record.ImportanceWeight)
		scores := domain.KnowledgeScores{
			Relevance:  enrichmentRelevance,
			Importance: importance,
			Value:      enrichmentValueRate * importance,
		}
		scores.Final = scores.Relevance + scores.Value
		additions = append(additions, domain.KnowledgeMatch{
			Record:     record,
			Scores:     scores,
			FinalScore: scores.Final,
			Enrichment: true,
		})
	}

	slices.SortStableFunc(additions, func(a, b domain.KnowledgeMatch) int {
		if c := cmp.Compare(b.FinalScore, a.FinalScore); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.ID, b.Record.ID)
	})
	if len(additions) > maxAdditional {
		additions = additions[:maxAdditional]
	}
	return append(out, additions...)
}

func sharedTagCount(tags []string, with map[string]struct{}) int {
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = normalizeTag(tag)
		if tag == "" {
			continue
		}
		if _, ok := with[tag]; ok {
			seen[tag] = struct{}{}
		}
	}
	return len(seen)
}

func normalizeTag(tag string) string {
	return strings.TrimSpace(lexical.Normalize(tag))
}
