package retrieval

import (
	"strings"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/lexical"
)

// preparedQuery caches the lexical analysis of the query text so it is done
// once per pass instead of once per candidate.
type preparedQuery struct {
	domain.RetrievalQuery
	normalized string
	phraseText string
	keywords   lexical.KeywordSet
}

func prepare(q domain.RetrievalQuery) preparedQuery {
	return preparedQuery{
		RetrievalQuery: q,
		normalized:     lexical.Normalize(q.Text),
		phraseText:     lexical.PhraseText(q.Text),
		keywords:       lexical.Keywords(q.Text),
	}
}

func (q preparedQuery) triggerScore(phrases []string) float64 {
	return lexical.BestPhraseCoverage(phrases, q.keywords)
}

func (q preparedQuery) tagScore(tags []string) float64 {
	total, counted := 0.0, 0
	for _, tag := range tags {
		tag = strings.TrimSpace(lexical.Normalize(tag))
		if tag == "" {
			continue
		}
		counted++
		total += q.keywords.ContainmentWeight(tag)
	}
	if counted == 0 {
		return 0
	}
	return min(total/float64(counted), 1)
}

func (q preparedQuery) questionScore(questionTypes []string) float64 {
	patterns := lexical.NormalizeAll(questionTypes)
	if len(patterns) == 0 {
		return 0
	}
	hits := len(lexical.ContainsAny(q.normalized, patterns))
	return float64(hits) / float64(len(patterns))
}

// antiTriggered returns the first anti-trigger phrase whose keywords are
// more than half present in the query.
func (q preparedQuery) antiTriggered(phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if lexical.ExactShare(phrase, q.keywords) > 0.5 {
			return phrase, true
		}
	}
	return "", false
}
