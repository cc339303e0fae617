package lexical

import "strings"

const (
	minKeywordRunes     = 2
	minPartialRunes     = 4
	minContainmentRunes = 3

	// PartialMatchWeight is the credit given to a plural/prefix match.
	PartialMatchWeight = 0.5
)

// KeywordSet is an order-preserving set of normalized keywords.
type KeywordSet struct {
	ordered []string
	index   map[string]struct{}
}

// Keywords tokenizes s and removes stop words and single characters.
func Keywords(s string) KeywordSet {
	tokens := Tokens(s)
	set := KeywordSet{
		ordered: make([]string, 0, len(tokens)),
		index:   make(map[string]struct{}, len(tokens)),
	}
	for _, token := range tokens {
		if len([]rune(token)) < minKeywordRunes || IsStopWord(token) {
			continue
		}
		if _, seen := set.index[token]; seen {
			continue
		}
		set.index[token] = struct{}{}
		set.ordered = append(set.ordered, token)
	}
	return set
}

func (k KeywordSet) Len() int { return len(k.ordered) }

func (k KeywordSet) List() []string { return k.ordered }

func (k KeywordSet) Has(token string) bool {
	_, ok := k.index[token]
	return ok
}

// MatchWeight returns 1 when token is present verbatim, PartialMatchWeight
// when some keyword is a plural or prefix variant of it, and 0 otherwise.
func (k KeywordSet) MatchWeight(token string) float64 {
	if k.Has(token) {
		return 1
	}
	for _, candidate := range k.ordered {
		if PartialMatch(token, candidate) {
			return PartialMatchWeight
		}
	}
	return 0
}

// ContainmentWeight scores a tag against the set: 1 for an exact keyword,
// 0.5 when the tag contains a keyword or a keyword contains the tag.
func (k KeywordSet) ContainmentWeight(tag string) float64 {
	if k.Has(tag) {
		return 1
	}
	if len([]rune(tag)) < minContainmentRunes {
		return 0
	}
	for _, candidate := range k.ordered {
		if len([]rune(candidate)) < minContainmentRunes {
			continue
		}
		if strings.Contains(tag, candidate) || strings.Contains(candidate, tag) {
			return 0.5
		}
	}
	return 0
}

// PartialMatch reports whether a and b are the same word up to a plural
// suffix, or one is a prefix of the other. Both must be normalized.
func PartialMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len([]rune(a)) < minPartialRunes || len([]rune(b)) < minPartialRunes {
		return false
	}
	if singular(a) == singular(b) {
		return true
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func singular(w string) string {
	switch {
	case strings.HasSuffix(w, "oes"), strings.HasSuffix(w, "aes"):
		return w[:len(w)-3] + "ao"
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "ses"), strings.HasSuffix(w, "xes"), strings.HasSuffix(w, "res"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "ss"):
		return w
	case strings.HasSuffix(w, "s"):
		return w[:len(w)-1]
	default:
		return w
	}
}

// PhraseCoverage returns the fraction of the phrase's keywords matched by the
// set, counting partial matches at PartialMatchWeight. Phrases with no
// keywords cover nothing.
func PhraseCoverage(phrase string, set KeywordSet) float64 {
	phraseKeywords := Keywords(phrase)
	if phraseKeywords.Len() == 0 || set.Len() == 0 {
		return 0
	}
	matched := 0.0
	for _, keyword := range phraseKeywords.List() {
		matched += set.MatchWeight(keyword)
	}
	return matched / float64(phraseKeywords.Len())
}

// BestPhraseCoverage is the maximum PhraseCoverage over phrases.
func BestPhraseCoverage(phrases []string, set KeywordSet) float64 {
	best := 0.0
	for _, phrase := range phrases {
		if c := PhraseCoverage(phrase, set); c > best {
			best = c
		}
	}
	return best
}

// ExactShare returns the fraction of the phrase's keywords present verbatim.
func ExactShare(phrase string, set KeywordSet) float64 {
	phraseKeywords := Keywords(phrase)
	if phraseKeywords.Len() == 0 {
		return 0
	}
	present := 0
	for _, keyword := range phraseKeywords.List() {
		if set.Has(keyword) {
			present++
		}
	}
	return float64(present) / float64(phraseKeywords.Len())
}

// ContainsAny returns the needles that occur in the normalized haystack.
// Needles are expected to be normalized already.
func ContainsAny(normalizedHaystack string, needles []string) []string {
	var hits []string
	for _, needle := range needles {
		if needle != "" && strings.Contains(normalizedHaystack, needle) {
			hits = append(hits, needle)
		}
	}
	return hits
}

// NormalizeAll normalizes every entry and drops the empty ones.
func NormalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(Normalize(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// PhraseText renders s as normalized tokens separated by single spaces, with
// a leading and trailing space. Patterns from PhrasePattern then match only
// where a word starts, so "oi" does not fire inside "depois".
func PhraseText(s string) string {
	tokens := Tokens(s)
	if len(tokens) == 0 {
		return ""
	}
	return " " + strings.Join(tokens, " ") + " "
}

// PhrasePattern builds a word-start anchored pattern for PhraseText.
func PhrasePattern(s string) string {
	tokens := Tokens(s)
	if len(tokens) == 0 {
		return ""
	}
	return " " + strings.Join(tokens, " ")
}

// PhrasePatterns applies PhrasePattern to every entry, dropping empty ones.
func PhrasePatterns(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if p := PhrasePattern(v); p != "" {
			out = append(out, p)
		}
	}
	return out
}
