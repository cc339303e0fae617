package lexical

// stopWords holds English and Portuguese function words, already folded.
var stopWords = toSet([]string{
	// en
	"a", "about", "after", "all", "also", "am", "an", "and", "any", "are", "as", "at",
	"be", "been", "before", "being", "but", "by", "can", "could", "did", "do", "does",
	"for", "from", "had", "has", "have", "he", "her", "here", "him", "his", "how", "i",
	"if", "in", "into", "is", "it", "its", "just", "me", "my", "of", "on", "or", "our",
	"she", "so", "some", "than", "that", "the", "their", "them", "then", "there", "these",
	"they", "this", "those", "to", "too", "up", "us", "very", "was", "we", "were", "what",
	"when", "where", "which", "while", "who", "why", "will", "with", "would", "you", "your",
	// pt
	"ao", "aos", "as", "com", "como", "da", "das", "de", "del", "do", "dos", "e", "ela",
	"ele", "eles", "em", "entao", "era", "essa", "esse", "esta", "este", "eu", "foi",
	"ha", "isso", "isto", "ja", "la", "lhe", "mais", "mas", "me", "meu", "minha", "muito",
	"na", "nas", "no", "nos", "num", "numa", "o", "os", "ou", "para", "pela", "pelo",
	"por", "pra", "pro", "qual", "quando", "que", "se", "sem", "ser", "seu", "sua", "tambem",
	"te", "tem", "um", "uma", "umas", "uns", "voce", "voces", "vc",
})

func toSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}
