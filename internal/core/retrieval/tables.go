package retrieval

import (
	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/lexical"
)

// Lookup tables for the value stage. Keyword lists are compiled to
// word-start patterns at init and matched against lexical.PhraseText.

var temporalScores = map[domain.TemporalRelevance]float64{
	domain.TemporalPersistent:  0.8,
	domain.TemporalSeasonal:    0.6,
	domain.TemporalConditional: 0.4,
	domain.TemporalArchived:    0.1,
}

const unknownTemporalScore = 0.5

// TemporalScore maps a temporal relevance label to its fixed score.
func TemporalScore(t domain.TemporalRelevance) float64 {
	if score, ok := temporalScores[t]; ok {
		return score
	}
	return unknownTemporalScore
}

// phaseDistanceScores is indexed by the funnel distance between phases.
var phaseDistanceScores = []float64{1.0, 0.6, 0.3}

const (
	distantPhaseScore = 0.1
	noPhaseScore      = 0.5
)

// PhaseAlignment scores how close the record's phases are to current. A
// record without phases is as far from any phase as a distant one.
func PhaseAlignment(recordPhases []domain.SalesPhase, current domain.SalesPhase) float64 {
	if current == "" {
		return noPhaseScore
	}
	currentIdx := domain.PhaseIndex(current)
	if currentIdx < 0 {
		return noPhaseScore
	}
	best := distantPhaseScore
	for _, p := range recordPhases {
		idx := domain.PhaseIndex(p)
		if idx < 0 {
			continue
		}
		distance := idx - currentIdx
		if distance < 0 {
			distance = -distance
		}
		if distance < len(phaseDistanceScores) && phaseDistanceScores[distance] > best {
			best = phaseDistanceScores[distance]
		}
	}
	return best
}

var contextKeywords = foldTable(map[domain.ContextType][]string{
	domain.ContextProductInfo: {
		"product", "feature", "spec", "model", "how does", "works", "produto", "funciona",
		"caracteristica", "modelo", "recurso", "detalhe",
	},
	domain.ContextPricing: {
		"price", "cost", "how much", "payment", "installment", "discount", "monthly",
		"preco", "quanto", "custa", "valor", "parcela", "pagamento", "desconto", "mensal", "pix",
	},
	domain.ContextObjectionHandling: {
		"expensive", "not sure", "worried", "problem", "caro", "duvida", "problema",
		"receio", "medo", "nao sei", "porem",
	},
	domain.ContextCompetitorComparison: {
		"competitor", "compare", "versus", "vs", "better than", "other brand", "concorrente",
		"comparar", "melhor que", "outra marca", "diferenca",
	},
	domain.ContextTrustBuilding: {
		"trust", "review", "testimonial", "guarantee", "safe", "reliable", "confiavel",
		"confianca", "garantia", "seguro", "depoimento", "avaliacao", "reclame aqui",
	},
	domain.ContextProcessExplanation: {
		"how to", "process", "step", "delivery", "shipping", "install", "como funciona",
		"processo", "etapa", "entrega", "frete", "instalacao", "prazo",
	},
	domain.ContextLegalTerms: {
		"contract", "terms", "refund", "cancel", "warranty", "policy", "contrato", "termos",
		"reembolso", "cancelar", "cancelamento", "politica", "multa",
	},
	domain.ContextFAQ: {
		"question", "can i", "is it", "do you", "pergunta", "posso", "voces tem", "tem como",
		"e possivel",
	},
	domain.ContextClosingTechnique: {
		"buy", "order", "sign", "purchase", "checkout", "ready", "comprar", "fechar", "pedido",
		"assinar", "quero", "vamos",
	},
	domain.ContextFollowUp: {
		"later", "think about", "follow up", "get back", "next week", "depois", "pensar",
		"retorno", "semana que vem", "me chama", "aguardo",
	},
})

// ContextKeywordDensity is matches / max(len(keywords)*0.3, 1), capped at 1.
func ContextKeywordDensity(ct domain.ContextType, text string) float64 {
	return contextDensity(ct, lexical.PhraseText(text))
}

func contextDensity(ct domain.ContextType, phraseText string) float64 {
	keywords := contextKeywords[ct]
	if len(keywords) == 0 || phraseText == "" {
		return 0
	}
	matches := len(lexical.ContainsAny(phraseText, keywords))
	denominator := float64(len(keywords)) * 0.3
	if denominator < 1 {
		denominator = 1
	}
	return min(float64(matches)/denominator, 1)
}

var emotionKeywords = foldTable(map[domain.Emotion][]string{
	domain.EmotionExcitement: {
		"amazing", "awesome", "love", "great", "perfect", "excited", "can't wait",
		"incrivel", "adorei", "amei", "otimo", "perfeito", "maravilha",
	},
	domain.EmotionConcern: {
		"worried", "concern", "afraid", "risk", "what if", "safe", "preocupado",
		"preocupa", "medo", "risco", "e se", "seguro",
	},
	domain.EmotionSkepticism: {
		"really", "doubt", "are you sure", "scam", "too good", "sera", "duvido",
		"golpe", "e mesmo", "bom demais", "prove it",
	},
	domain.EmotionConfusion: {
		"confused", "don't understand", "what do you mean", "unclear", "how does",
		"nao entendi", "confuso", "como assim", "nao ficou claro", "explica",
	},
	domain.EmotionUrgency: {
		"urgent", "asap", "today", "right now", "quickly", "right away", "urgente", "hoje",
		"agora", "rapido", "o quanto antes", "pra ontem",
	},
	domain.EmotionHesitation: {
		"maybe", "not sure", "think about it", "later", "hmm", "talvez", "nao sei",
		"vou pensar", "depois", "quem sabe",
	},
	domain.EmotionFrustration: {
		"annoying", "frustrated", "ridiculous", "again", "still waiting", "irritado",
		"absurdo", "de novo", "ainda esperando", "cansado", "pessimo",
	},
})

const (
	sameEmotionScore    = 0.9
	emotionBaseScore    = 0.3
	emotionPerMatch     = 0.2
	emotionKeywordCap   = 0.8
	neutralRecordScore  = 0.3
	objectionFlagScore  = 0.8
	enrichmentRelevance = 0.3
	enrichmentValueRate = 0.5
)

// EmotionKeywordMatches returns the keywords of emotion found in the text.
func EmotionKeywordMatches(e domain.Emotion, text string) []string {
	return lexical.ContainsAny(lexical.PhraseText(text), emotionKeywords[e])
}

// EmotionResonance scores a record's emotional label against the turn.
// A record labelled with the emotion already detected for the turn scores
// sameEmotionScore without consulting the keyword table.
func EmotionResonance(record domain.Emotion, detected domain.Emotion, text string) float64 {
	return emotionResonance(record, detected, lexical.PhraseText(text))
}

func emotionResonance(record domain.Emotion, detected domain.Emotion, phraseText string) float64 {
	if detected != "" && record == detected {
		return sameEmotionScore
	}
	if matches := len(lexical.ContainsAny(phraseText, emotionKeywords[record])); matches > 0 {
		return min(emotionBaseScore+emotionPerMatch*float64(matches), emotionKeywordCap)
	}
	if record == domain.EmotionNeutral || record == "" {
		return neutralRecordScore
	}
	return 0
}

func foldTable[K comparable](in map[K][]string) map[K][]string {
	out := make(map[K][]string, len(in))
	for k, words := range in {
		out[k] = lexical.PhrasePatterns(words)
	}
	return out
}
