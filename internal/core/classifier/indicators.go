package classifier

import "github.com/kirillkom/sales-assistant/internal/core/domain"

// PhaseIndicators lists, per sales phase, the phrases that signal it in
// English and Portuguese including colloquial spellings.
var PhaseIndicators = map[domain.SalesPhase][]string{
	domain.PhasePostSale: {
		"already bought", "i bought", "my order", "order status", "tracking", "arrived",
		"didn't arrive", "refund", "exchange", "return the", "after purchase", "invoice",
		"ja comprei", "comprei", "meu pedido", "rastreio", "rastreamento", "chegou", "nao chegou",
		"troca", "devolucao", "nota fiscal", "pos venda", "segunda via",
	},
	domain.PhaseClosing: {
		"i'll take it", "i will take it", "let's do it", "where do i sign", "how do i pay",
		"send the link", "payment link", "ready to buy", "i want to buy", "place the order",
		"deal", "checkout", "vou levar", "fechado", "pode fechar", "quero comprar", "manda o link",
		"link de pagamento", "como pago", "vamos fechar", "bora", "onde assino", "pode mandar",
	},
	domain.PhaseNegotiation: {
		"how much", "price", "cost", "discount", "cheaper", "installment", "payment plan",
		"expensive", "budget", "best offer", "quanto fica", "quanto custa", "quanto e", "qual o valor",
		"preco", "valor", "desconto", "parcela", "parcelar", "a vista", "mais barato", "caro",
		"orcamento", "condicao", "condicoes", "promocao", "cupom", "frete gratis",
	},
	domain.PhasePresentation: {
		"tell me more", "how does it work", "features", "what does it do", "show me", "details",
		"specs", "difference between", "options", "which one", "me fala mais", "como funciona",
		"quais as opcoes", "detalhes", "caracteristicas", "me mostra", "qual a diferenca",
		"tem foto", "tem video", "catalogo",
	},
	domain.PhaseQualification: {
		"i need", "i'm looking for", "looking for", "i want", "do you have", "is it good for",
		"for my", "interested in", "preciso", "estou procurando", "to procurando", "procuro",
		"queria", "gostaria", "voces tem", "vcs tem", "tem disponivel", "serve para", "interesse",
	},
	domain.PhaseGreeting: {
		"hello", "hi there", "hey", "good morning", "good afternoon", "good evening",
		"oi", "ola", "bom dia", "boa tarde", "boa noite", "opa", "tudo bem",
	},
}

// PhasePriority is the reverse-funnel order in which phases are checked so a
// greeting followed by a price question resolves to negotiation.
var PhasePriority = []domain.SalesPhase{
	domain.PhasePostSale,
	domain.PhaseClosing,
	domain.PhaseNegotiation,
	domain.PhasePresentation,
	domain.PhaseQualification,
	domain.PhaseGreeting,
}

// EmotionIndicators lists, per emotion, the phrases that signal it.
var EmotionIndicators = map[domain.Emotion][]string{
	domain.EmotionExcitement: {
		"amazing", "awesome", "love it", "perfect", "sounds great", "can't wait", "so excited",
		"incrivel", "adorei", "amei", "perfeito", "que top", "maravilhoso", "show de bola", "gostei demais",
	},
	domain.EmotionConcern: {
		"worried", "concerned", "afraid", "what if", "is it safe", "risk",
		"preocupado", "preocupada", "medo", "receio", "e se der", "e seguro", "risco",
	},
	domain.EmotionSkepticism: {
		"seriously", "i doubt", "scam", "too good to be true", "not convinced", "prove",
		"sera que", "duvido", "golpe", "e mesmo", "nao acredito", "bom demais pra ser verdade",
	},
	domain.EmotionConfusion: {
		"confused", "don't understand", "do not understand", "what do you mean", "not clear",
		"nao entendi", "confuso", "confusa", "como assim", "nao ficou claro", "explica melhor",
	},
	domain.EmotionUrgency: {
		"urgent", "asap", "right now", "today", "immediately", "as soon as possible",
		"urgente", "hoje", "agora", "o quanto antes", "pra ontem", "rapido",
	},
	domain.EmotionHesitation: {
		"maybe", "not sure", "i'll think", "let me think", "later", "i don't know",
		"talvez", "nao sei", "vou pensar", "deixa eu pensar", "depois eu vejo", "quem sabe",
	},
	domain.EmotionFrustration: {
		"frustrated", "annoying", "ridiculous", "this again", "still waiting", "terrible",
		"irritado", "irritada", "absurdo", "de novo", "ainda esperando", "pessimo", "cansei",
	},
}
