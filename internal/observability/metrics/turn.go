package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/sales-assistant/internal/core/domain"
	"github.com/kirillkom/sales-assistant/internal/core/ports"
)

// TurnMetrics implements ports.TurnObserver on top of a Prometheus registry.
type TurnMetrics struct {
	service string

	turnsTotal       *prometheus.CounterVec
	handoffsTotal    *prometheus.CounterVec
	phaseTransitions *prometheus.CounterVec
	emotionsTotal    *prometheus.CounterVec
	knowledgeCount   *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
}

var _ ports.TurnObserver = (*TurnMetrics)(nil)

func NewTurnMetrics(registry prometheus.Registerer, service string) *TurnMetrics {
	m := &TurnMetrics{
		service: service,
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "salesbot",
				Subsystem: "turn",
				Name:      "total",
				Help:      "Processed turns by mode and outcome.",
			},
			[]string{"service", "mode", "outcome"},
		),
		handoffsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "salesbot",
				Subsystem: "turn",
				Name:      "handoffs_total",
				Help:      "Turns answered with a human handoff.",
			},
			[]string{"service"},
		),
		phaseTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "salesbot",
				Subsystem: "turn",
				Name:      "phase_transitions_total",
				Help:      "Sales phase changes between consecutive turns.",
			},
			[]string{"service", "from", "to"},
		),
		emotionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "salesbot",
				Subsystem: "turn",
				Name:      "emotions_total",
				Help:      "Detected customer emotion per turn.",
			},
			[]string{"service", "emotion"},
		),
		knowledgeCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "salesbot",
				Subsystem: "turn",
				Name:      "selected_knowledge",
				Help:      "Knowledge records placed in the prompt per turn.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8},
			},
			[]string{"service"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "salesbot",
				Subsystem: "turn",
				Name:      "stage_duration_seconds",
				Help:      "Duration of the expensive turn stages.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "stage"},
		),
	}
	registry.MustRegister(
		m.turnsTotal,
		m.handoffsTotal,
		m.phaseTransitions,
		m.emotionsTotal,
		m.knowledgeCount,
		m.stageDuration,
	)
	return m
}

func (m *TurnMetrics) ObserveTurn(obs domain.TurnObservation) {
	outcome := obs.Outcome
	if outcome == "" {
		outcome = "unknown"
	}
	m.turnsTotal.WithLabelValues(m.service, obs.Mode, outcome).Inc()

	if obs.Handoff {
		m.handoffsTotal.WithLabelValues(m.service).Inc()
	}
	if obs.PreviousPhase != "" && obs.Phase != "" && obs.PreviousPhase != obs.Phase {
		m.phaseTransitions.WithLabelValues(m.service, string(obs.PreviousPhase), string(obs.Phase)).Inc()
	}
	if obs.Emotion != "" {
		m.emotionsTotal.WithLabelValues(m.service, string(obs.Emotion)).Inc()
	}
	if !obs.Handoff && obs.Phase != "" {
		m.knowledgeCount.WithLabelValues(m.service).Observe(float64(obs.Knowledge))
	}

	stages := []struct {
		name  string
		value float64
	}{
		{"embedding", obs.Timings.Embedding.Seconds()},
		{"knowledge", obs.Timings.Knowledge.Seconds()},
		{"enrichment", obs.Timings.Enrichment.Seconds()},
		{"methodology", obs.Timings.Methodology.Seconds()},
		{"completion", obs.Timings.Completion.Seconds()},
	}
	for _, stage := range stages {
		if stage.value > 0 {
			m.stageDuration.WithLabelValues(m.service, stage.name).Observe(stage.value)
		}
	}
}
