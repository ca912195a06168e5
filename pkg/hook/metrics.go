package hook

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/enorith/hookbot/pkg/model"
)

// Metrics counts outcomes per pair. Register it once per registry.
type Metrics struct {
	Outcomes *prometheus.CounterVec
	Volume   *prometheus.CounterVec
}

func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "hookbot_outcomes_total", Help: "Trade proposals by final outcome"},
			[]string{"pair", "side", "outcome"},
		),
		Volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "hookbot_executed_volume_total", Help: "Executed size"},
			[]string{"pair", "side"},
		),
	}
	if registerer != nil {
		for _, collector := range []prometheus.Collector{m.Outcomes, m.Volume} {
			if err := registerer.Register(collector); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (*Metrics) Name() string { return "metrics" }

func (m *Metrics) PostTrade(outcome model.Outcome) error {
	pair, side := outcome.Proposal.Pair, outcome.Proposal.Side.String()
	if outcome.Rejected() {
		m.Outcomes.WithLabelValues(pair, side, "rejected").Inc()
		return nil
	}
	m.Outcomes.WithLabelValues(pair, side, "executed").Inc()
	if outcome.Trade != nil {
		m.Volume.WithLabelValues(pair, side).Add(outcome.Trade.Size)
	}
	return nil
}
