package rewards

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/annel0/growdoro/internal/catalog"
)

// Metrics — счётчики Prometheus для выдачи наград.
type Metrics struct {
	packsClaimed  prometheus.Counter
	blocksGranted *prometheus.CounterVec
	claimRejected *prometheus.CounterVec
}

// NewMetrics создаёт и регистрирует счётчики в переданном Registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "growdoro",
			Subsystem: "rewards",
			Name:      "packs_claimed_total",
			Help:      "Общее число выданных паков.",
		}),
		blocksGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "growdoro",
			Subsystem: "rewards",
			Name:      "blocks_granted_total",
			Help:      "Выданные блоки по редкости.",
		}, []string{"rarity"}),
		claimRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "growdoro",
			Subsystem: "rewards",
			Name:      "claims_rejected_total",
			Help:      "Отклонённые запросы выдачи по причине.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.packsClaimed, m.blocksGranted, m.claimRejected)
	}
	return m
}

func (m *Metrics) observeGrant(types []*catalog.BlockType) {
	if m == nil {
		return
	}
	m.packsClaimed.Inc()
	for _, t := range types {
		m.blocksGranted.WithLabelValues(string(t.Rarity)).Inc()
	}
}

func (m *Metrics) observeRejection(reason string) {
	if m == nil {
		return
	}
	m.claimRejected.WithLabelValues(reason).Inc()
}
