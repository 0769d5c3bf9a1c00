// Package metrics exposes ledger and block-production counters to
// Prometheus. Everything is driven by committed events.
package metrics

import (
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tolelom/tolstake/events"
	"github.com/tolelom/tolstake/internal/logging"
)

const namespace = "tolstake"

var logger = logging.Logger("metrics")

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	blocks          prometheus.Counter
	height          prometheus.Gauge
	txs             *prometheus.CounterVec
	rewardsPaid     prometheus.Counter
	staked          prometheus.Counter
	unstaked        prometheus.Counter
	poolBalance     prometheus.Gauge
	activePositions prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_total",
			Help: "Blocks committed.",
		}),
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "block_height",
			Help: "Height of the last committed block.",
		}),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "txs_total",
			Help: "Transactions processed, by type and result.",
		}, []string{"type", "result"}),
		rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rewards_paid_total",
			Help: "Rewards paid out of custody (approximate, base units).",
		}),
		staked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "staked_total",
			Help: "Principal deposited (approximate, base units).",
		}),
		unstaked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "unstaked_total",
			Help: "Principal withdrawn (approximate, base units).",
		}),
		poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_balance",
			Help: "Custody balance after the last block (approximate, base units).",
		}),
		activePositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_positions",
			Help: "Identities with an open position after the last block.",
		}),
	}
	m.registry.MustRegister(
		m.blocks, m.height, m.txs, m.rewardsPaid, m.staked, m.unstaked,
		m.poolBalance, m.activePositions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Subscribe wires the collectors to emitter.
func (m *Metrics) Subscribe(emitter *events.Emitter) {
	emitter.Subscribe(events.EventBlockCommit, m.onBlock)
	emitter.Subscribe(events.EventTxExecuted, func(ev events.Event) {
		m.txs.WithLabelValues(label(ev, "type"), "ok").Inc()
	})
	emitter.Subscribe(events.EventTxFailed, func(ev events.Event) {
		m.txs.WithLabelValues(label(ev, "type"), "failed").Inc()
	})
	emitter.Subscribe(events.EventRewardPaid, func(ev events.Event) {
		m.rewardsPaid.Add(amount(ev, "amount"))
	})
	emitter.Subscribe(events.EventStake, func(ev events.Event) {
		m.staked.Add(amount(ev, "amount"))
	})
	emitter.Subscribe(events.EventUnstake, func(ev events.Event) {
		m.unstaked.Add(amount(ev, "amount"))
	})
}

func (m *Metrics) onBlock(ev events.Event) {
	m.blocks.Inc()
	m.height.Set(float64(ev.BlockHeight))
	if _, ok := ev.Data["pool_balance"]; ok {
		m.poolBalance.Set(amount(ev, "pool_balance"))
	}
	if n, ok := ev.Data["active_positions"].(int); ok {
		m.activePositions.Set(float64(n))
	}
}

func label(ev events.Event, key string) string {
	s, _ := ev.Data[key].(string)
	return s
}

// amount reads a decimal-string amount from ev as a float. Precision loss is
// accepted; the ledger itself never reads these values.
func amount(ev events.Event, key string) float64 {
	s, _ := ev.Data[key].(string)
	v, ok := new(big.Float).SetString(s)
	if !ok {
		logger.Warn().Str("event", string(ev.Type)).Str("key", key).Msg("non-numeric amount")
		return 0
	}
	f, _ := v.Float64()
	if f < 0 {
		return 0
	}
	return f
}
