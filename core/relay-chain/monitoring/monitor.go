package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/sequencer"
)

// LedgerMetrics is one sample of collection and sequencer state.
type LedgerMetrics struct {
	TotalSupply         uint64        `json:"total_supply"`
	MaxSupply           uint64        `json:"max_supply"`
	SupplyUtilization   float64       `json:"supply_utilization_percent"`
	Holders             int           `json:"holders"`
	Paused              bool          `json:"paused"`
	LastSequence        uint64        `json:"last_sequence"`
	Applied             uint64        `json:"applied"`
	Failed              uint64        `json:"failed"`
	Rejected            uint64        `json:"rejected"`
	FailureRate         float64       `json:"failure_rate_percent"`
	Queued              int           `json:"queued_transactions"`
	Unpersisted         int           `json:"unpersisted_transactions"`
	InvariantViolations int           `json:"invariant_violations"`
	InvariantError      string        `json:"invariant_error,omitempty"`
	Uptime              time.Duration `json:"uptime"`
	LastUpdated         time.Time     `json:"last_updated"`
}

// Value returns the metric an alert condition refers to by name.
func (m *LedgerMetrics) Value(metric string) (float64, bool) {
	switch metric {
	case "total_supply":
		return float64(m.TotalSupply), true
	case "supply_utilization_percent":
		return m.SupplyUtilization, true
	case "holders":
		return float64(m.Holders), true
	case "paused":
		if m.Paused {
			return 1, true
		}
		return 0, true
	case "failure_rate_percent":
		return m.FailureRate, true
	case "queued_transactions":
		return float64(m.Queued), true
	case "unpersisted_transactions":
		return float64(m.Unpersisted), true
	case "invariant_violations":
		return float64(m.InvariantViolations), true
	default:
		return 0, false
	}
}

// LedgerMonitor samples a ledger on an interval and feeds the samples to
// its alert manager.
type LedgerMonitor struct {
	collection *nft.Collection
	sequencer  *sequencer.Sequencer
	alerts     *AlertManager
	logger     *logrus.Logger

	updateInterval time.Duration
	startTime      time.Time

	mu      sync.RWMutex
	metrics *LedgerMetrics
}

func NewLedgerMonitor(collection *nft.Collection, seq *sequencer.Sequencer, interval time.Duration, logger *logrus.Logger) *LedgerMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LedgerMonitor{
		collection:     collection,
		sequencer:      seq,
		alerts:         NewAlertManager(logger),
		logger:         logger,
		updateInterval: interval,
		startTime:      time.Now(),
		metrics:        &LedgerMetrics{},
	}
}

// Run samples until ctx is done.
func (lm *LedgerMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(lm.updateInterval)
	defer ticker.Stop()

	lm.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lm.Collect()
		}
	}
}

// Collect takes one sample and evaluates the alert rules against it.
func (lm *LedgerMonitor) Collect() *LedgerMetrics {
	status := lm.collection.GetStatus()
	stats := lm.sequencer.Stats()

	m := &LedgerMetrics{
		TotalSupply:  status.TotalSupply,
		MaxSupply:    status.MaxSupply,
		Holders:      status.Holders,
		Paused:       status.Paused,
		LastSequence: status.LastSequence,
		Applied:      stats.Applied,
		Failed:       stats.Failed,
		Rejected:     stats.Rejected,
		Queued:       stats.Queued,
		Unpersisted:  stats.Unpersisted,
		Uptime:       time.Since(lm.startTime),
		LastUpdated:  time.Now(),
	}
	if status.MaxSupply > 0 {
		m.SupplyUtilization = float64(status.TotalSupply) / float64(status.MaxSupply) * 100
	}
	if total := stats.Applied + stats.Failed; total > 0 {
		m.FailureRate = float64(stats.Failed) / float64(total) * 100
	}
	if err := lm.collection.CheckInvariants(); err != nil {
		m.InvariantViolations = 1
		m.InvariantError = err.Error()
	}

	lm.mu.Lock()
	lm.metrics = m
	lm.mu.Unlock()

	lm.alerts.EvaluateAlerts(m)
	return m
}

func (lm *LedgerMonitor) Metrics() LedgerMetrics {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return *lm.metrics
}

func (lm *LedgerMonitor) Alerts() *AlertManager {
	return lm.alerts
}

// SystemStatus summarises the active alerts.
func (lm *LedgerMonitor) SystemStatus() string {
	status := "healthy"
	for _, alert := range lm.alerts.GetActiveAlerts() {
		switch alert.Level {
		case AlertCritical:
			return "critical"
		case AlertWarning:
			status = "warning"
		}
	}
	return status
}
