package monitoring

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert represents a fired alert rule
type Alert struct {
	ID          string                 `json:"id"`
	RuleID      string                 `json:"rule_id"`
	Level       AlertLevel             `json:"level"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Timestamp   time.Time              `json:"timestamp"`
	Resolved    bool                   `json:"resolved"`
	ResolvedAt  *time.Time             `json:"resolved_at,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// AlertRule defines conditions for triggering alerts
type AlertRule struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Condition   AlertCondition `json:"condition"`
	Level       AlertLevel     `json:"level"`
	Enabled     bool           `json:"enabled"`
	Cooldown    time.Duration  `json:"cooldown"`
	LastFired   time.Time      `json:"last_fired"`
}

// AlertCondition compares one named metric against a threshold
type AlertCondition struct {
	Metric    string  `json:"metric"`
	Operator  string  `json:"operator"` // >, <, >=, <=, ==, !=
	Threshold float64 `json:"threshold"`
}

// NotificationChannel represents a way to send notifications
type NotificationChannel interface {
	SendNotification(alert Alert) error
	GetChannelType() string
}

// LogNotificationChannel writes alerts to a logrus logger.
type LogNotificationChannel struct {
	Logger *logrus.Logger
}

func (c *LogNotificationChannel) SendNotification(alert Alert) error {
	entry := c.Logger.WithFields(logrus.Fields{
		"rule":  alert.RuleID,
		"level": alert.Level,
	})
	switch alert.Level {
	case AlertCritical:
		entry.Errorf("🚨 %s: %s", alert.Title, alert.Description)
	case AlertWarning:
		entry.Warnf("⚠️ %s: %s", alert.Title, alert.Description)
	default:
		entry.Infof("ℹ️ %s: %s", alert.Title, alert.Description)
	}
	return nil
}

func (c *LogNotificationChannel) GetChannelType() string {
	return "log"
}

// AlertManager evaluates alert rules against ledger metrics
type AlertManager struct {
	rules          []AlertRule
	activeAlerts   map[string]Alert
	alertHistory   []Alert
	channels       []NotificationChannel
	mu             sync.RWMutex
	maxHistorySize int
	logger         *logrus.Logger
}

func NewAlertManager(logger *logrus.Logger) *AlertManager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AlertManager{
		rules:          DefaultRules(),
		activeAlerts:   make(map[string]Alert),
		alertHistory:   make([]Alert, 0),
		channels:       []NotificationChannel{&LogNotificationChannel{Logger: logger}},
		maxHistorySize: 1000,
		logger:         logger,
	}
}

// DefaultRules are the standard alert rules for a collection ledger.
func DefaultRules() []AlertRule {
	return []AlertRule{
		{
			ID:          "invariant_violation",
			Name:        "Ledger Invariant Violation",
			Description: "Ownership, balance or supply bookkeeping is inconsistent",
			Condition:   AlertCondition{Metric: "invariant_violations", Operator: ">", Threshold: 0},
			Level:       AlertCritical,
			Enabled:     true,
		},
		{
			ID:          "supply_nearly_exhausted",
			Name:        "Supply Nearly Exhausted",
			Description: "Minted supply is close to the collection cap",
			Condition:   AlertCondition{Metric: "supply_utilization_percent", Operator: ">=", Threshold: 90},
			Level:       AlertWarning,
			Enabled:     true,
			Cooldown:    30 * time.Minute,
		},
		{
			ID:          "high_rejection_rate",
			Name:        "High Rejection Rate",
			Description: "Share of transactions rejected by the ledger is above threshold",
			Condition:   AlertCondition{Metric: "failure_rate_percent", Operator: ">", Threshold: 25},
			Level:       AlertWarning,
			Enabled:     true,
			Cooldown:    5 * time.Minute,
		},
		{
			ID:          "queue_backlog",
			Name:        "Sequencer Backlog",
			Description: "Transactions are waiting in the sequencer queue",
			Condition:   AlertCondition{Metric: "queued_transactions", Operator: ">", Threshold: 100},
			Level:       AlertCritical,
			Enabled:     true,
			Cooldown:    time.Minute,
		},
		{
			ID:          "persistence_backlog",
			Name:        "Persistence Backlog",
			Description: "Applied transactions are waiting for a successful store commit",
			Condition:   AlertCondition{Metric: "unpersisted_transactions", Operator: ">", Threshold: 0},
			Level:       AlertCritical,
			Enabled:     true,
			Cooldown:    time.Minute,
		},
		{
			ID:          "collection_paused",
			Name:        "Collection Paused",
			Description: "Minting is paused by the administrator",
			Condition:   AlertCondition{Metric: "paused", Operator: "==", Threshold: 1},
			Level:       AlertInfo,
			Enabled:     true,
		},
	}
}

// SetRules replaces the rule set and clears active alerts.
func (am *AlertManager) SetRules(rules []AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rules = append([]AlertRule(nil), rules...)
	am.activeAlerts = make(map[string]Alert)
}

func (am *AlertManager) AddChannel(ch NotificationChannel) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.channels = append(am.channels, ch)
}

// EvaluateAlerts checks all alert rules against current metrics. A rule
// fires once while its condition holds and resolves when it stops holding.
func (am *AlertManager) EvaluateAlerts(metrics *LedgerMetrics) {
	am.mu.Lock()
	now := time.Now()
	var fired []Alert

	for i := range am.rules {
		rule := &am.rules[i]
		if !rule.Enabled {
			continue
		}

		value, known := metrics.Value(rule.Condition.Metric)
		if known && compareValues(value, rule.Condition.Operator, rule.Condition.Threshold) {
			if _, exists := am.activeAlerts[rule.ID]; exists {
				continue
			}
			if !rule.LastFired.IsZero() && now.Sub(rule.LastFired) < rule.Cooldown {
				continue
			}

			alert := Alert{
				ID:          fmt.Sprintf("%s_%d", rule.ID, now.UnixNano()),
				RuleID:      rule.ID,
				Level:       rule.Level,
				Title:       rule.Name,
				Description: fmt.Sprintf("%s: current value %g %s threshold %g", rule.Description, value, rule.Condition.Operator, rule.Condition.Threshold),
				Timestamp:   now,
				Metadata: map[string]interface{}{
					"metric":    rule.Condition.Metric,
					"value":     value,
					"threshold": rule.Condition.Threshold,
				},
			}
			am.activeAlerts[rule.ID] = alert
			am.alertHistory = append(am.alertHistory, alert)
			rule.LastFired = now
			fired = append(fired, alert)
			continue
		}

		if alert, exists := am.activeAlerts[rule.ID]; exists {
			resolvedAt := now
			alert.Resolved = true
			alert.ResolvedAt = &resolvedAt
			delete(am.activeAlerts, rule.ID)
			am.replaceInHistory(alert)
			am.logger.Infof("✅ Alert resolved: %s", alert.Title)
		}
	}

	if len(am.alertHistory) > am.maxHistorySize {
		am.alertHistory = am.alertHistory[len(am.alertHistory)-am.maxHistorySize:]
	}
	channels := append([]NotificationChannel(nil), am.channels...)
	am.mu.Unlock()

	for _, alert := range fired {
		for _, ch := range channels {
			if err := ch.SendNotification(alert); err != nil {
				am.logger.WithError(err).Errorf("❌ Failed to send alert via %s", ch.GetChannelType())
			}
		}
	}
}

func (am *AlertManager) replaceInHistory(alert Alert) {
	for i := len(am.alertHistory) - 1; i >= 0; i-- {
		if am.alertHistory[i].ID == alert.ID {
			am.alertHistory[i] = alert
			return
		}
	}
}

func compareValues(current float64, operator string, threshold float64) bool {
	switch operator {
	case ">":
		return current > threshold
	case "<":
		return current < threshold
	case ">=":
		return current >= threshold
	case "<=":
		return current <= threshold
	case "==":
		return current == threshold
	case "!=":
		return current != threshold
	default:
		return false
	}
}

// GetActiveAlerts returns all currently active alerts
func (am *AlertManager) GetActiveAlerts() []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	alerts := make([]Alert, 0, len(am.activeAlerts))
	for _, alert := range am.activeAlerts {
		alerts = append(alerts, alert)
	}
	return alerts
}

// GetAlertHistory returns up to limit of the most recent alerts, oldest
// first. A non-positive limit returns the whole history.
func (am *AlertManager) GetAlertHistory(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.alertHistory) {
		limit = len(am.alertHistory)
	}
	start := len(am.alertHistory) - limit

	history := make([]Alert, limit)
	copy(history, am.alertHistory[start:])
	return history
}
