package expiry

import (
	"context"
	"sort"
	"time"

	"github.com/stragan/stragan/internal/stock"
)

// AlertLevel ranks how urgently a batch needs attention.
type AlertLevel string

const (
	// AlertExpired means the expiry date has passed.
	AlertExpired AlertLevel = "EXPIRED"
	// AlertCritical means the batch expires within 3 days.
	AlertCritical AlertLevel = "CRITICAL"
	// AlertWarning means the batch expires within 7 days.
	AlertWarning AlertLevel = "WARNING"
	// AlertNone means no attention is needed.
	AlertNone AlertLevel = "NONE"
)

// Classify maps days-until-expiry to an alert level.
func Classify(daysUntilExpiry int) AlertLevel {
	switch {
	case daysUntilExpiry < 0:
		return AlertExpired
	case daysUntilExpiry < 3:
		return AlertCritical
	case daysUntilExpiry < 7:
		return AlertWarning
	default:
		return AlertNone
	}
}

// DaysUntil computes whole calendar days between now and the expiry date,
// negative once the date has passed.
func DaysUntil(now, expiry time.Time) int {
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	expDate := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)
	return int(expDate.Sub(nowDate).Hours() / 24)
}

// Alert pairs a batch with its remaining shelf life.
type Alert struct {
	Batch           stock.Batch `json:"batch"`
	DaysUntilExpiry int         `json:"days_until_expiry"`
	Level           AlertLevel  `json:"alert_level"`
}

// BatchSource provides the active batches to classify.
type BatchSource interface {
	ListActiveBatches(ctx context.Context, ingredientID int64) ([]stock.Batch, error)
}

// Monitor is a pure read projection over the stock ledger; it holds no state
// of its own beyond an optional short-lived cache.
type Monitor struct {
	batches BatchSource
	cache   *Cache
	now     func() time.Time
}

// NewMonitor builds Monitor.
func NewMonitor(batches BatchSource, cache *Cache) *Monitor {
	return &Monitor{
		batches: batches,
		cache:   cache,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock for deterministic tests.
func (m *Monitor) WithNow(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// Alerts classifies every active batch that carries an expiry date, most
// urgent first. Batches without an expiry date never alert and are omitted.
func (m *Monitor) Alerts(ctx context.Context) ([]Alert, error) {
	if m.cache != nil {
		var cached []Alert
		err := m.cache.FetchJSON(ctx, alertsCacheKey, &cached, func(ctx context.Context) (any, error) {
			return m.compute(ctx)
		})
		if err == nil {
			return cached, nil
		}
		// Cache trouble must not hide the alerts.
	}
	return m.compute(ctx)
}

// Invalidate drops the cached alert listing so the next read recomputes.
func (m *Monitor) Invalidate(ctx context.Context) error {
	return m.cache.Invalidate(ctx)
}

func (m *Monitor) compute(ctx context.Context) ([]Alert, error) {
	batches, err := m.batches.ListActiveBatches(ctx, 0)
	if err != nil {
		return nil, err
	}
	now := m.now()
	alerts := make([]Alert, 0, len(batches))
	for _, b := range batches {
		if b.ExpiryDate == nil {
			continue
		}
		days := DaysUntil(now, *b.ExpiryDate)
		alerts = append(alerts, Alert{Batch: b, DaysUntilExpiry: days, Level: Classify(days)})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].DaysUntilExpiry != alerts[j].DaysUntilExpiry {
			return alerts[i].DaysUntilExpiry < alerts[j].DaysUntilExpiry
		}
		return alerts[i].Batch.ID < alerts[j].Batch.ID
	})
	return alerts, nil
}
