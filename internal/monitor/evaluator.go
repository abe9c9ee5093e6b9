package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/alert"
	"pricewatch/internal/metrics"
	"pricewatch/internal/pricing"
)

// Result captures the outcome of evaluating one alert in one cycle.
// Triggered reports whether the price condition held; Debounced marks
// results whose trigger emission was suppressed by the debounce window.
type Result struct {
	AlertID      string
	ProductID    string
	Triggered    bool
	Debounced    bool
	CurrentPrice *decimal.Decimal
	TargetPrice  decimal.Decimal
	CheckedAt    time.Time
	Error        string
}

// Trigger is emitted when an alert's condition is met and not debounced.
type Trigger struct {
	AlertID      string
	UserID       string
	ProductID    string
	CurrentPrice decimal.Decimal
	TargetPrice  decimal.Decimal
	EvaluatedAt  time.Time
}

// Evaluator walks the active alert set once per cycle and decides which
// alerts fire. Cycles are serialized; a manual check and a scheduled one
// never interleave.
type Evaluator struct {
	registry *alert.Registry
	source   pricing.Source
	recent   *recentTriggers
	logger   zerolog.Logger

	cycleMu sync.Mutex
}

// NewEvaluator constructs an Evaluator. The debounce window is the minimum
// wall-clock distance between two triggers of the same alert, typically
// cycle interval times debounce cycles.
func NewEvaluator(registry *alert.Registry, source pricing.Source, debounceWindow time.Duration, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		registry: registry,
		source:   source,
		recent:   newRecentTriggers(debounceWindow),
		logger:   logger.With().Str("component", "evaluator").Logger(),
	}
}

// CheckAll runs one evaluation cycle: snapshot the registry, look up the
// current price of every active alert, and apply the trigger predicate
// (current <= target, equality fires). It returns one Result per active
// alert and the debounce-filtered Triggers. A failing alert never aborts
// the cycle.
func (e *Evaluator) CheckAll(ctx context.Context) ([]Result, []Trigger) {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	snapshot := e.registry.Snapshot()
	now := time.Now().UTC()

	present := make(map[string]struct{}, len(snapshot))
	results := make([]Result, 0, len(snapshot))
	var triggers []Trigger

	for _, a := range snapshot {
		present[a.ID] = struct{}{}
		if !a.Active {
			continue
		}

		res := Result{
			AlertID:     a.ID,
			ProductID:   a.ProductID,
			TargetPrice: a.TargetPrice,
			CheckedAt:   now,
		}

		price, ok, err := e.source.CurrentPrice(ctx, a.ProductID)
		if err != nil {
			res.Error = err.Error()
			e.logger.Warn().Err(err).
				Str("alert_id", a.ID).
				Str("product_id", a.ProductID).
				Msg("price lookup failed")
			metrics.EvaluationErrorsTotal.Inc()
			results = append(results, res)
			continue
		}
		if !ok || price.IsNegative() {
			results = append(results, res)
			continue
		}

		current := price
		res.CurrentPrice = &current

		if price.LessThanOrEqual(a.TargetPrice) {
			res.Triggered = true
			if e.recent.recently(a.ID, now) {
				res.Debounced = true
			} else {
				e.recent.mark(a.ID, now)
				triggers = append(triggers, Trigger{
					AlertID:      a.ID,
					UserID:       a.UserID,
					ProductID:    a.ProductID,
					CurrentPrice: price,
					TargetPrice:  a.TargetPrice,
					EvaluatedAt:  now,
				})
			}
		}

		results = append(results, res)
	}

	e.recent.sweepAbsent(present)

	metrics.CyclesTotal.Inc()
	metrics.TriggersTotal.Add(float64(len(triggers)))

	e.logger.Debug().
		Int("alerts", len(results)).
		Int("triggers", len(triggers)).
		Msg("evaluation cycle complete")

	return results, triggers
}

// ClearDebounce forgets the last trigger time of an alert so the next cycle
// may fire immediately. Used when an alert is removed and by operators who
// want to force a re-fire after editing a target.
func (e *Evaluator) ClearDebounce(alertID string) {
	e.recent.clear(alertID)
}
