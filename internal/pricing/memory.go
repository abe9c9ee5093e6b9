package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ObservationState tracks the moderation state of a submitted price.
type ObservationState string

const (
	ObservationPending  ObservationState = "pending"
	ObservationVerified ObservationState = "verified"
	ObservationRejected ObservationState = "rejected"
)

var (
	// ErrNegativePrice rejects submissions below zero.
	ErrNegativePrice = errors.New("pricing: price cannot be negative")
	// ErrObservationNotFound reports moderation of an unknown observation.
	ErrObservationNotFound = errors.New("pricing: observation not found")
)

// Observation is one submitted price point for a product at a store.
type Observation struct {
	ID         string
	ProductID  string
	StoreID    string
	Price      decimal.Decimal
	OnSale     bool
	ObservedAt time.Time
	State      ObservationState
}

// Stats summarises the verified observations of one product.
type Stats struct {
	Count   int
	Min     decimal.Decimal
	Max     decimal.Decimal
	Average decimal.Decimal
	Median  decimal.Decimal
}

// MemorySource stores submitted price observations and serves the most
// recent verified price per product. Submissions start pending and only
// participate in evaluation once verified.
type MemorySource struct {
	mu        sync.RWMutex
	byID      map[string]*Observation
	byProduct map[string][]*Observation
}

// NewMemorySource constructs an empty observation store.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		byID:      make(map[string]*Observation),
		byProduct: make(map[string][]*Observation),
	}
}

// Submit records a new pending observation and returns a copy of it.
func (s *MemorySource) Submit(productID, storeID string, price decimal.Decimal, onSale bool) (Observation, error) {
	if productID == "" {
		return Observation{}, fmt.Errorf("pricing: product id is required")
	}
	if price.IsNegative() {
		return Observation{}, fmt.Errorf("%w: %s", ErrNegativePrice, price)
	}

	obs := &Observation{
		ID:         uuid.New().String(),
		ProductID:  productID,
		StoreID:    storeID,
		Price:      price,
		OnSale:     onSale,
		ObservedAt: time.Now().UTC(),
		State:      ObservationPending,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[obs.ID] = obs
	s.byProduct[productID] = append(s.byProduct[productID], obs)
	return *obs, nil
}

// Verify marks an observation as verified, admitting it to evaluation.
func (s *MemorySource) Verify(id string) error {
	return s.setState(id, ObservationVerified)
}

// Reject marks an observation as rejected, excluding it from evaluation.
func (s *MemorySource) Reject(id string) error {
	return s.setState(id, ObservationRejected)
}

func (s *MemorySource) setState(id string, state ObservationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	obs, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObservationNotFound, id)
	}
	obs.State = state
	return nil
}

// CurrentPrice returns the price of the most recently submitted verified
// observation for the product, or false when none exists.
func (s *MemorySource) CurrentPrice(ctx context.Context, productID string) (decimal.Decimal, bool, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Decimal{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := s.byProduct[productID]
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].State == ObservationVerified {
			return chain[i].Price, true, nil
		}
	}
	return decimal.Decimal{}, false, nil
}

// History returns the verified observations of a product submitted after
// the given instant, oldest first.
func (s *MemorySource) History(productID string, since time.Time) []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Observation
	for _, obs := range s.byProduct[productID] {
		if obs.State != ObservationVerified {
			continue
		}
		if obs.ObservedAt.Before(since) {
			continue
		}
		out = append(out, *obs)
	}
	return out
}

// Stats aggregates the verified observations of a product. The boolean is
// false when the product has no verified observations.
func (s *MemorySource) Stats(productID string) (Stats, bool) {
	s.mu.RLock()
	prices := make([]decimal.Decimal, 0)
	for _, obs := range s.byProduct[productID] {
		if obs.State == ObservationVerified {
			prices = append(prices, obs.Price)
		}
	}
	s.mu.RUnlock()

	if len(prices) == 0 {
		return Stats{}, false
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}

	mid := len(prices) / 2
	median := prices[mid]
	if len(prices)%2 == 0 {
		median = prices[mid-1].Add(prices[mid]).Div(decimal.NewFromInt(2))
	}

	return Stats{
		Count:   len(prices),
		Min:     prices[0],
		Max:     prices[len(prices)-1],
		Average: sum.Div(decimal.NewFromInt(int64(len(prices)))),
		Median:  median,
	}, true
}

var _ Source = (*MemorySource)(nil)
