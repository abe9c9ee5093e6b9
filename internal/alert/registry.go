package alert

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Registry owns the set of alerts. It keeps a primary index by alert id and
// secondary indices by user and by product. All methods are safe for
// concurrent use; mutations are mutually exclusive, reads share a lock.
type Registry struct {
	mu        sync.RWMutex
	alerts    map[string]Alert
	byUser    map[string]map[string]struct{}
	byProduct map[string]map[string]struct{}
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		alerts:    make(map[string]Alert),
		byUser:    make(map[string]map[string]struct{}),
		byProduct: make(map[string]map[string]struct{}),
	}
}

// Add inserts a new alert. It fails with *InvalidThresholdError when the
// target price is not positive and with *DuplicateError on id collision.
func (r *Registry) Add(a Alert) error {
	if err := a.validate(); err != nil {
		return err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[a.ID]; exists {
		return &DuplicateError{ID: a.ID}
	}

	r.alerts[a.ID] = a
	indexAdd(r.byUser, a.UserID, a.ID)
	indexAdd(r.byProduct, a.ProductID, a.ID)
	return nil
}

// Remove deletes an alert by id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.alerts[id]
	if !exists {
		return &NotFoundError{ID: id}
	}

	delete(r.alerts, id)
	indexRemove(r.byUser, a.UserID, id)
	indexRemove(r.byProduct, a.ProductID, id)
	return nil
}

// RemoveByUser deletes every alert owned by the user and returns the
// removed alert ids.
func (r *Registry) RemoveByUser(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.byUser[userID]
	if len(ids) == 0 {
		return nil
	}

	removed := make([]string, 0, len(ids))
	for id := range ids {
		a := r.alerts[id]
		delete(r.alerts, id)
		indexRemove(r.byProduct, a.ProductID, id)
		removed = append(removed, id)
	}
	delete(r.byUser, userID)
	return removed
}

// SetActive flips the active flag of an alert.
func (r *Registry) SetActive(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.alerts[id]
	if !exists {
		return &NotFoundError{ID: id}
	}
	a.Active = active
	r.alerts[id] = a
	return nil
}

// UpdateTargetPrice replaces the target price of an existing alert. The new
// target must be positive.
func (r *Registry) UpdateTargetPrice(id string, target decimal.Decimal) error {
	if target.LessThanOrEqual(decimal.Zero) {
		return &InvalidThresholdError{Price: target}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, exists := r.alerts[id]
	if !exists {
		return &NotFoundError{ID: id}
	}
	a.TargetPrice = target
	r.alerts[id] = a
	return nil
}

// Get returns a copy of the alert with the given id.
func (r *Registry) Get(id string) (Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.alerts[id]
	return a, exists
}

// ListByUser returns the user's active alerts. Order is not specified.
func (r *Registry) ListByUser(userID string) []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byUser[userID]
	out := make([]Alert, 0, len(ids))
	for id := range ids {
		if a := r.alerts[id]; a.Active {
			out = append(out, a)
		}
	}
	return out
}

// ListByProduct returns every alert watching the product, active or not.
func (r *Registry) ListByProduct(productID string) []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byProduct[productID]
	out := make([]Alert, 0, len(ids))
	for id := range ids {
		out = append(out, r.alerts[id])
	}
	return out
}

// Snapshot returns a copy of all alerts taken under a single read lock, so
// one evaluation cycle observes a consistent set.
func (r *Registry) Snapshot() []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		out = append(out, a)
	}
	return out
}

// Len reports the number of stored alerts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}

func indexAdd(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func indexRemove(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(index, key)
	}
}
