package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies a notification for channel routing.
type Kind string

const (
	KindPriceAlert    Kind = "price_alert"
	KindSystemAlert   Kind = "system_alert"
	KindProductUpdate Kind = "product_update"
	KindUserMessage   Kind = "user_message"
)

// Status tracks the delivery lifecycle. It only moves forward:
// pending to sent or failed, and sent to read.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusRead    Status = "read"
)

// Notification is one message addressed to a user. The queue owns it until
// dispatch completes; afterwards the history store does.
type Notification struct {
	ID            string
	UserID        string
	Kind          Kind
	Title         string
	Body          string
	Payload       map[string]string
	CreatedAt     time.Time
	SentAt        *time.Time
	ReadAt        *time.Time
	Status        Status
	FailureReason string
}

// New builds a pending notification.
func New(userID string, kind Kind, title, body string, payload map[string]string) *Notification {
	return &Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
		Status:    StatusPending,
	}
}

// NewPriceAlert builds the notification emitted when an alert's target
// price is reached.
func NewPriceAlert(userID, alertID, productID string, current, target decimal.Decimal) *Notification {
	body := fmt.Sprintf(
		"Your price alert for product %s has been triggered! Current price: ¥%s, Target: ¥%s",
		productID, current.StringFixed(2), target.StringFixed(2),
	)
	return New(userID, KindPriceAlert, "Price Alert: Target Reached!", body, map[string]string{
		"alert_id":      alertID,
		"product_id":    productID,
		"current_price": current.String(),
		"target_price":  target.String(),
	})
}

func (n *Notification) markSent(now time.Time) {
	n.Status = StatusSent
	ts := now
	n.SentAt = &ts
}

func (n *Notification) markFailed(reason string) {
	n.Status = StatusFailed
	n.FailureReason = reason
}

// clone returns a copy that readers may keep without racing the store.
func (n *Notification) clone() Notification {
	out := *n
	if n.Payload != nil {
		out.Payload = make(map[string]string, len(n.Payload))
		for k, v := range n.Payload {
			out.Payload[k] = v
		}
	}
	if n.SentAt != nil {
		ts := *n.SentAt
		out.SentAt = &ts
	}
	if n.ReadAt != nil {
		ts := *n.ReadAt
		out.ReadAt = &ts
	}
	return out
}
