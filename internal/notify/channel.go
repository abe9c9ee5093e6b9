package notify

import (
	"context"
	"errors"
	"fmt"
)

// 通道名称,与配置键 notification.channels.* 对应。
const (
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
)

// Channel delivers a single notification over one carrier. Implementations
// own their per-call timeout and translate carrier errors into
// *DeliveryError so the dispatcher can decide between retrying and giving
// up on the channel.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, note *Notification) error
}

// DeliveryError classifies a failed delivery attempt. Transient failures
// are worth retrying; everything else is final for that channel.
type DeliveryError struct {
	Channel   string
	Transient bool
	Reason    string
	Err       error
}

func (e *DeliveryError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s delivery failure (%s): %v", e.Channel, kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s delivery failure: %s", e.Channel, kind, e.Reason)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable delivery error.
func IsTransient(err error) bool {
	var derr *DeliveryError
	return errors.As(err, &derr) && derr.Transient
}

func transientError(channel, reason string, err error) *DeliveryError {
	return &DeliveryError{Channel: channel, Transient: true, Reason: reason, Err: err}
}

func fatalError(channel, reason string, err error) *DeliveryError {
	return &DeliveryError{Channel: channel, Transient: false, Reason: reason, Err: err}
}
