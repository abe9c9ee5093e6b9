package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Receiver 接收进入应用内收件箱的通知副本,通常由界面层实现。
type Receiver interface {
	Receive(note Notification)
}

// ReceiverFunc 将函数适配为 Receiver。
type ReceiverFunc func(note Notification)

// Receive implements Receiver.
func (f ReceiverFunc) Receive(note Notification) { f(note) }

// InAppChannel 将通知投递到进程内的收件箱回调。没有注册接收器时
// 视为已投递,通知仍可通过历史查询读到。
type InAppChannel struct {
	receiver Receiver
	logger   zerolog.Logger
}

// NewInAppChannel 构造应用内通道,receiver 可以为 nil。
func NewInAppChannel(receiver Receiver, logger zerolog.Logger) *InAppChannel {
	return &InAppChannel{
		receiver: receiver,
		logger:   logger.With().Str("component", "channel_inapp").Logger(),
	}
}

// Name implements Channel.
func (c *InAppChannel) Name() string { return ChannelInApp }

// Deliver 将通知副本交给接收器。
func (c *InAppChannel) Deliver(ctx context.Context, note *Notification) error {
	if err := ctx.Err(); err != nil {
		return transientError(c.Name(), "context cancelled", err)
	}

	if c.receiver == nil {
		c.logger.Debug().
			Str("notification_id", note.ID).
			Msg("未注册收件箱接收器,按已投递处理")
		return nil
	}

	c.receiver.Receive(note.clone())
	return nil
}

var _ Channel = (*InAppChannel)(nil)
