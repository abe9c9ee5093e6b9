package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// pushMessage 是推送网关 /push 接口的请求体。
type pushMessage struct {
	UserID   string            `json:"user_id"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Priority string            `json:"priority"`
	Data     map[string]string `json:"data,omitempty"`
}

// PushChannel 通过 HTTP 网关投递移动端推送。
type PushChannel struct {
	gatewayURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewPushChannel 构造推送通道。
func NewPushChannel(gatewayURL string, timeout time.Duration, logger zerolog.Logger) *PushChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &PushChannel{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "channel_push").Logger(),
	}
}

// Name implements Channel.
func (c *PushChannel) Name() string { return ChannelPush }

// Deliver 将通知 POST 给推送网关,系统告警以高优先级发送。
func (c *PushChannel) Deliver(ctx context.Context, note *Notification) error {
	priority := "normal"
	if note.Kind == KindSystemAlert {
		priority = "high"
	}

	msg := pushMessage{
		UserID:   note.UserID,
		Title:    note.Title,
		Body:     note.Body,
		Priority: priority,
		Data:     note.Payload,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fatalError(c.Name(), "marshal push payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/push", bytes.NewReader(body))
	if err != nil {
		return fatalError(c.Name(), "create push request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return transientError(c.Name(), "send push request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return transientError(c.Name(), fmt.Sprintf("gateway status %d", resp.StatusCode), nil)
	default:
		return fatalError(c.Name(), fmt.Sprintf("gateway status %d", resp.StatusCode), nil)
	}

	var result struct {
		Accepted bool `json:"accepted"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.Accepted {
			return fatalError(c.Name(), "gateway 返回 accepted=false", nil)
		}
	}

	c.logger.Info().
		Str("notification_id", note.ID).
		Str("user_id", note.UserID).
		Str("priority", priority).
		Msg("通知已投递 (push)")
	return nil
}

var _ Channel = (*PushChannel)(nil)
