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

// emailMessage 是邮件网关 /send 接口的请求体。
type emailMessage struct {
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	Body    string            `json:"body"`
	Kind    string            `json:"kind"`
	Data    map[string]string `json:"data,omitempty"`
}

// EmailChannel 通过 HTTP 网关投递邮件通知。
type EmailChannel struct {
	gatewayURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewEmailChannel 构造邮件通道。
func NewEmailChannel(gatewayURL string, timeout time.Duration, logger zerolog.Logger) *EmailChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &EmailChannel{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "channel_email").Logger(),
	}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return ChannelEmail }

// Deliver 将通知序列化后 POST 给邮件网关。
func (c *EmailChannel) Deliver(ctx context.Context, note *Notification) error {
	msg := emailMessage{
		To:      note.UserID,
		Subject: note.Title,
		Body:    note.Body,
		Kind:    string(note.Kind),
		Data:    note.Payload,
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fatalError(c.Name(), "marshal email payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fatalError(c.Name(), "create email request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return transientError(c.Name(), "send email request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return transientError(c.Name(), fmt.Sprintf("gateway status %d", resp.StatusCode), nil)
	default:
		return fatalError(c.Name(), fmt.Sprintf("gateway status %d", resp.StatusCode), nil)
	}

	c.logger.Info().
		Str("notification_id", note.ID).
		Str("user_id", note.UserID).
		Msg("通知已投递 (email)")
	return nil
}

var _ Channel = (*EmailChannel)(nil)
