package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"pricewatch/internal/alert"
	"pricewatch/internal/notify"
)

const (
	alertKeyPrefix        = "alert:"
	notificationKeyPrefix = "notification:"
)

// persistedAlert 是提醒的存档形态。价格走字符串,跨进程不丢精度。
type persistedAlert struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ProductID   string    `json:"product_id"`
	TargetPrice string    `json:"target_price"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type persistedNotification struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Kind          string            `json:"kind"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Payload       map[string]string `json:"payload,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	SentAt        *time.Time        `json:"sent_at,omitempty"`
	ReadAt        *time.Time        `json:"read_at,omitempty"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason,omitempty"`
}

// SaveState 把提醒与通知历史写入状态存储,并清掉已不存在条目的
// 旧键,避免下次恢复时复活。
func (s *Service) SaveState(ctx context.Context) error {
	if s.state == nil {
		return nil
	}

	if err := s.saveAlerts(ctx); err != nil {
		return err
	}
	return s.saveNotifications(ctx)
}

func (s *Service) saveAlerts(ctx context.Context) error {
	existing, err := s.state.List(ctx, alertKeyPrefix)
	if err != nil {
		return fmt.Errorf("list persisted alerts: %w", err)
	}

	current := s.registry.Snapshot()
	keep := make(map[string]struct{}, len(current))
	for _, a := range current {
		key := alertKeyPrefix + a.ID
		keep[key] = struct{}{}

		buf, marshalErr := json.Marshal(persistedAlert{
			ID:          a.ID,
			UserID:      a.UserID,
			ProductID:   a.ProductID,
			TargetPrice: a.TargetPrice.String(),
			Active:      a.Active,
			CreatedAt:   a.CreatedAt,
		})
		if marshalErr != nil {
			return fmt.Errorf("marshal alert %s: %w", a.ID, marshalErr)
		}
		if err := s.state.Put(ctx, key, buf); err != nil {
			return err
		}
	}

	for key := range existing {
		if _, ok := keep[key]; ok {
			continue
		}
		if err := s.state.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) saveNotifications(ctx context.Context) error {
	existing, err := s.state.List(ctx, notificationKeyPrefix)
	if err != nil {
		return fmt.Errorf("list persisted notifications: %w", err)
	}

	current := s.history.All()
	keep := make(map[string]struct{}, len(current))
	for _, note := range current {
		key := notificationKeyPrefix + note.ID
		keep[key] = struct{}{}

		buf, marshalErr := json.Marshal(persistedNotification{
			ID:            note.ID,
			UserID:        note.UserID,
			Kind:          string(note.Kind),
			Title:         note.Title,
			Body:          note.Body,
			Payload:       note.Payload,
			CreatedAt:     note.CreatedAt,
			SentAt:        note.SentAt,
			ReadAt:        note.ReadAt,
			Status:        string(note.Status),
			FailureReason: note.FailureReason,
		})
		if marshalErr != nil {
			return fmt.Errorf("marshal notification %s: %w", note.ID, marshalErr)
		}
		if err := s.state.Put(ctx, key, buf); err != nil {
			return err
		}
	}

	for key := range existing {
		if _, ok := keep[key]; ok {
			continue
		}
		if err := s.state.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// RestoreState 在启动时重建提醒与通知历史。损坏的条目跳过并告警,
// 不拖垮整次恢复。上次运行没走完派发的通知恢复成 aborted 失败。
func (s *Service) RestoreState(ctx context.Context) error {
	if s.state == nil {
		return nil
	}

	alerts, err := s.restoreAlerts(ctx)
	if err != nil {
		return err
	}
	notes, err := s.restoreNotifications(ctx)
	if err != nil {
		return err
	}

	s.logger.Info().
		Int("alerts", alerts).
		Int("notifications", notes).
		Msg("状态已恢复")
	return nil
}

func (s *Service) restoreAlerts(ctx context.Context) (int, error) {
	entries, err := s.state.List(ctx, alertKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list persisted alerts: %w", err)
	}

	restored := 0
	for key, buf := range entries {
		var p persistedAlert
		if err := json.Unmarshal(buf, &p); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("提醒状态损坏,跳过")
			continue
		}

		target, convErr := decimal.NewFromString(p.TargetPrice)
		if convErr != nil {
			s.logger.Warn().Str("key", key).Err(convErr).Msg("提醒目标价损坏,跳过")
			continue
		}

		a := alert.Alert{
			ID:          p.ID,
			UserID:      p.UserID,
			ProductID:   p.ProductID,
			TargetPrice: target,
			Active:      p.Active,
			CreatedAt:   p.CreatedAt,
		}
		if err := s.registry.Add(a); err != nil {
			s.logger.Warn().Str("alert_id", p.ID).Err(err).Msg("提醒恢复失败,跳过")
			continue
		}
		restored++
	}
	return restored, nil
}

func (s *Service) restoreNotifications(ctx context.Context) (int, error) {
	entries, err := s.state.List(ctx, notificationKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list persisted notifications: %w", err)
	}

	notes := make([]*notify.Notification, 0, len(entries))
	for key, buf := range entries {
		var p persistedNotification
		if err := json.Unmarshal(buf, &p); err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("通知状态损坏,跳过")
			continue
		}

		note := &notify.Notification{
			ID:            p.ID,
			UserID:        p.UserID,
			Kind:          notify.Kind(p.Kind),
			Title:         p.Title,
			Body:          p.Body,
			Payload:       p.Payload,
			CreatedAt:     p.CreatedAt,
			SentAt:        p.SentAt,
			ReadAt:        p.ReadAt,
			Status:        notify.Status(p.Status),
			FailureReason: p.FailureReason,
		}
		if note.Status == notify.StatusPending {
			note.Status = notify.StatusFailed
			note.FailureReason = notify.ReasonAborted
		}
		notes = append(notes, note)
	}

	// 按创建时间回放,保住容量淘汰的先后顺序。
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
	for _, note := range notes {
		s.history.Record(note)
	}
	return len(notes), nil
}
