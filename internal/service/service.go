package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/alert"
	"pricewatch/internal/config"
	"pricewatch/internal/monitor"
	"pricewatch/internal/notify"
	"pricewatch/internal/pricing"
	"pricewatch/internal/storage"
)

// Service 是价格监控与通知流水线的门面,界面层只经由这里操作。
// 内部数据流向固定:Ticker → Evaluator → Queue → Dispatcher → History。
type Service struct {
	registry   *alert.Registry
	source     pricing.Source
	evaluator  *monitor.Evaluator
	ticker     *monitor.Ticker
	queue      *notify.Queue
	history    *notify.History
	dispatcher *notify.Dispatcher
	results    storage.ResultStore
	state      storage.KV
	logger     zerolog.Logger
}

// New constructs the pipeline from configuration. results 与 state 允许
// 为 nil,分别表示关闭审计与状态持久化。
func New(cfg *config.Config, source pricing.Source, channels []notify.Channel, results storage.ResultStore, state storage.KV, logger zerolog.Logger) *Service {
	registry := alert.NewRegistry()
	evaluator := monitor.NewEvaluator(registry, source, cfg.Monitoring.DebounceWindow(), logger)
	ticker := monitor.NewTicker(cfg.Monitoring.Interval(), logger)
	queue := notify.NewQueue(cfg.Notification.QueueCapacity)
	history := notify.NewHistory(cfg.Notification.History.MaxEntries)

	dispatcher := notify.NewDispatcher(queue, history, channels, notify.Config{
		EmailEnabled:     cfg.Notification.Channels.Email.Enabled,
		PushEnabled:      cfg.Notification.Channels.Push.Enabled,
		InAppEnabled:     cfg.Notification.Channels.InApp.Enabled,
		MaxPerUserPerDay: cfg.Notification.MaxPerUserPerDay,
	}, notify.Options{
		Workers:     cfg.Notification.Workers,
		DequeueWait: cfg.Notification.DequeueTimeout,
		Retry: notify.RetryPolicy{
			MaxAttempts: cfg.Notification.Retry.MaxAttempts,
			Base:        cfg.Notification.Retry.Base(),
			Factor:      cfg.Notification.Retry.Factor,
			Cap:         cfg.Notification.Retry.Cap(),
		},
	}, logger)

	return &Service{
		registry:   registry,
		source:     source,
		evaluator:  evaluator,
		ticker:     ticker,
		queue:      queue,
		history:    history,
		dispatcher: dispatcher,
		results:    results,
		state:      state,
		logger:     logger.With().Str("component", "service").Logger(),
	}
}

// Start 启动派发工作协程。监控循环另由 StartMonitoring 控制。
func (s *Service) Start() error {
	return s.dispatcher.Start()
}

// Shutdown 按顺序停机:先停产生端,等当前周期收尾,再停派发器,
// 最后保存状态。mode 决定积压是排空还是丢弃。
func (s *Service) Shutdown(ctx context.Context, mode notify.StopMode, maxWait time.Duration) error {
	s.StopMonitoring()
	if err := s.ticker.Wait(); err != nil && !errors.Is(err, monitor.ErrNotRunning) {
		return err
	}

	if err := s.dispatcher.Stop(mode, maxWait); err != nil && !errors.Is(err, notify.ErrDispatcherStopped) {
		return err
	}

	if s.state != nil {
		if err := s.SaveState(ctx); err != nil {
			s.logger.Error().Err(err).Msg("停机保存状态失败")
		}
	}

	s.logger.Info().Msg("服务已停止")
	return nil
}

// AddAlert registers a standing price alert.
func (s *Service) AddAlert(a alert.Alert) error {
	if err := s.registry.Add(a); err != nil {
		return err
	}
	s.logger.Info().
		Str("alert_id", a.ID).
		Str("product_id", a.ProductID).
		Str("target", a.TargetPrice.String()).
		Msg("提醒已登记")
	return nil
}

// RemoveAlert deletes an alert and its debounce entry.
func (s *Service) RemoveAlert(id string) error {
	if err := s.registry.Remove(id); err != nil {
		return err
	}
	s.evaluator.ClearDebounce(id)
	return nil
}

// RemoveUserAlerts 级联删除一个用户的全部提醒,返回删除数量。
func (s *Service) RemoveUserAlerts(userID string) int {
	removed := s.registry.RemoveByUser(userID)
	for _, id := range removed {
		s.evaluator.ClearDebounce(id)
	}
	return len(removed)
}

// SetAlertActive toggles evaluation of one alert.
func (s *Service) SetAlertActive(id string, active bool) error {
	return s.registry.SetActive(id, active)
}

// UpdateTargetPrice changes an alert's threshold.
func (s *Service) UpdateTargetPrice(id string, target decimal.Decimal) error {
	return s.registry.UpdateTargetPrice(id, target)
}

// ListUserAlerts returns a user's active alerts.
func (s *Service) ListUserAlerts(userID string) []alert.Alert {
	return s.registry.ListByUser(userID)
}

// ClearTriggerDebounce 人工解除一个提醒的去抖,下个周期即可再触发。
func (s *Service) ClearTriggerDebounce(id string) {
	s.evaluator.ClearDebounce(id)
}

// StartMonitoring launches the periodic evaluation loop.
func (s *Service) StartMonitoring(ctx context.Context) error {
	return s.ticker.Start(ctx, s.runCycle)
}

// StopMonitoring 请求监控循环退出。重复调用无效果也不报错。
func (s *Service) StopMonitoring() {
	s.ticker.Stop()
}

// IsMonitoring reports whether the evaluation loop is running.
func (s *Service) IsMonitoring() bool {
	return s.ticker.Running()
}

func (s *Service) runCycle(ctx context.Context, _ time.Time) error {
	_, err := s.CheckAllAlerts(ctx)
	return err
}

// CheckAllAlerts runs one evaluation cycle immediately and returns the
// per-alert results. 手动与定时周期走同一条路径,由评估器串行化。
func (s *Service) CheckAllAlerts(ctx context.Context) ([]monitor.Result, error) {
	results, triggers := s.evaluator.CheckAll(ctx)

	for _, trig := range triggers {
		if err := s.SendPriceAlert(trig); err != nil {
			s.logger.Error().Err(err).
				Str("alert_id", trig.AlertID).
				Msg("价格提醒入队失败")
		}
	}

	s.auditResults(ctx, results)
	return results, nil
}

// SendPriceAlert enqueues the notification for one trigger.
func (s *Service) SendPriceAlert(trig monitor.Trigger) error {
	note := notify.NewPriceAlert(trig.UserID, trig.AlertID, trig.ProductID, trig.CurrentPrice, trig.TargetPrice)
	return s.submit(note)
}

// SendNotification enqueues an arbitrary notification and returns its id.
func (s *Service) SendNotification(userID string, kind notify.Kind, title, body string, payload map[string]string) (string, error) {
	note := notify.New(userID, kind, title, body, payload)
	if err := s.submit(note); err != nil {
		return "", err
	}
	return note.ID, nil
}

// submit 把通知交给队列。通知归队列所有,派发得出终态后才由
// 派发器移交历史存档,在那之前历史查询看不到它。
func (s *Service) submit(note *notify.Notification) error {
	return s.queue.Enqueue(note)
}

// GetUserNotifications returns a user's notifications, newest first.
func (s *Service) GetUserNotifications(userID string, limit int) []notify.Notification {
	return s.history.ListByUser(userID, limit)
}

// ListUnread returns a user's delivered-but-unread notifications.
func (s *Service) ListUnread(userID string) []notify.Notification {
	return s.history.ListUnread(userID)
}

// MarkAsRead marks one delivered notification as read.
func (s *Service) MarkAsRead(id string) error {
	return s.history.MarkRead(id)
}

// UnreadCount reports how many delivered notifications are unread.
func (s *Service) UnreadCount(userID string) int {
	return s.history.UnreadCount(userID)
}

// PurgeOlderThan drops notifications created before now-age.
func (s *Service) PurgeOlderThan(age time.Duration) int {
	return s.history.PurgeOlderThan(age)
}

// UpdateNotificationConfig swaps the channel toggles and rate limit.
func (s *Service) UpdateNotificationConfig(cfg notify.Config) error {
	return s.dispatcher.UpdateConfig(cfg)
}

func (s *Service) auditResults(ctx context.Context, results []monitor.Result) {
	if s.results == nil || len(results) == 0 {
		return
	}

	records := make([]storage.ResultRecord, 0, len(results))
	for _, res := range results {
		rec := storage.ResultRecord{
			AlertID:     res.AlertID,
			ProductID:   res.ProductID,
			Triggered:   res.Triggered,
			Debounced:   res.Debounced,
			TargetPrice: res.TargetPrice,
			CheckedAt:   res.CheckedAt,
		}
		if res.CurrentPrice != nil {
			price := *res.CurrentPrice
			rec.CurrentPrice = &price
		}
		if res.Error != "" {
			msg := res.Error
			rec.Error = &msg
		}
		records = append(records, rec)
	}

	if err := s.results.InsertResults(ctx, records); err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			return
		}
		s.logger.Error().Err(err).Int("count", len(records)).Msg("审计写入失败")
	}
}
