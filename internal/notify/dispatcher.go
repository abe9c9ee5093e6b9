package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/internal/metrics"
)

// StopMode 控制停机时如何处理队列中的积压。
type StopMode int

const (
	// StopDrain 先派发完积压再退出,超时后升级为中止。
	StopDrain StopMode = iota
	// StopAbort 立即退出,积压与在途重试一律标记失败。
	StopAbort
)

// 终态为 Failed 时记录的原因。
const (
	ReasonRateLimited    = "rate_limited"
	ReasonAborted        = "aborted"
	ReasonNoChannels     = "no_channels"
	ReasonDeliveryFailed = "delivery_failed"
)

var (
	// ErrDispatcherRunning 表示派发器已在运行。
	ErrDispatcherRunning = errors.New("dispatcher already running")
	// ErrDispatcherStopped 表示派发器未在运行。
	ErrDispatcherStopped = errors.New("dispatcher not running")
)

// DefaultWorkers 是派发工作协程的默认数量。
const DefaultWorkers = 4

const (
	defaultDequeueWait  = 500 * time.Millisecond
	defaultDrainTimeout = 30 * time.Second
)

// Options 调整派发器的运行参数,零值字段使用默认。
type Options struct {
	Workers     int
	DequeueWait time.Duration
	Retry       RetryPolicy
	RateWindow  time.Duration
}

// Dispatcher 消费通知队列,按通知种类与通道配置派发,并把每条
// 通知的终态写回历史存档。
type Dispatcher struct {
	queue    *Queue
	history  *History
	channels map[string]Channel
	limiter  *rateLimiter
	retry    RetryPolicy
	workers  int
	wait     time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	cfg     Config
	running bool
	stop    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDispatcher 构造派发器。cfg 为零值时使用 DefaultConfig。
func NewDispatcher(queue *Queue, history *History, channels []Channel, cfg Config, opts Options, logger zerolog.Logger) *Dispatcher {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.DequeueWait <= 0 {
		opts.DequeueWait = defaultDequeueWait
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy()
	}

	chmap := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		if ch != nil {
			chmap[ch.Name()] = ch
		}
	}

	return &Dispatcher{
		queue:    queue,
		history:  history,
		channels: chmap,
		limiter:  newRateLimiter(cfg.MaxPerUserPerDay, opts.RateWindow),
		retry:    opts.Retry,
		workers:  opts.Workers,
		wait:     opts.DequeueWait,
		cfg:      cfg,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Start 启动工作协程池。重复启动返回 ErrDispatcherRunning。
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return ErrDispatcherRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.stop = make(chan struct{})
	d.running = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, d.stop)
	}

	d.logger.Info().Int("workers", d.workers).Msg("通知派发器已启动")
	return nil
}

// Stop 停止派发器并等待工作协程退出,最多等待 maxWait。
// Drain 模式先消化积压,到期仍未排空则升级为中止;Abort 模式
// 取消在途投递,积压全部按 aborted 记失败。
func (d *Dispatcher) Stop(mode StopMode, maxWait time.Duration) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrDispatcherStopped
	}
	d.running = false
	stop := d.stop
	cancel := d.cancel
	d.mu.Unlock()

	close(stop)
	if mode == StopAbort {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	if maxWait <= 0 {
		maxWait = defaultDrainTimeout
	}
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		d.logger.Warn().Dur("max_wait", maxWait).Msg("排空超时,升级为中止")
		cancel()
		<-done
	}
	cancel()

	if failed := d.failRemaining(); failed > 0 {
		d.logger.Warn().Int("count", failed).Msg("停机时丢弃积压通知")
	}

	d.logger.Info().Msg("通知派发器已停止")
	return nil
}

// Running 报告派发器是否在运行。
func (d *Dispatcher) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// UpdateConfig 原子替换通道配置与限流配额。
func (d *Dispatcher) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	d.limiter.setMax(cfg.MaxPerUserPerDay)

	d.logger.Info().
		Bool("email", cfg.EmailEnabled).
		Bool("push", cfg.PushEnabled).
		Bool("in_app", cfg.InAppEnabled).
		Int("max_per_user_per_day", cfg.MaxPerUserPerDay).
		Msg("通知配置已更新")
	return nil
}

// worker 循环消费队列。stop 关闭后继续出队直到队列排空,借此
// 实现 Drain;上层 ctx 取消后剩余通知在 dispatch 里直接记失败。
func (d *Dispatcher) worker(ctx context.Context, stop <-chan struct{}) {
	defer d.wg.Done()

	for {
		note, ok := d.queue.DequeueOne(d.wait)
		if ok {
			d.dispatch(ctx, note)
			continue
		}

		select {
		case <-stop:
			return
		default:
		}
	}
}

// dispatch 处理单条通知:选路、限流、逐通道投递并汇总终态。
// 至少一个通道投递成功即记 Sent。通知只在到达终态的这一刻移交
// 历史存档,排队与投递过程对历史查询不可见。
func (d *Dispatcher) dispatch(ctx context.Context, note *Notification) {
	if ctx.Err() != nil {
		d.finalizeFailed(note, ReasonAborted)
		return
	}

	routes := d.routesFor(note.Kind)
	if len(routes) == 0 {
		d.finalizeFailed(note, ReasonNoChannels)
		return
	}

	// 选不出通道的通知不算投递尝试,不占限流配额。
	if !d.limiter.allow(note.UserID, time.Now()) {
		metrics.NotificationsRateLimitedTotal.Inc()
		d.finalizeFailed(note, ReasonRateLimited)
		d.logger.Warn().
			Str("notification_id", note.ID).
			Str("user_id", note.UserID).
			Msg("用户达到通知限额,本条记失败")
		return
	}

	delivered := 0
	for _, ch := range routes {
		if err := d.deliverWithRetry(ctx, ch, note); err != nil {
			d.logger.Error().Err(err).
				Str("notification_id", note.ID).
				Str("channel", ch.Name()).
				Msg("通道投递失败")
			continue
		}
		delivered++
	}

	if delivered > 0 {
		note.markSent(time.Now())
		d.history.Record(note)
		metrics.NotificationsDispatchedTotal.WithLabelValues("sent").Inc()
		return
	}
	if ctx.Err() != nil {
		d.finalizeFailed(note, ReasonAborted)
		return
	}
	d.finalizeFailed(note, ReasonDeliveryFailed)
}

func (d *Dispatcher) finalizeFailed(note *Notification, reason string) {
	note.markFailed(reason)
	d.history.Record(note)
	metrics.NotificationsDispatchedTotal.WithLabelValues("failed").Inc()
}

// routesFor 按通知种类与当前配置选出投递通道。
func (d *Dispatcher) routesFor(kind Kind) []Channel {
	d.mu.Lock()
	cfg := d.cfg
	d.mu.Unlock()

	var routes []Channel
	add := func(name string, enabled bool) {
		if !enabled {
			return
		}
		if ch, ok := d.channels[name]; ok {
			routes = append(routes, ch)
		}
	}

	switch kind {
	case KindPriceAlert:
		add(ChannelEmail, cfg.EmailEnabled)
		add(ChannelPush, cfg.PushEnabled)
		add(ChannelInApp, cfg.InAppEnabled)
	case KindSystemAlert:
		add(ChannelPush, cfg.PushEnabled)
		// 系统告警必须到达应用内收件箱,不受开关影响。
		add(ChannelInApp, true)
	case KindProductUpdate:
		add(ChannelInApp, cfg.InAppEnabled)
	case KindUserMessage:
		add(ChannelEmail, cfg.EmailEnabled)
		add(ChannelInApp, cfg.InAppEnabled)
	default:
		add(ChannelInApp, cfg.InAppEnabled)
	}
	return routes
}

// deliverWithRetry 在单次派发内对瞬时错误做指数退避重试。致命
// 错误立即放弃该通道;重试耗尽后按该通道的致命错误处理。
func (d *Dispatcher) deliverWithRetry(ctx context.Context, ch Channel, note *Notification) error {
	max := d.retry.MaxAttempts
	if max <= 0 {
		max = 1
	}

	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		err := ch.Deliver(ctx, note)
		if err == nil {
			metrics.ChannelAttemptsTotal.WithLabelValues(ch.Name(), "ok").Inc()
			return nil
		}
		lastErr = err

		if !IsTransient(err) {
			metrics.ChannelAttemptsTotal.WithLabelValues(ch.Name(), "fatal").Inc()
			return err
		}
		metrics.ChannelAttemptsTotal.WithLabelValues(ch.Name(), "transient").Inc()

		if attempt == max {
			break
		}

		timer := time.NewTimer(d.retry.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return transientError(ch.Name(), "aborted during backoff", ctx.Err())
		case <-timer.C:
		}
	}
	return lastErr
}

// failRemaining 清空队列残留并逐条记失败,停机收尾时调用。
func (d *Dispatcher) failRemaining() int {
	count := 0
	for {
		note, ok := d.queue.DequeueOne(0)
		if !ok {
			return count
		}
		d.finalizeFailed(note, ReasonAborted)
		count++
	}
}
