package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pricewatch/internal/config"
	"pricewatch/internal/notify"
	"pricewatch/internal/pricing"
	"pricewatch/internal/service"
	"pricewatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// newChannels 按配置组装投递通道。应用内通道无条件在列,系统告警
// 必须有收件箱可进。
func (a *App) newChannels(receiver notify.Receiver) []notify.Channel {
	channels := []notify.Channel{notify.NewInAppChannel(receiver, a.Logger)}

	if cc := a.Config.Notification.Channels.Email; cc.Enabled {
		channels = append(channels, notify.NewEmailChannel(cc.GatewayURL, cc.Timeout, a.Logger))
	}
	if cc := a.Config.Notification.Channels.Push; cc.Enabled {
		channels = append(channels, notify.NewPushChannel(cc.GatewayURL, cc.Timeout, a.Logger))
	}
	return channels
}

// inboxReceiver 在没有桌面界面挂接时把应用内通知落到日志里。
func (a *App) inboxReceiver() notify.Receiver {
	inboxLog := a.Logger.With().Str("component", "inbox").Logger()
	return notify.ReceiverFunc(func(note notify.Notification) {
		inboxLog.Info().
			Str("notification_id", note.ID).
			Str("user_id", note.UserID).
			Str("kind", string(note.Kind)).
			Str("title", note.Title).
			Msg("应用内通知")
	})
}

func (a *App) newService(source pricing.Source, results storage.ResultStore, state storage.KV) *service.Service {
	return service.New(a.Config, source, a.newChannels(a.inboxReceiver()), results, state, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// serveMetrics exposes the prometheus collectors when a listen address is
// configured. The returned stopper is nil when metrics are disabled.
func (a *App) serveMetrics() func(context.Context) {
	addr := a.Config.Metrics.ListenAddr
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
		}
	}()
	a.Logger.Info().Str("addr", addr).Msg("metrics listener started")

	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("metrics listener shutdown failed")
		}
	}
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	var results storage.ResultStore
	var state storage.KV
	if store != nil {
		results = store
		state = store
	} else {
		a.Logger.Warn().Msg("database.dsn not configured; state and audit trail kept in memory only")
		state = storage.NewMemoryKV()
	}

	svc := a.newService(pricing.NewMemorySource(), results, state)

	if err := svc.RestoreState(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("状态恢复失败,以空状态启动")
	}

	if stopMetrics := a.serveMetrics(); stopMetrics != nil {
		defer func() {
			metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelMetrics()
			stopMetrics(metricsCtx)
		}()
	}

	if err := svc.Start(); err != nil {
		return err
	}
	if err := svc.StartMonitoring(ctx); err != nil {
		return err
	}
	a.Logger.Info().Msg("starting monitoring service")

	<-ctx.Done()

	// 信号上下文已经取消,停机阶段用独立的超时上下文。
	drain := a.Config.Shutdown.DrainTimeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), drain+5*time.Second)
	defer cancelShutdown()

	if err := svc.Shutdown(shutdownCtx, notify.StopDrain, drain); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting audited monitoring results.
type ExportOptions struct {
	AlertID   string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// CheckOptions configure the one-shot check command.
type CheckOptions struct {
	Quotes map[string]string
}

// PurgeOptions configure the purge command.
type PurgeOptions struct {
	OlderThan time.Duration
}
