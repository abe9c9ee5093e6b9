package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricewatch/internal/alert"
	"pricewatch/internal/notify"
	"pricewatch/internal/pricing"
)

// SimulateAlert 用给定的现价与目标价走一遍完整的提醒流程。
// 不碰数据库;投递走真实的通道配置,便于验证网关连通性。
func (a *App) SimulateAlert(ctx context.Context, productID string, current, target decimal.Decimal) error {
	source := &staticSource{price: current}
	svc := a.newService(source, nil, nil)

	if err := svc.Start(); err != nil {
		return err
	}

	userID := "simulated-user"
	if err := svc.AddAlert(alert.Alert{
		ID:          uuid.New().String(),
		UserID:      userID,
		ProductID:   productID,
		TargetPrice: target,
		Active:      true,
	}); err != nil {
		return err
	}

	results, err := svc.CheckAllAlerts(ctx)
	if err != nil {
		return err
	}
	if err := svc.Shutdown(ctx, notify.StopDrain, a.Config.Shutdown.DrainTimeout); err != nil {
		return err
	}

	if len(results) == 0 || !results[0].Triggered {
		fmt.Fprintln(os.Stdout, "not triggered: current price above target")
		return nil
	}

	notes := svc.GetUserNotifications(userID, 1)
	if len(notes) == 0 {
		return errors.New("触发了提醒但历史里没有通知,请检查队列配置")
	}

	note := notes[0]
	fmt.Fprintf(os.Stdout, "notification %s: %s\nstatus: %s\n", note.ID, note.Title, note.Status)
	if note.Status == notify.StatusFailed {
		return fmt.Errorf("通知投递失败: %s", note.FailureReason)
	}
	return nil
}

type staticSource struct {
	price decimal.Decimal
}

func (s *staticSource) CurrentPrice(ctx context.Context, productID string) (decimal.Decimal, bool, error) {
	return s.price, true, nil
}

var _ pricing.Source = (*staticSource)(nil)
