package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"pricewatch/internal/monitor"
	"pricewatch/internal/notify"
	"pricewatch/internal/pricing"
)

// Check 恢复持久化状态后立刻跑一轮评估,逐条打印结果。Quotes 里的
// 报价作为本轮现价参与评估;没报价的商品按无可用报价处理。
func (a *App) Check(ctx context.Context, opts CheckOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; no persisted alerts to check")
	}
	if closeStore != nil {
		defer closeStore()
	}

	source := pricing.NewMemorySource()
	for productID, raw := range opts.Quotes {
		price, parseErr := decimal.NewFromString(raw)
		if parseErr != nil {
			return fmt.Errorf("invalid quote for %s: %w", productID, parseErr)
		}
		obs, submitErr := source.Submit(productID, "cli", price, false)
		if submitErr != nil {
			return submitErr
		}
		if verifyErr := source.Verify(obs.ID); verifyErr != nil {
			return verifyErr
		}
	}

	svc := a.newService(source, store, store)
	if err := svc.RestoreState(ctx); err != nil {
		return err
	}
	if err := svc.Start(); err != nil {
		return err
	}

	results, err := svc.CheckAllAlerts(ctx)
	if err != nil {
		return err
	}

	if err := svc.Shutdown(ctx, notify.StopDrain, a.Config.Shutdown.DrainTimeout); err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "no active alerts")
		return nil
	}

	printResults(results)
	return nil
}

func printResults(results []monitor.Result) {
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Alert\tProduct\tCurrent\tTarget\tTriggered\tDebounced\tError")

	for _, res := range results {
		current := "-"
		if res.CurrentPrice != nil {
			current = formatDecimal(*res.CurrentPrice, 2)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%t\t%t\t%s\n",
			res.AlertID,
			res.ProductID,
			current,
			formatDecimal(res.TargetPrice, 2),
			res.Triggered,
			res.Debounced,
			sanitizeInline(res.Error),
		)
	}

	writer.Flush()
}
