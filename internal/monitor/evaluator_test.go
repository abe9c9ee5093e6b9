package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/alert"
	"pricewatch/internal/pricing"
)

type stubSource struct {
	prices map[string]decimal.Decimal
	errs   map[string]error
}

func (s *stubSource) CurrentPrice(ctx context.Context, productID string) (decimal.Decimal, bool, error) {
	if err := s.errs[productID]; err != nil {
		return decimal.Decimal{}, false, err
	}
	price, ok := s.prices[productID]
	return price, ok, nil
}

var _ pricing.Source = (*stubSource)(nil)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestEvaluator(t *testing.T, source pricing.Source, window time.Duration) (*Evaluator, *alert.Registry) {
	t.Helper()
	registry := alert.NewRegistry()
	return NewEvaluator(registry, source, window, testLogger()), registry
}

func addAlert(t *testing.T, r *alert.Registry, id, userID, productID string, target int64, active bool) {
	t.Helper()
	err := r.Add(alert.Alert{
		ID:          id,
		UserID:      userID,
		ProductID:   productID,
		TargetPrice: decimal.NewFromInt(target),
		Active:      active,
	})
	if err != nil {
		t.Fatalf("添加告警失败: %v", err)
	}
}

func TestCheckAllTriggerOnEqual(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(100)}}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, true)

	results, triggers := e.CheckAll(context.Background())

	if len(results) != 1 {
		t.Fatalf("期望 1 条结果, 实际 %d", len(results))
	}
	res := results[0]
	if !res.Triggered || res.Debounced {
		t.Fatalf("价格等于目标时应触发: %+v", res)
	}
	if res.CurrentPrice == nil || !res.CurrentPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("结果应携带当前价格: %+v", res)
	}

	if len(triggers) != 1 {
		t.Fatalf("期望 1 条 Trigger, 实际 %d", len(triggers))
	}
	trig := triggers[0]
	if trig.AlertID != "a1" || trig.UserID != "u1" || trig.ProductID != "p1" {
		t.Fatalf("Trigger 字段不正确: %+v", trig)
	}
	if !trig.CurrentPrice.LessThanOrEqual(trig.TargetPrice) {
		t.Fatalf("Trigger 不满足谓词: %+v", trig)
	}
}

func TestCheckAllNoTriggerWhenAbove(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(101)}}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, true)

	results, triggers := e.CheckAll(context.Background())

	if len(triggers) != 0 {
		t.Fatalf("价格高于目标不应触发: %+v", triggers)
	}
	if results[0].Triggered {
		t.Fatal("结果不应标记触发")
	}
	if results[0].CurrentPrice == nil {
		t.Fatal("未触发的结果仍应携带当前价格")
	}
}

func TestCheckAllDebounce(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(50)}}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, true)

	total := 0
	for i := 0; i < 3; i++ {
		results, triggers := e.CheckAll(context.Background())
		total += len(triggers)

		if !results[0].Triggered {
			t.Fatalf("第 %d 次检查仍应报告触发", i+1)
		}
		if i > 0 && !results[0].Debounced {
			t.Fatalf("第 %d 次检查应被防抖抑制", i+1)
		}
	}

	if total != 1 {
		t.Fatalf("防抖窗口内应只发出 1 条 Trigger, 实际 %d", total)
	}
}

func TestCheckAllZeroWindowDisablesDebounce(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(50)}}
	e, r := newTestEvaluator(t, source, 0)
	addAlert(t, r, "a1", "u1", "p1", 100, true)

	total := 0
	for i := 0; i < 3; i++ {
		_, triggers := e.CheckAll(context.Background())
		total += len(triggers)
	}
	if total != 3 {
		t.Fatalf("窗口为 0 时每次都应触发, 实际 %d", total)
	}
}

func TestCheckAllMissingPrice(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{}}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, true)

	results, triggers := e.CheckAll(context.Background())

	if len(triggers) != 0 {
		t.Fatal("无价格不应触发")
	}
	res := results[0]
	if res.Triggered || res.CurrentPrice != nil || res.Error != "" {
		t.Fatalf("无价格应产生未触发且无价格的结果: %+v", res)
	}
}

func TestCheckAllNegativePriceTreatedAsMissing(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(-1)}}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, true)

	results, triggers := e.CheckAll(context.Background())
	if len(triggers) != 0 || results[0].Triggered || results[0].CurrentPrice != nil {
		t.Fatalf("负价格应按缺失处理: %+v", results[0])
	}
}

func TestCheckAllErrorIsolation(t *testing.T) {
	source := &stubSource{
		prices: map[string]decimal.Decimal{"p2": decimal.NewFromInt(10)},
		errs:   map[string]error{"p1": errors.New("source unavailable")},
	}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, true)
	addAlert(t, r, "a2", "u1", "p2", 100, true)

	results, triggers := e.CheckAll(context.Background())

	if len(results) != 2 {
		t.Fatalf("单个告警失败不应中断整个周期, 结果数 %d", len(results))
	}

	byAlert := make(map[string]Result, len(results))
	for _, res := range results {
		byAlert[res.AlertID] = res
	}
	if byAlert["a1"].Error == "" {
		t.Fatal("失败的告警应记录错误")
	}
	if !byAlert["a2"].Triggered {
		t.Fatal("健康的告警应正常评估")
	}
	if len(triggers) != 1 {
		t.Fatalf("期望 1 条 Trigger, 实际 %d", len(triggers))
	}
}

func TestCheckAllSkipsInactive(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(1)}}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, false)

	results, triggers := e.CheckAll(context.Background())
	if len(results) != 0 || len(triggers) != 0 {
		t.Fatalf("停用的告警不应参与评估: results=%d triggers=%d", len(results), len(triggers))
	}
}

func TestClearDebounceAllowsRefire(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(50)}}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, true)

	_, first := e.CheckAll(context.Background())
	if len(first) != 1 {
		t.Fatal("首次检查应触发")
	}

	e.ClearDebounce("a1")

	_, second := e.CheckAll(context.Background())
	if len(second) != 1 {
		t.Fatal("清除防抖后应立即重新触发")
	}
}

func TestDebounceEntrySweptWhenAlertRemoved(t *testing.T) {
	source := &stubSource{prices: map[string]decimal.Decimal{"p1": decimal.NewFromInt(50)}}
	e, r := newTestEvaluator(t, source, time.Hour)
	addAlert(t, r, "a1", "u1", "p1", 100, true)

	_, first := e.CheckAll(context.Background())
	if len(first) != 1 {
		t.Fatal("首次检查应触发")
	}

	if err := r.Remove("a1"); err != nil {
		t.Fatal(err)
	}
	e.CheckAll(context.Background())

	addAlert(t, r, "a1", "u1", "p1", 100, true)
	_, again := e.CheckAll(context.Background())
	if len(again) != 1 {
		t.Fatal("删除后重新添加的告警应重新触发")
	}
}
