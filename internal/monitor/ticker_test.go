package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func waitForCount(t *testing.T, counter *atomic.Int64, want int64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if counter.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待计数 %d 超时, 实际 %d", want, counter.Load())
}

func TestTickerRunsFirstCycleImmediately(t *testing.T) {
	ticker := NewTicker(time.Hour, testLogger())
	var count atomic.Int64

	err := ticker.Start(context.Background(), func(ctx context.Context, now time.Time) error {
		count.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Start 失败: %v", err)
	}
	defer func() {
		ticker.Stop()
		_ = ticker.Wait()
	}()

	waitForCount(t, &count, 1, time.Second)
}

func TestTickerPeriodicCycles(t *testing.T) {
	ticker := NewTicker(10*time.Millisecond, testLogger())
	var count atomic.Int64

	if err := ticker.Start(context.Background(), func(ctx context.Context, now time.Time) error {
		count.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	waitForCount(t, &count, 3, 2*time.Second)

	ticker.Stop()
	if err := ticker.Wait(); err != nil {
		t.Fatalf("Wait 失败: %v", err)
	}
	if ticker.Running() {
		t.Fatal("停止后 Running 应为 false")
	}
}

func TestTickerStartWhileRunning(t *testing.T) {
	ticker := NewTicker(time.Hour, testLogger())
	tick := func(ctx context.Context, now time.Time) error { return nil }

	if err := ticker.Start(context.Background(), tick); err != nil {
		t.Fatal(err)
	}
	defer func() {
		ticker.Stop()
		_ = ticker.Wait()
	}()

	if err := ticker.Start(context.Background(), tick); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("运行中再次 Start 应返回 ErrAlreadyRunning, 实际 %v", err)
	}
}

func TestTickerStopIdempotent(t *testing.T) {
	ticker := NewTicker(time.Hour, testLogger())

	// Stop before any Start is a no-op.
	ticker.Stop()
	if ticker.Running() {
		t.Fatal("未启动时 Running 应为 false")
	}

	if err := ticker.Start(context.Background(), func(ctx context.Context, now time.Time) error { return nil }); err != nil {
		t.Fatal(err)
	}
	ticker.Stop()
	ticker.Stop()
	if err := ticker.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestTickerWaitWithoutStart(t *testing.T) {
	ticker := NewTicker(time.Hour, testLogger())
	if err := ticker.Wait(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("未启动时 Wait 应返回 ErrNotRunning, 实际 %v", err)
	}
}

func TestTickerCycleErrorKeepsLoopAlive(t *testing.T) {
	ticker := NewTicker(10*time.Millisecond, testLogger())
	var count atomic.Int64

	if err := ticker.Start(context.Background(), func(ctx context.Context, now time.Time) error {
		count.Add(1)
		return errors.New("cycle boom")
	}); err != nil {
		t.Fatal(err)
	}
	defer func() {
		ticker.Stop()
		_ = ticker.Wait()
	}()

	waitForCount(t, &count, 3, 2*time.Second)
}

func TestTickerRestartAfterStop(t *testing.T) {
	ticker := NewTicker(time.Hour, testLogger())
	var count atomic.Int64
	tick := func(ctx context.Context, now time.Time) error {
		count.Add(1)
		return nil
	}

	if err := ticker.Start(context.Background(), tick); err != nil {
		t.Fatal(err)
	}
	ticker.Stop()
	if err := ticker.Wait(); err != nil {
		t.Fatal(err)
	}

	if err := ticker.Start(context.Background(), tick); err != nil {
		t.Fatalf("停止后应可重新启动: %v", err)
	}
	if !ticker.Running() {
		t.Fatal("重启后 Running 应为 true")
	}
	ticker.Stop()
	if err := ticker.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestTickerStopWaitsForInflightCycle(t *testing.T) {
	ticker := NewTicker(time.Hour, testLogger())
	entered := make(chan struct{})
	var finished atomic.Bool

	if err := ticker.Start(context.Background(), func(ctx context.Context, now time.Time) error {
		close(entered)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	<-entered
	ticker.Stop()
	if err := ticker.Wait(); err != nil {
		t.Fatal(err)
	}

	if !finished.Load() {
		t.Fatal("Stop 应等待进行中的周期完成")
	}
}
