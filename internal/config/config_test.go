package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("指定的配置文件不存在时应报错")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("默认配置加载失败: %v", err)
	}

	if cfg.App.Name != "pricewatch" {
		t.Fatalf("app.name 默认值不正确: %q", cfg.App.Name)
	}
	if cfg.Monitoring.Interval() != 5*time.Minute {
		t.Fatalf("monitoring 间隔默认值不正确: %s", cfg.Monitoring.Interval())
	}
	if cfg.Monitoring.DebounceWindow() != 20*time.Minute {
		t.Fatalf("去抖窗口应为 4 个周期: %s", cfg.Monitoring.DebounceWindow())
	}
	if cfg.Notification.QueueCapacity != 10000 {
		t.Fatalf("queue_capacity 默认值不正确: %d", cfg.Notification.QueueCapacity)
	}
	if cfg.Notification.Retry.Base() != time.Second || cfg.Notification.Retry.Cap() != 30*time.Second {
		t.Fatalf("retry 退避默认值不正确: %s/%s", cfg.Notification.Retry.Base(), cfg.Notification.Retry.Cap())
	}
	if !cfg.Notification.Channels.InApp.Enabled {
		t.Fatal("in_app 通道默认应启用")
	}
	if cfg.Notification.Channels.Email.Enabled {
		t.Fatal("email 通道默认应关闭")
	}
	if cfg.Shutdown.DrainTimeout != 30*time.Second {
		t.Fatalf("drain_timeout 默认值不正确: %s", cfg.Shutdown.DrainTimeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	raw := `
monitoring:
  interval_seconds: 60
  debounce_cycles: 2
notification:
  workers: 8
  channels:
    email:
      enabled: true
      gateway_url: "https://mail.example.com"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("写临时配置失败: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	if cfg.Monitoring.Interval() != time.Minute {
		t.Fatalf("interval 应被覆盖: %s", cfg.Monitoring.Interval())
	}
	if cfg.Monitoring.DebounceWindow() != 2*time.Minute {
		t.Fatalf("去抖窗口不正确: %s", cfg.Monitoring.DebounceWindow())
	}
	if cfg.Notification.Workers != 8 {
		t.Fatalf("workers 应被覆盖: %d", cfg.Notification.Workers)
	}
	if !cfg.Notification.Channels.Email.Enabled || cfg.Notification.Channels.Email.GatewayURL == "" {
		t.Fatalf("email 通道配置不正确: %+v", cfg.Notification.Channels.Email)
	}
	// 未覆盖的键保持默认。
	if cfg.Notification.QueueCapacity != 10000 {
		t.Fatalf("queue_capacity 应保持默认: %d", cfg.Notification.QueueCapacity)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"interval":     "monitoring:\n  interval_seconds: 0\n",
		"workers":      "notification:\n  workers: -1\n",
		"email 无网关": "notification:\n  channels:\n    email:\n      enabled: true\n",
		"全通道关闭": "notification:\n  channels:\n    in_app:\n      enabled: false\n",
	}

	for name, raw := range cases {
		path := filepath.Join(t.TempDir(), "config.yaml")
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatalf("写临时配置失败: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: 非法配置应被拒绝", name)
		}
	}
}
