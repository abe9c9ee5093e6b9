package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testNote() *Notification {
	return NewPriceAlert("u1", "a1", "p1", decimal.NewFromInt(95), decimal.NewFromInt(100))
}

func TestEmailChannelSuccess(t *testing.T) {
	var received emailMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/send") {
			t.Fatalf("路径应以 /send 结尾, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewEmailChannel(srv.URL, time.Second, testLogger())
	note := testNote()

	if err := ch.Deliver(context.Background(), note); err != nil {
		t.Fatalf("email Deliver 应成功: %v", err)
	}

	if received.To != "u1" {
		t.Fatalf("to 不正确: %#v", received)
	}
	if received.Subject != note.Title {
		t.Fatalf("subject 不正确: %q", received.Subject)
	}
	if received.Kind != string(KindPriceAlert) {
		t.Fatalf("kind 不正确: %q", received.Kind)
	}
	if received.Data["product_id"] != "p1" {
		t.Fatalf("data 应携带 product_id: %#v", received.Data)
	}
}

func TestEmailChannelServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ch := NewEmailChannel(srv.URL, time.Second, testLogger())
	err := ch.Deliver(context.Background(), testNote())
	if err == nil {
		t.Fatal("503 应报错")
	}
	if !IsTransient(err) {
		t.Fatalf("503 应归类为瞬时错误: %v", err)
	}
}

func TestEmailChannelClientErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	ch := NewEmailChannel(srv.URL, time.Second, testLogger())
	err := ch.Deliver(context.Background(), testNote())
	if err == nil {
		t.Fatal("400 应报错")
	}
	if IsTransient(err) {
		t.Fatalf("400 应归类为致命错误: %v", err)
	}
}

func TestEmailChannelConnectionErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ch := NewEmailChannel(srv.URL, time.Second, testLogger())
	err := ch.Deliver(context.Background(), testNote())
	if err == nil {
		t.Fatal("连接失败应报错")
	}
	if !IsTransient(err) {
		t.Fatalf("连接失败应归类为瞬时错误: %v", err)
	}
}

func TestPushChannelPriority(t *testing.T) {
	var received pushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": true})
	}))
	defer srv.Close()

	ch := NewPushChannel(srv.URL, time.Second, testLogger())

	if err := ch.Deliver(context.Background(), testNote()); err != nil {
		t.Fatalf("push Deliver 应成功: %v", err)
	}
	if received.Priority != "normal" {
		t.Fatalf("价格提醒应为 normal 优先级: %q", received.Priority)
	}

	sys := New("u1", KindSystemAlert, "maintenance", "scheduled downtime", nil)
	if err := ch.Deliver(context.Background(), sys); err != nil {
		t.Fatalf("push Deliver 应成功: %v", err)
	}
	if received.Priority != "high" {
		t.Fatalf("系统告警应为 high 优先级: %q", received.Priority)
	}
}

func TestPushChannelRejectedIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": false})
	}))
	defer srv.Close()

	ch := NewPushChannel(srv.URL, time.Second, testLogger())
	err := ch.Deliver(context.Background(), testNote())
	if err == nil {
		t.Fatal("accepted=false 应报错")
	}
	if IsTransient(err) {
		t.Fatalf("accepted=false 应归类为致命错误: %v", err)
	}
}

func TestInAppChannelDeliversCopy(t *testing.T) {
	var got Notification
	ch := NewInAppChannel(ReceiverFunc(func(note Notification) { got = note }), testLogger())

	note := testNote()
	if err := ch.Deliver(context.Background(), note); err != nil {
		t.Fatalf("in_app Deliver 应成功: %v", err)
	}
	if got.ID != note.ID {
		t.Fatalf("接收到的通知不对: %#v", got)
	}

	got.Payload["product_id"] = "mutated"
	if note.Payload["product_id"] != "p1" {
		t.Fatal("接收器持有的应是副本")
	}
}

func TestInAppChannelNilReceiver(t *testing.T) {
	ch := NewInAppChannel(nil, testLogger())
	if err := ch.Deliver(context.Background(), testNote()); err != nil {
		t.Fatalf("无接收器时应视为已投递: %v", err)
	}
}

func TestInAppChannelCancelledContext(t *testing.T) {
	ch := NewInAppChannel(nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ch.Deliver(ctx, testNote())
	if err == nil {
		t.Fatal("已取消的 context 应报错")
	}
	if !IsTransient(err) {
		t.Fatalf("取消应归类为瞬时错误: %v", err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
