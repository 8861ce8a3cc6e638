package signalfeed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/model"
)

// newTestServer 绑定 httptest 的信号注入服务
func newTestServer(t *testing.T) (*Cell, *httptest.Server) {
	t.Helper()
	cell := NewCell()
	s := NewServer(&config.SignalsConfig{ListenAddr: ":0"}, cell, zap.NewNop())
	srv := httptest.NewServer(s.srv.Handler)
	t.Cleanup(srv.Close)
	return cell, srv
}

// TestServer_UpdateAndSnapshot POST 写入信号后 GET 返回最新快照
func TestServer_UpdateAndSnapshot(t *testing.T) {
	cell, srv := newTestServer(t)

	body := `{"rsi":28.5,"macd_histogram":-1.2,"long_enable":true,"buy_enable":true}`
	resp, err := http.Post(srv.URL+"/signal", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /signal 失败: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /signal 状态码 = %d", resp.StatusCode)
	}

	var sig model.SignalSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&sig); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if sig.Version != 1 || sig.RSI != 28.5 || !sig.LongEnable || !sig.BuyEnable {
		t.Fatalf("响应应回显分配版本后的信号: %+v", sig)
	}

	got := cell.Snapshot()
	if got.Version != 1 || got.MACDHistogram != -1.2 {
		t.Fatalf("信号单元应被写入: %+v", got)
	}

	resp2, err := http.Get(srv.URL + "/signal")
	if err != nil {
		t.Fatalf("GET /signal 失败: %v", err)
	}
	defer resp2.Body.Close()
	var snap model.SignalSnapshot
	if err := json.NewDecoder(resp2.Body).Decode(&snap); err != nil {
		t.Fatalf("解析快照失败: %v", err)
	}
	if snap != got {
		t.Fatalf("GET /signal 应返回当前快照: %+v != %+v", snap, got)
	}
}

// TestServer_BadRequest 非法请求体返回 400 且不写入信号单元
func TestServer_BadRequest(t *testing.T) {
	cell, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/signal", "application/json", strings.NewReader(`{"rsi":"not-a-number"}`))
	if err != nil {
		t.Fatalf("POST /signal 失败: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("非法请求体状态码 = %d, want 400", resp.StatusCode)
	}
	if v := cell.Snapshot().Version; v != 0 {
		t.Fatalf("非法请求不应写入信号单元, version = %d", v)
	}
}

// TestServer_Healthz 健康检查
func TestServer_Healthz(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz 失败: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz 状态码 = %d", resp.StatusCode)
	}
}

// TestServer_StartDisabled 监听地址为空时启动与停止均为空操作
func TestServer_StartDisabled(t *testing.T) {
	s := NewServer(&config.SignalsConfig{}, NewCell(), zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("空监听地址启动应为空操作: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("空监听地址停止应为空操作: %v", err)
	}
}
