// Package bitmex REST 客户端测试
package bitmex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/model"
)

// TestSign 官方文档公布的签名测试向量
func TestSign(t *testing.T) {
	secret := "chNOOS4KvNXR_Xq4k4c9qsfoKWvnDecLATCRlcBwyKDYnWgO"

	// GET 无请求体
	got := sign(secret, "GET", "/api/v1/instrument", "1518064236", "")
	want := "c7682d435d0cfe87c16098df34ef2eb5a549d4c5a3c2b1f0f77b8af73423bf00"
	if got != want {
		t.Fatalf("GET 签名 = %s, want %s", got, want)
	}

	// GET 带查询串（查询串参与签名）
	got = sign(secret, "GET", "/api/v1/instrument?filter=%7B%22symbol%22%3A+%22XBTM15%22%7D", "1518064237", "")
	want = "e2f422547eecb5b3cb29ade2127e21b858b235b386bfa45e1c1756eb3383919f"
	if got != want {
		t.Fatalf("GET 查询串签名 = %s, want %s", got, want)
	}

	// POST 带请求体
	body := `{"symbol":"XBTM15","price":219.0,"clOrdID":"mm_bitmex_1a/oemUeQ4CAJZgP3fjHsA","orderQty":98}`
	got = sign(secret, "POST", "/api/v1/order", "1518064238", body)
	want = "1749cd2ccae4aa49048ae09f0b95110cee706e0944e6a14ad0b3a8cb45bd336b"
	if got != want {
		t.Fatalf("POST 签名 = %s, want %s", got, want)
	}
}

// newTestClient 指向 httptest 服务的客户端
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.APIConfig{
		BaseURL:       srv.URL + "/api/v1",
		WSURL:         "ws://unused/realtime",
		Key:           "test-key",
		Secret:        "test-secret",
		OrderIDPrefix: "mm_bitmex_",
		TimeoutMs:     2000,
	}
	c, err := NewClient(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("创建客户端失败: %v", err)
	}
	return c, srv
}

// TestClient_ErrorMapping 交易所错误到错误分类的映射
func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	// 401 → ErrAuth
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "Invalid API Key.", "name": "HTTPError"}})
	}))
	if _, err := c.Margin(ctx); !errors.Is(err, model.ErrAuth) {
		t.Fatalf("401 应映射为 ErrAuth, got %v", err)
	}

	// Invalid ordStatus → ErrStaleOrder
	c, _ = newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "Invalid ordStatus", "name": "HTTPError"}})
	}))
	if _, err := c.AmendOrders(ctx, []model.AmendRequest{{OrderID: "x", Price: 1, OrderQty: 1}}); !errors.Is(err, model.ErrStaleOrder) {
		t.Fatalf("Invalid ordStatus 应映射为 ErrStaleOrder, got %v", err)
	}

	// 其他错误 → TransportError 带状态码
	c, _ = newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "The system is currently overloaded.", "name": "HTTPError"}})
	}))
	var te *model.TransportError
	if _, err := c.Instrument(ctx, "XBTUSD"); !errors.As(err, &te) || te.Status != http.StatusServiceUnavailable {
		t.Fatalf("应映射为带状态码的 TransportError, got %v", err)
	}
}

// TestClient_OpenOrders_PrefixFilter 只保留本引擎前缀的挂单并维持返回顺序
func TestClient_OpenOrders_PrefixFilter(t *testing.T) {
	var gotHeaders http.Header
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		json.NewEncoder(w).Encode([]orderDTO{
			{OrderID: "1", ClOrdID: "mm_bitmex_aaa", Side: "Buy", Price: 9900, OrderQty: 100, LeavesQty: 100},
			{OrderID: "2", ClOrdID: "manual-order", Side: "Buy", Price: 9800, OrderQty: 50, LeavesQty: 50},
			{OrderID: "3", ClOrdID: "mm_bitmex_bbb", Side: "Sell", Price: 10100, OrderQty: 100, LeavesQty: 100},
		})
	}))

	orders, err := c.OpenOrders(context.Background())
	if err != nil {
		t.Fatalf("OpenOrders 失败: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("应过滤掉人工挂单, got %d", len(orders))
	}
	if orders[0].OrderID != "1" || orders[1].OrderID != "3" {
		t.Fatalf("应维持交易所返回顺序: %+v", orders)
	}

	// 签名请求头齐全
	if gotHeaders.Get("api-key") != "test-key" {
		t.Fatalf("api-key 头缺失")
	}
	if gotHeaders.Get("api-signature") == "" || gotHeaders.Get("api-expires") == "" {
		t.Fatalf("签名头缺失")
	}
}

// TestClient_CreateOrders 批量下单：客户端订单标识与只挂不吃指令
func TestClient_CreateOrders(t *testing.T) {
	var gotBody struct {
		Orders []orderRequestDTO `json:"orders"`
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		json.NewEncoder(w).Encode([]orderDTO{})
	})

	c, _ := newTestClient(t, handler)
	c.cfg.PostOnly = true

	_, err := c.CreateOrders(context.Background(), []model.OrderRequest{
		{Symbol: "XBTUSD", Side: model.SideBuy, Price: 9900, OrderQty: 100},
	})
	if err != nil {
		t.Fatalf("CreateOrders 失败: %v", err)
	}

	if len(gotBody.Orders) != 1 {
		t.Fatalf("应提交 1 笔订单, got %d", len(gotBody.Orders))
	}
	o := gotBody.Orders[0]
	if !strings.HasPrefix(o.ClOrdID, "mm_bitmex_") {
		t.Fatalf("clOrdID 应带前缀: %s", o.ClOrdID)
	}
	if len(o.ClOrdID) > 36 {
		t.Fatalf("clOrdID 超过 36 字符: %s", o.ClOrdID)
	}
	if o.ExecInst != execInstPostOnly {
		t.Fatalf("post_only 模式应带 %s, got %q", execInstPostOnly, o.ExecInst)
	}
}

// TestClient_Position_Flat 交易所无持仓记录时返回空仓视图
func TestClient_Position_Flat(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]positionDTO{})
	}))

	pos, err := c.Position(context.Background(), "XBTUSD")
	if err != nil {
		t.Fatalf("Position 失败: %v", err)
	}
	if !pos.IsFlat() || pos.Symbol != "XBTUSD" {
		t.Fatalf("无持仓记录应返回空仓视图: %+v", pos)
	}
}
