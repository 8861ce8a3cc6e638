package bitmex

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/model"
)

// signatureExpirySec 签名有效期（秒）
const signatureExpirySec = 5

// execInstPostOnly 只挂不吃执行指令
const execInstPostOnly = "ParticipateDoNotInitiate"

// Client BitMEX REST 客户端
// 实现 market.Transport 能力集；所有请求带 HMAC 签名与超时。
type Client struct {
	// cfg 连接与鉴权配置
	cfg *config.APIConfig
	// httpc HTTP 客户端（超时由配置决定）
	httpc *http.Client
	// basePath 签名所用的路径前缀，如 /api/v1
	basePath string
	// keepalive realtime 连接健康度探测
	keepalive *Keepalive
	// logger 日志记录器
	logger *zap.Logger
}

// NewClient 创建 BitMEX 客户端
// 参数 cfg: 连接与鉴权配置
// 参数 logger: 日志记录器
func NewClient(cfg *config.APIConfig, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("解析 base_url 失败: %w", err)
	}

	log := logger.Named("bitmex")
	return &Client{
		cfg:       cfg,
		httpc:     &http.Client{Timeout: cfg.Timeout()},
		basePath:  strings.TrimRight(u.Path, "/"),
		keepalive: NewKeepalive(cfg, log),
		logger:    log,
	}, nil
}

// Connect 启动 realtime 健康度连接
func (c *Client) Connect(ctx context.Context) error {
	return c.keepalive.Start(ctx)
}

// Reconnect 丢弃当前 realtime 连接并重建
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.keepalive.Close()
	c.keepalive = NewKeepalive(c.cfg, c.logger)
	return c.keepalive.Start(ctx)
}

// Close 关闭客户端
func (c *Client) Close() error {
	return c.keepalive.Close()
}

// ConnectionHealthy 实时行情连接是否存活
func (c *Client) ConnectionHealthy() bool {
	return c.keepalive.Healthy()
}

// sign 计算请求签名
// signature = hex(HMAC_SHA256(secret, verb + path + expires + body))
func sign(secret, verb, path, expires, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(verb + path + expires + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// do 执行一次签名 REST 请求
// 参数 out: 非 nil 时响应体反序列化到该对象
func (c *Client) do(ctx context.Context, verb, path string, query url.Values, body, out any) error {
	op := verb + " " + path

	encodedQuery := query.Encode()
	signPath := c.basePath + path
	if encodedQuery != "" {
		signPath += "?" + encodedQuery
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &model.TransportError{Op: op, Err: fmt.Errorf("序列化请求体失败: %w", err)}
		}
	}

	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return &model.TransportError{Op: op, Err: err}
	}
	u.Path = c.basePath + path
	u.RawQuery = encodedQuery

	req, err := http.NewRequestWithContext(ctx, verb, u.String(), bytes.NewReader(payload))
	if err != nil {
		return &model.TransportError{Op: op, Err: err}
	}

	expires := strconv.FormatInt(time.Now().Unix()+signatureExpirySec, 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-expires", expires)
	req.Header.Set("api-key", c.cfg.Key)
	req.Header.Set("api-signature", sign(c.cfg.Secret, verb, signPath, expires, string(payload)))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &model.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &model.TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 400 {
		return c.apiError(op, resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &model.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("解析响应失败: %w", err)}
		}
	}
	return nil
}

// apiError 将交易所错误响应映射到错误分类
// Invalid ordStatus → ErrStaleOrder；401/403 → ErrAuth；其余 → TransportError
func (c *Client) apiError(op string, status int, data []byte) error {
	var dto errorDTO
	message := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &dto); err == nil && dto.Error.Message != "" {
		message = dto.Error.Message
	}

	if message == "Invalid ordStatus" {
		return fmt.Errorf("%s: %w", op, model.ErrStaleOrder)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%s: %s: %w", op, message, model.ErrAuth)
	}
	return &model.TransportError{Op: op, Status: status, Err: errors.New(message)}
}

// instrument 获取单个合约的线格式数据
func (c *Client) instrument(ctx context.Context, symbol string) (instrumentDTO, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("count", "1")

	var dtos []instrumentDTO
	if err := c.do(ctx, http.MethodGet, "/instrument", query, nil, &dtos); err != nil {
		return instrumentDTO{}, err
	}
	if len(dtos) == 0 {
		return instrumentDTO{}, &model.TransportError{Op: "GET /instrument", Err: fmt.Errorf("合约 %s 不存在", symbol)}
	}
	return dtos[0], nil
}

// Instrument 获取合约元数据
func (c *Client) Instrument(ctx context.Context, symbol string) (*model.Instrument, error) {
	dto, err := c.instrument(ctx, symbol)
	if err != nil {
		return nil, err
	}
	instrument, err := toInstrument(dto)
	if err != nil {
		return nil, &model.TransportError{Op: "GET /instrument", Err: err}
	}
	return instrument, nil
}

// Ticker 获取盘口快照
func (c *Client) Ticker(ctx context.Context, symbol string) (*model.Ticker, error) {
	dto, err := c.instrument(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return toTicker(dto)
}

// Position 获取当前持仓
// 交易所尚无持仓记录时返回空仓视图
func (c *Client) Position(ctx context.Context, symbol string) (*model.Position, error) {
	query := url.Values{}
	query.Set("filter", fmt.Sprintf(`{"symbol":%q}`, symbol))

	var dtos []positionDTO
	if err := c.do(ctx, http.MethodGet, "/position", query, nil, &dtos); err != nil {
		return nil, err
	}
	if len(dtos) == 0 || dtos[0].Symbol == "" {
		return flatPosition(symbol), nil
	}
	return toPosition(dtos[0]), nil
}

// Margin 获取账户保证金（XBt 计价）
func (c *Client) Margin(ctx context.Context) (*model.Margin, error) {
	query := url.Values{}
	query.Set("currency", "XBt")

	var dto marginDTO
	if err := c.do(ctx, http.MethodGet, "/user/margin", query, nil, &dto); err != nil {
		return nil, err
	}
	return toMargin(dto), nil
}

// OpenOrders 获取本引擎的挂单
// 仅保留 ClOrdID 前缀匹配的订单，避免操作人工或其他引擎的挂单；
// 保持交易所返回顺序，收敛引擎的按位配对依赖该顺序。
func (c *Client) OpenOrders(ctx context.Context) ([]model.Order, error) {
	query := url.Values{}
	query.Set("filter", `{"ordStatus.isTerminated":false}`)
	query.Set("count", "500")
	query.Set("reverse", "false")

	var dtos []orderDTO
	if err := c.do(ctx, http.MethodGet, "/order", query, nil, &dtos); err != nil {
		return nil, err
	}

	orders := make([]model.Order, 0, len(dtos))
	for _, dto := range dtos {
		if !strings.HasPrefix(dto.ClOrdID, c.cfg.OrderIDPrefix) {
			continue
		}
		orders = append(orders, toOrder(dto))
	}
	return orders, nil
}

// newClOrdID 生成带前缀的客户端订单标识
func (c *Client) newClOrdID() string {
	u := uuid.New()
	return c.cfg.OrderIDPrefix + base64.RawURLEncoding.EncodeToString(u[:])
}

// CreateOrders 批量下单
func (c *Client) CreateOrders(ctx context.Context, orders []model.OrderRequest) ([]model.Order, error) {
	dtos := make([]orderRequestDTO, len(orders))
	for i, o := range orders {
		dto := orderRequestDTO{
			Symbol:   o.Symbol,
			Side:     string(o.Side),
			OrderQty: o.OrderQty,
			Price:    o.Price,
			ClOrdID:  o.ClOrdID,
			ExecInst: o.ExecInst,
		}
		if dto.ClOrdID == "" {
			dto.ClOrdID = c.newClOrdID()
		}
		if dto.ExecInst == "" && c.cfg.PostOnly {
			dto.ExecInst = execInstPostOnly
		}
		dtos[i] = dto
	}

	var created []orderDTO
	if err := c.do(ctx, http.MethodPost, "/order/bulk", nil, bulkOrdersDTO{Orders: dtos}, &created); err != nil {
		return nil, err
	}

	out := make([]model.Order, len(created))
	for i, dto := range created {
		out[i] = toOrder(dto)
	}
	return out, nil
}

// AmendOrders 批量改单
func (c *Client) AmendOrders(ctx context.Context, amends []model.AmendRequest) ([]model.Order, error) {
	dtos := make([]amendRequestDTO, len(amends))
	for i, a := range amends {
		dtos[i] = amendRequestDTO{OrderID: a.OrderID, OrderQty: a.OrderQty, Price: a.Price}
	}

	var amended []orderDTO
	if err := c.do(ctx, http.MethodPut, "/order/bulk", nil, bulkOrdersDTO{Orders: dtos}, &amended); err != nil {
		return nil, err
	}

	out := make([]model.Order, len(amended))
	for i, dto := range amended {
		out[i] = toOrder(dto)
	}
	return out, nil
}

// CancelOrders 批量撤单
func (c *Client) CancelOrders(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	body := map[string]any{"orderID": orderIDs}
	return c.do(ctx, http.MethodDelete, "/order", nil, body, nil)
}

// ClosePosition 按市价平仓指定签名数量
func (c *Client) ClosePosition(ctx context.Context, symbol string, qty float64) error {
	body := map[string]any{
		"symbol":   symbol,
		"execInst": "Close",
		"orderQty": qty,
	}
	return c.do(ctx, http.MethodPost, "/order", nil, body, nil)
}

// PlaceOrder 下一笔限价单，qty 为签名数量
func (c *Client) PlaceOrder(ctx context.Context, symbol string, qty, price float64) error {
	body := map[string]any{
		"symbol":   symbol,
		"orderQty": qty,
		"price":    price,
		"clOrdID":  c.newClOrdID(),
	}
	return c.do(ctx, http.MethodPost, "/order", nil, body, nil)
}

// SetLeverage 设置逐仓杠杆
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage float64) error {
	body := map[string]any{
		"symbol":   symbol,
		"leverage": leverage,
	}
	return c.do(ctx, http.MethodPost, "/position/leverage", nil, body, nil)
}
