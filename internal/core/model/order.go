// Package model 定义做市引擎使用的核心数据结构。
// 所有视图（Instrument/Position/Order）在传输层边界完成类型化与校验，
// 每个周期重新从交易所拉取，周期结束即丢弃。
package model

// Side 订单方向
type Side string

const (
	// SideBuy 买单
	SideBuy Side = "Buy"
	// SideSell 卖单
	SideSell Side = "Sell"
)

// Opposite 返回相反方向
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Order 交易所挂单（权威视图，来自传输层）
type Order struct {
	// OrderID 交易所分配的订单标识
	OrderID string
	// ClOrdID 客户端订单标识（带前缀，用于隔离本引擎的订单）
	ClOrdID string
	// Symbol 合约标识
	Symbol string
	// Side 订单方向
	Side Side
	// Price 订单价格
	Price float64
	// OrderQty 请求数量（合约张数）
	OrderQty float64
	// CumQty 累计成交数量
	CumQty float64
	// LeavesQty 剩余未成交数量
	LeavesQty float64
	// OrdStatus 订单状态: New, PartiallyFilled, Filled, Canceled
	OrdStatus string
}

// OrderRequest 期望订单（每周期由梯形构建器生成，不持久化）
type OrderRequest struct {
	// ClOrdID 客户端订单标识
	ClOrdID string `json:"clOrdID,omitempty"`
	// Symbol 合约标识
	Symbol string `json:"symbol"`
	// Side 订单方向
	Side Side `json:"side"`
	// Price 订单价格
	Price float64 `json:"price"`
	// OrderQty 订单数量
	OrderQty float64 `json:"orderQty"`
	// ExecInst 执行指令，post-only 时为 ParticipateDoNotInitiate
	ExecInst string `json:"execInst,omitempty"`
}

// AmendRequest 改单请求
// OrderQty 为 live.CumQty + desired.OrderQty，保留已成交量
type AmendRequest struct {
	// OrderID 目标订单标识
	OrderID string `json:"orderID"`
	// Price 新价格
	Price float64 `json:"price"`
	// OrderQty 新数量
	OrderQty float64 `json:"orderQty"`
	// Side 订单方向（仅用于日志，不上送）
	Side Side `json:"-"`
}

// Ticker 盘口快照
type Ticker struct {
	// Buy 最优买价（touch）
	Buy float64
	// Sell 最优卖价（touch）
	Sell float64
	// Mid 中间价
	Mid float64
	// Last 最新成交价
	Last float64
}

// Margin 账户保证金
type Margin struct {
	// MarginBalance 保证金余额（satoshi）
	MarginBalance float64
	// AvailableFunds 可用资金（satoshi）
	AvailableFunds float64
}
