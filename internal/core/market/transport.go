// Package market 实现市场快照访问器。
// 包装传输层能力集，向核心暴露只读快照与带干跑保护的订单变更操作。
// 所有读取每周期重新执行，不跨周期缓存。
package market

import (
	"context"

	"bitmex-market-maker/internal/core/model"
)

// Transport 交易所传输层能力集
// 由 internal/exchange/bitmex 提供实现；测试中以假实现替代。
// 所有调用同步阻塞，超时由实现方负责；失败返回 *model.TransportError，
// 改单目标失效返回 model.ErrStaleOrder，鉴权失败返回 model.ErrAuth。
type Transport interface {
	// Instrument 获取合约元数据
	Instrument(ctx context.Context, symbol string) (*model.Instrument, error)
	// Position 获取当前持仓
	Position(ctx context.Context, symbol string) (*model.Position, error)
	// Margin 获取账户保证金
	Margin(ctx context.Context) (*model.Margin, error)
	// OpenOrders 获取本引擎的挂单（已按 ClOrdID 前缀过滤，保持交易所返回顺序）
	OpenOrders(ctx context.Context) ([]model.Order, error)
	// Ticker 获取盘口快照
	Ticker(ctx context.Context, symbol string) (*model.Ticker, error)
	// CreateOrders 批量下单
	CreateOrders(ctx context.Context, orders []model.OrderRequest) ([]model.Order, error)
	// AmendOrders 批量改单
	AmendOrders(ctx context.Context, amends []model.AmendRequest) ([]model.Order, error)
	// CancelOrders 批量撤单
	CancelOrders(ctx context.Context, orderIDs []string) error
	// ClosePosition 按市价平仓指定数量
	ClosePosition(ctx context.Context, symbol string, qty float64) error
	// PlaceOrder 下一笔限价单（信号建仓使用），qty 为签名数量
	PlaceOrder(ctx context.Context, symbol string, qty, price float64) error
	// SetLeverage 设置逐仓杠杆
	SetLeverage(ctx context.Context, symbol string, leverage float64) error
	// ConnectionHealthy 实时行情连接是否存活
	ConnectionHealthy() bool
}
