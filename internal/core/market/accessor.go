package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bitmex-market-maker/internal/core/model"
)

// satoshiPerXBT satoshi 与 XBT 的换算系数
const satoshiPerXBT = 1e8

// dryRunMarginXBt 干跑模式下返回的保证金余额（satoshi）
const dryRunMarginXBt = 50 * satoshiPerXBT

// XBtToXBT 将 satoshi 金额换算为 XBT
func XBtToXBT(xbt float64) float64 {
	return xbt / satoshiPerXBT
}

// Accessor 市场快照访问器
// 核心逻辑与传输层之间的唯一通道；干跑模式下抑制全部变更操作。
type Accessor struct {
	// transport 传输层实现
	transport Transport
	// symbol 做市合约
	symbol string
	// contracts 组合头寸计算涉及的合约
	contracts []string
	// maxLeverage 允许设置的最大杠杆
	maxLeverage float64
	// dryRun 干跑模式
	dryRun bool
	// logger 日志记录器
	logger *zap.Logger
}

// NewAccessor 创建市场快照访问器
func NewAccessor(transport Transport, symbol string, contracts []string, maxLeverage float64, dryRun bool, logger *zap.Logger) *Accessor {
	return &Accessor{
		transport:   transport,
		symbol:      symbol,
		contracts:   contracts,
		maxLeverage: maxLeverage,
		dryRun:      dryRun,
		logger:      logger.Named("market"),
	}
}

// Symbol 做市合约标识
func (a *Accessor) Symbol() string {
	return a.symbol
}

// Instrument 获取做市合约的元数据
func (a *Accessor) Instrument(ctx context.Context) (*model.Instrument, error) {
	return a.transport.Instrument(ctx, a.symbol)
}

// Position 获取做市合约的持仓
func (a *Accessor) Position(ctx context.Context) (*model.Position, error) {
	return a.transport.Position(ctx, a.symbol)
}

// Margin 获取账户保证金
// 干跑模式下返回固定余额，避免依赖鉴权
func (a *Accessor) Margin(ctx context.Context) (*model.Margin, error) {
	if a.dryRun {
		return &model.Margin{MarginBalance: dryRunMarginXBt, AvailableFunds: dryRunMarginXBt}, nil
	}
	return a.transport.Margin(ctx)
}

// OpenOrders 获取本引擎的挂单
// 干跑模式下恒为空
func (a *Accessor) OpenOrders(ctx context.Context) ([]model.Order, error) {
	if a.dryRun {
		return nil, nil
	}
	return a.transport.OpenOrders(ctx)
}

// Ticker 获取盘口快照
func (a *Accessor) Ticker(ctx context.Context) (*model.Ticker, error) {
	return a.transport.Ticker(ctx, a.symbol)
}

// Delta 获取当前签名持仓数量
func (a *Accessor) Delta(ctx context.Context) (float64, error) {
	pos, err := a.Position(ctx)
	if err != nil {
		return 0, err
	}
	return pos.CurrentQty, nil
}

// HighestBuy 获取本引擎已挂的最高买价；无买单时返回 nil
func (a *Accessor) HighestBuy(ctx context.Context) (*float64, error) {
	orders, err := a.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	var best *float64
	for i := range orders {
		o := orders[i]
		if o.Side != model.SideBuy {
			continue
		}
		if best == nil || o.Price > *best {
			p := o.Price
			best = &p
		}
	}
	return best, nil
}

// LowestSell 获取本引擎已挂的最低卖价；无卖单时返回 nil
func (a *Accessor) LowestSell(ctx context.Context) (*float64, error) {
	orders, err := a.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	var best *float64
	for i := range orders {
		o := orders[i]
		if o.Side != model.SideSell {
			continue
		}
		if best == nil || o.Price < *best {
			p := o.Price
			best = &p
		}
	}
	return best, nil
}

// CheckMarketOpen 校验合约可交易
// 状态既非 Open 也非 Closed 时返回 MarketClosedError
func (a *Accessor) CheckMarketOpen(ctx context.Context) error {
	instrument, err := a.Instrument(ctx)
	if err != nil {
		return err
	}
	if instrument.State != "Open" && instrument.State != "Closed" {
		return &model.MarketClosedError{Symbol: a.symbol, State: instrument.State}
	}
	return nil
}

// CheckOrderBookEmpty 校验订单簿非空
// 中间价缺失时返回 MarketEmptyError
func (a *Accessor) CheckOrderBookEmpty(ctx context.Context) error {
	instrument, err := a.Instrument(ctx)
	if err != nil {
		return err
	}
	if instrument.MidPrice == nil {
		return &model.MarketEmptyError{Symbol: a.symbol}
	}
	return nil
}

// CreateOrders 批量下单（带干跑保护）
func (a *Accessor) CreateOrders(ctx context.Context, orders []model.OrderRequest) ([]model.Order, error) {
	if a.dryRun {
		for _, o := range orders {
			a.logger.Info("干跑: 将要下单", zap.String("side", string(o.Side)), zap.Float64("qty", o.OrderQty), zap.Float64("price", o.Price))
		}
		return nil, nil
	}
	return a.transport.CreateOrders(ctx, orders)
}

// AmendOrders 批量改单（带干跑保护）
func (a *Accessor) AmendOrders(ctx context.Context, amends []model.AmendRequest) ([]model.Order, error) {
	if a.dryRun {
		for _, am := range amends {
			a.logger.Info("干跑: 将要改单", zap.String("orderID", am.OrderID), zap.Float64("qty", am.OrderQty), zap.Float64("price", am.Price))
		}
		return nil, nil
	}
	return a.transport.AmendOrders(ctx, amends)
}

// CancelOrders 批量撤单（带干跑保护）
func (a *Accessor) CancelOrders(ctx context.Context, orders []model.Order) error {
	if a.dryRun || len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}
	return a.transport.CancelOrders(ctx, ids)
}

// CancelAllOrders 撤销本引擎的全部挂单
// 挂单列表通过 REST 重新拉取，保证不遗漏 WS 尚未送达的订单。
func (a *Accessor) CancelAllOrders(ctx context.Context) error {
	if a.dryRun {
		return nil
	}

	a.logger.Info("撤销全部挂单")
	orders, err := a.transport.OpenOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range orders {
		a.logger.Info("撤单", zap.String("side", string(o.Side)), zap.Float64("qty", o.OrderQty), zap.Float64("price", o.Price))
	}
	if len(orders) == 0 {
		return nil
	}
	return a.CancelOrders(ctx, orders)
}

// ClosePosition 按市价平仓指定签名数量（带干跑保护）
func (a *Accessor) ClosePosition(ctx context.Context, qty float64) error {
	if a.dryRun {
		a.logger.Info("干跑: 将要市价平仓", zap.Float64("qty", qty))
		return nil
	}
	return a.transport.ClosePosition(ctx, a.symbol, qty)
}

// PlaceOrder 下一笔限价单（带干跑保护）
func (a *Accessor) PlaceOrder(ctx context.Context, qty, price float64) error {
	if a.dryRun {
		a.logger.Info("干跑: 将要下限价单", zap.Float64("qty", qty), zap.Float64("price", price))
		return nil
	}
	return a.transport.PlaceOrder(ctx, a.symbol, qty, price)
}

// SetLeverage 设置逐仓杠杆，超过配置上限时截断
func (a *Accessor) SetLeverage(ctx context.Context, leverage float64) error {
	if a.dryRun {
		return nil
	}
	if leverage > a.maxLeverage {
		leverage = a.maxLeverage
	}
	return a.transport.SetLeverage(ctx, a.symbol, leverage)
}

// ConnectionHealthy 实时行情连接是否存活
func (a *Accessor) ConnectionHealthy() bool {
	return a.transport.ConnectionHealthy()
}

// ContractExposure 单合约的头寸敞口
type ContractExposure struct {
	// CurrentQty 签名持仓数量
	CurrentQty float64
	// FutureType 合约类型
	FutureType model.FutureType
	// Multiplier 结算乘数
	Multiplier float64
	// MarkPrice 标记价格
	MarkPrice float64
	// Spot 现货参考价（指示性结算价）
	Spot float64
}

// Delta 组合头寸的货币敞口
type Delta struct {
	// Spot 按现货价计的敞口
	Spot float64
	// MarkPrice 按标记价计的敞口
	MarkPrice float64
	// Basis 基差敞口（mark - spot）
	Basis float64
}

// Portfolio 获取配置合约列表的头寸敞口
func (a *Accessor) Portfolio(ctx context.Context) (map[string]ContractExposure, error) {
	portfolio := make(map[string]ContractExposure, len(a.contracts))
	for _, symbol := range a.contracts {
		pos, err := a.transport.Position(ctx, symbol)
		if err != nil {
			return nil, err
		}
		instrument, err := a.transport.Instrument(ctx, symbol)
		if err != nil {
			return nil, err
		}

		mult := instrument.SettleMultiplier()
		if mult == 0 {
			return nil, fmt.Errorf("合约 %s 缺少结算乘数", symbol)
		}

		portfolio[symbol] = ContractExposure{
			CurrentQty: pos.CurrentQty,
			FutureType: instrument.FutureType(),
			Multiplier: mult,
			MarkPrice:  instrument.MarkPrice,
			Spot:       instrument.IndicativeSettlePrice,
		}
	}
	return portfolio, nil
}

// CalcDelta 计算组合头寸的货币敞口
// 量化合约: qty*mult*price；反向合约: (mult/price)*qty；正向合约: mult*qty
func (a *Accessor) CalcDelta(ctx context.Context) (Delta, error) {
	portfolio, err := a.Portfolio(ctx)
	if err != nil {
		return Delta{}, err
	}

	var d Delta
	for _, item := range portfolio {
		switch item.FutureType {
		case model.FutureQuanto:
			d.Spot += item.CurrentQty * item.Multiplier * item.Spot
			d.MarkPrice += item.CurrentQty * item.Multiplier * item.MarkPrice
		case model.FutureInverse:
			d.Spot += (item.Multiplier / item.Spot) * item.CurrentQty
			d.MarkPrice += (item.Multiplier / item.MarkPrice) * item.CurrentQty
		case model.FutureLinear:
			d.Spot += item.Multiplier * item.CurrentQty
			d.MarkPrice += item.Multiplier * item.CurrentQty
		}
	}
	d.Basis = d.MarkPrice - d.Spot
	return d, nil
}
