// Package risk 实现做市引擎的风险控制。
// 包含两部分：
//   - Gate: 周期内的订单过滤器，保证任何新建/改价的订单都不会落在强平价错误的一侧，
//     以及持仓上下限检查；
//   - Controller: 收敛之后的修正动作（杠杆归一、追踪止盈、一致性检查、信号建仓）。
package risk

import (
	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/model"
)

// Gate 单周期订单过滤器
// 由当周期的持仓快照构建，周期结束即丢弃。
// 新建与改价路径必须使用同一个 Gate，保证两条路径的强平价约束一致。
type Gate struct {
	// currentQty 签名持仓数量
	currentQty float64
	// liquidationPrice 强平价；空仓或交易所未返回时为 nil
	liquidationPrice *float64
}

// NewGate 由持仓快照构建过滤器
func NewGate(pos *model.Position) Gate {
	if pos == nil {
		return Gate{}
	}
	return Gate{
		currentQty:       pos.CurrentQty,
		liquidationPrice: pos.LiquidationPrice,
	}
}

// Allows 判断指定价格的订单是否允许提交
// 多头：丢弃价格低于强平价的订单；空头：丢弃价格高于强平价的订单；
// 空仓或无强平价时全部放行。
func (g Gate) Allows(price float64) bool {
	if g.currentQty == 0 || g.liquidationPrice == nil {
		return true
	}
	if g.currentQty > 0 {
		return price >= *g.liquidationPrice
	}
	return price <= *g.liquidationPrice
}

// FilterCreates 过滤新建订单列表，返回放行的子集
func (g Gate) FilterCreates(orders []model.OrderRequest) []model.OrderRequest {
	if g.currentQty == 0 || g.liquidationPrice == nil {
		return orders
	}
	kept := orders[:0:0]
	for _, o := range orders {
		if g.Allows(o.Price) {
			kept = append(kept, o)
		}
	}
	return kept
}

// FilterAmends 过滤改单列表，返回放行的子集
func (g Gate) FilterAmends(amends []model.AmendRequest) []model.AmendRequest {
	if g.currentQty == 0 || g.liquidationPrice == nil {
		return amends
	}
	kept := amends[:0:0]
	for _, a := range amends {
		if g.Allows(a.Price) {
			kept = append(kept, a)
		}
	}
	return kept
}

// Limits 持仓上下限检查
type Limits struct {
	// cfg 风险配置
	cfg config.RiskConfig
}

// NewLimits 创建持仓上下限检查器
func NewLimits(cfg config.RiskConfig) Limits {
	return Limits{cfg: cfg}
}

// LongExceeded 多头持仓是否达到上限
// 未启用限额检查时恒为 false
func (l Limits) LongExceeded(delta float64) bool {
	if !l.cfg.CheckPositionLimits {
		return false
	}
	return delta >= l.cfg.MaxPosition
}

// ShortExceeded 空头持仓是否达到下限
func (l Limits) ShortExceeded(delta float64) bool {
	if !l.cfg.CheckPositionLimits {
		return false
	}
	return delta <= l.cfg.MinPosition
}
