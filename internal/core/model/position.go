package model

// Position 当前持仓（只读视图，每周期重新拉取）
// 仅由交易所变更；核心逻辑不跨周期缓存。
type Position struct {
	// Symbol 合约标识
	Symbol string
	// CurrentQty 当前签名数量（张），正数为多头
	CurrentQty float64
	// AvgEntryPrice 平均开仓价
	AvgEntryPrice float64
	// AvgCostPrice 平均成本价
	AvgCostPrice float64
	// UnrealisedGrossPnl 未实现毛盈亏（satoshi）
	UnrealisedGrossPnl float64
	// UnrealisedPnlPcnt 未实现盈亏百分比
	UnrealisedPnlPcnt float64
	// UnrealisedRoePcnt 未实现 ROE 百分比
	UnrealisedRoePcnt float64
	// LiquidationPrice 强平价格；空仓时为 nil
	LiquidationPrice *float64
	// Leverage 当前杠杆
	Leverage float64
	// MarkPrice 标记价格
	MarkPrice float64
}

// IsFlat 判断是否空仓
func (p *Position) IsFlat() bool {
	return p.CurrentQty == 0
}

// IsLong 判断是否多头
func (p *Position) IsLong() bool {
	return p.CurrentQty > 0
}

// IsShort 判断是否空头
func (p *Position) IsShort() bool {
	return p.CurrentQty < 0
}
