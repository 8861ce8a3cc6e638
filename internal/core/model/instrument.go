package model

// FutureType 合约类型
type FutureType string

const (
	// FutureQuanto 量化合约（Quanto）
	FutureQuanto FutureType = "Quanto"
	// FutureInverse 反向合约
	FutureInverse FutureType = "Inverse"
	// FutureLinear 正向合约
	FutureLinear FutureType = "Linear"
)

// Instrument 合约元数据（每周期从传输层刷新，周期内不可变）
type Instrument struct {
	// Symbol 合约标识，如 XBTUSD
	Symbol string
	// State 合约状态: Open, Closed, Unlisted...
	State string
	// TickSize 最小价格变动单位
	TickSize float64
	// TickLog 价格显示精度（tick 对应的小数位数）
	TickLog int
	// Multiplier 合约乘数
	Multiplier float64
	// IsQuanto 是否量化合约
	IsQuanto bool
	// IsInverse 是否反向合约
	IsInverse bool
	// MarkPrice 标记价格
	MarkPrice float64
	// MidPrice 订单簿中间价；订单簿为空时为 nil
	MidPrice *float64
	// IndicativeSettlePrice 指示性结算价（现货参考价）
	IndicativeSettlePrice float64
	// InitMargin 初始保证金率
	InitMargin float64
	// QuoteToSettleMultiplier 计价货币到结算货币乘数
	QuoteToSettleMultiplier float64
	// UnderlyingToSettleMultiplier 标的到结算货币乘数；可能缺失
	UnderlyingToSettleMultiplier *float64
}

// FutureType 判定合约类型
// 既非 quanto 也非 inverse 时为 Linear
func (i *Instrument) FutureType() FutureType {
	switch {
	case i.IsQuanto:
		return FutureQuanto
	case i.IsInverse:
		return FutureInverse
	default:
		return FutureLinear
	}
}

// SettleMultiplier 解析结算乘数
// UnderlyingToSettleMultiplier 缺失时回退到 QuoteToSettleMultiplier
func (i *Instrument) SettleMultiplier() float64 {
	if i.UnderlyingToSettleMultiplier == nil {
		if i.QuoteToSettleMultiplier == 0 {
			return 0
		}
		return i.Multiplier / i.QuoteToSettleMultiplier
	}
	return i.Multiplier / *i.UnderlyingToSettleMultiplier
}
