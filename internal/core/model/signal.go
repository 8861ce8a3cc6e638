package model

// SignalSnapshot 交易信号快照
// 由外部 webhook 协作方异步写入单写者信号单元，核心每周期开始时取一份拷贝，
// 周期内不再重读，避免周期中途撕裂。核心只读，从不回写。
type SignalSnapshot struct {
	// Version 写入版本号，每次 webhook 更新递增
	Version uint64 `json:"version"`
	// RSI 相对强弱指标值（不透明输入）
	RSI float64 `json:"rsi"`
	// MACDHistogram MACD 柱状值（不透明输入）
	MACDHistogram float64 `json:"macd_histogram"`
	// LongEnable 多头方向开关
	LongEnable bool `json:"long_enable"`
	// ShortEnable 空头方向开关
	ShortEnable bool `json:"short_enable"`
	// BuyEnable 买入开关
	BuyEnable bool `json:"buy_enable"`
	// SellEnable 卖出开关
	SellEnable bool `json:"sell_enable"`
}
