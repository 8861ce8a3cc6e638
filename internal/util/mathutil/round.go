// Package mathutil 提供价格取整相关的工具函数。
// 做市引擎生成的所有报价必须落在交易所 tick 网格上。
package mathutil

import "math"

// ToNearest 将价格取整到最近的 tick
// 参数 num: 原始价格
// 参数 tickSize: 最小价格变动单位
// 返回: 落在 tick 网格上的价格
func ToNearest(num, tickSize float64) float64 {
	if tickSize <= 0 {
		return num
	}
	// 先按 tick 取整，再按 tick 精度修约，消除浮点尾差
	rounded := math.Round(num/tickSize) * tickSize
	pow := math.Pow(10, float64(TickLog(tickSize)))
	return math.Round(rounded*pow) / pow
}

// TickLog 计算 tick 对应的小数显示位数
// 例：tickSize=0.5 → 1，tickSize=0.01 → 2，tickSize=1 → 0
func TickLog(tickSize float64) int {
	if tickSize <= 0 {
		return 0
	}
	digits := int(math.Ceil(-math.Log10(tickSize) - 1e-9))
	if digits < 0 {
		return 0
	}
	return digits
}
