package model

import (
	"errors"
	"fmt"
)

// ErrStaleOrder 改单目标已不可改（Filled/Canceled）
// 交易所返回 Invalid ordStatus 时由传输层映射为此错误；
// 处理方式：等待固定间隔后从梯形构建开始重跑整个周期（快照已过期）。
var ErrStaleOrder = errors.New("订单状态已变更，无法改单")

// ErrAuth 鉴权失败
// 关闭流程中遇到此错误仅记录日志，不重试。
var ErrAuth = errors.New("鉴权失败")

// TransportError 传输层错误（网络/限频/HTTP）
// 读取路径上视为周期致命：中止本周期，下一周期从头重试。
type TransportError struct {
	// Op 失败的操作，如 getPosition
	Op string
	// Status HTTP 状态码，非 HTTP 错误时为 0
	Status int
	// Err 底层错误
	Err error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("传输错误 %s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("传输错误 %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MarketClosedError 合约不可交易（状态既非 Open 也非 Closed）
// 周期致命，触发撤单并关闭流程。
type MarketClosedError struct {
	// Symbol 合约标识
	Symbol string
	// State 交易所返回的合约状态
	State string
}

func (e *MarketClosedError) Error() string {
	return fmt.Sprintf("合约 %s 不可交易，状态: %s", e.Symbol, e.State)
}

// MarketEmptyError 订单簿为空，无法报价
type MarketEmptyError struct {
	// Symbol 合约标识
	Symbol string
}

func (e *MarketEmptyError) Error() string {
	return fmt.Sprintf("合约 %s 订单簿为空，无法报价", e.Symbol)
}

// SanityError 市场快照不一致（如梯形与盘口交叉）
// 周期致命，触发撤单并关闭流程。
type SanityError struct {
	// Reason 违规描述
	Reason string
}

func (e *SanityError) Error() string {
	return fmt.Sprintf("一致性检查失败: %s", e.Reason)
}

// IsFatal 判断错误是否应触发撤单并关闭流程
func IsFatal(err error) bool {
	var mc *MarketClosedError
	var me *MarketEmptyError
	var se *SanityError
	return errors.As(err, &mc) || errors.As(err, &me) || errors.As(err, &se)
}
