// Package signalfeed 实现外部交易信号的接收与单写者存储。
// webhook 协作方通过 HTTP 推送信号字段，核心引擎每周期读取一份快照。
package signalfeed

import (
	"sync/atomic"

	"bitmex-market-maker/internal/core/model"
)

// Cell 单写者信号单元
// 仅 HTTP 服务的处理协程写入，核心引擎并发读取。
// 每次写入整体替换快照并递增版本号，读取方据版本号判断信号是否更新。
type Cell struct {
	// current 当前快照
	current atomic.Pointer[model.SignalSnapshot]
	// version 写入版本号
	version atomic.Uint64
}

// NewCell 创建信号单元，初始为零值快照（版本 0，全部开关关闭）
func NewCell() *Cell {
	c := &Cell{}
	c.current.Store(&model.SignalSnapshot{})
	return c
}

// Update 写入一份新信号
// 版本号在写入时分配，调用方传入的 Version 字段被忽略。
func (c *Cell) Update(sig model.SignalSnapshot) model.SignalSnapshot {
	sig.Version = c.version.Add(1)
	c.current.Store(&sig)
	return sig
}

// Snapshot 读取当前信号快照的拷贝
func (c *Cell) Snapshot() model.SignalSnapshot {
	return *c.current.Load()
}
