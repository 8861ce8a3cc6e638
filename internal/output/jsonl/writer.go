// Package jsonl 实现周期报告的异步 JSONL 落盘。
// 做市主循环只负责投递记录，JSON 编码与文件 I/O 在后台 goroutine 完成，
// 缓冲写满时丢弃记录而不是阻塞主循环。
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// fileBufferSize 文件写缓冲大小
const fileBufferSize = 1 << 20

// CycleReport 单个做市周期的报告记录
type CycleReport struct {
	// Time 周期结束时间（RFC3339）
	Time string `json:"time"`
	// Cycle 周期序号
	Cycle uint64 `json:"cycle"`
	// Symbol 合约标识
	Symbol string `json:"symbol"`
	// Bid 盘口买一价
	Bid float64 `json:"bid"`
	// Ask 盘口卖一价
	Ask float64 `json:"ask"`
	// Mid 对齐到最小报价单位的中间价
	Mid float64 `json:"mid"`
	// PositionQty 持仓数量（带符号）
	PositionQty float64 `json:"position_qty"`
	// Roe 未实现收益率
	Roe float64 `json:"roe"`
	// Watermark 追踪止盈水位
	Watermark float64 `json:"watermark"`
	// Episode 止盈状态机状态
	Episode string `json:"episode"`
	// Creates 本周期新建订单数
	Creates int `json:"creates"`
	// Amends 本周期改单数
	Amends int `json:"amends"`
	// Cancels 本周期撤单数
	Cancels int `json:"cancels"`
	// SignalVersion 本周期使用的信号版本
	SignalVersion uint64 `json:"signal_version"`
	// DryRun 是否为干跑模式
	DryRun bool `json:"dry_run"`
}

// Writer 异步周期报告写入器
type Writer struct {
	// path 输出文件路径
	path string
	// ch 记录投递通道
	ch chan CycleReport
	// flushCh flush 请求通道
	flushCh chan chan error
	// dropped 因缓冲写满而丢弃的记录数
	dropped atomic.Uint64
	// closed 是否已关闭
	closed atomic.Bool

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

// NewWriter 创建周期报告写入器
// 参数 dir: 输出目录，文件名按启动日期生成
// 参数 bufferSize: 投递缓冲条数
func NewWriter(dir string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("cycles-%s.jsonl", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path:    path,
		ch:      make(chan CycleReport, bufferSize),
		flushCh: make(chan chan error, 1),
	}

	w.wg.Add(1)
	go w.loop(f)
	return w, nil
}

// Path 输出文件路径
func (w *Writer) Path() string {
	return w.path
}

// Write 投递一条周期报告
// 缓冲写满时丢弃并计数，从不阻塞调用方
func (w *Writer) Write(r CycleReport) {
	if w == nil || w.closed.Load() {
		return
	}
	select {
	case w.ch <- r:
	default:
		w.dropped.Add(1)
	}
}

// Dropped 累计丢弃的记录数
func (w *Writer) Dropped() uint64 {
	if w == nil {
		return 0
	}
	return w.dropped.Load()
}

// Flush 等待已投递记录落盘
func (w *Writer) Flush() error {
	if w == nil || w.closed.Load() {
		return nil
	}
	done := make(chan error, 1)
	w.flushCh <- done
	return <-done
}

// Close 关闭写入器（会先写完已投递记录并 flush）
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		close(w.ch)
		w.wg.Wait()
	})
	return w.closeErr
}

func (w *Writer) loop(f *os.File) {
	defer w.wg.Done()
	defer f.Close()

	bw := bufio.NewWriterSize(f, fileBufferSize)

	write := func(r CycleReport) {
		b, err := json.Marshal(r)
		if err != nil {
			return
		}
		if _, err := bw.Write(b); err != nil {
			w.closeErr = err
			return
		}
		if err := bw.WriteByte('\n'); err != nil {
			w.closeErr = err
		}
	}

	// drain 非阻塞清空已投递记录，通道被关闭时返回 true
	drain := func() bool {
		for {
			select {
			case r, ok := <-w.ch:
				if !ok {
					return true
				}
				write(r)
			default:
				return false
			}
		}
	}

	for {
		select {
		case r, ok := <-w.ch:
			if !ok {
				if err := bw.Flush(); err != nil && w.closeErr == nil {
					w.closeErr = err
				}
				return
			}
			write(r)
		case done := <-w.flushCh:
			closed := drain()
			err := bw.Flush()
			done <- err
			if err != nil && w.closeErr == nil {
				w.closeErr = err
			}
			if closed {
				return
			}
		}
	}
}
