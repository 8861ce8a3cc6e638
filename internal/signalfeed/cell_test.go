package signalfeed

import (
	"sync"
	"testing"

	"bitmex-market-maker/internal/core/model"
)

// TestCell_VersionMonotonic 每次写入递增版本号，调用方传入的版本被忽略
func TestCell_VersionMonotonic(t *testing.T) {
	c := NewCell()

	if v := c.Snapshot().Version; v != 0 {
		t.Fatalf("初始版本应为 0, got %d", v)
	}

	sig := c.Update(model.SignalSnapshot{Version: 999, RSI: 30})
	if sig.Version != 1 {
		t.Fatalf("首次写入版本应为 1, got %d", sig.Version)
	}

	sig = c.Update(model.SignalSnapshot{RSI: 70})
	if sig.Version != 2 {
		t.Fatalf("第二次写入版本应为 2, got %d", sig.Version)
	}
	if got := c.Snapshot(); got.Version != 2 || got.RSI != 70 {
		t.Fatalf("快照应为最新写入: %+v", got)
	}
}

// TestCell_SnapshotIsolation 快照为拷贝，写入新信号不影响已取快照
func TestCell_SnapshotIsolation(t *testing.T) {
	c := NewCell()
	c.Update(model.SignalSnapshot{RSI: 25, LongEnable: true})

	before := c.Snapshot()
	c.Update(model.SignalSnapshot{RSI: 80, ShortEnable: true})

	if before.RSI != 25 || !before.LongEnable || before.ShortEnable {
		t.Fatalf("已取快照不应被后续写入修改: %+v", before)
	}
}

// TestCell_ConcurrentReads 单写者多读者并发下快照始终完整
func TestCell_ConcurrentReads(t *testing.T) {
	c := NewCell()

	var wg sync.WaitGroup
	done := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			// 写入时 RSI 与 MACD 保持同值，读取方据此校验快照无撕裂
			v := float64(i)
			c.Update(model.SignalSnapshot{RSI: v, MACDHistogram: v})
		}
		close(done)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				sig := c.Snapshot()
				if sig.RSI != sig.MACDHistogram {
					t.Errorf("快照撕裂: rsi=%v macd=%v", sig.RSI, sig.MACDHistogram)
					return
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}
	wg.Wait()
}
