// Package bitmex 线格式转换测试
package bitmex

import (
	"errors"
	"testing"

	"bitmex-market-maker/internal/core/model"
)

func pf(v float64) *float64 { return &v }

// TestToInstrument 合约元数据转换与校验
func TestToInstrument(t *testing.T) {
	dto := instrumentDTO{
		Symbol:    "XBTUSD",
		State:     "Open",
		TickSize:  0.5,
		IsInverse: true,
		MarkPrice: 10005,
		MidPrice:  pf(10005),
	}

	instrument, err := toInstrument(dto)
	if err != nil {
		t.Fatalf("toInstrument 失败: %v", err)
	}
	if instrument.TickLog != 1 {
		t.Fatalf("TickLog = %d, want 1", instrument.TickLog)
	}
	if instrument.FutureType() != model.FutureInverse {
		t.Fatalf("FutureType = %s, want Inverse", instrument.FutureType())
	}

	// 缺少 symbol
	if _, err := toInstrument(instrumentDTO{TickSize: 0.5}); err == nil {
		t.Fatalf("缺少 symbol 应报错")
	}
	// tickSize 无效
	if _, err := toInstrument(instrumentDTO{Symbol: "XBTUSD"}); err == nil {
		t.Fatalf("tickSize 无效应报错")
	}
}

// TestToTicker 盘口转换与中间价对齐
func TestToTicker(t *testing.T) {
	dto := instrumentDTO{
		Symbol:   "XBTUSD",
		TickSize: 0.5,
		BidPrice: pf(10000),
		AskPrice: pf(10001),
	}

	ticker, err := toTicker(dto)
	if err != nil {
		t.Fatalf("toTicker 失败: %v", err)
	}
	if ticker.Buy != 10000 || ticker.Sell != 10001 {
		t.Fatalf("盘口 = %v/%v, want 10000/10001", ticker.Buy, ticker.Sell)
	}
	// mid = 10000.5，正好在 tick 网格上
	if ticker.Mid != 10000.5 {
		t.Fatalf("Mid = %v, want 10000.5", ticker.Mid)
	}

	// 订单簿为空
	var marketEmpty *model.MarketEmptyError
	if _, err := toTicker(instrumentDTO{Symbol: "XBTUSD", TickSize: 0.5}); !errors.As(err, &marketEmpty) {
		t.Fatalf("盘口缺失应返回 MarketEmptyError, got %v", err)
	}
}

// TestToPosition 强平价可选性保留
func TestToPosition(t *testing.T) {
	pos := toPosition(positionDTO{
		Symbol:           "XBTUSD",
		CurrentQty:       100,
		LiquidationPrice: pf(9000),
		Leverage:         25,
	})
	if pos.LiquidationPrice == nil || *pos.LiquidationPrice != 9000 {
		t.Fatalf("LiquidationPrice 转换错误: %v", pos.LiquidationPrice)
	}

	// 空仓：交易所不返回强平价
	flat := toPosition(positionDTO{Symbol: "XBTUSD"})
	if flat.LiquidationPrice != nil {
		t.Fatalf("空仓强平价应为 nil")
	}
	if !flat.IsFlat() {
		t.Fatalf("空仓判定错误")
	}

	// 无持仓记录时的视图
	fp := flatPosition("XBTUSD")
	if fp.Symbol != "XBTUSD" || !fp.IsFlat() {
		t.Fatalf("flatPosition 错误: %+v", fp)
	}
}

// TestToOrder 订单转换
func TestToOrder(t *testing.T) {
	o := toOrder(orderDTO{
		OrderID:   "id-1",
		ClOrdID:   "mm_bitmex_abc",
		Symbol:    "XBTUSD",
		Side:      "Buy",
		Price:     10000,
		OrderQty:  100,
		CumQty:    40,
		LeavesQty: 60,
		OrdStatus: "PartiallyFilled",
	})
	if o.Side != model.SideBuy {
		t.Fatalf("Side = %s, want Buy", o.Side)
	}
	if o.CumQty != 40 || o.LeavesQty != 60 {
		t.Fatalf("成交量转换错误: %+v", o)
	}
}
