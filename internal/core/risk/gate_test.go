// Package risk 订单过滤器测试
package risk

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/model"
)

func liq(v float64) *float64 { return &v }

// TestGate_Allows 强平价过滤的方向性
func TestGate_Allows(t *testing.T) {
	// 多头：价格不得低于强平价
	long := NewGate(&model.Position{Symbol: "XBTUSD", CurrentQty: 100, LiquidationPrice: liq(9000)})
	if long.Allows(8999.5) {
		t.Fatalf("多头不应放行低于强平价的订单")
	}
	if !long.Allows(9000) {
		t.Fatalf("多头应放行等于强平价的订单")
	}
	if !long.Allows(9500) {
		t.Fatalf("多头应放行高于强平价的订单")
	}

	// 空头：价格不得高于强平价
	short := NewGate(&model.Position{Symbol: "XBTUSD", CurrentQty: -100, LiquidationPrice: liq(11000)})
	if short.Allows(11000.5) {
		t.Fatalf("空头不应放行高于强平价的订单")
	}
	if !short.Allows(11000) {
		t.Fatalf("空头应放行等于强平价的订单")
	}
	if !short.Allows(10500) {
		t.Fatalf("空头应放行低于强平价的订单")
	}

	// 空仓或无强平价：全部放行
	flat := NewGate(&model.Position{Symbol: "XBTUSD"})
	if !flat.Allows(1) || !flat.Allows(1e9) {
		t.Fatalf("空仓应放行任意价格")
	}
	noLiq := NewGate(&model.Position{Symbol: "XBTUSD", CurrentQty: 100})
	if !noLiq.Allows(1) {
		t.Fatalf("无强平价应放行任意价格")
	}
	if !NewGate(nil).Allows(1) {
		t.Fatalf("nil 持仓应放行任意价格")
	}
}

// TestGate_Filter 新建与改价路径使用同一条过滤规则
func TestGate_Filter(t *testing.T) {
	g := NewGate(&model.Position{Symbol: "XBTUSD", CurrentQty: 100, LiquidationPrice: liq(9000)})

	creates := []model.OrderRequest{
		{Side: model.SideBuy, Price: 8500, OrderQty: 100},
		{Side: model.SideBuy, Price: 9500, OrderQty: 100},
	}
	kept := g.FilterCreates(creates)
	if len(kept) != 1 || kept[0].Price != 9500 {
		t.Fatalf("FilterCreates = %v, 应只保留 9500", kept)
	}

	amends := []model.AmendRequest{
		{OrderID: "a", Price: 8500, OrderQty: 100},
		{OrderID: "b", Price: 9500, OrderQty: 100},
	}
	keptAmends := g.FilterAmends(amends)
	if len(keptAmends) != 1 || keptAmends[0].OrderID != "b" {
		t.Fatalf("FilterAmends = %v, 应只保留 b", keptAmends)
	}
}

// TestLimits 持仓上下限检查
func TestLimits(t *testing.T) {
	l := NewLimits(config.RiskConfig{
		CheckPositionLimits: true,
		MinPosition:         -500,
		MaxPosition:         500,
	})

	if l.LongExceeded(499) {
		t.Fatalf("未达上限不应判定超限")
	}
	if !l.LongExceeded(500) {
		t.Fatalf("达到上限应判定超限")
	}
	if !l.ShortExceeded(-500) {
		t.Fatalf("达到下限应判定超限")
	}
	if l.ShortExceeded(-499) {
		t.Fatalf("未达下限不应判定超限")
	}

	// 未启用限额检查时恒为 false
	off := NewLimits(config.RiskConfig{MinPosition: -1, MaxPosition: 1})
	if off.LongExceeded(1e9) || off.ShortExceeded(-1e9) {
		t.Fatalf("未启用限额检查不应判定超限")
	}
}

// **Feature: bitmex-market-maker, Property: Liquidation Gate Consistency**

// TestGate_Property 对任意持仓与价格组合验证过滤一致性：
// FilterCreates/FilterAmends 保留的订单必然满足 Allows，且两条路径判定一致
func TestGate_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("过滤结果与 Allows 一致", prop.ForAll(
		func(qty, liqPrice, price float64) bool {
			g := NewGate(&model.Position{
				Symbol:           "XBTUSD",
				CurrentQty:       qty,
				LiquidationPrice: liq(liqPrice),
			})

			allowed := g.Allows(price)
			creates := g.FilterCreates([]model.OrderRequest{{Price: price, OrderQty: 100}})
			amends := g.FilterAmends([]model.AmendRequest{{OrderID: "x", Price: price, OrderQty: 100}})

			if (len(creates) == 1) != allowed {
				return false
			}
			if (len(amends) == 1) != allowed {
				return false
			}

			// 方向性：多头放行的价格不低于强平价，空头放行的价格不高于强平价
			if allowed && qty > 0 && price < liqPrice {
				return false
			}
			if allowed && qty < 0 && price > liqPrice {
				return false
			}
			return true
		},
		gen.Float64Range(-1000, 1000),
		gen.Float64Range(1000, 20000),
		gen.Float64Range(500, 30000),
	))

	properties.TestingRun(t)
}
