// Package ladder 实现报价梯形构建器。
// 给定盘口快照与价距参数，从盘口内侧向外生成 N 对买卖报价。
// 输出顺序为“从外到内”：这样当内侧订单被吃掉时，收敛引擎按位配对
// 只需改动最少的订单，并只在最内侧新建一笔。
package ladder

import (
	"math"
	"math/rand"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/model"
	"bitmex-market-maker/internal/util/mathutil"
)

// Inputs 单周期的梯形构建输入
type Inputs struct {
	// Symbol 合约标识
	Symbol string
	// Ticker 盘口快照
	Ticker model.Ticker
	// TickSize 最小价格变动单位
	TickSize float64
	// HighestBuy 本引擎已挂最高买价；无买单时为 nil
	HighestBuy *float64
	// LowestSell 本引擎已挂最低卖价；无卖单时为 nil
	LowestSell *float64
	// SuppressBuys 多头持仓超限时不再新增买档
	SuppressBuys bool
	// SuppressSells 空头持仓超限时不再新增卖档
	SuppressSells bool
}

// Ladder 构建结果
// Buys/Sells 均为从外到内排列
type Ladder struct {
	// Buys 买单梯形（外侧在前）
	Buys []model.OrderRequest
	// Sells 卖单梯形（外侧在前）
	Sells []model.OrderRequest
	// BuyAnchor 买侧锚点价（含最小价差回退后）
	BuyAnchor float64
	// SellAnchor 卖侧锚点价（含最小价差回退后）
	SellAnchor float64
	// InnermostBuy 最内侧买价（第 1 档，即使买侧被抑制也会计算，用于一致性检查）
	InnermostBuy float64
	// InnermostSell 最内侧卖价（第 1 档）
	InnermostSell float64
}

// Builder 报价梯形构建器
type Builder struct {
	// cfg 梯形参数
	cfg config.LadderConfig
	// rng 随机取量来源
	rng *rand.Rand
}

// New 创建梯形构建器
// 参数 cfg: 梯形参数
// 参数 rng: 随机数源（随机取量模式使用；可传 nil，届时退化为固定取量）
func New(cfg config.LadderConfig, rng *rand.Rand) *Builder {
	return &Builder{cfg: cfg, rng: rng}
}

// Build 构建一个周期的报价梯形
// 锚点规则：
//  1. buyAnchor = bestBid + tick，sellAnchor = bestAsk - tick；
//     维持价差模式下，若盘口 touch 即为本引擎已挂订单，则锚点贴在 touch 上，
//     避免向内侧推进直到与自己的订单相撞。
//  2. 若 buyAnchor*(1+minSpread) > sellAnchor，双侧按 minSpread/2 对称外扩。
//  3. 第 i 档价格为 anchor*(1+r)^(i-1)（买侧为负向幂），按 tick 取整。
func (b *Builder) Build(in Inputs) Ladder {
	buyAnchor := in.Ticker.Buy + in.TickSize
	sellAnchor := in.Ticker.Sell - in.TickSize

	if b.cfg.MaintainSpreads {
		if in.HighestBuy != nil && *in.HighestBuy == in.Ticker.Buy {
			buyAnchor = in.Ticker.Buy
		}
		if in.LowestSell != nil && *in.LowestSell == in.Ticker.Sell {
			sellAnchor = in.Ticker.Sell
		}
	}

	// 价差过窄时双侧对称外扩，避免交叉或贴死报价
	if buyAnchor*(1.0+b.cfg.MinSpread) > sellAnchor {
		buyAnchor *= 1.0 - b.cfg.MinSpread/2
		sellAnchor *= 1.0 + b.cfg.MinSpread/2
	}

	out := Ladder{
		BuyAnchor:     buyAnchor,
		SellAnchor:    sellAnchor,
		InnermostBuy:  b.priceOffset(buyAnchor, sellAnchor, in.TickSize, -1),
		InnermostSell: b.priceOffset(buyAnchor, sellAnchor, in.TickSize, 1),
	}

	// 从外到内生成；被抑制的一侧整体跳过
	for i := b.cfg.OrderPairs; i >= 1; i-- {
		if !in.SuppressBuys {
			out.Buys = append(out.Buys, model.OrderRequest{
				Symbol:   in.Symbol,
				Side:     model.SideBuy,
				Price:    b.priceOffset(buyAnchor, sellAnchor, in.TickSize, -i),
				OrderQty: b.quantity(i),
			})
		}
		if !in.SuppressSells {
			out.Sells = append(out.Sells, model.OrderRequest{
				Symbol:   in.Symbol,
				Side:     model.SideSell,
				Price:    b.priceOffset(buyAnchor, sellAnchor, in.TickSize, i),
				OrderQty: b.quantity(i),
			})
		}
	}

	return out
}

// priceOffset 计算第 index 档的价格
// index 为负表示买侧，为正表示卖侧；第 1 档落在锚点上
func (b *Builder) priceOffset(buyAnchor, sellAnchor, tickSize float64, index int) float64 {
	var start float64
	if index < 0 {
		start = buyAnchor
	} else {
		start = sellAnchor
	}

	if !b.cfg.MaintainSpreads {
		// 固定偏移模式下，若一侧锚点越过对侧，强制回到本侧锚点，
		// 保证构造上 buy < sell 恒成立
		if index > 0 && start < buyAnchor {
			start = sellAnchor
		}
		if index < 0 && start > sellAnchor {
			start = buyAnchor
		}
	}

	// 向 0 收拢一档：第 1 档（index=±1）正好在锚点
	if index < 0 {
		index++
	} else {
		index--
	}

	return mathutil.ToNearest(start*math.Pow(1.0+b.cfg.Interval, float64(index)), tickSize)
}

// quantity 计算第 level 档的数量（level 从 1 开始，1 为最内侧）
func (b *Builder) quantity(level int) float64 {
	if b.cfg.RandomOrderSize && b.rng != nil {
		return float64(b.cfg.MinOrderSize + b.rng.Intn(b.cfg.MaxOrderSize-b.cfg.MinOrderSize+1))
	}
	return b.cfg.OrderStartSize + float64(level-1)*b.cfg.OrderStepSize
}
