package risk

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/ladder"
	"bitmex-market-maker/internal/core/market"
	"bitmex-market-maker/internal/core/model"
)

// EpisodeState 持仓生命周期状态
// FLAT → ENTERED → TRAILING → {TRAILING(水位上移) | EXITED}
// EXITED 对当前持仓终结，下一周期强制重新走建仓决策。
type EpisodeState string

const (
	// StateFlat 空仓
	StateFlat EpisodeState = "flat"
	// StateEntered 已持仓，尚未进入追踪
	StateEntered EpisodeState = "entered"
	// StateTrailing 追踪止盈中
	StateTrailing EpisodeState = "trailing"
	// StateExited 已按追踪止盈退出
	StateExited EpisodeState = "exited"
)

// drawdownRatio 追踪止盈的回撤触发比例：ROE ≤ watermark*drawdownRatio 时平仓
const drawdownRatio = 0.9

// Controller 收敛后风险控制器
// 三项相互独立的周期检查：杠杆归一、追踪止盈、一致性检查；
// 另含可选的信号驱动建仓。唯一跨周期存活的状态是追踪水位线与建仓数量下限。
type Controller struct {
	// accessor 市场快照访问器
	accessor *market.Accessor
	// cfg 风险配置
	cfg config.RiskConfig
	// logger 日志记录器
	logger *zap.Logger

	// trailing 是否处于追踪止盈
	trailing bool
	// watermark 追踪水位线 W（上一次检查的最高 ROE；基线为 TargetROE）
	watermark float64
	// state 持仓生命周期状态
	state EpisodeState

	// regimeLong 信号派生的多头方向制度
	regimeLong bool
	// regimeShort 信号派生的空头方向制度
	regimeShort bool
	// lastSignalVersion 最近消费过的信号版本
	lastSignalVersion uint64
}

// NewController 创建风险控制器
func NewController(accessor *market.Accessor, cfg config.RiskConfig, logger *zap.Logger) *Controller {
	c := &Controller{
		accessor: accessor,
		cfg:      cfg,
		logger:   logger.Named("risk"),
	}
	c.Reset()
	return c
}

// Reset 重置跨周期状态（进程重新初始化时调用）
func (c *Controller) Reset() {
	c.trailing = false
	c.watermark = c.cfg.TargetROE
	c.state = StateFlat
	c.regimeLong = false
	c.regimeShort = false
}

// State 当前持仓生命周期状态
func (c *Controller) State() EpisodeState {
	return c.state
}

// Watermark 当前追踪水位线
func (c *Controller) Watermark() float64 {
	return c.watermark
}

// Trailing 是否处于追踪止盈
func (c *Controller) Trailing() bool {
	return c.trailing
}

// VerifyLeverage 杠杆归一
// 持仓时仅向下钳制：当前杠杆超过目标时拉回目标，从不上调；
// 空仓时偏离目标即重置，避免交易所在成交/强平时自动改写的残留值。
func (c *Controller) VerifyLeverage(ctx context.Context, pos *model.Position) error {
	if pos.IsFlat() {
		if pos.Leverage != 0 && pos.Leverage != c.cfg.Leverage {
			c.logger.Info("空仓杠杆重置", zap.Float64("from", pos.Leverage), zap.Float64("to", c.cfg.Leverage))
			return c.accessor.SetLeverage(ctx, c.cfg.Leverage)
		}
		return nil
	}

	if pos.Leverage > c.cfg.Leverage {
		c.logger.Info("杠杆超过目标，向下钳制", zap.Float64("from", pos.Leverage), zap.Float64("to", c.cfg.Leverage))
		return c.accessor.SetLeverage(ctx, c.cfg.Leverage)
	}
	return nil
}

// CheckProfit 追踪止盈
// 水位线 W 单向棘轮：未追踪时 ROE 超过目标即开始追踪并置 W=ROE；
// 追踪中 ROE 创新高则上移 W；ROE 回撤到 ≤ 0.9·W 时先撤掉全部挂单，
// 再按市价平掉全部持仓，然后追踪关闭、W 回到配置基线。
// 返回: 本周期是否执行了退出。
func (c *Controller) CheckProfit(ctx context.Context, pos *model.Position) (bool, error) {
	qty := pos.CurrentQty
	roe := pos.UnrealisedRoePcnt

	if qty == 0 {
		if c.state == StateExited || c.state == StateEntered || c.state == StateTrailing {
			c.state = StateFlat
			c.trailing = false
			c.watermark = c.cfg.TargetROE
		}
		return false, nil
	}

	if c.state == StateFlat || c.state == StateExited {
		c.state = StateEntered
	}

	c.logger.Info("追踪止盈检查",
		zap.Float64("target_roe", c.cfg.TargetROE),
		zap.Float64("roe", roe),
		zap.Float64("watermark", c.watermark),
		zap.Bool("trailing", c.trailing))

	if !c.trailing {
		if roe > c.watermark {
			c.trailing = true
			c.watermark = roe
			c.state = StateTrailing
			c.logger.Info("ROE 超过目标，开始追踪", zap.Float64("watermark", c.watermark))
		}
		return false, nil
	}

	// 棘轮：水位线只上移
	if roe > c.watermark {
		c.watermark = roe
		return false, nil
	}

	if roe <= c.watermark*drawdownRatio {
		c.logger.Info("ROE 自水位线回撤，市价退出",
			zap.Float64("roe", roe),
			zap.Float64("watermark", c.watermark),
			zap.Float64("pnl", pos.UnrealisedGrossPnl))

		if err := c.accessor.CancelAllOrders(ctx); err != nil {
			return false, fmt.Errorf("退出前撤单失败: %w", err)
		}
		if err := c.accessor.ClosePosition(ctx, -qty); err != nil {
			return false, fmt.Errorf("市价平仓失败: %w", err)
		}

		c.logger.Info("已实现 ROE", zap.Float64("roe", roe))
		c.trailing = false
		c.watermark = c.cfg.TargetROE
		c.state = StateExited
		return true, nil
	}

	c.logger.Info("追踪中", zap.Float64("watermark", c.watermark))
	return false, nil
}

// SanityCheck 一致性检查
// 任何订单变更之前执行：合约可交易、订单簿非空、梯形未与盘口交叉。
// 交叉梯形说明市场快照已损坏或过期，返回 SanityError 触发撤单并关闭流程。
func (c *Controller) SanityCheck(ctx context.Context, lad ladder.Ladder, ticker *model.Ticker) error {
	if err := c.accessor.CheckOrderBookEmpty(ctx); err != nil {
		return err
	}
	if err := c.accessor.CheckMarketOpen(ctx); err != nil {
		return err
	}

	if lad.InnermostBuy >= ticker.Sell || lad.InnermostSell <= ticker.Buy {
		c.logger.Error("梯形与盘口交叉",
			zap.Float64("buy_anchor", lad.BuyAnchor),
			zap.Float64("sell_anchor", lad.SellAnchor),
			zap.Float64("innermost_buy", lad.InnermostBuy),
			zap.Float64("best_ask", ticker.Sell),
			zap.Float64("innermost_sell", lad.InnermostSell),
			zap.Float64("best_bid", ticker.Buy))
		return &model.SanityError{Reason: "梯形与盘口交叉，交易所数据不一致"}
	}

	return nil
}

// ReportLimits 持仓限额状态日志
func (c *Controller) ReportLimits(limits Limits, delta float64) {
	if limits.LongExceeded(delta) {
		c.logger.Info("多头持仓达到上限",
			zap.Float64("position", delta),
			zap.Float64("max", c.cfg.MaxPosition))
	}
	if limits.ShortExceeded(delta) {
		c.logger.Info("空头持仓达到下限",
			zap.Float64("position", delta),
			zap.Float64("min", c.cfg.MinPosition))
	}
}

// InitializePosition 信号驱动建仓（可选，默认关闭）
// 信号版本推进时重估方向制度：MACD 柱 > 0 且 RSI < 50 切换为多头制度，
// MACD 柱 < 0 且 RSI > 50 切换为空头制度。制度与方向开关同时满足时：
// 空仓或持仓不足起始数量一半则在 touch 价建仓；亏损的反向持仓先在 touch 价对冲平掉。
// 只消费周期开始时取好的信号快照，从不回写信号状态。
func (c *Controller) InitializePosition(ctx context.Context, sig model.SignalSnapshot, pos *model.Position, ticker *model.Ticker) error {
	if !c.cfg.SignalEntryEnabled {
		return nil
	}

	qty := pos.CurrentQty
	roe := pos.UnrealisedRoePcnt
	startQty := c.cfg.PositionStartEntryQty

	if sig.Version != c.lastSignalVersion {
		c.lastSignalVersion = sig.Version
		switch {
		case sig.MACDHistogram > 0 && sig.RSI < 50:
			c.regimeLong, c.regimeShort = true, false
			c.logger.Info("信号切换为多头制度", zap.Float64("rsi", sig.RSI), zap.Float64("macd", sig.MACDHistogram))
			return nil
		case sig.MACDHistogram < 0 && sig.RSI > 50:
			c.regimeLong, c.regimeShort = false, true
			c.logger.Info("信号切换为空头制度", zap.Float64("rsi", sig.RSI), zap.Float64("macd", sig.MACDHistogram))
			return nil
		}
	}

	longRegime := c.regimeLong || sig.LongEnable
	shortRegime := c.regimeShort || sig.ShortEnable

	switch {
	case longRegime && sig.BuyEnable:
		if qty < 0 && roe < 0 {
			c.logger.Info("多头制度下对冲亏损空头", zap.Float64("qty", -qty), zap.Float64("price", ticker.Buy))
			return c.accessor.PlaceOrder(ctx, -qty, ticker.Buy)
		}
		if qty == 0 || (qty > 0 && qty < startQty/2) {
			c.logger.Info("多头建仓", zap.Float64("qty", startQty), zap.Float64("price", ticker.Buy))
			return c.accessor.PlaceOrder(ctx, startQty, ticker.Buy)
		}
	case shortRegime && sig.SellEnable:
		if qty > 0 && roe < 0 {
			c.logger.Info("空头制度下对冲亏损多头", zap.Float64("qty", -qty), zap.Float64("price", ticker.Sell))
			return c.accessor.PlaceOrder(ctx, -qty, ticker.Sell)
		}
		if qty == 0 || (qty < 0 && qty > -startQty/2) {
			c.logger.Info("空头建仓", zap.Float64("qty", -startQty), zap.Float64("price", ticker.Sell))
			return c.accessor.PlaceOrder(ctx, -startQty, ticker.Sell)
		}
	}

	return nil
}
