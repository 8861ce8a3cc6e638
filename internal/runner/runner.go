// Package runner 实现做市主循环与进程监督。
// 每周期执行：信号快照 → 行情/持仓拉取 → 梯形构建 → 一致性检查 →
// 订单收敛 → 风险控制；配置文件变更或行情连接失联时触发进程内重新初始化。
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"bitmex-market-maker/internal/config"
	"bitmex-market-maker/internal/core/converge"
	"bitmex-market-maker/internal/core/ladder"
	"bitmex-market-maker/internal/core/market"
	"bitmex-market-maker/internal/core/model"
	"bitmex-market-maker/internal/core/risk"
	"bitmex-market-maker/internal/metrics"
	"bitmex-market-maker/internal/output/jsonl"
	"bitmex-market-maker/internal/signalfeed"
	"bitmex-market-maker/internal/util/backoff"
)

// shutdownTimeout 退出时撤单的最长等待
const shutdownTimeout = 10 * time.Second

// Runner 做市主循环
type Runner struct {
	// cfg 全局配置
	cfg *config.Config
	// accessor 市场快照访问器
	accessor *market.Accessor
	// builder 报价梯形构建器
	builder *ladder.Builder
	// engine 订单收敛引擎
	engine *converge.Engine
	// controller 风险控制器
	controller *risk.Controller
	// limits 持仓上限
	limits risk.Limits
	// feed 信号单元
	feed *signalfeed.Cell
	// reporter 周期报告写入器（可为 nil）
	reporter *jsonl.Writer
	// reconnect 重新初始化时重建行情连接
	reconnect func(context.Context) error
	// logger 日志记录器
	logger *zap.Logger

	// instrument 合约元数据（初始化时拉取，重新初始化时刷新）
	instrument *model.Instrument
	// fileStamps 被监视文件的修改时间
	fileStamps map[string]time.Time
	// startQty 初始化时的持仓数量，用于报告本次运行的仓位变化
	startQty float64
	// reinitBackoff 重新初始化退避
	reinitBackoff *backoff.Backoff
	// cycle 周期序号
	cycle uint64
}

// New 创建做市主循环
func New(
	cfg *config.Config,
	accessor *market.Accessor,
	builder *ladder.Builder,
	engine *converge.Engine,
	controller *risk.Controller,
	feed *signalfeed.Cell,
	reporter *jsonl.Writer,
	reconnect func(context.Context) error,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		cfg:           cfg,
		accessor:      accessor,
		builder:       builder,
		engine:        engine,
		controller:    controller,
		limits:        risk.NewLimits(cfg.Risk),
		feed:          feed,
		reporter:      reporter,
		reconnect:     reconnect,
		logger:        logger.Named("runner"),
		fileStamps:    make(map[string]time.Time),
		reinitBackoff: backoff.NewDefault(),
	}
}

// Run 启动主循环，阻塞直到上下文取消或发生致命错误
// 任何返回路径都先尽力撤掉本引擎的全部挂单。
func (r *Runner) Run(ctx context.Context) error {
	if err := r.initialize(ctx); err != nil {
		r.shutdown()
		return fmt.Errorf("初始化失败: %w", err)
	}

	ticker := time.NewTicker(r.cfg.Loop.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("主循环收到退出请求")
			r.shutdown()
			return nil
		case <-ticker.C:
		}

		if r.needsReinit() {
			if err := r.reinitialize(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				r.logger.Warn("重新初始化失败", zap.Error(err))
				r.sleep(ctx, r.reinitBackoff.Next())
			}
			continue
		}

		err := r.runCycle(ctx)
		switch {
		case err == nil:
			metrics.RecordCycle("ok")
		case ctx.Err() != nil:
			// 退出请求，下一轮 select 处理
		case model.IsFatal(err):
			r.logger.Error("致命状态，撤单并退出", zap.Error(err))
			r.shutdown()
			return err
		default:
			metrics.RecordCycle("error")
			r.logger.Warn("周期执行失败", zap.Error(err))
			r.sleep(ctx, r.cfg.Loop.ErrorInterval())
		}
	}
}

// initialize 启动序列：校验合约与市场状态、清空遗留挂单、记录监视文件
func (r *Runner) initialize(ctx context.Context) error {
	instrument, err := r.accessor.Instrument(ctx)
	if err != nil {
		return err
	}
	r.instrument = instrument

	if err := r.accessor.CheckMarketOpen(ctx); err != nil {
		return err
	}

	if err := r.accessor.CancelAllOrders(ctx); err != nil {
		return fmt.Errorf("清空遗留挂单失败: %w", err)
	}

	if pos, err := r.accessor.Position(ctx); err == nil {
		r.startQty = pos.CurrentQty
	}

	r.controller.Reset()
	r.stampWatchedFiles()
	r.reinitBackoff.Reset()

	r.logger.Info("做市引擎初始化完成",
		zap.String("symbol", r.accessor.Symbol()),
		zap.Float64("tick_size", instrument.TickSize),
		zap.Bool("dry_run", r.cfg.App.DryRun))
	return nil
}

// reinitialize 进程内重新初始化：撤单、重建行情连接、重走启动序列
func (r *Runner) reinitialize(ctx context.Context) error {
	r.logger.Info("触发重新初始化")

	if err := r.accessor.CancelAllOrders(ctx); err != nil {
		r.logger.Warn("重新初始化撤单失败", zap.Error(err))
	}
	if r.reconnect != nil {
		if err := r.reconnect(ctx); err != nil {
			return fmt.Errorf("重建行情连接失败: %w", err)
		}
	}
	return r.initialize(ctx)
}

// needsReinit 是否需要重新初始化
// 条件：任一被监视文件的修改时间变化，或行情连接失联
func (r *Runner) needsReinit() bool {
	for path, stamp := range r.fileStamps {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.ModTime().Equal(stamp) {
			r.logger.Info("监视文件已变更", zap.String("file", path))
			return true
		}
	}
	if !r.accessor.ConnectionHealthy() {
		r.logger.Warn("行情连接失联")
		return true
	}
	return false
}

// stampWatchedFiles 记录被监视文件的当前修改时间
func (r *Runner) stampWatchedFiles() {
	for _, path := range r.cfg.Loop.WatchedFiles {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		r.fileStamps[path] = info.ModTime()
	}
}

// runCycle 执行一个做市周期
// 改单目标失效（ErrStaleOrder）时等待后从梯形构建起整周期重试一次。
func (r *Runner) runCycle(ctx context.Context) error {
	r.cycle++
	// 信号快照每周期只取一次，周期内不再重读
	sig := r.feed.Snapshot()

	for attempt := 0; ; attempt++ {
		err := r.converge(ctx, sig)
		if err != nil && errors.Is(err, model.ErrStaleOrder) && attempt == 0 {
			metrics.RecordCycle("retry")
			r.logger.Warn("改单目标已失效，等待后重试本周期", zap.Error(err))
			if !r.sleep(ctx, r.cfg.Loop.StaleRetry()) {
				return err
			}
			continue
		}
		return err
	}
}

// converge 周期主体：行情/持仓 → 梯形 → 一致性检查 → 收敛 → 风险控制
func (r *Runner) converge(ctx context.Context, sig model.SignalSnapshot) error {
	ticker, err := r.accessor.Ticker(ctx)
	if err != nil {
		return err
	}
	pos, err := r.accessor.Position(ctx)
	if err != nil {
		return err
	}

	delta := pos.CurrentQty
	r.controller.ReportLimits(r.limits, delta)

	highestBuy, err := r.accessor.HighestBuy(ctx)
	if err != nil {
		return err
	}
	lowestSell, err := r.accessor.LowestSell(ctx)
	if err != nil {
		return err
	}

	lad := r.builder.Build(ladder.Inputs{
		Symbol:        r.accessor.Symbol(),
		Ticker:        *ticker,
		TickSize:      r.instrument.TickSize,
		HighestBuy:    highestBuy,
		LowestSell:    lowestSell,
		SuppressBuys:  r.limits.LongExceeded(delta),
		SuppressSells: r.limits.ShortExceeded(delta),
	})

	if err := r.controller.SanityCheck(ctx, lad, ticker); err != nil {
		return err
	}

	live, err := r.accessor.OpenOrders(ctx)
	if err != nil {
		return err
	}

	gate := risk.NewGate(pos)
	plan, err := r.engine.Converge(ctx, live, lad, gate, r.instrument.TickLog)
	if err != nil {
		return err
	}

	if err := r.controller.VerifyLeverage(ctx, pos); err != nil {
		return err
	}
	if err := r.controller.InitializePosition(ctx, sig, pos, ticker); err != nil {
		return err
	}
	exited, err := r.controller.CheckProfit(ctx, pos)
	if err != nil {
		return err
	}
	if exited {
		metrics.RecordExit()
	}

	metrics.RecordPlan(plan)
	metrics.RecordPosition(pos)
	metrics.RecordWatermark(r.controller.Watermark())

	r.logStatus(ctx, pos, ticker)
	r.report(sig, ticker, pos, plan)

	// 订单有变更时留出静默间隔，等交易所状态落定
	if !plan.Empty() {
		r.sleep(ctx, r.cfg.Loop.RestInterval())
	}
	return nil
}

// logStatus 打印周期状态：保证金、持仓、盘口
func (r *Runner) logStatus(ctx context.Context, pos *model.Position, ticker *model.Ticker) {
	fields := []zap.Field{
		zap.Uint64("cycle", r.cycle),
		zap.Float64("bid", ticker.Buy),
		zap.Float64("ask", ticker.Sell),
		zap.Float64("mid", ticker.Mid),
		zap.Float64("position", pos.CurrentQty),
		zap.Float64("run_delta", pos.CurrentQty-r.startQty),
		zap.String("episode", string(r.controller.State())),
	}

	if margin, err := r.accessor.Margin(ctx); err == nil {
		fields = append(fields, zap.Float64("balance_xbt", market.XBtToXBT(margin.MarginBalance)))
	}
	if !pos.IsFlat() {
		fields = append(fields,
			zap.Float64("avg_entry", pos.AvgEntryPrice),
			zap.Float64("roe", pos.UnrealisedRoePcnt),
			zap.Float64("watermark", r.controller.Watermark()))
	}
	r.logger.Info("周期状态", fields...)

	if r.logger.Core().Enabled(zap.DebugLevel) {
		if d, err := r.accessor.CalcDelta(ctx); err == nil {
			r.logger.Debug("组合敞口",
				zap.Float64("spot", d.Spot),
				zap.Float64("mark", d.MarkPrice),
				zap.Float64("basis", d.Basis))
		}
	}
}

// report 投递周期报告
func (r *Runner) report(sig model.SignalSnapshot, ticker *model.Ticker, pos *model.Position, plan converge.Plan) {
	if r.reporter == nil {
		return
	}
	r.reporter.Write(jsonl.CycleReport{
		Time:          time.Now().Format(time.RFC3339),
		Cycle:         r.cycle,
		Symbol:        r.accessor.Symbol(),
		Bid:           ticker.Buy,
		Ask:           ticker.Sell,
		Mid:           ticker.Mid,
		PositionQty:   pos.CurrentQty,
		Roe:           pos.UnrealisedRoePcnt,
		Watermark:     r.controller.Watermark(),
		Episode:       string(r.controller.State()),
		Creates:       len(plan.Creates),
		Amends:        len(plan.Amends),
		Cancels:       len(plan.Cancels),
		SignalVersion: sig.Version,
		DryRun:        r.cfg.App.DryRun,
	})
}

// shutdown 退出序列：限时撤掉全部挂单
// 鉴权失败只记录不阻止退出
func (r *Runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := r.accessor.CancelAllOrders(ctx); err != nil {
		if errors.Is(err, model.ErrAuth) {
			r.logger.Warn("退出撤单鉴权失败，跳过", zap.Error(err))
		} else {
			r.logger.Error("退出撤单失败", zap.Error(err))
		}
	} else {
		r.logger.Info("退出撤单完成")
	}

	if r.reporter != nil {
		_ = r.reporter.Flush()
	}
}

// sleep 可取消的等待，上下文取消时返回 false
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
