// Package converge 实现收敛引擎：把交易所当前挂单集合以最小变更收敛到期望梯形。
// 配对是按位的（同侧、按档位序），不是按价格的：挂单按交易所返回顺序遍历，
// 期望订单按“从外到内”顺序弹出。能改则改（保留已成交量），多出的撤销，
// 缺少的新建；新建与改价都必须通过强平价过滤器。
package converge

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"bitmex-market-maker/internal/core/ladder"
	"bitmex-market-maker/internal/core/market"
	"bitmex-market-maker/internal/core/model"
	"bitmex-market-maker/internal/core/risk"
)

// Plan 单周期的订单变更指令集
type Plan struct {
	// Amends 改单指令（按挂单遍历顺序）
	Amends []model.AmendRequest
	// Creates 新建指令（从外到内）
	Creates []model.OrderRequest
	// Cancels 待撤销的挂单（无对应期望订单）
	Cancels []model.Order
}

// Empty 判断指令集是否为空（收敛已达成，幂等）
func (p Plan) Empty() bool {
	return len(p.Amends) == 0 && len(p.Creates) == 0 && len(p.Cancels) == 0
}

// Diff 计算将挂单集合变换为期望梯形所需的最小指令集
// 算法（单趟、确定性）：
//  1. 按交易所返回顺序遍历挂单；同侧期望订单从外到内依次配对。
//  2. 配对成功时，期望数量 ≠ 剩余数量，或价格偏移超过 relistInterval 滞回带才改单；
//     改单数量 = 已成交量 + 期望数量，保留已成交部分。
//  3. 无配对的挂单撤销；剩余未配对的期望订单新建，但必须通过 gate。
//
// 任一侧挂单或期望订单为空都是合法输入。
func Diff(live []model.Order, lad ladder.Ladder, relistInterval float64, gate risk.Gate) Plan {
	var plan Plan
	buysMatched := 0
	sellsMatched := 0

	for _, order := range live {
		var desired *model.OrderRequest
		if order.Side == model.SideBuy {
			if buysMatched < len(lad.Buys) {
				desired = &lad.Buys[buysMatched]
				buysMatched++
			}
		} else {
			if sellsMatched < len(lad.Sells) {
				desired = &lad.Sells[sellsMatched]
				sellsMatched++
			}
		}

		if desired == nil {
			// 该侧期望订单已耗尽，多出的挂单撤销
			plan.Cancels = append(plan.Cancels, order)
			continue
		}

		if desired.OrderQty != order.LeavesQty ||
			(desired.Price != order.Price &&
				math.Abs(desired.Price/order.Price-1) > relistInterval) {
			amend := model.AmendRequest{
				OrderID:  order.OrderID,
				Price:    desired.Price,
				OrderQty: order.CumQty + desired.OrderQty,
				Side:     order.Side,
			}
			if gate.Allows(amend.Price) {
				plan.Amends = append(plan.Amends, amend)
			}
		}
	}

	for ; buysMatched < len(lad.Buys); buysMatched++ {
		o := lad.Buys[buysMatched]
		if gate.Allows(o.Price) {
			plan.Creates = append(plan.Creates, o)
		}
	}
	for ; sellsMatched < len(lad.Sells); sellsMatched++ {
		o := lad.Sells[sellsMatched]
		if gate.Allows(o.Price) {
			plan.Creates = append(plan.Creates, o)
		}
	}

	return plan
}

// Engine 收敛引擎
// 持有访问器与目标杠杆，负责把 Diff 产出的指令集应用到交易所。
type Engine struct {
	// accessor 市场快照访问器
	accessor *market.Accessor
	// relistInterval 改单滞回带
	relistInterval float64
	// leverage 目标杠杆（新建订单前归一）
	leverage float64
	// logger 日志记录器
	logger *zap.Logger
}

// New 创建收敛引擎
func New(accessor *market.Accessor, relistInterval, leverage float64, logger *zap.Logger) *Engine {
	return &Engine{
		accessor:       accessor,
		relistInterval: relistInterval,
		leverage:       leverage,
		logger:         logger.Named("converge"),
	}
}

// Converge 计算并应用一次收敛
// 参数 live: 本周期拉取的挂单快照
// 参数 lad: 期望梯形
// 参数 gate: 本周期的强平价过滤器
// 参数 tickLog: 价格显示精度
// 返回: 应用的指令集；改单目标失效时返回包裹 model.ErrStaleOrder 的错误，
// 调用方应等待固定间隔后从梯形构建重跑整个周期。
func (e *Engine) Converge(ctx context.Context, live []model.Order, lad ladder.Ladder, gate risk.Gate, tickLog int) (Plan, error) {
	plan := Diff(live, lad, e.relistInterval, gate)

	if len(plan.Amends) > 0 {
		liveByID := make(map[string]model.Order, len(live))
		for _, o := range live {
			liveByID[o.OrderID] = o
		}
		// 从外侧期望订单开始打印，便于对照梯形阅读；应用顺序无语义影响
		for i := len(plan.Amends) - 1; i >= 0; i-- {
			am := plan.Amends[i]
			ref := liveByID[am.OrderID]
			e.logger.Info(fmt.Sprintf("改单 %4s: %.0f @ %.*f -> %.0f @ %.*f (%+.*f)",
				am.Side,
				ref.LeavesQty, tickLog, ref.Price,
				am.OrderQty-ref.CumQty, tickLog, am.Price,
				tickLog, am.Price-ref.Price))
		}

		if _, err := e.accessor.AmendOrders(ctx, plan.Amends); err != nil {
			// 改单目标可能在拉取与改单之间已成交/已撤销；
			// 此时整份挂单快照已过期，必须整体重拉重算。
			if errors.Is(err, model.ErrStaleOrder) {
				e.logger.Warn("改单失败：订单状态已变更，等待数据收敛后重跑周期")
				return plan, fmt.Errorf("改单目标失效: %w", err)
			}
			e.logger.Error("改单失败", zap.Error(err))
			return plan, err
		}
	}

	if len(plan.Creates) > 0 {
		e.logger.Info("新建订单", zap.Int("count", len(plan.Creates)))
		for i := len(plan.Creates) - 1; i >= 0; i-- {
			o := plan.Creates[i]
			e.logger.Info(fmt.Sprintf("%4s %.0f @ %.*f", o.Side, o.OrderQty, tickLog, o.Price))
		}

		// 新增风险必须在目标杠杆下产生，而不是交易所残留的旧值
		if err := e.accessor.SetLeverage(ctx, e.leverage); err != nil {
			e.logger.Warn("下单前杠杆归一失败", zap.Error(err))
		}
		if _, err := e.accessor.CreateOrders(ctx, plan.Creates); err != nil {
			e.logger.Error("下单失败", zap.Error(err))
			return plan, err
		}
	}

	if len(plan.Cancels) > 0 {
		e.logger.Info("撤销订单", zap.Int("count", len(plan.Cancels)))
		for i := len(plan.Cancels) - 1; i >= 0; i-- {
			o := plan.Cancels[i]
			e.logger.Info(fmt.Sprintf("%4s %.0f @ %.*f", o.Side, o.LeavesQty, tickLog, o.Price))
		}
		if err := e.accessor.CancelOrders(ctx, plan.Cancels); err != nil {
			e.logger.Error("撤单失败", zap.Error(err))
			return plan, err
		}
	}

	return plan, nil
}
