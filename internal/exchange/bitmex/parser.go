package bitmex

import (
	"fmt"

	"bitmex-market-maker/internal/core/model"
	"bitmex-market-maker/internal/util/mathutil"
)

// toInstrument 将合约线格式转换为类型化视图
// 订单簿为空时 MidPrice 为 nil，显式保留可选性
func toInstrument(dto instrumentDTO) (*model.Instrument, error) {
	if dto.Symbol == "" {
		return nil, fmt.Errorf("合约响应缺少 symbol")
	}
	if dto.TickSize <= 0 {
		return nil, fmt.Errorf("合约 %s tickSize 无效: %f", dto.Symbol, dto.TickSize)
	}

	return &model.Instrument{
		Symbol:                       dto.Symbol,
		State:                        dto.State,
		TickSize:                     dto.TickSize,
		TickLog:                      mathutil.TickLog(dto.TickSize),
		Multiplier:                   dto.Multiplier,
		IsQuanto:                     dto.IsQuanto,
		IsInverse:                    dto.IsInverse,
		MarkPrice:                    dto.MarkPrice,
		MidPrice:                     dto.MidPrice,
		IndicativeSettlePrice:        dto.IndicativeSettlePrice,
		InitMargin:                   dto.InitMargin,
		QuoteToSettleMultiplier:      dto.QuoteToSettleMultiplier,
		UnderlyingToSettleMultiplier: dto.UnderlyingToSettleMultiplier,
	}, nil
}

// toTicker 由合约线格式提取盘口快照
// mid = (buy+sell)/2 按 tick 取整
func toTicker(dto instrumentDTO) (*model.Ticker, error) {
	if dto.BidPrice == nil || dto.AskPrice == nil {
		return nil, &model.MarketEmptyError{Symbol: dto.Symbol}
	}

	t := &model.Ticker{
		Buy:  *dto.BidPrice,
		Sell: *dto.AskPrice,
	}
	t.Mid = mathutil.ToNearest((t.Buy+t.Sell)/2, dto.TickSize)
	if dto.LastPrice != nil {
		t.Last = *dto.LastPrice
	}
	return t, nil
}

// toPosition 将持仓线格式转换为类型化视图
// 空仓时交易所不返回强平价，LiquidationPrice 保持 nil
func toPosition(dto positionDTO) *model.Position {
	return &model.Position{
		Symbol:             dto.Symbol,
		CurrentQty:         dto.CurrentQty,
		AvgEntryPrice:      dto.AvgEntryPrice,
		AvgCostPrice:       dto.AvgCostPrice,
		UnrealisedGrossPnl: dto.UnrealisedGrossPnl,
		UnrealisedPnlPcnt:  dto.UnrealisedPnlPcnt,
		UnrealisedRoePcnt:  dto.UnrealisedRoePcnt,
		LiquidationPrice:   dto.LiquidationPrice,
		Leverage:           dto.Leverage,
		MarkPrice:          dto.MarkPrice,
	}
}

// flatPosition 交易所尚无持仓记录时的空仓视图
func flatPosition(symbol string) *model.Position {
	return &model.Position{Symbol: symbol}
}

// toOrder 将订单线格式转换为类型化视图
func toOrder(dto orderDTO) model.Order {
	return model.Order{
		OrderID:   dto.OrderID,
		ClOrdID:   dto.ClOrdID,
		Symbol:    dto.Symbol,
		Side:      model.Side(dto.Side),
		Price:     dto.Price,
		OrderQty:  dto.OrderQty,
		CumQty:    dto.CumQty,
		LeavesQty: dto.LeavesQty,
		OrdStatus: dto.OrdStatus,
	}
}

// toMargin 将保证金线格式转换为类型化视图
func toMargin(dto marginDTO) *model.Margin {
	return &model.Margin{
		MarginBalance:  dto.MarginBalance,
		AvailableFunds: dto.AvailableFunds,
	}
}
