// Package bitmex 实现 BitMEX 传输层协作方。
// REST 请求签名: api-signature = HMAC_SHA256(secret, verb + path + expires + body)
// realtime WebSocket 仅用于连接健康度判定，行情与账户数据走 REST 拉取。
package bitmex

// instrumentDTO 合约元数据线格式
type instrumentDTO struct {
	Symbol                       string   `json:"symbol"`
	State                        string   `json:"state"`
	TickSize                     float64  `json:"tickSize"`
	Multiplier                   float64  `json:"multiplier"`
	IsQuanto                     bool     `json:"isQuanto"`
	IsInverse                    bool     `json:"isInverse"`
	MarkPrice                    float64  `json:"markPrice"`
	MidPrice                     *float64 `json:"midPrice"`
	BidPrice                     *float64 `json:"bidPrice"`
	AskPrice                     *float64 `json:"askPrice"`
	LastPrice                    *float64 `json:"lastPrice"`
	IndicativeSettlePrice        float64  `json:"indicativeSettlePrice"`
	InitMargin                   float64  `json:"initMargin"`
	QuoteToSettleMultiplier      float64  `json:"quoteToSettleMultiplier"`
	UnderlyingToSettleMultiplier *float64 `json:"underlyingToSettleMultiplier"`
}

// positionDTO 持仓线格式
type positionDTO struct {
	Symbol             string   `json:"symbol"`
	CurrentQty         float64  `json:"currentQty"`
	AvgEntryPrice      float64  `json:"avgEntryPrice"`
	AvgCostPrice       float64  `json:"avgCostPrice"`
	UnrealisedGrossPnl float64  `json:"unrealisedGrossPnl"`
	UnrealisedPnlPcnt  float64  `json:"unrealisedPnlPcnt"`
	UnrealisedRoePcnt  float64  `json:"unrealisedRoePcnt"`
	LiquidationPrice   *float64 `json:"liquidationPrice"`
	Leverage           float64  `json:"leverage"`
	MarkPrice          float64  `json:"markPrice"`
}

// orderDTO 订单线格式
type orderDTO struct {
	OrderID   string  `json:"orderID"`
	ClOrdID   string  `json:"clOrdID"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	OrderQty  float64 `json:"orderQty"`
	CumQty    float64 `json:"cumQty"`
	LeavesQty float64 `json:"leavesQty"`
	OrdStatus string  `json:"ordStatus"`
}

// marginDTO 保证金线格式
type marginDTO struct {
	MarginBalance  float64 `json:"marginBalance"`
	AvailableFunds float64 `json:"availableFunds"`
}

// errorDTO 交易所错误响应
type errorDTO struct {
	Error struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	} `json:"error"`
}

// orderRequestDTO 下单请求
type orderRequestDTO struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	OrderQty float64 `json:"orderQty"`
	Price    float64 `json:"price"`
	ClOrdID  string  `json:"clOrdID"`
	ExecInst string  `json:"execInst,omitempty"`
}

// amendRequestDTO 改单请求
type amendRequestDTO struct {
	OrderID  string  `json:"orderID"`
	OrderQty float64 `json:"orderQty"`
	Price    float64 `json:"price"`
}

// bulkOrdersDTO 批量订单载荷
type bulkOrdersDTO struct {
	Orders any `json:"orders"`
}
