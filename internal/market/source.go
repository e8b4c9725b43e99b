package market

import "context"

// TradeEvent 表示实时逐笔（aggTrade）成交。
type TradeEvent struct {
	Symbol       string
	Price        float64
	Quantity     float64
	EventTime    int64
	TradeTime    int64
	IsBuyerMaker bool
}

// SubscribeOptions 控制实时订阅行为。
type SubscribeOptions struct {
	BatchSize    int
	Buffer       int
	OnConnect    func()
	OnDisconnect func(error)
}

// SourceStats 记录数据源运行期的一些指标。
type SourceStats struct {
	Reconnects      int
	SubscribeErrors int
	LastError       string
}

// Source 统一对接外部行情供应商。
type Source interface {
	// FetchHistory 拉取最近 limit 根 K 线并按时间升序返回。
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// DerivativesSource 提供合约衍生数据：资金费率、持仓量历史与 24h 行情。
type DerivativesSource interface {
	FundingRate(ctx context.Context, symbol string) (float64, error)
	OpenInterestHistory(ctx context.Context, symbol, period string, limit int) ([]OpenInterestPoint, error)
	Ticker24h(ctx context.Context, symbol string) (Ticker, error)
}

// DeltaProvider 返回指定周期的主动买卖差；无数据时 ok=false。
type DeltaProvider interface {
	DeltaData(symbol, timeframe string) (DeltaSnapshot, bool)
}

// TradeStreamer 订阅逐笔成交，通道关闭意味着订阅已结束。
type TradeStreamer interface {
	SubscribeTrades(ctx context.Context, symbols []string, opts SubscribeOptions) (<-chan TradeEvent, error)
	Stats() SourceStats
	Close() error
}
