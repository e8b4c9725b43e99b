package market

// Candle 单根 K 线，时间为毫秒时间戳。
type Candle struct {
	OpenTime       int64   `json:"open_time"`
	CloseTime      int64   `json:"close_time"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Close          float64 `json:"close"`
	Volume         float64 `json:"volume"`
	Trades         int64   `json:"trades,omitempty"`
	TakerBuyVolume float64 `json:"taker_buy_volume,omitempty"`
}

// OpenInterestPoint 合约持仓量统计点。
type OpenInterestPoint struct {
	Symbol               string  `json:"symbol"`
	SumOpenInterest      float64 `json:"sum_open_interest"`
	SumOpenInterestValue float64 `json:"sum_open_interest_value"`
	Timestamp            int64   `json:"timestamp"`
}

// Ticker 24h 行情摘要。
type Ticker struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"last_price"`
	PriceChangePercent float64 `json:"price_change_percent"`
	Volume             float64 `json:"volume"`
}

// DeltaSnapshot 主动买卖量差。Delta 为 [-1,1] 区间的失衡比例。
type DeltaSnapshot struct {
	Delta      float64 `json:"delta"`
	Buy        float64 `json:"delta_buy"`
	Sell       float64 `json:"delta_sell"`
	LastUpdate int64   `json:"last_update"`
}

// OpenInterestChange 返回首尾两点的相对变化；数据不足或首点为 0 时 ok=false。
func OpenInterestChange(points []OpenInterestPoint) (float64, bool) {
	if len(points) < 2 {
		return 0, false
	}
	first := points[0].SumOpenInterest
	last := points[len(points)-1].SumOpenInterest
	if first <= 0 || !finite(first) || !finite(last) {
		return 0, false
	}
	return (last - first) / first, true
}
