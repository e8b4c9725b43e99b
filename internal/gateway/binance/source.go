package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"smartflow/internal/logger"
	"smartflow/internal/market"
)

const maxHistoryLimit = 1500

// Source 实现 market.Source / DerivativesSource / TradeStreamer，负责 Binance 合约 REST/WS 接入。
type Source struct {
	cfg     Config
	client  *futures.Client
	limiter *rate.Limiter

	mu     sync.Mutex
	ws     *combinedStreamsClient
	cancel context.CancelFunc
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if p := strings.TrimSpace(final.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		httpClient.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
	client := futures.NewClient("", "")
	client.BaseURL = strings.TrimRight(final.RESTBaseURL, "/")
	client.HTTPClient = httpClient
	perReq := time.Minute / time.Duration(final.RateLimitPerMin)
	return &Source{
		cfg:     final,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(perReq), 10),
	}, nil
}

func (s *Source) wait(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("binance source not initialized")
	}
	return s.limiter.Wait(ctx)
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	logger.Debugf("[binance] klines %s %s limit=%d", symbol, interval, limit)
	rows, err := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", symbol, interval, err)
	}
	out := make([]market.Candle, 0, len(rows))
	for _, k := range rows {
		if k == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:       k.OpenTime,
			CloseTime:      k.CloseTime,
			Open:           parseFloat(k.Open),
			High:           parseFloat(k.High),
			Low:            parseFloat(k.Low),
			Close:          parseFloat(k.Close),
			Volume:         parseFloat(k.Volume),
			Trades:         k.TradeNum,
			TakerBuyVolume: parseFloat(k.TakerBuyBaseAssetVolume),
		})
	}
	return market.Sanitize(out), nil
}

// SubscribeTrades 订阅 <symbol>@aggTrade，ctx 结束后关闭通道。
func (s *Source) SubscribeTrades(ctx context.Context, symbols []string, opts market.SubscribeOptions) (<-chan market.TradeEvent, error) {
	streams := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if v := strings.ToLower(strings.TrimSpace(sym)); v != "" {
			streams = append(streams, v+"@aggTrade")
		}
	}
	if len(streams) == 0 {
		return nil, fmt.Errorf("symbols are required for subscription")
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = s.cfg.WSBatchSize
	}
	ws := newCombinedStreamsClient(s.cfg.WSBaseURL, batch)
	ws.SetCallbacks(opts.OnConnect, opts.OnDisconnect)
	if err := ws.Connect(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.ws != nil {
		s.ws.Close()
	}
	s.ws = ws
	s.cancel = cancel
	s.mu.Unlock()

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 1024
	}
	out := make(chan market.TradeEvent, buffer)
	var wg sync.WaitGroup
	for _, stream := range streams {
		sub := ws.AddSubscriber(stream, 256)
		wg.Add(1)
		go func(ch <-chan []byte) {
			defer wg.Done()
			forwardTrades(subCtx, ch, out)
		}(sub)
	}
	if err := ws.BatchSubscribe(streams); err != nil {
		cancel()
		ws.Close()
		wg.Wait()
		return nil, err
	}

	go func() {
		<-subCtx.Done()
		ws.Close()
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func forwardTrades(ctx context.Context, stream <-chan []byte, out chan<- market.TradeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-stream:
			if !ok {
				return
			}
			ev, err := decodeAggTrade(msg)
			if err != nil {
				logger.Warnf("[binance] 解码 aggTrade 失败: %v", err)
				continue
			}
			select {
			case out <- ev:
			default:
				logger.Warnf("[binance] 成交通道已满，丢弃 %s", ev.Symbol)
			}
		}
	}
}

func (s *Source) Stats() market.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws == nil {
		return market.SourceStats{}
	}
	return s.ws.Stats()
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
	return nil
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}
