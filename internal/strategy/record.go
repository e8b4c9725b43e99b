package strategy

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartflow/internal/logger"
)

// 策略与阶段标识。
const (
	StrategyV3  = "v3"
	StrategyICT = "ict"

	StageTrend4H  = "trend_4h"
	StageScore1H  = "score_1h"
	StageRange1H  = "range_1h"
	StageSignal   = "signal"
	StageExit     = "exit"
	StageAnalysis = "analysis"
)

// Record 是推送给持久化/通知方的一条结果。
type Record struct {
	ID        string          `json:"id"`
	Strategy  string          `json:"strategy"`
	Stage     string          `json:"stage"`
	Symbol    string          `json:"symbol"`
	Summary   string          `json:"summary"`
	ErrorKind ErrorKind       `json:"error_kind,omitempty"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewRecord 序列化 payload 并分配 ID；序列化失败时 payload 为空对象。
func NewRecord(strategyName, stage, symbol, summary string, payload any, now time.Time) Record {
	raw, mErr := json.Marshal(payload)
	if mErr != nil {
		logger.Warnf("[sink] 序列化 %s/%s 结果失败: %v", strategyName, stage, mErr)
		raw = []byte("{}")
	}
	rec := Record{
		ID:        uuid.NewString(),
		Strategy:  strategyName,
		Stage:     stage,
		Symbol:    symbol,
		Summary:   summary,
		Payload:   raw,
		CreatedAt: now.UTC(),
	}
	return rec
}

// WithError 附加降级原因，msg 为空时原样返回。
func (r Record) WithError(kind ErrorKind, msg string) Record {
	if msg == "" {
		return r
	}
	if kind == KindNone {
		kind = KindUpstreamFailure
	}
	r.ErrorKind = kind
	r.Error = msg
	return r
}

// Sink 只写的结果出口，引擎从不回读。
type Sink interface {
	Publish(ctx context.Context, rec Record) error
}

// NopSink 丢弃所有结果。
type NopSink struct{}

func (NopSink) Publish(context.Context, Record) error { return nil }

// MultiSink 依次写入多个出口，单个失败只记日志。
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, rec Record) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, rec); err != nil {
			logger.Warnf("[sink] 推送 %s/%s %s 失败: %v", rec.Strategy, rec.Stage, rec.Symbol, err)
		}
	}
	return nil
}

// MemorySink 内存出口，测试与 CLI 汇总使用。
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

func (m *MemorySink) Publish(_ context.Context, rec Record) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

// Records 返回拷贝。
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Publish 尽力推送，失败只记日志；sink 为 nil 时忽略。
func Publish(ctx context.Context, sink Sink, rec Record) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, rec); err != nil {
		logger.Warnf("[sink] 推送 %s/%s %s 失败: %v", rec.Strategy, rec.Stage, rec.Symbol, err)
	}
}

// Clock 注入当前时间，便于测试。
type Clock func() time.Time

// Now 返回 c()，c 为 nil 时使用系统时间。
func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
