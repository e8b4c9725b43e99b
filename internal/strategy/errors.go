// Package strategy 定义两套策略共享的结果记录、错误分类与输出通道。
package strategy

import (
	"errors"
	"fmt"
	"math"
)

// ErrorKind 仅用于观测与提示，不参与控制流。
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindInsufficientData ErrorKind = "INSUFFICIENT_DATA"
	KindUpstreamFailure  ErrorKind = "UPSTREAM_FAILURE"
	KindCalculation      ErrorKind = "CALCULATION_ERROR"
)

// Error 携带分类与出错阶段。
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Insufficient 数据不足。
func Insufficient(op string, have, need int) *Error {
	return &Error{Kind: KindInsufficientData, Op: op, Err: fmt.Errorf("insufficient data: have %d candles, need %d", have, need)}
}

// Upstream 上游数据源失败。
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstreamFailure, Op: op, Err: err}
}

// Calculation 计算出 NaN/Inf 等非法值。
func Calculation(op string, err error) *Error {
	return &Error{Kind: KindCalculation, Op: op, Err: err}
}

// KindOf 提取错误分类，非 *Error 一律视为上游失败。
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUpstreamFailure
}

// Finite 判断所有值都是有限数。
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
