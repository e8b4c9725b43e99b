// Package report 把分析结果渲染为终端表格或缩进 JSON。
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"smartflow/internal/strategy/ict"
	v3 "smartflow/internal/strategy/v3"
)

// PrettyJSON 对任意值做缩进序列化；失败则返回错误文本
func PrettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	return string(b)
}

// TrimTo 限制字符串长度，超长则追加省略号
func TrimTo(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if max <= 0 || len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// V3Table 每个交易对一行：4H 趋势、1H 或震荡市打分与是否允许入场。
func V3Table(results []v3.Analysis) string {
	t := table.NewWriter()
	t.SetTitle("V3")
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"symbol", "trend", "market", "adx", "score", "entry", "note"})
	for _, a := range results {
		score, entry, note := "-", "-", a.Trend.Error
		res := a.Scoring
		if res == nil {
			res = a.Range
		}
		if res != nil {
			score = fmt.Sprintf("%.2f/%.0f", res.TotalScore, res.MaxScore)
			entry = yesNo(res.AllowEntry)
			if note == "" {
				note = firstNonEmpty(res.Error, res.Reason)
			}
		}
		t.AppendRow(table.Row{
			a.Symbol,
			a.Trend.Direction,
			a.Trend.MarketType,
			fmt.Sprintf("%.1f", a.Trend.ADX14),
			score,
			entry,
			TrimTo(note, 60),
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 4, Align: text.AlignRight}, {Number: 5, Align: text.AlignRight}})
	return t.Render()
}

// ICTTable 每个交易对一行：日线趋势、信号与风控要点。
func ICTTable(signals []ict.Signal) string {
	t := table.NewWriter()
	t.SetTitle("ICT")
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"symbol", "daily", "signal", "strength", "execution", "entry", "stop", "tp", "lev", "note"})
	for _, s := range signals {
		entry, stop, tp, lev := "-", "-", "-", "-"
		if s.Risk != nil && s.Risk.Error == "" {
			entry = fmt.Sprintf("%.4f", s.Risk.Entry)
			stop = fmt.Sprintf("%.4f", s.Risk.StopLoss)
			tp = fmt.Sprintf("%.4f", s.Risk.TakeProfit)
		}
		if s.Leverage != nil {
			lev = fmt.Sprintf("%dx", s.Leverage.MaxLeverage)
		}
		t.AppendRow(table.Row{
			s.Symbol,
			s.Daily.Trend,
			s.Type,
			s.Strength,
			s.Execution,
			entry,
			stop,
			tp,
			lev,
			TrimTo(firstNonEmpty(s.Error, s.Reason), 60),
		})
	}
	return t.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
