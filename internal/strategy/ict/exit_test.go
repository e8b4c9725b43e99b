package ict

import "testing"

func longPosition() ExitInputs {
	return ExitInputs{
		Position:     SignalLong,
		EntryPrice:   100,
		CurrentPrice: 100,
		StopLoss:     95,
		TakeProfit:   115,
		ATR4H:        2,
		ATR15:        2,
		Trend1D:      TrendUp,
		VolumeRatio:  1,
	}
}

func TestEvaluateExitStopLossWinsOrdering(t *testing.T) {
	in := longPosition()
	in.CurrentPrice = 90
	in.OB = &OrderBlock{High: 99, Low: 97}
	in.Trend1D = TrendDown
	in.VolumeRatio = 5
	in.TimeInPosition = 100
	d := EvaluateExit(in)
	if !d.Exit || d.Reason != ExitStopLoss || d.ExitPrice != 95 {
		t.Fatalf("stop loss must win when later conditions also hold: %+v", d)
	}
}

func TestEvaluateExitReasons(t *testing.T) {
	level := 99.0
	cases := []struct {
		name   string
		mutate func(*ExitInputs)
		reason ExitReason
		price  float64
	}{
		{"hold", func(*ExitInputs) {}, ExitNone, 0},
		{"take profit", func(in *ExitInputs) { in.CurrentPrice = 116 }, ExitTakeProfit, 115},
		{"order block break", func(in *ExitInputs) {
			in.OB = &OrderBlock{High: 99, Low: 97}
			in.CurrentPrice = 96
		}, ExitOrderBlockBreak, 96},
		{"order block within tolerance", func(in *ExitInputs) {
			in.OB = &OrderBlock{High: 99, Low: 97}
			in.CurrentPrice = 96.5
		}, ExitNone, 0},
		{"fvg refill", func(in *ExitInputs) {
			in.FVG = &FairValueGap{Low: 101, High: 102}
			in.CurrentPrice = 101.5
		}, ExitFVGRefill, 101.5},
		{"trend reversal", func(in *ExitInputs) {
			in.Trend1D = TrendDown
			in.CurrentPrice = 104
		}, ExitTrendReversal, 104},
		{"trend flip without move", func(in *ExitInputs) {
			in.Trend1D = TrendDown
			in.CurrentPrice = 101
		}, ExitNone, 0},
		{"liquidity sweep", func(in *ExitInputs) {
			in.SweepDetected = true
			in.LiquidityLevel = &level
			in.CurrentPrice = 97.5
		}, ExitLiquiditySweep, 97.5},
		{"sweep flag without level", func(in *ExitInputs) {
			in.SweepDetected = true
			in.CurrentPrice = 97.5
		}, ExitNone, 0},
		{"volume dry", func(in *ExitInputs) {
			in.TimeInPosition = 30
			in.VolumeRatio = 0.4
		}, ExitVolumeAnomaly, 100},
		{"volume surge", func(in *ExitInputs) { in.VolumeRatio = 3.5 }, ExitVolumeAnomaly, 100},
		{"time stop", func(in *ExitInputs) { in.TimeInPosition = 48 }, ExitTimeStop, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := longPosition()
			tc.mutate(&in)
			d := EvaluateExit(in)
			if d.Reason != tc.reason || d.Exit != (tc.reason != ExitNone) {
				t.Fatalf("reason = %q exit=%v, want %q", d.Reason, d.Exit, tc.reason)
			}
			if d.Exit && d.ExitPrice != tc.price {
				t.Fatalf("exit price = %v, want %v", d.ExitPrice, tc.price)
			}
		})
	}
}

func TestEvaluateExitShort(t *testing.T) {
	in := ExitInputs{Position: SignalShort, EntryPrice: 100, CurrentPrice: 106, StopLoss: 105, TakeProfit: 85, VolumeRatio: 1, ATR4H: 2}
	if d := EvaluateExit(in); d.Reason != ExitStopLoss || d.ExitPrice != 105 {
		t.Fatalf("short stop loss expected: %+v", d)
	}
	in.CurrentPrice = 104
	in.OB = &OrderBlock{High: 103, Low: 101}
	if d := EvaluateExit(in); d.Reason != ExitOrderBlockBreak {
		t.Fatalf("short order block break expected: %+v", d)
	}
	in.OB = nil
	in.CurrentPrice = 84
	if d := EvaluateExit(in); d.Reason != ExitTakeProfit || d.ExitPrice != 85 {
		t.Fatalf("short take profit expected: %+v", d)
	}
}

func TestEvaluateExitWithoutPosition(t *testing.T) {
	in := longPosition()
	in.Position = SignalNone
	in.VolumeRatio = 10
	if d := EvaluateExit(in); d.Exit {
		t.Fatalf("no position should never exit: %+v", d)
	}
}
