package models

import (
	"sort"
	"time"
)

// Candle is one OHLCV bar from the exchange.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// SortCandles orders candles by open time, dropping duplicates of the same bar.
func SortCandles(candles []Candle) []Candle {
	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
	out := candles[:0]
	for i, c := range candles {
		if i > 0 && c.OpenTime.Equal(out[len(out)-1].OpenTime) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Closes extracts the close series.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// TrainingRun records one trainer execution.
type TrainingRun struct {
	ID              string
	Symbol          string
	Interval        string
	Candles         int
	Rows            int
	Accuracy        float64
	TotalReturn     float64
	BenchmarkReturn float64
	Trades          int
	ModelPath       string
	CreatedAt       time.Time
}
