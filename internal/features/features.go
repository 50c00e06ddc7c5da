// Package features turns a candle series into the SMA training table.
package features

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rewired-gh/rugoracle/internal/models"
)

var ErrInsufficientData = errors.New("not enough candles to build features")

// SMA returns the trailing simple moving average of values. Entries before
// the first full window are NaN.
func SMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i < period-1 || period < 1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(period)
	}
	return out
}

// Row is one training example.
type Row struct {
	Time    time.Time
	Close   float64
	SMAFast float64
	SMASlow float64
	// Target is true when the next bar closes higher.
	Target bool
}

// Table is the feature table in time order.
type Table struct {
	FastPeriod int
	SlowPeriod int
	Rows       []Row
}

// Build computes the fast and slow SMA features with the next-bar direction
// label. Rows without both SMAs and the final row, whose next bar is
// unknown, are dropped.
func Build(candles []models.Candle, fast, slow int) (Table, error) {
	if fast < 1 || slow < 1 {
		return Table{}, fmt.Errorf("invalid SMA periods %d/%d", fast, slow)
	}
	closes := models.Closes(candles)
	smaFast := SMA(closes, fast)
	smaSlow := SMA(closes, slow)

	t := Table{FastPeriod: fast, SlowPeriod: slow}
	for i := 0; i < len(candles)-1; i++ {
		if math.IsNaN(smaFast[i]) || math.IsNaN(smaSlow[i]) {
			continue
		}
		t.Rows = append(t.Rows, Row{
			Time:    candles[i].OpenTime,
			Close:   closes[i],
			SMAFast: smaFast[i],
			SMASlow: smaSlow[i],
			Target:  closes[i+1] > closes[i],
		})
	}
	if len(t.Rows) == 0 {
		return Table{}, fmt.Errorf("%w: %d candles, slow SMA %d", ErrInsufficientData, len(candles), slow)
	}
	return t, nil
}

// Columns names the feature columns of X.
func (t Table) Columns() []string {
	return []string{fmt.Sprintf("sma_%d", t.FastPeriod), fmt.Sprintf("sma_%d", t.SlowPeriod)}
}

// X returns the feature matrix.
func (t Table) X() [][]float64 {
	x := make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		x[i] = []float64{r.SMAFast, r.SMASlow}
	}
	return x
}

// Y returns the labels as 0/1.
func (t Table) Y() []int {
	y := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		if r.Target {
			y[i] = 1
		}
	}
	return y
}

func (t Table) Closes() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Close
	}
	return out
}
