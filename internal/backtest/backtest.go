// Package backtest simulates a signal-driven strategy over a close series.
package backtest

import (
	"errors"
	"fmt"
	"math"
)

var ErrInput = errors.New("invalid backtest input")

// Config controls the simulation. Fees is a fraction charged on every fill.
type Config struct {
	Fees           float64
	InitCash       float64
	AllowShort     bool
	PeriodsPerYear float64
}

// DefaultConfig returns 0.15% fees, 100 of starting cash and hourly bars.
func DefaultConfig() Config {
	return Config{
		Fees:           0.0015,
		InitCash:       100,
		PeriodsPerYear: 24 * 365,
	}
}

// Side is the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Trade is one closed position.
type Trade struct {
	Side       Side
	EntryIndex int
	ExitIndex  int
	EntryPrice float64
	ExitPrice  float64
	Units      float64
	Fees       float64
	NetPnL     float64
	ReturnPct  float64
}

// Metrics summarises a simulation. Returns and drawdown are fractions.
type Metrics struct {
	TotalReturn     float64
	BenchmarkReturn float64
	MaxDrawdown     float64
	WinRate         float64
	ProfitFactor    float64
	Sharpe          float64
	TotalFees       float64
	NumTrades       int
}

// Result is the equity curve, closed trades and metrics of one simulation.
type Result struct {
	Equity       []float64
	Trades       []Trade
	FinalEquity  float64
	OpenPosition bool
	Metrics      Metrics
}

// SignalsFromPredictions maps class predictions to entry (1) and exit (0)
// signals.
func SignalsFromPredictions(pred []int) (entries, exits []bool) {
	entries = make([]bool, len(pred))
	exits = make([]bool, len(pred))
	for i, p := range pred {
		entries[i] = p == 1
		exits[i] = p == 0
	}
	return entries, exits
}

type position struct {
	side       Side
	units      float64
	entryIndex int
	entryPrice float64
	entryCash  float64
	fees       float64
}

// Run fills every signal at the bar's close using all available equity. An
// entry opens a long; an exit closes it. With AllowShort an exit also opens a
// short and an entry covers it. A bar carrying both signals is ignored.
func Run(closes []float64, entries, exits []bool, cfg Config) (*Result, error) {
	if len(closes) == 0 {
		return nil, fmt.Errorf("%w: empty close series", ErrInput)
	}
	if len(entries) != len(closes) || len(exits) != len(closes) {
		return nil, fmt.Errorf("%w: %d closes, %d entries, %d exits", ErrInput, len(closes), len(entries), len(exits))
	}
	if cfg.InitCash <= 0 {
		return nil, fmt.Errorf("%w: initial cash must be positive", ErrInput)
	}
	if cfg.Fees < 0 || cfg.Fees >= 1 {
		return nil, fmt.Errorf("%w: fees must be in [0, 1)", ErrInput)
	}
	for i, c := range closes {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: close %v at bar %d", ErrInput, c, i)
		}
	}
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = DefaultConfig().PeriodsPerYear
	}

	res := &Result{Equity: make([]float64, len(closes))}
	cash := cfg.InitCash
	var pos *position
	var totalFees float64

	open := func(side Side, i int) {
		price := closes[i]
		equity := cash
		units := equity / (price * (1 + cfg.Fees))
		fee := units * price * cfg.Fees
		if side == Long {
			cash -= units*price + fee
		} else {
			cash += units*price - fee
		}
		totalFees += fee
		pos = &position{side: side, units: units, entryIndex: i, entryPrice: price, entryCash: equity, fees: fee}
	}
	closePos := func(i int) {
		price := closes[i]
		fee := pos.units * price * cfg.Fees
		if pos.side == Long {
			cash += pos.units*price - fee
		} else {
			cash -= pos.units*price + fee
		}
		totalFees += fee
		t := Trade{
			Side:       pos.side,
			EntryIndex: pos.entryIndex,
			ExitIndex:  i,
			EntryPrice: pos.entryPrice,
			ExitPrice:  price,
			Units:      pos.units,
			Fees:       pos.fees + fee,
			NetPnL:     cash - pos.entryCash,
		}
		t.ReturnPct = t.NetPnL / pos.entryCash
		res.Trades = append(res.Trades, t)
		pos = nil
	}

	for i := range closes {
		entry, exit := entries[i], exits[i]
		switch {
		case entry && exit:
		case entry:
			if pos != nil && pos.side == Short {
				closePos(i)
			}
			if pos == nil {
				open(Long, i)
			}
		case exit:
			if pos != nil && pos.side == Long {
				closePos(i)
			}
			if pos == nil && cfg.AllowShort {
				open(Short, i)
			}
		}
		res.Equity[i] = markToMarket(cash, pos, closes[i])
	}

	res.FinalEquity = res.Equity[len(res.Equity)-1]
	res.OpenPosition = pos != nil
	res.Metrics = metrics(res, closes, cfg, totalFees)
	return res, nil
}

func markToMarket(cash float64, pos *position, price float64) float64 {
	if pos == nil {
		return cash
	}
	if pos.side == Long {
		return cash + pos.units*price
	}
	return cash - pos.units*price
}

func metrics(res *Result, closes []float64, cfg Config, totalFees float64) Metrics {
	m := Metrics{
		TotalReturn:     res.FinalEquity/cfg.InitCash - 1,
		BenchmarkReturn: closes[len(closes)-1]/closes[0] - 1,
		TotalFees:       totalFees,
		NumTrades:       len(res.Trades),
	}

	peak := cfg.InitCash
	for _, e := range res.Equity {
		if e > peak {
			peak = e
		}
		if dd := (peak - e) / peak; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}
	}

	var wins int
	var winsAmt, lossAmt float64
	for _, t := range res.Trades {
		if t.NetPnL > 0 {
			wins++
			winsAmt += t.NetPnL
		} else {
			lossAmt += -t.NetPnL
		}
	}
	if n := len(res.Trades); n > 0 {
		m.WinRate = float64(wins) / float64(n)
	}
	switch {
	case lossAmt > 0:
		m.ProfitFactor = winsAmt / lossAmt
	case winsAmt > 0:
		m.ProfitFactor = math.Inf(1)
	}

	m.Sharpe = sharpe(res.Equity, cfg.InitCash, cfg.PeriodsPerYear)
	return m
}

// sharpe annualises the mean per-bar return over its standard deviation.
func sharpe(equity []float64, initCash, periodsPerYear float64) float64 {
	if len(equity) < 2 {
		return 0
	}
	rets := make([]float64, len(equity))
	prev := initCash
	for i, e := range equity {
		rets[i] = e/prev - 1
		prev = e
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var variance float64
	for _, r := range rets {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rets) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance) * math.Sqrt(periodsPerYear)
}
