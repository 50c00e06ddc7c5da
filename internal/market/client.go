// Package market downloads historical candles from Binance.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/rewired-gh/rugoracle/internal/logger"
	"github.com/rewired-gh/rugoracle/internal/models"
)

var ErrNoCandles = errors.New("exchange returned no candles")

// PageFunc fetches up to limit klines closing at or before endTime
// (milliseconds). An endTime of zero asks for the most recent bars.
type PageFunc func(ctx context.Context, symbol, interval string, limit int, endTime int64) ([]*binance.Kline, error)

// Client pages kline history from the exchange.
type Client struct {
	fetchPage PageFunc
}

// NewClient creates a Binance-backed client. Keys may be empty for public
// market data; baseURL overrides the default REST endpoint when set.
func NewClient(apiKey, secretKey, baseURL string) *Client {
	bc := binance.NewClient(apiKey, secretKey)
	if baseURL != "" {
		bc.BaseURL = baseURL
	}
	return NewClientWithPager(func(ctx context.Context, symbol, interval string, limit int, endTime int64) ([]*binance.Kline, error) {
		svc := bc.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
		if endTime > 0 {
			svc = svc.EndTime(endTime)
		}
		return svc.Do(ctx)
	})
}

// NewClientWithPager creates a client around a custom page source.
func NewClientWithPager(fetch PageFunc) *Client {
	return &Client{fetchPage: fetch}
}

// FetchCandles downloads up to total candles, newest page first, stepping
// backward in time. The result is sorted by open time with duplicates removed.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, pageSize, total int) ([]models.Candle, error) {
	if pageSize < 1 || total < 1 {
		return nil, fmt.Errorf("invalid paging: page size %d, total %d", pageSize, total)
	}

	var (
		candles []models.Candle
		endTime int64
		page    int
	)
	for len(candles) < total {
		limit := pageSize
		if remaining := total - len(candles); remaining < limit {
			limit = remaining
		}

		klines, err := c.fetchPage(ctx, symbol, interval, limit, endTime)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch klines page %d for %s: %w", page, symbol, err)
		}
		page++
		if len(klines) == 0 {
			break
		}

		oldest := klines[0].OpenTime
		for _, k := range klines {
			cdl, err := klineToCandle(k)
			if err != nil {
				return nil, fmt.Errorf("failed to parse kline at %d: %w", k.OpenTime, err)
			}
			candles = append(candles, cdl)
			if k.OpenTime < oldest {
				oldest = k.OpenTime
			}
		}
		logger.Debug("Fetched page %d: %d klines for %s %s", page, len(klines), symbol, interval)

		if len(klines) < limit {
			break
		}
		endTime = oldest - 1
	}

	if len(candles) == 0 {
		return nil, ErrNoCandles
	}

	candles = models.SortCandles(candles)
	if len(candles) > total {
		candles = candles[len(candles)-total:]
	}
	logger.Info("Downloaded %d %s candles for %s in %d pages", len(candles), interval, symbol, page)
	return candles, nil
}

func klineToCandle(k *binance.Kline) (models.Candle, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	values := make([]float64, len(fields))
	for i, s := range fields {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return models.Candle{}, err
		}
		values[i] = d.InexactFloat64()
	}
	return models.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     values[0],
		High:     values[1],
		Low:      values[2],
		Close:    values[3],
		Volume:   values[4],
	}, nil
}
