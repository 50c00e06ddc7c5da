package market

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hourMs = int64(time.Hour / time.Millisecond)

// fakeExchange serves an hourly series of n bars ending at the newest open time.
type fakeExchange struct {
	newest   int64
	n        int
	calls    int
	endTimes []int64
}

func (f *fakeExchange) page(_ context.Context, _, _ string, limit int, endTime int64) ([]*binance.Kline, error) {
	f.calls++
	f.endTimes = append(f.endTimes, endTime)

	oldest := f.newest - int64(f.n-1)*hourMs
	last := f.newest
	if endTime > 0 && endTime < last {
		last = endTime - endTime%hourMs
		if last > endTime {
			last -= hourMs
		}
	}
	var out []*binance.Kline
	for t := last; t >= oldest && len(out) < limit; t -= hourMs {
		price := strconv.FormatInt(t/hourMs%1000, 10) + ".5"
		out = append([]*binance.Kline{{
			OpenTime: t, Open: price, High: price, Low: price, Close: price, Volume: "1.25",
		}}, out...)
	}
	return out, nil
}

func TestFetchCandles_PagesBackward(t *testing.T) {
	newest := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	ex := &fakeExchange{newest: newest, n: 5000}
	c := NewClientWithPager(ex.page)

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1h", 100, 1000)
	require.NoError(t, err)
	require.Len(t, candles, 1000)
	assert.Equal(t, 10, ex.calls)

	assert.Equal(t, int64(0), ex.endTimes[0])
	for i := 1; i < len(ex.endTimes); i++ {
		assert.Less(t, ex.endTimes[i], newest, "page %d must move back in time", i)
		if i > 1 {
			assert.Less(t, ex.endTimes[i], ex.endTimes[i-1])
		}
	}

	for i := 1; i < len(candles); i++ {
		assert.Equal(t, time.Hour, candles[i].OpenTime.Sub(candles[i-1].OpenTime), "gap at %d", i)
	}
	assert.Equal(t, newest, candles[len(candles)-1].OpenTime.UnixMilli())
	assert.InDelta(t, 1.25, candles[0].Volume, 1e-12)
}

func TestFetchCandles_ShortHistoryStops(t *testing.T) {
	ex := &fakeExchange{newest: 100 * hourMs * 1000, n: 250}
	c := NewClientWithPager(ex.page)

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1h", 100, 1000)
	require.NoError(t, err)
	assert.Len(t, candles, 250)
	assert.Equal(t, 3, ex.calls)
}

func TestFetchCandles_TrimsToTotal(t *testing.T) {
	ex := &fakeExchange{newest: 100 * hourMs * 1000, n: 1000}
	c := NewClientWithPager(ex.page)

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1h", 100, 150)
	require.NoError(t, err)
	assert.Len(t, candles, 150)
}

func TestFetchCandles_DedupsOverlap(t *testing.T) {
	bar := func(ms int64) *binance.Kline {
		return &binance.Kline{OpenTime: ms, Open: "1", High: "1", Low: "1", Close: "1", Volume: "1"}
	}
	calls := 0
	c := NewClientWithPager(func(context.Context, string, string, int, int64) ([]*binance.Kline, error) {
		calls++
		switch calls {
		case 1:
			return []*binance.Kline{bar(3 * hourMs), bar(4 * hourMs)}, nil
		case 2:
			// 3h is served again
			return []*binance.Kline{bar(2 * hourMs), bar(3 * hourMs)}, nil
		}
		return nil, nil
	})

	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "1h", 2, 10)
	require.NoError(t, err)
	require.Len(t, candles, 3)
	assert.Equal(t, 2*hourMs, candles[0].OpenTime.UnixMilli())
	assert.Equal(t, 4*hourMs, candles[2].OpenTime.UnixMilli())
}

func TestFetchCandles_Errors(t *testing.T) {
	boom := errors.New("boom")
	c := NewClientWithPager(func(context.Context, string, string, int, int64) ([]*binance.Kline, error) {
		return nil, boom
	})
	_, err := c.FetchCandles(context.Background(), "BTCUSDT", "1h", 100, 1000)
	assert.ErrorIs(t, err, boom)

	empty := NewClientWithPager(func(context.Context, string, string, int, int64) ([]*binance.Kline, error) {
		return nil, nil
	})
	_, err = empty.FetchCandles(context.Background(), "BTCUSDT", "1h", 100, 1000)
	assert.ErrorIs(t, err, ErrNoCandles)

	bad := NewClientWithPager(func(context.Context, string, string, int, int64) ([]*binance.Kline, error) {
		return []*binance.Kline{{OpenTime: 1, Open: "x", High: "1", Low: "1", Close: "1", Volume: "1"}}, nil
	})
	_, err = bad.FetchCandles(context.Background(), "BTCUSDT", "1h", 100, 1000)
	assert.Error(t, err)

	_, err = empty.FetchCandles(context.Background(), "BTCUSDT", "1h", 0, 1000)
	assert.Error(t, err)
}
