package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskBacktester/internal/adapters/logger"
	"riskBacktester/internal/ports"
)

var hour = time.Hour.Milliseconds()

// klineServer serves hourly klines starting at the requested startTime.
func klineServer(t *testing.T, total int, first int64) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fapi/v1/ping":
			fmt.Fprint(w, "{}")
		case "/fapi/v1/klines":
			calls++
			q := r.URL.Query()
			startTime, _ := strconv.ParseInt(q.Get("startTime"), 10, 64)
			endTime, _ := strconv.ParseInt(q.Get("endTime"), 10, 64)
			limit, _ := strconv.Atoi(q.Get("limit"))

			var rows []string
			for i := 0; i < total && len(rows) < limit; i++ {
				open := first + int64(i)*hour
				if open < startTime || open > endTime {
					continue
				}
				price := 100 + float64(i)
				rows = append(rows, fmt.Sprintf(`[%d,"%g","%g","%g","%g","10",%d,"1000",5,"5","500","0"]`,
					open, price, price+1, price-1, price+0.5, open+hour-1))
			}
			fmt.Fprintf(w, "[%s]", strings.Join(rows, ","))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestClient_GetBarsPaginates(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	srv, calls := klineServer(t, 10, first)

	client, err := New(Config{BaseURL: srv.URL, PageLimit: 4, Logger: logger.Nop{}})
	require.NoError(t, err)

	start := time.UnixMilli(first)
	bars, err := client.GetBars(context.Background(), "BTCUSDT", "1h", start, start.Add(8*time.Hour))
	require.NoError(t, err)

	// [start, end) keeps eight hourly bars
	require.Len(t, bars, 8)
	assert.Equal(t, 2, *calls)
	assert.True(t, bars[0].Timestamp.Equal(start))
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 101.0, bars[0].High)
	assert.Equal(t, 99.0, bars[0].Low)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 10.0, bars[0].Volume)
	for i := 1; i < len(bars); i++ {
		assert.Equal(t, time.Hour, bars[i].Timestamp.Sub(bars[i-1].Timestamp))
	}
}

func TestClient_GetBarsInvalidRange(t *testing.T) {
	client, err := New(Config{BaseURL: "http://127.0.0.1:0", Logger: logger.Nop{}})
	require.NoError(t, err)

	now := time.Now()
	_, err = client.GetBars(context.Background(), "BTCUSDT", "1h", now, now)
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
}

func TestClient_Ping(t *testing.T) {
	srv, _ := klineServer(t, 0, 0)
	client, err := New(Config{BaseURL: srv.URL, Logger: logger.Nop{}})
	require.NoError(t, err)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestClient_APIErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantErr error
	}{
		{name: "rate limited", code: -1003, wantErr: ports.ErrRateLimited},
		{name: "bad signature", code: -1022, wantErr: ports.ErrAuthenticationFailed},
		{name: "bad interval", code: -1120, wantErr: ports.ErrInvalidRequest},
		{name: "unknown", code: -9999, wantErr: ports.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, `{"code":%d,"msg":"rejected"}`, tt.code)
			}))
			defer srv.Close()

			client, err := New(Config{BaseURL: srv.URL, Logger: logger.Nop{}})
			require.NoError(t, err)

			start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			_, err = client.GetBars(context.Background(), "BTCUSDT", "1h", start, start.Add(time.Hour))
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
