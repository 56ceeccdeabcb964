package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"maglens/internal/market"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := New(Config{BaseURL: srv.URL, HTTPTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("构造 source 失败: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fetchReq(interval string) market.FetchRequest {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	return market.FetchRequest{
		Ticker:   "NVDA",
		Range:    market.Range{Start: start, End: start.AddDate(0, 0, 5)},
		Interval: interval,
	}
}

// TestFetchSeriesParsesAdjclose 优先取 adjclose；null（停牌）与 0 观测被跳过。
func TestFetchSeriesParsesAdjclose(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC).Unix()
	var gotPath, gotQuery string
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		fmt.Fprintf(w, `{"chart":{"result":[{
			"meta":{"timezone":"EST","exchangeTimezoneName":"America/New_York"},
			"timestamp":[%d,%d,%d,%d],
			"indicators":{
				"quote":[{"close":[99.0,98.0,0,108.0]}],
				"adjclose":[{"adjclose":[100.0,null,0,110.0]}]
			}}],"error":null}}`,
			base, base+1800, base+3600, base+5400)
	})

	req := fetchReq("30m")
	got, err := s.FetchSeries(ctx, req)
	if err != nil {
		t.Fatalf("FetchSeries 失败: %v", err)
	}
	if gotPath != "/v8/finance/chart/NVDA" {
		t.Fatalf("请求路径不符, 实际=%q", gotPath)
	}
	for _, frag := range []string{
		"interval=30m",
		fmt.Sprintf("period1=%d", req.Range.Start.Unix()),
		fmt.Sprintf("period2=%d", req.Range.End.Unix()),
	} {
		if !strings.Contains(gotQuery, frag) {
			t.Fatalf("请求参数应包含 %q, 实际=%q", frag, gotQuery)
		}
	}

	if got.Name != "NVDA" {
		t.Fatalf("序列名应为 ticker, 实际=%q", got.Name)
	}
	if got.Len() != 2 {
		t.Fatalf("null 与 0 观测应被跳过, 应剩 2 个点, 实际=%d", got.Len())
	}
	if !got.Points[0].Time.Equal(time.Unix(base, 0)) || got.Points[0].Value != 100 {
		t.Fatalf("首点不符, 实际=%+v", got.Points[0])
	}
	if !got.Points[1].Time.Equal(time.Unix(base+5400, 0)) || got.Points[1].Value != 110 {
		t.Fatalf("末点不符, 实际=%+v", got.Points[1])
	}
	if loc := got.Points[0].Time.Location(); loc != time.UTC {
		t.Fatalf("原始序列应为 UTC 瞬时值, 实际时区=%v", loc)
	}
}

// TestFetchSeriesFallsBackToClose 应答缺 adjclose 时回落到 quote.close。
func TestFetchSeriesFallsBackToClose(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC).Unix()
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"chart":{"result":[{
			"timestamp":[%d,%d],
			"indicators":{"quote":[{"close":[50.5,51.5]}]}}],"error":null}}`,
			base, base+1800)
	})

	got, err := s.FetchSeries(ctx, fetchReq("30m"))
	if err != nil {
		t.Fatalf("FetchSeries 失败: %v", err)
	}
	if got.Len() != 2 || got.Points[0].Value != 50.5 || got.Points[1].Value != 51.5 {
		t.Fatalf("close 回落解析不符, 实际=%+v", got.Points)
	}
}

func TestFetchSeriesAPIError(t *testing.T) {
	ctx := context.Background()
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	})

	_, err := s.FetchSeries(ctx, fetchReq("1d"))
	if err == nil || !strings.Contains(err.Error(), "yahoo api error") {
		t.Fatalf("应返回 api error, 实际=%v", err)
	}
	if st := s.Stats(); st.Failures != 1 || st.LastError == "" {
		t.Fatalf("失败应计入 stats, 实际=%+v", st)
	}
}

func TestFetchSeriesNoData(t *testing.T) {
	ctx := context.Background()
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[],"indicators":{}}],"error":null}}`)
	})
	_, err := s.FetchSeries(ctx, fetchReq("1d"))
	if err == nil || !strings.Contains(err.Error(), "no data") {
		t.Fatalf("空应答应报 no data, 实际=%v", err)
	}
}

// TestFetchSeriesRetryOn429 限频应答退避后重试，成功后 stats 记录两次请求一次重试。
func TestFetchSeriesRetryOn429(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 14, 30, 0, 0, time.UTC).Unix()
	calls := 0
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprintf(w, `{"chart":{"result":[{
			"timestamp":[%d],
			"indicators":{"adjclose":[{"adjclose":[100.0]}]}}],"error":null}}`, base)
	})

	got, err := s.FetchSeries(ctx, fetchReq("30m"))
	if err != nil {
		t.Fatalf("重试后应成功, 实际=%v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("重试后应解析出 1 个点, 实际=%d", got.Len())
	}
	if st := s.Stats(); st.Requests != 2 || st.Retries != 1 {
		t.Fatalf("stats 应为 2 次请求 1 次重试, 实际=%+v", st)
	}
}

// TestFetchSeriesNoRetryOn404 4xx（限频除外）不重试，直接失败。
func TestFetchSeriesNoRetryOn404(t *testing.T) {
	ctx := context.Background()
	calls := 0
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := s.FetchSeries(ctx, fetchReq("1d"))
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("应报 404, 实际=%v", err)
	}
	if calls != 1 {
		t.Fatalf("404 不应重试, 实际请求 %d 次", calls)
	}
}

func TestFetchSeriesValidation(t *testing.T) {
	ctx := context.Background()
	calls := 0
	s := newTestSource(t, func(w http.ResponseWriter, r *http.Request) { calls++ })

	cases := []market.FetchRequest{
		{Ticker: "", Interval: "1d", Range: market.LastDays(5)},
		{Ticker: "NVDA", Interval: "", Range: market.LastDays(5)},
		{Ticker: "NVDA", Interval: "1d"}, // 零值区间
	}
	for i, req := range cases {
		if _, err := s.FetchSeries(ctx, req); err == nil {
			t.Fatalf("用例 %d 应校验失败", i)
		}
	}
	if calls != 0 {
		t.Fatalf("校验失败不应发请求, 实际请求 %d 次", calls)
	}
}
