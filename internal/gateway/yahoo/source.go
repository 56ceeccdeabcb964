package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"maglens/internal/logger"
	"maglens/internal/market"
)

// Source 实现 market.Source，对接 Yahoo Finance v8 chart 接口。
// 价格字段优先取 adjclose（调整后收盘价），缺失时回落到 close。
type Source struct {
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	stats market.SourceStats
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	transport := &http.Transport{}
	if final.ProxyURL != "" {
		u, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("代理地址非法: %w", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &Source{
		cfg:        final,
		httpClient: &http.Client{Timeout: final.HTTPTimeout, Transport: transport},
	}, nil
}

// chartResponse 是 v8 chart 接口的应答结构。
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Timezone             string `json:"timezone"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote    []chartQuote    `json:"quote"`
		Adjclose []chartAdjclose `json:"adjclose"`
	} `json:"indicators"`
}

type chartQuote struct {
	Close []*float64 `json:"close"`
}

type chartAdjclose struct {
	Adjclose []*float64 `json:"adjclose"`
}

func (s *Source) FetchSeries(ctx context.Context, req market.FetchRequest) (market.Series, error) {
	ticker := strings.TrimSpace(req.Ticker)
	if ticker == "" {
		return market.Series{}, fmt.Errorf("ticker is required")
	}
	interval := strings.TrimSpace(req.Interval)
	if interval == "" {
		return market.Series{Name: ticker}, fmt.Errorf("interval is required")
	}
	if !req.Range.Valid() {
		return market.Series{Name: ticker}, fmt.Errorf("invalid range for %s", ticker)
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=%s&events=history",
		s.cfg.BaseURL, url.PathEscape(ticker), req.Range.Start.Unix(), req.Range.End.Unix(), interval)
	logger.Debugf("[yahoo] GET %s", u)

	body, err := s.get(ctx, u)
	if err != nil {
		s.recordFailure(err)
		return market.Series{Name: ticker}, err
	}
	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		err = fmt.Errorf("yahoo decode: %w", err)
		s.recordFailure(err)
		return market.Series{Name: ticker}, err
	}
	if chart.Chart.Error != nil {
		err = fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
		s.recordFailure(err)
		return market.Series{Name: ticker}, err
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		err = fmt.Errorf("yahoo: no data for %s", ticker)
		s.recordFailure(err)
		return market.Series{Name: ticker}, err
	}

	result := chart.Chart.Result[0]
	values := closesOf(result)
	out := market.Series{Name: ticker}
	for i, ts := range result.Timestamp {
		if i >= len(values) {
			break
		}
		v := values[i]
		if v == nil || *v == 0 {
			// 停牌/节假日返回 null 或全零观测，直接跳过
			continue
		}
		out.Points = append(out.Points, market.Point{Time: time.Unix(ts, 0).UTC(), Value: *v})
	}
	out.Sort()
	return out, nil
}

// closesOf 优先取调整后收盘价。
func closesOf(r chartResult) []*float64 {
	if len(r.Indicators.Adjclose) > 0 && len(r.Indicators.Adjclose[0].Adjclose) > 0 {
		return r.Indicators.Adjclose[0].Adjclose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}

// get 带限次重试的 GET：429 与 5xx 退避后重试，其余状态直接失败。
func (s *Source) get(ctx context.Context, u string) ([]byte, error) {
	attempts := s.cfg.MaxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			s.recordRetry()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)
		s.recordRequest()
		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("yahoo: status %s", resp.Status)
			logger.Warnf("[yahoo] %s, 准备第 %d 次重试", resp.Status, attempt+1)
			continue
		default:
			return nil, fmt.Errorf("yahoo: status %s", resp.Status)
		}
	}
	return nil, lastErr
}

func (s *Source) recordRequest() {
	s.mu.Lock()
	s.stats.Requests++
	s.mu.Unlock()
}

func (s *Source) recordRetry() {
	s.mu.Lock()
	s.stats.Retries++
	s.mu.Unlock()
}

func (s *Source) recordFailure(err error) {
	s.mu.Lock()
	s.stats.Failures++
	s.stats.LastError = err.Error()
	s.mu.Unlock()
}

func (s *Source) Stats() market.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Source) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
