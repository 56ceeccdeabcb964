package yahoo

import "time"

// Config 描述 Yahoo 行情源运行所需的参数。
type Config struct {
	BaseURL     string
	ProxyURL    string
	UserAgent   string
	HTTPTimeout time.Duration
	MaxRetries  int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = "https://query1.finance.yahoo.com"
	}
	if out.UserAgent == "" {
		// 不带浏览器 UA 会被拒
		out.UserAgent = "Mozilla/5.0"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 20 * time.Second
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = 2
	}
	return out
}
