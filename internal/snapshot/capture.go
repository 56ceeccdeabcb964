package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"maglens/internal/logger"
)

// ErrDisabled 截图功能未启用。
var ErrDisabled = errors.New("截图功能未启用")

// Config headless Chrome 截图配置。
type Config struct {
	Enabled bool
	// ExecPath 浏览器可执行文件路径，留空用系统默认。
	ExecPath string
	Timeout  time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.Timeout <= 0 {
		out.Timeout = 20 * time.Second
	}
	return out
}

// Capturer 用 headless Chrome 渲染图表页面并导出 PNG。
type Capturer struct {
	cfg Config
}

func New(cfg Config) *Capturer {
	return &Capturer{cfg: cfg.withDefaults()}
}

// Enabled 截图功能是否开启。
func (c *Capturer) Enabled() bool { return c.cfg.Enabled }

// Capture 打开 pageURL，等 waitSelector 可见后整页截图。
// 功能未开启时返回 ErrDisabled。
func (c *Capturer) Capture(ctx context.Context, pageURL, waitSelector string) ([]byte, error) {
	if !c.cfg.Enabled {
		return nil, ErrDisabled
	}
	if waitSelector == "" {
		waitSelector = "canvas"
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancelRun := context.WithTimeout(browserCtx, c.cfg.Timeout)
	defer cancelRun()

	logger.Debugf("[snapshot] 截图 %s (等待 %s)", pageURL, waitSelector)
	var buf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		// 图表有入场动画，稍等一拍再截。
		chromedp.Sleep(300*time.Millisecond),
		chromedp.FullScreenshot(&buf, 90),
	)
	if err != nil {
		return nil, fmt.Errorf("页面截图失败: %w", err)
	}
	return buf, nil
}
