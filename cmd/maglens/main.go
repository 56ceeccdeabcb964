package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maglens/internal/config"
	"maglens/internal/dashboard"
	"maglens/internal/gateway/yahoo"
	"maglens/internal/logger"
	"maglens/internal/market"
	"maglens/internal/snapshot"
	"maglens/internal/store"
	"maglens/internal/table"
)

func main() {
	var (
		cfgPath = flag.String("config", "configs/maglens.toml", "配置文件路径")
		dump    = flag.Bool("dump", false, "拉取一次行情，把各视图表格打到 stdout 后退出")
		start   = flag.String("start", "", "区间开始 (YYYY-MM-DD)")
		end     = flag.String("end", "", "区间结束 (YYYY-MM-DD，含当天)")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Infof("[main] 未找到配置文件 %s，使用内置默认配置", *cfgPath)
		cfg = config.Default()
	} else if err != nil {
		logger.Errorf("[main] 加载配置失败: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	src, err := yahoo.New(yahoo.Config{
		BaseURL:     cfg.Provider.BaseURL,
		ProxyURL:    cfg.Provider.ProxyURL,
		HTTPTimeout: cfg.ProviderTimeout(),
		MaxRetries:  cfg.Provider.MaxRetries,
	})
	if err != nil {
		logger.Errorf("[main] 初始化行情源失败: %v", err)
		os.Exit(1)
	}
	cache, err := buildCache(cfg)
	if err != nil {
		logger.Errorf("[main] 初始化缓存失败: %v", err)
		os.Exit(1)
	}
	svc, err := dashboard.NewService(cfg, src, cache)
	if err != nil {
		logger.Errorf("[main] 初始化服务失败: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	if *dump {
		if err := dumpTables(svc, cfg, *start, *end); err != nil {
			logger.Errorf("[main] %v", err)
			os.Exit(1)
		}
		return
	}

	capturer := snapshot.New(snapshot.Config{
		Enabled:  cfg.Snapshot.Enabled,
		ExecPath: cfg.Snapshot.ExecPath,
		Timeout:  cfg.SnapshotTimeout(),
	})
	server, err := dashboard.NewHTTPServer(dashboard.HTTPConfig{
		Addr:     cfg.ListenAddr,
		Svc:      svc,
		Capturer: capturer,
	})
	if err != nil {
		logger.Errorf("[main] 初始化 HTTP 服务失败: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("[main] maglens 已启动，监听 %s", cfg.ListenAddr)
	if err := server.Start(ctx); err != nil {
		logger.Errorf("[main] HTTP 服务退出: %v", err)
		os.Exit(1)
	}
	logger.Infof("[main] maglens 已退出")
}

func buildCache(cfg config.Settings) (store.SeriesCache, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		return store.NewSQLiteSeriesCache(cfg.Cache.Path, cfg.CacheTTL())
	default:
		return store.NewMemorySeriesCache(cfg.CacheTTL()), nil
	}
}

// dumpTables 控制台模式：每个视图打一张组合表，最后列出告警。
func dumpTables(svc *dashboard.Service, cfg config.Settings, start, end string) error {
	rng, err := svc.ParseRange(start, end)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	snap := svc.Snapshot(ctx, rng, false)
	opts := table.RenderOptions{DateOnly: !market.Intraday(cfg.Interval)}
	for _, id := range dashboard.ViewIDs() {
		tb, err := svc.ViewTable(ctx, id, rng, false)
		if err != nil {
			return err
		}
		fmt.Printf("\n== %s ==\n", id)
		if tb.Empty() {
			fmt.Println("(无数据)")
			continue
		}
		fmt.Println(tb.Render(opts))
	}
	for _, w := range snap.Warnings {
		fmt.Println("警告:", w)
	}
	return nil
}
