package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"maglens/internal/dashboard/ui"
	"maglens/internal/export"
	"maglens/internal/logger"
	"maglens/internal/market"
	"maglens/internal/snapshot"

	"github.com/gin-gonic/gin"
)

// HTTPServer 提供 Gin 接口：快照查询、后台刷新、图表页与导出。
type HTTPServer struct {
	addr      string
	svc       *Service
	capturer  *snapshot.Capturer
	router    *gin.Engine
	indexHTML []byte
}

type HTTPConfig struct {
	Addr     string
	Svc      *Service
	Capturer *snapshot.Capturer
}

func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.Svc == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8930"
	}
	staticFS, err := ui.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("加载前端静态资源失败: %w", err)
	}
	indexHTML, err := ui.Index()
	if err != nil {
		return nil, fmt.Errorf("加载前端首页失败: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.StaticFS("/static", staticFS)

	s := &HTTPServer{
		addr:      cfg.Addr,
		svc:       cfg.Svc,
		capturer:  cfg.Capturer,
		router:    router,
		indexHTML: indexHTML,
	}
	s.registerRoutes()
	return s, nil
}

func (s *HTTPServer) registerRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/charts/:view", s.handleChart)
	api := s.router.Group("/api/dashboard")
	api.GET("/snapshot", s.handleSnapshot)
	api.POST("/refresh", s.handleRefresh)
	api.GET("/jobs", s.handleJobs)
	api.GET("/jobs/:id", s.handleJobStatus)
	api.GET("/export/xlsx", s.handleExportExcel)
	api.GET("/export/csv", s.handleExportCSV)
	api.GET("/export/png", s.handleExportPNG)
}

func (s *HTTPServer) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.indexHTML)
}

// rangeFrom 解析 start/end 查询参数，非法时直接写 400。
func (s *HTTPServer) rangeFrom(c *gin.Context) (market.Range, bool) {
	rng, err := s.svc.ParseRange(c.Query("start"), c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return market.Range{}, false
	}
	return rng, true
}

func (s *HTTPServer) handleSnapshot(c *gin.Context) {
	rng, ok := s.rangeFrom(c)
	if !ok {
		return
	}
	snap := s.svc.Snapshot(c.Request.Context(), rng, false)
	c.JSON(http.StatusOK, snap)
}

func (s *HTTPServer) handleRefresh(c *gin.Context) {
	var p RefreshParams
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	job, err := s.svc.SubmitRefresh(p)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job": job})
}

func (s *HTTPServer) handleJobStatus(c *gin.Context) {
	id := c.Param("id")
	job, ok := s.svc.JobSnapshot(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (s *HTTPServer) handleJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.svc.JobsSnapshot()})
}

func (s *HTTPServer) handleChart(c *gin.Context) {
	rng, ok := s.rangeFrom(c)
	if !ok {
		return
	}
	v, err := s.svc.View(c.Request.Context(), c.Param("view"), rng, false)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := RenderChart(c.Writer, v); err != nil {
		logger.Errorf("[dashboard] 渲染图表页失败: %v", err)
	}
}

// viewTableFrom 解析 view/start/end 并取组合表，错误时已写响应。
func (s *HTTPServer) viewTableFrom(c *gin.Context) (string, market.Range, bool) {
	view := c.DefaultQuery("view", ViewMag7)
	if !knownView(view) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("未知视图: %s", view)})
		return "", market.Range{}, false
	}
	rng, ok := s.rangeFrom(c)
	if !ok {
		return "", market.Range{}, false
	}
	return view, rng, true
}

func (s *HTTPServer) handleExportExcel(c *gin.Context) {
	view, rng, ok := s.viewTableFrom(c)
	if !ok {
		return
	}
	tb, err := s.svc.ViewTable(c.Request.Context(), view, rng, false)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	data, err := export.Excel(tb, view)
	if errors.Is(err, export.ErrNoRows) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(view, "xlsx", time.Now())))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (s *HTTPServer) handleExportCSV(c *gin.Context) {
	view, rng, ok := s.viewTableFrom(c)
	if !ok {
		return
	}
	tb, err := s.svc.ViewTable(c.Request.Context(), view, rng, false)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	body, err := export.CSV(tb, s.svc.renderOptions())
	if errors.Is(err, export.ErrNoRows) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(view, "csv", time.Now())))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(body))
}

func (s *HTTPServer) handleExportPNG(c *gin.Context) {
	if s.capturer == nil || !s.capturer.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": snapshot.ErrDisabled.Error()})
		return
	}
	view, rng, ok := s.viewTableFrom(c)
	if !ok {
		return
	}
	v, err := s.svc.View(c.Request.Context(), view, rng, false)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if v.Empty {
		c.JSON(http.StatusConflict, gin.H{"error": export.ErrNoRows.Error()})
		return
	}

	q := url.Values{}
	if start := c.Query("start"); start != "" {
		q.Set("start", start)
	}
	if end := c.Query("end"); end != "" {
		q.Set("end", end)
	}
	pageURL := s.selfURL("/charts/" + view)
	if len(q) > 0 {
		pageURL += "?" + q.Encode()
	}
	data, err := s.capturer.Capture(c.Request.Context(), pageURL, "canvas")
	if errors.Is(err, snapshot.ErrDisabled) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(view, "png", time.Now())))
	c.Data(http.StatusOK, "image/png", data)
}

// selfURL 拼出本机可达的页面地址，截图用。
func (s *HTTPServer) selfURL(path string) string {
	addr := s.addr
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr + path
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
