// Package api 暴露触发分析的 HTTP 接口与 /metrics。
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"smartflow/internal/gateway/database"
	"smartflow/internal/logger"
	"smartflow/internal/strategy"
	"smartflow/internal/strategy/ict"
	v3 "smartflow/internal/strategy/v3"
)

type V3Analyzer interface {
	Analyze(ctx context.Context, symbol string) v3.Analysis
}

type ICTAnalyzer interface {
	Analyze(ctx context.Context, symbol string) ict.Signal
	Exit(ctx context.Context, symbol string, in ict.ExitInputs) ict.ExitDecision
}

// RecordReader 只读查询已落库的结果。
type RecordReader interface {
	Recent(ctx context.Context, q database.RecordQuery) ([]strategy.Record, error)
}

// PriceSource 实时成交价，用于补全出场请求缺失的 current_price。
type PriceSource interface {
	LastPrice(symbol string, maxAge time.Duration) (float64, bool)
}

// RouteRegistrar 额外挂载的路由组（例如配置接口）。
type RouteRegistrar interface {
	Register(group *gin.RouterGroup)
}

type Config struct {
	Addr    string
	V3      V3Analyzer
	ICT     ICTAnalyzer
	Records RecordReader
	Metrics http.Handler
	Prices  PriceSource
	// Settings 挂载到 /api/config，可为 nil。
	Settings RouteRegistrar
	// Timeout 单次请求的分析超时。
	Timeout time.Duration
}

// Server gin 路由与 http.Server 的组合。
type Server struct {
	cfg    Config
	router *gin.Engine
	srv    *http.Server
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.V3 == nil && cfg.ICT == nil {
		return nil, errors.New("至少需要一个策略引擎")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{cfg: cfg, router: router}
	s.registerRoutes()
	s.srv = &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.cfg.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.cfg.Metrics))
	}
	api := s.router.Group("/api")
	if s.cfg.V3 != nil {
		api.GET("/v3/:symbol", s.handleV3)
	}
	if s.cfg.ICT != nil {
		api.POST("/ict/exit", s.handleICTExit)
		api.GET("/ict/:symbol", s.handleICT)
	}
	if s.cfg.Records != nil {
		api.GET("/records", s.handleRecords)
	}
	if s.cfg.Settings != nil {
		s.cfg.Settings.Register(api.Group("/config"))
	}
}

// Run 阻塞直到 ctx 结束或监听失败。
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("[http] 监听 %s", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleV3(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Timeout)
	defer cancel()
	c.JSON(http.StatusOK, s.cfg.V3.Analyze(ctx, symbol))
}

func (s *Server) handleICT(c *gin.Context) {
	symbol, ok := symbolParam(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Timeout)
	defer cancel()
	c.JSON(http.StatusOK, s.cfg.ICT.Analyze(ctx, symbol))
}

type exitRequest struct {
	Symbol string `json:"symbol" binding:"required"`
	ict.ExitInputs
}

func (s *Server) handleICTExit(c *gin.Context) {
	var req exitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	switch req.Position {
	case ict.SignalLong, ict.SignalShort, ict.SignalNone:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "position 必须为 LONG/SHORT/NONE"})
		return
	}
	if req.CurrentPrice <= 0 && s.cfg.Prices != nil {
		if p, ok := s.cfg.Prices.LastPrice(req.Symbol, time.Minute); ok {
			req.CurrentPrice = p
		}
	}
	if req.Position != ict.SignalNone && req.CurrentPrice <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 current_price"})
		return
	}
	c.JSON(http.StatusOK, s.cfg.ICT.Exit(c.Request.Context(), req.Symbol, req.ExitInputs))
}

func (s *Server) handleRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := s.cfg.Records.Recent(c.Request.Context(), database.RecordQuery{
		Strategy: c.Query("strategy"),
		Symbol:   c.Query("symbol"),
		Limit:    limit,
	})
	if err != nil {
		logger.Errorf("[http] 查询记录失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []strategy.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

func symbolParam(c *gin.Context) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol"})
		return "", false
	}
	for _, ch := range symbol {
		if !((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 只能包含字母与数字"})
			return "", false
		}
	}
	return symbol, true
}
