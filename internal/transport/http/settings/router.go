// Package settings 提供读取与修改运行配置的接口，写入经 writer 备份后原子替换。
package settings

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"smartflow/internal/config"
	"smartflow/internal/config/writer"
	"smartflow/internal/decision"
	"smartflow/internal/logger"
	v3 "smartflow/internal/strategy/v3"
)

// Router handles config API endpoints
type Router struct {
	writer *writer.ConfigWriter
}

func NewRouter(configPath string) *Router {
	return &Router{writer: writer.NewConfigWriter(configPath)}
}

// Register registers the config API routes
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("", r.handleGet)
	group.PUT("/symbols", r.handleSymbols)
	group.PUT("/risk", r.handleRisk)
	group.PUT("/weights/:tier", r.handleWeights)
	group.GET("/meta/tiers", r.handleTiers)
}

// ConfigResponse 对外可见的配置子集，不含连接参数。
type ConfigResponse struct {
	Symbols      []string                    `json:"symbols"`
	ScanInterval string                      `json:"scan_interval"`
	Strategies   []string                    `json:"strategies"`
	Risk         decision.RiskConfig         `json:"risk"`
	Categories   map[string][]string         `json:"categories"`
	Weights      map[string]v3.FactorWeights `json:"weights"`
}

type symbolsRequest struct {
	Symbols []string `json:"symbols" binding:"required"`
}

func (r *Router) handleGet(c *gin.Context) {
	cfg, err := r.writer.Read()
	if err != nil {
		logger.Errorf("[config-api] read failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toResponse(cfg))
}

func (r *Router) handleSymbols(c *gin.Context) {
	var req symbolsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	symbols := normalizeSymbols(req.Symbols)
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols 不能为空"})
		return
	}
	r.update(c, "symbols", func(cfg *config.Config) error {
		cfg.App.Symbols = symbols
		return nil
	})
}

func (r *Router) handleRisk(c *gin.Context) {
	var req decision.RiskConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	if req.RiskPct > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "risk_pct 为比例，必须 <= 1"})
		return
	}
	r.update(c, "risk", func(cfg *config.Config) error {
		cfg.Risk = decision.NormalizeRiskConfig(req)
		return nil
	})
}

func (r *Router) handleWeights(c *gin.Context) {
	tier := strings.ToLower(strings.TrimSpace(c.Param("tier")))
	if !validTier(tier) {
		c.JSON(http.StatusNotFound, gin.H{"error": "未知分层: " + tier})
		return
	}
	var req v3.FactorWeights
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	r.update(c, "weights."+tier, func(cfg *config.Config) error {
		if cfg.Weights == nil {
			cfg.Weights = make(map[string]v3.FactorWeights)
		}
		cfg.Weights[tier] = req
		return nil
	})
}

func (r *Router) handleTiers(c *gin.Context) {
	cfg, err := r.writer.Read()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	wr := cfg.WeightResolver()
	tiers := make([]gin.H, 0, 3)
	for _, cat := range []v3.Category{v3.CategoryLargeCap, v3.CategoryMidCap, v3.CategorySmallCap} {
		var symbols []string
		for sym, c := range wr.Tiers {
			if c == cat {
				symbols = append(symbols, sym)
			}
		}
		sort.Strings(symbols)
		tiers = append(tiers, gin.H{"tier": cat, "symbols": symbols, "weights": wr.Weights(cat)})
	}
	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

func (r *Router) update(c *gin.Context, what string, fn func(*config.Config) error) {
	if err := r.writer.Update(fn); err != nil {
		logger.Errorf("[config-api] update %s failed: %v", what, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("[config-api] %s updated by %s", what, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "配置已写入"})
}

func toResponse(cfg config.Config) ConfigResponse {
	return ConfigResponse{
		Symbols:      cfg.App.Symbols,
		ScanInterval: cfg.App.ScanInterval,
		Strategies:   cfg.App.Strategies,
		Risk:         cfg.Risk,
		Categories:   cfg.Categories,
		Weights:      cfg.Weights,
	}
}

func validTier(tier string) bool {
	switch v3.Category(tier) {
	case v3.CategoryLargeCap, v3.CategoryMidCap, v3.CategorySmallCap:
		return true
	}
	return false
}

func normalizeSymbols(symbols []string) []string {
	var out []string
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
