// Package config 加载 smartflow 的 TOML/YAML 配置并补齐默认值。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"smartflow/internal/decision"
	v3 "smartflow/internal/strategy/v3"
)

type Config struct {
	App        AppConfig                   `toml:"app" yaml:"app"`
	Binance    BinanceConfig               `toml:"binance" yaml:"binance"`
	Database   DatabaseConfig              `toml:"database" yaml:"database"`
	HTTP       HTTPConfig                  `toml:"http" yaml:"http"`
	Risk       decision.RiskConfig         `toml:"risk" yaml:"risk"`
	Categories map[string][]string         `toml:"categories" yaml:"categories"`
	Weights    map[string]v3.FactorWeights `toml:"weights" yaml:"weights"`
}

type AppConfig struct {
	LogLevel     string   `toml:"log_level" yaml:"log_level"`
	Symbols      []string `toml:"symbols" yaml:"symbols"`
	ScanInterval string   `toml:"scan_interval" yaml:"scan_interval"`
	Strategies   []string `toml:"strategies" yaml:"strategies"`
}

type BinanceConfig struct {
	RESTBaseURL       string `toml:"rest_base_url" yaml:"rest_base_url"`
	WSBaseURL         string `toml:"ws_base_url" yaml:"ws_base_url"`
	TimeoutSeconds    int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	RateLimitPerMin   int    `toml:"rate_limit_per_min" yaml:"rate_limit_per_min"`
	EnableDeltaStream bool   `toml:"enable_delta_stream" yaml:"enable_delta_stream"`
	ProxyURL          string `toml:"proxy_url" yaml:"proxy_url"`
}

type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type HTTPConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Default 所有字段取默认值的配置。
func Default() Config {
	var c Config
	c.withDefaults()
	return c
}

// Load 按扩展名解析 TOML 或 YAML；文件不存在时返回默认配置。
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := Unmarshal(path, b, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c.withDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv 在文件配置之上应用环境变量覆盖。
func LoadWithEnv(path string) (Config, error) {
	c, err := Load(path)
	if err != nil {
		return c, err
	}
	if v := os.Getenv("SMARTFLOW_SYMBOLS"); v != "" {
		c.App.Symbols = splitSymbols(v)
	}
	if v := os.Getenv("SMARTFLOW_LOG_LEVEL"); v != "" {
		c.App.LogLevel = v
	}
	if v := os.Getenv("SMARTFLOW_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("SMARTFLOW_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	return c, nil
}

// Unmarshal 依据文件扩展名选择解码器，默认 TOML。
func Unmarshal(path string, b []byte, out *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, out)
	default:
		return toml.Unmarshal(b, out)
	}
}

// Marshal 与 Unmarshal 对称。
func Marshal(path string, c Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(c)
	default:
		return toml.Marshal(c)
	}
}

func (c *Config) withDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if len(c.App.Symbols) == 0 {
		c.App.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	for i, s := range c.App.Symbols {
		c.App.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if c.App.ScanInterval == "" {
		c.App.ScanInterval = "15m"
	}
	if len(c.App.Strategies) == 0 {
		c.App.Strategies = []string{"v3", "ict"}
	}
	if c.Binance.RESTBaseURL == "" {
		c.Binance.RESTBaseURL = "https://fapi.binance.com"
	}
	if c.Binance.WSBaseURL == "" {
		c.Binance.WSBaseURL = "wss://fstream.binance.com/stream"
	}
	if c.Binance.TimeoutSeconds <= 0 {
		c.Binance.TimeoutSeconds = 10
	}
	if c.Binance.RateLimitPerMin <= 0 {
		c.Binance.RateLimitPerMin = 1200
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/smartflow.db"
	}
	c.Risk = decision.NormalizeRiskConfig(c.Risk)
}

// Validate 检查无法补默认值的字段。
func (c Config) Validate() error {
	for _, s := range c.App.Strategies {
		switch strings.ToLower(s) {
		case "v3", "ict":
		default:
			return fmt.Errorf("app.strategies: unknown strategy %q", s)
		}
	}
	for name := range c.Categories {
		if !knownCategory(name) {
			return fmt.Errorf("categories: unknown tier %q", name)
		}
	}
	for name, w := range c.Weights {
		if !knownCategory(name) {
			return fmt.Errorf("weights: unknown tier %q", name)
		}
		for _, f := range v3.Factors {
			if w.Of(f) < 0 {
				return fmt.Errorf("weights.%s.%s must be >= 0", name, f)
			}
		}
	}
	return nil
}

// Enabled 判断某个策略是否启用。
func (c Config) Enabled(strategy string) bool {
	for _, s := range c.App.Strategies {
		if strings.EqualFold(s, strategy) {
			return true
		}
	}
	return false
}

// WeightResolver 以默认分层为底，叠加配置里的分层列表与权重表。
func (c Config) WeightResolver() *v3.StaticWeights {
	sw := v3.DefaultWeights()
	for tier, symbols := range c.Categories {
		for _, s := range symbols {
			sw.Tiers[strings.ToUpper(strings.TrimSpace(s))] = v3.Category(tier)
		}
	}
	for tier, w := range c.Weights {
		if !w.IsZero() {
			sw.Table[v3.Category(tier)] = w
		}
	}
	return sw
}

func knownCategory(name string) bool {
	switch v3.Category(name) {
	case v3.CategoryLargeCap, v3.CategoryMidCap, v3.CategorySmallCap:
		return true
	}
	return false
}

func splitSymbols(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
