package settings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"smartflow/internal/config"
)

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "smartflow.toml")
	engine := gin.New()
	NewRouter(path).Register(engine.Group("/api/config"))
	return engine, path
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGetReturnsDefaults(t *testing.T) {
	h, _ := newTestRouter(t)
	w := send(h, http.MethodGet, "/api/config", "")
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d %s", w.Code, w.Body.String())
	}
	var resp ConfigResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Symbols) != 2 || resp.Risk.Equity != 10000 {
		t.Fatalf("unexpected defaults: %+v", resp)
	}
}

func TestUpdateSymbolsAndWeights(t *testing.T) {
	h, path := newTestRouter(t)
	if w := send(h, http.MethodPut, "/api/config/symbols", `{"symbols":["solusdt"," ","bnbusdt"]}`); w.Code != http.StatusOK {
		t.Fatalf("symbols: %d %s", w.Code, w.Body.String())
	}
	if w := send(h, http.MethodPut, "/api/config/weights/smallcap", `{"breakout":0.2,"volume":0.2,"oi":0.2,"delta":0.2,"funding":0.2}`); w.Code != http.StatusOK {
		t.Fatalf("weights: %d %s", w.Code, w.Body.String())
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(cfg.App.Symbols) != 2 || cfg.App.Symbols[0] != "SOLUSDT" || cfg.App.Symbols[1] != "BNBUSDT" {
		t.Fatalf("symbols not persisted: %v", cfg.App.Symbols)
	}
	if cfg.Weights["smallcap"].Delta != 0.2 {
		t.Fatalf("weights not persisted: %+v", cfg.Weights)
	}
}

func TestRejectsBadInput(t *testing.T) {
	h, _ := newTestRouter(t)
	cases := []struct {
		method, path, body string
		code               int
	}{
		{http.MethodPut, "/api/config/symbols", `{"symbols":[" "]}`, http.StatusBadRequest},
		{http.MethodPut, "/api/config/symbols", `{}`, http.StatusBadRequest},
		{http.MethodPut, "/api/config/weights/megacap", `{}`, http.StatusNotFound},
		{http.MethodPut, "/api/config/weights/largecap", `{"breakout":-1}`, http.StatusBadRequest},
		{http.MethodPut, "/api/config/risk", `{"risk_pct":5}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if w := send(h, tc.method, tc.path, tc.body); w.Code != tc.code {
			t.Fatalf("%s %s: got %d want %d (%s)", tc.method, tc.path, w.Code, tc.code, w.Body.String())
		}
	}
}

func TestTiersMeta(t *testing.T) {
	h, _ := newTestRouter(t)
	w := send(h, http.MethodGet, "/api/config/meta/tiers", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"BTCUSDT"`) || !strings.Contains(w.Body.String(), `"smallcap"`) {
		t.Fatalf("tiers: %d %s", w.Code, w.Body.String())
	}
}
