package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/palisade-fi/zapgate/config"
	"github.com/palisade-fi/zapgate/internal/admission"
	"github.com/palisade-fi/zapgate/internal/amm"
	"github.com/palisade-fi/zapgate/internal/api"
	"github.com/palisade-fi/zapgate/internal/deposit"
	"github.com/palisade-fi/zapgate/internal/oracle"
	"github.com/palisade-fi/zapgate/internal/roles"
	"github.com/palisade-fi/zapgate/internal/stats"
)

type healthyPrimary struct{}

func (healthyPrimary) Healthy(context.Context) bool { return true }
func (healthyPrimary) CurrentPrice(context.Context) (math.LegacyDec, error) {
	return math.LegacyNewDec(1), nil
}
func (healthyPrimary) CachedMarketCap(context.Context) (math.Int, error) {
	return math.NewInt(1_000_000), nil
}
func (healthyPrimary) CheckMarketCapLimits(context.Context) error { return nil }

func newTestServer(t *testing.T, apiCfg config.APIConfig) (*api.Server, *deposit.Orchestrator) {
	t.Helper()

	pool, err := amm.NewReferencePool(amm.ReferencePoolConfig{
		Token0:   "upaw",
		Token1:   "uusd",
		Reserve0: math.NewInt(50_000_000),
		Reserve1: math.NewInt(50_000_000),
	})
	require.NoError(t, err)

	ctrl, err := admission.NewController(admission.DefaultRateLimitConfig(), admission.DefaultBreakerConfig(), nil)
	require.NoError(t, err)

	depCfg := deposit.DefaultConfig()
	depCfg.GatewayAccount = "gateway"
	depCfg.DepositDenom = "upaw"
	depCfg.CounterDenom = "uusd"
	depCfg.MaxDeposit = math.NewInt(10_000_000)

	orch, err := deposit.NewOrchestrator(depCfg, deposit.Deps{
		Router:    pool,
		Pool:      pool,
		Bank:      pool,
		Head:      amm.NewManualHead(100),
		Admission: ctrl,
		Resolver:  oracle.NewResolver(oracle.DefaultResolverConfig(), healthyPrimary{}, nil, nil, nil),
		Store:     stats.NewMemoryStore(),
		Auth: roles.NewStaticAuthorizer(map[roles.Capability][]string{
			roles.Governance: {"governor"},
		}),
		LPDenom: pool.LPDenom(),
	})
	require.NoError(t, err)

	if apiCfg.Timeout == 0 {
		apiCfg.Timeout = 5 * time.Second
	}
	return api.NewServer(apiCfg, orch, nil), orch
}

func get(t *testing.T, s *api.Server, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w.Code, body
}

func TestHealthReflectsPauseState(t *testing.T) {
	s, orch := newTestServer(t, config.APIConfig{})

	code, body := get(t, s, "/health")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, false, body["paused"])

	require.NoError(t, orch.Pause("governor"))
	code, body = get(t, s, "/health")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["paused"])
}

func TestCanDepositEndpoint(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{})

	tests := []struct {
		name     string
		path     string
		wantCode int
		allowed  bool
	}{
		{"missing caller", "/api/v1/deposit/can?amount=1000", http.StatusBadRequest, false},
		{"missing amount", "/api/v1/deposit/can?caller=alice", http.StatusBadRequest, false},
		{"non-numeric amount", "/api/v1/deposit/can?caller=alice&amount=abc", http.StatusBadRequest, false},
		{"negative amount", "/api/v1/deposit/can?caller=alice&amount=-5", http.StatusBadRequest, false},
		{"admissible", "/api/v1/deposit/can?caller=alice&amount=1000", http.StatusOK, true},
		{"over maximum", "/api/v1/deposit/can?caller=alice&amount=99000000", http.StatusOK, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, body := get(t, s, tc.path)
			require.Equal(t, tc.wantCode, code)
			if code == http.StatusOK {
				require.Equal(t, tc.allowed, body["allowed"])
				if !tc.allowed {
					require.NotEmpty(t, body["reason"])
				}
			}
		})
	}
}

func TestStatusEndpoints(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{})

	code, body := get(t, s, "/api/v1/oracle/status")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, body)

	code, body = get(t, s, "/api/v1/breaker/status")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, false, body["triggered"])
}

func TestStatsEndpoints(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{})

	code, body := get(t, s, "/api/v1/stats/user/nobody")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(0), body["deposit_count"])

	code, body = get(t, s, "/api/v1/stats/protocol")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(0), body["deposit_count"])
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{CORSOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodOptions, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitReturns429(t *testing.T) {
	s, _ := newTestServer(t, config.APIConfig{RateLimit: 1})

	// Burst is twice the per-second rate, so the third immediate request
	// must be shed.
	var last int
	for i := 0; i < 3; i++ {
		last, _ = get(t, s, "/health")
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}
