package container

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdugdh24/yuno-backend/internal/config"
	"github.com/gdugdh24/yuno-backend/internal/delivery/http/middleware"
	"github.com/gdugdh24/yuno-backend/internal/logging"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logging.Init(logging.Config{Output: io.Discard})
	os.Exit(m.Run())
}

func memoryConfig(seedPath string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: []string{"*"}},
		JWT:     config.JWTConfig{AccessSecret: secret},
		Storage: config.StorageConfig{Type: config.StorageMemory, Path: seedPath},
		Spatial: config.SpatialConfig{Backend: config.SpatialMemory, CellSizeKm: 5},
		Discovery: config.DiscoveryConfig{
			DefaultRadiusKm: 10,
			MaxRadiusKm:     100,
			DefaultLimit:    20,
			MaxLimit:        100,
		},
		Realtime: config.RealtimeConfig{
			BroadcastRadiusKm:   20,
			DiscoverRadiusKm:    20,
			MaxDiscoverRadiusKm: 100,
			EventsPerSecond:     10,
			EventBurst:          20,
			SendBuffer:          16,
		},
	}
}

func TestNewContainer_MemoryBackends(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(seed, []byte(`[
		{"id": 1, "name": "Asha", "city": "Mumbai", "interests": ["music"], "latitude": 19.0760, "longitude": 72.8777},
		{"id": 2, "name": "Ravi", "city": "Mumbai", "interests": ["music"], "latitude": 19.0770, "longitude": 72.8777},
		{"id": 3, "name": "Far", "latitude": 28.6139, "longitude": 77.2090}
	]`), 0o600))

	app, err := NewContainer(memoryConfig(seed))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Redis)
	require.NotNil(t, app.Hub)
	require.NotNil(t, app.Server)

	token, err := middleware.NewAuthMiddleware(secret).IssueToken(1, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/discover", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	app.Server.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"name":"Ravi"`)
	assert.NotContains(t, w.Body.String(), `"name":"Far"`)
}

func TestNewContainer_MissingSeedFile(t *testing.T) {
	_, err := NewContainer(memoryConfig(filepath.Join(t.TempDir(), "missing.json")))
	assert.Error(t, err)
}

func TestDiscoveryConfig_Fallback(t *testing.T) {
	cfg := discoveryConfig(config.DiscoveryConfig{
		DefaultRadiusKm:   10,
		FallbackEnabled:   true,
		FallbackLatitude:  19.0760,
		FallbackLongitude: 72.8777,
	})
	assert.True(t, cfg.Fallback.Enabled)
	assert.InDelta(t, 72.8777, cfg.Fallback.Origin.Lng, 1e-9)

	cfg = discoveryConfig(config.DiscoveryConfig{FallbackLatitude: 1})
	assert.False(t, cfg.Fallback.Enabled)
}
