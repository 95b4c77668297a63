package routes

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hinan-bknd/internal/auth"
	"hinan-bknd/internal/config"
	"hinan-bknd/internal/database"
	"hinan-bknd/internal/importer"
	"hinan-bknd/internal/logger"
	"hinan-bknd/internal/models"
	"hinan-bknd/internal/observability"
	"hinan-bknd/internal/services"
	"hinan-bknd/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	handler http.Handler
	authSvc *services.AuthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwtMgr := auth.NewJWTManagerFromKeys(key, &key.PublicKey, "hinan-bknd")

	cfg := &config.Config{
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		AllowedOrigins:  []string{"http://localhost:5173"},
	}
	logr := &logger.Logger{Logger: zap.NewNop()}
	metrics := observability.NewMetricsForTesting()
	placeSvc := services.NewPlaceService(db)
	authSvc := services.NewAuthService(db, jwtMgr, cfg, zap.NewNop())

	h := NewRouter(Deps{
		Config:   cfg,
		Logger:   logr,
		Metrics:  metrics,
		JWT:      jwtMgr,
		Places:   placeSvc,
		Auth:     authSvc,
		Importer: importer.New(placeSvc, source.NewRouter(nil), zap.NewNop(), importer.WithMetrics(metrics)),
	})
	return &testServer{handler: h, authSvc: authSvc}
}

func (s *testServer) do(method, target, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email string, roles []string) string {
	t.Helper()
	_, err := s.authSvc.EnsureOperator(context.Background(), email, "op", "pw", roles)
	require.NoError(t, err)
	rec := s.do(http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"pw"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func importBody(t *testing.T) string {
	t.Helper()
	dir := filepath.Join("..", "importer", "testdata")
	b, err := json.Marshal(map[string]any{
		"hinanjo":      filepath.Join(dir, "hinanjo.csv"),
		"hinanbasyo":   filepath.Join(dir, "hinanbasyo.csv"),
		"kitakukonnan": filepath.Join(dir, "kitakukonnan.csv"),
		"truncate":     true,
	})
	require.NoError(t, err)
	return string(b)
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = s.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminImportThenBrowse(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/v1/admin/import", importBody(t), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	viewer := s.login(t, "viewer@example.jp", []string{models.RoleViewer})
	rec = s.do(http.MethodPost, "/api/v1/admin/import", importBody(t), viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := s.login(t, "admin@example.jp", []string{models.RoleAdmin})
	rec = s.do(http.MethodPost, "/api/v1/admin/import", importBody(t), admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var imp struct {
		Data importer.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imp))
	assert.Equal(t, 9, imp.Data.Total)

	rec = s.do(http.MethodGet, "/api/v1/places?q=%E5%85%AC%E5%9C%92", "", "") // 公園
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.PlaceListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.Total)

	rec = s.do(http.MethodGet, "/api/v1/places/categories", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/places/999999", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminImportMissingFile(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@example.jp", []string{models.RoleAdmin})

	body := `{"hinanjo":"/nonexistent/a.csv","hinanbasyo":"b.csv","kitakukonnan":"c.csv"}`
	rec := s.do(http.MethodPost, "/api/v1/admin/import", body, admin)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "/nonexistent/a.csv")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/places", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
