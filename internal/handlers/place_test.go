package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"hinan-bknd/internal/database"
	"hinan-bknd/internal/models"
	"hinan-bknd/internal/observability"
	"hinan-bknd/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPlaceRouter(t *testing.T) (http.Handler, *services.PlaceService, *observability.Metrics) {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	svc := services.NewPlaceService(db)
	m := observability.NewMetricsForTesting()
	h := NewPlaceHandler(svc, m, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/places", h.ListPlaces)
	r.Get("/places/categories", h.GetCategories)
	r.Get("/places/{id}", h.GetPlaceByID)
	return r, svc, m
}

func seedPlaces(t *testing.T, svc *services.PlaceService) []models.Place {
	t.Helper()
	lat, lng := 35.6947, 139.9827
	places := []models.Place{
		{Source: models.SourceShelter, Category: models.CategoryShelter, Name: "Funabashi High", Address: "船橋市本町2-1"},
		{Source: models.SourceShelter, Category: models.CategoryShelter, Name: "Funabashi Elementary", Address: "船橋市本町1-1"},
		{Source: models.SourceEvacuationSite, Category: models.CategoryEvacuationSite, Name: "中央公園", Address: "船橋市湊町2-1", Lat: &lat, Lng: &lng},
		{Source: models.SourceStrandedSupport, Category: models.CategoryStrandedSupport, Name: "船橋駅前ビル", Address: "船橋市本町7-1-1"},
	}
	for i := range places {
		places[i].SyncedAt = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, svc.Create(context.Background(), &places[i]))
	}
	return places
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListPlaces_QueryAndCategory(t *testing.T) {
	h, svc, m := newPlaceRouter(t)
	seedPlaces(t, svc)

	rec := get(h, "/places?category="+url.QueryEscape(models.CategoryShelter)+"&q=funabashi")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp models.PlaceListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Funabashi Elementary", resp.Data[0].Name)
	assert.Equal(t, "Funabashi High", resp.Data[1].Name)
	assert.Equal(t, models.Categories(), resp.Categories)
	assert.Equal(t, models.CategoryShelter, resp.SelectedCategory)
	assert.Equal(t, "funabashi", resp.Q)
	assert.Contains(t, resp.Data[0].MapURL, "google.com/maps")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlaceQueries.WithLabelValues("list")))
}

func TestListPlaces_All(t *testing.T) {
	h, svc, _ := newPlaceRouter(t)
	seedPlaces(t, svc)

	rec := get(h, "/places")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PlaceListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, models.CategoryStrandedSupport, resp.Data[0].Category)
	assert.Equal(t, "https://www.google.com/maps?q=35.6947,139.9827", resp.Data[1].MapURL)
}

func TestListPlaces_EmptyResultIsArray(t *testing.T) {
	h, _, _ := newPlaceRouter(t)

	rec := get(h, "/places?q=nothing")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestListPlaces_SourceFilter(t *testing.T) {
	h, svc, _ := newPlaceRouter(t)
	seedPlaces(t, svc)

	rec := get(h, "/places?source=hinanbasyo,kitakukonnan")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.PlaceListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	rec = get(h, "/places?source=hospital")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown source")
}

func TestGetPlaceByID(t *testing.T) {
	h, svc, _ := newPlaceRouter(t)
	places := seedPlaces(t, svc)

	rec := get(h, "/places/"+strconv.FormatInt(places[2].ID, 10))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool             `json:"success"`
		Data    models.PlaceView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "中央公園", resp.Data.Name)
	assert.Equal(t, "https://www.google.com/maps?q=35.6947,139.9827", resp.Data.MapURL)

	tests := []struct {
		target string
		status int
	}{
		{"/places/99999", http.StatusNotFound},
		{"/places/abc", http.StatusBadRequest},
		{"/places/-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestGetCategories(t *testing.T) {
	h, _, _ := newPlaceRouter(t)

	rec := get(h, "/places/categories")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"避難所", "避難場所", "帰宅困難者支援施設"}, resp.Data)
}
