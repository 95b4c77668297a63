package handlers

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"hinan-bknd/internal/models"
	"hinan-bknd/internal/observability"
	"hinan-bknd/internal/services"
	"hinan-bknd/internal/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PlaceHandler struct {
	service *services.PlaceService
	metrics *observability.Metrics
	logr    *zap.Logger
}

func NewPlaceHandler(svc *services.PlaceService, metrics *observability.Metrics, logr *zap.Logger) *PlaceHandler {
	return &PlaceHandler{service: svc, metrics: metrics, logr: logr}
}

// GET /api/v1/places?category=&q=&source=
func (h *PlaceHandler) ListPlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := models.PlaceFilterParams{
		Category: strings.TrimSpace(q.Get("category")),
		Query:    strings.TrimSpace(q.Get("q")),
	}
	for _, src := range utils.ParseQueryList(q, "source") {
		if !slices.Contains(models.Sources(), src) {
			writeError(w, http.StatusBadRequest, "unknown source: "+src)
			return
		}
		params.Sources = append(params.Sources, src)
	}

	start := time.Now()
	places, err := h.service.Query(r.Context(), params)
	h.metrics.PlaceQueries.WithLabelValues("list").Inc()
	h.metrics.PlaceQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		h.logr.Error("failed to query places", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query places")
		return
	}

	views := make([]models.PlaceView, len(places))
	for i, p := range places {
		views[i] = models.NewPlaceView(p)
	}

	writeJSON(w, http.StatusOK, models.PlaceListResponse{
		Success:          true,
		Data:             views,
		Total:            len(views),
		Categories:       h.service.Categories(),
		SelectedCategory: params.Category,
		Q:                params.Query,
	})
}

// GET /api/v1/places/categories
func (h *PlaceHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": h.service.Categories()})
}

// GET /api/v1/places/{id}
func (h *PlaceHandler) GetPlaceByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid place id")
		return
	}

	h.metrics.PlaceQueries.WithLabelValues("detail").Inc()
	place, err := h.service.GetPlaceByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrPlaceNotFound) {
			writeError(w, http.StatusNotFound, "place not found")
			return
		}
		h.logr.Error("failed to fetch place", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to fetch place")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": models.NewPlaceView(*place)})
}
