package routes

import (
	"net/http"

	"hinan-bknd/internal/auth"
	"hinan-bknd/internal/config"
	"hinan-bknd/internal/handlers"
	"hinan-bknd/internal/logger"
	mdlwr "hinan-bknd/internal/middleware"
	"hinan-bknd/internal/models"
	"hinan-bknd/internal/observability"
	"hinan-bknd/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *observability.Metrics
	JWT      *auth.JWTManager
	Places   *services.PlaceService
	Auth     *services.AuthService
	Importer handlers.ImportRunner
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authMW := mdlwr.NewAuthMiddleware(d.JWT, d.Auth, d.Logger.Named("auth"))

	authHandler := handlers.NewAuthHandler(d.Auth, d.Logger.Named("auth"), d.Config)
	placeHandler := handlers.NewPlaceHandler(d.Places, d.Metrics, d.Logger.Named("places"))
	importHandler := handlers.NewImportHandler(d.Importer, d.Logger.Named("import"))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {

		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.LoginLocal)
			r.Post("/ldap", authHandler.LoginLDAP)
			// refresh and logout authenticate with the refresh token itself
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		r.Route("/places", func(r chi.Router) {
			r.Get("/", placeHandler.ListPlaces)
			r.Get("/categories", placeHandler.GetCategories)
			r.Get("/{id}", placeHandler.GetPlaceByID)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authMW.JWTAuth)
			r.Use(mdlwr.RequireRole(models.RoleAdmin))
			r.Post("/import", importHandler.RunImport)
		})
	})

	return r
}
