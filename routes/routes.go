package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/engine-gateway/app"
	"github.com/upb/engine-gateway/handlers"
	"github.com/upb/engine-gateway/middleware"
	"github.com/upb/engine-gateway/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", handlers.HeaderCalculationID, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rootHandler := handlers.NewRootHandler(cfg.ProjectName, cfg.Version, deps.Logger)
	healthHandler := handlers.NewHealthHandler(deps.Calculations, deps.Gateway, deps.Logger)
	engineHandler := handlers.NewEngineHandler(deps.Gateway, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.UserService, deps.Logger)
	itemHandler := handlers.NewItemHandler(deps.ItemService, deps.Logger)

	r.Get("/", rootHandler.HandleRoot)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Engine operations
		r.Route("/engine", func(r chi.Router) {
			if deps.RateLimiter != nil && deps.RateLimiter.Enabled() {
				r.Use(middleware.NewRateLimitMiddleware(deps.RateLimiter, deps.Metrics, deps.Logger).Limit)
			}
			r.Get("/status", engineHandler.HandleStatus)
			r.Get("/calculations", engineHandler.HandleListCalculations)
			r.Get("/calculations/{id}", engineHandler.HandleGetCalculation)
			r.Post("/add", engineHandler.HandleAdd)
			r.Post("/multiply", engineHandler.HandleMultiply)
			r.Post("/factorial", engineHandler.HandleFactorial)
			r.Post("/process-string", engineHandler.HandleProcessString)
			r.Post("/sum-array", engineHandler.HandleSumArray)
		})

		// User management
		r.Route("/users", func(r chi.Router) {
			r.Post("/", userHandler.HandleCreateUser)
			r.Get("/", userHandler.HandleListUsers)
			r.Get("/{id}", userHandler.HandleGetUser)
			r.Delete("/{id}", userHandler.HandleDeleteUser)
		})

		// Items
		r.Route("/items", func(r chi.Router) {
			r.Post("/", itemHandler.HandleCreateItem)
			r.Get("/", itemHandler.HandleListItems)
			r.Get("/{id}", itemHandler.HandleGetItem)
			r.Put("/{id}", itemHandler.HandleUpdateItem)
			r.Delete("/{id}", itemHandler.HandleDeleteItem)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
