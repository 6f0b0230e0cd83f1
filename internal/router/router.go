package router

import (
	"net/http"

	"github.com/cafeline/api/internal/config"
	"github.com/cafeline/api/internal/database"
	"github.com/cafeline/api/internal/events"
	"github.com/cafeline/api/internal/handler"
	"github.com/cafeline/api/internal/lifecycle"
	mw "github.com/cafeline/api/internal/middleware"
	"github.com/cafeline/api/internal/money"
	"github.com/cafeline/api/internal/service"
	"github.com/cafeline/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and café scoping; feature checks happen in the
// services so every caller of the engine gets them.
func New(cfg *config.Config, pool *pgxpool.Pool, hub *ws.Hub, pub events.Publisher, log logrus.FieldLogger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	queries := database.New(pool)
	engine := lifecycle.NewEngine(money.NewCalculator(cfg.TaxRate))
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, engine, cfg.DeliveryFee, pub, log)
	tableService := service.NewTableService(pool, func(db database.DBTX) service.TableStore {
		return database.New(db)
	}, pub, log)
	inventoryService := service.NewInventoryService(pool, func(db database.DBTX) service.InventoryStore {
		return database.New(db)
	}, pub, log)

	// Auth routes (public, throttled per client)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret, log)
	r.Group(func(r chi.Router) {
		r.Use(mw.NewRateLimiter(cfg.LoginRatePerMin).Limit)
		authHandler.RegisterRoutes(r)
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/cafes/{cid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, log, w, r)
	})

	orderHandler := handler.NewOrderHandler(orderService, log)
	paymentHandler := handler.NewPaymentHandler(orderService, log)
	tableHandler := handler.NewTableHandler(tableService, log)
	inventoryHandler := handler.NewInventoryHandler(inventoryService, log)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Cross-café listing for the platform role
		r.Get("/orders", orderHandler.ListAll)

		r.Route("/cafes/{cid}", func(r chi.Router) {
			r.Use(mw.RequireCafe)

			r.Route("/orders", func(r chi.Router) {
				orderHandler.RegisterRoutes(r)
				r.Route("/{id}/payments", paymentHandler.RegisterRoutes)
			})
			r.Route("/tables", tableHandler.RegisterRoutes)
			r.Route("/inventory", inventoryHandler.RegisterRoutes)
		})
	})

	log.Info("router initialized")
	return r
}
