package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/0111v/projeto-faculdade/api/controllers"
	"github.com/0111v/projeto-faculdade/api/middleware"
	"github.com/0111v/projeto-faculdade/internal/auth"
	"github.com/0111v/projeto-faculdade/internal/cart"
	"github.com/0111v/projeto-faculdade/internal/checkout"
	"github.com/0111v/projeto-faculdade/internal/media"
	"github.com/0111v/projeto-faculdade/internal/orders"
	"github.com/0111v/projeto-faculdade/internal/products"
	"github.com/0111v/projeto-faculdade/pkg/auth/session"
	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/enums"
	"github.com/0111v/projeto-faculdade/pkg/logger"
	"github.com/0111v/projeto-faculdade/pkg/metrics"
	pkgredis "github.com/0111v/projeto-faculdade/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (session.Session, error)
	Revoke(context.Context, string) error
}

// redisStore is the slice of the redis client used by the HTTP middleware chain.
type redisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(context.Context) error
}

// Params holds everything the HTTP surface needs. Media is nil when image uploads are disabled.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    redisStore
	Sessions sessionManager
	Profiles middleware.RoleLookup

	Auth     auth.Service
	Products products.Service
	Media    media.Service
	Cart     cart.Service
	Orders   orders.Service
	Checkout checkout.Service

	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Metrics(p.HTTPMetrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	authed := middleware.Auth(cfg.JWT, p.Sessions, logg)
	adminOnly := middleware.RequireRole(enums.UserRoleAdmin, p.Profiles, logg)
	throttle := middleware.RateLimit(p.Redis, cfg.RateLimit.Limit, cfg.RateLimit.Window, logg)
	idempotent := middleware.Idempotency(p.Redis, middleware.DefaultIdempotentRoutes(), logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": p.DB,
			"redis":    p.Redis,
		}))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(p.Gatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg)).Post("/register", controllers.AuthRegister(p.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(p.Sessions, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Sessions, p.Profiles, cfg.JWT, logg))
		r.With(authed).Get("/me", controllers.AuthMe(p.Auth, logg))
	})

	r.Get("/products", controllers.ProductList(p.Products, logg))
	r.Get("/products/{id}", controllers.ProductGet(p.Products, logg))

	r.Group(func(r chi.Router) {
		r.Use(authed, throttle, idempotent)

		r.Get("/cart", controllers.CartList(p.Cart, logg))
		r.Post("/cart", controllers.CartAdd(p.Cart, logg))
		r.Delete("/cart", controllers.CartClear(p.Cart, logg))
		r.Put("/cart/{id}", controllers.CartUpdate(p.Cart, logg))
		r.Delete("/cart/{id}", controllers.CartDelete(p.Cart, logg))

		r.Get("/orders", controllers.OrderList(p.Orders, logg))
		r.Post("/orders", controllers.OrderCheckout(p.Checkout, logg))
		r.Get("/orders/{id}", controllers.OrderDetail(p.Orders, logg))

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/products", controllers.ProductCreate(p.Products, logg))
			r.Post("/products/images", controllers.ProductImageUpload(p.Media, cfg.Media.MaxUploadBytes(), logg))
			r.Put("/products/{id}", controllers.ProductUpdate(p.Products, logg))
			r.Delete("/products/{id}", controllers.ProductDelete(p.Products, logg))
			r.Get("/admin/orders", controllers.AdminOrderList(p.Orders, logg))
		})
	})

	return r
}
