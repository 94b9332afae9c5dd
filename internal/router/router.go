package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/relief-coordination/internal/config"
    "github.com/iliyamo/relief-coordination/internal/handler"
    "github.com/iliyamo/relief-coordination/internal/metrics"
    "github.com/iliyamo/relief-coordination/internal/middleware"
    "github.com/iliyamo/relief-coordination/internal/model"
)

// Deps carries everything the routes need.  Redis may be nil, in which case
// rate limiting and caching are disabled.
type Deps struct {
    Log         *zap.Logger
    Redis       *redis.Client
    RateLimit   config.RateLimitConfig
    Cache       config.CacheConfig
    Tokens      middleware.TokenValidator
    Accounts    middleware.AdminLoader
    DB          handler.Pinger
    Auth        *handler.AuthHandler
    Invitations *handler.InvitationHandler
    Donations   *handler.DonationHandler
    Admins      *handler.AdminHandler
    Public      *handler.PublicHandler
}

// New builds the echo instance with the error handler, the global
// middleware and every route.
func New(d Deps) *echo.Echo {
    e := echo.New()
    e.HideBanner = true
    e.HTTPErrorHandler = handler.ErrorHandler(d.Log)
    e.Use(middleware.RequestLogger(d.Log))
    e.Use(metrics.Middleware())
    e.Use(middleware.Recover(d.Log))

    RegisterRoutes(e, d)
    RegisterAuth(e, d)
    RegisterPublic(e, d)
    RegisterAdmin(e, d)
    return e
}

// RegisterRoutes exposes the health check and the Prometheus endpoint.
func RegisterRoutes(e *echo.Echo, d Deps) {
    e.GET("/healthz", handler.Health(d.DB))
    e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth registers the login flow under /api/auth.  The
// unauthenticated steps share a per-client token bucket.
func RegisterAuth(e *echo.Echo, d Deps) {
    limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)

    g := e.Group("/api/auth")
    g.POST("/login", d.Auth.Login, limit)
    g.POST("/verify-otp", d.Auth.VerifyOtp, limit)
    g.POST("/refresh", d.Auth.Refresh, limit)
    g.POST("/logout", d.Auth.Logout)
    g.GET("/me", d.Auth.Me, authenticated(d)...)
}

// RegisterPublic registers the unauthenticated endpoints: reference data
// (cached), donation intake and invitation acceptance (rate limited).
func RegisterPublic(e *echo.Echo, d Deps) {
    cache := middleware.NewRedisCache(d.Cache, d.Redis)
    limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log)

    e.GET("/api/provinces", d.Public.GetProvinces, cache)
    e.GET("/api/provinces/:id/cities", d.Public.GetCities, cache)
    e.POST("/api/donations", d.Donations.Create, limit)
    e.POST("/api/invitations/accept", d.Invitations.Accept, limit)
}

// RegisterAdmin registers the endpoints that need a live admin account.
// Middleware is attached per route; a group-level Use would also catch
// unmatched /api paths and answer them with 401 instead of 404.
func RegisterAdmin(e *echo.Echo, d Deps) {
    g := e.Group("/api")
    anyAdmin := authenticated(d)
    reviewers := append(authenticated(d), middleware.RequireRole(model.RoleSuperAdmin, model.RoleProvinceAdmin))
    super := append(authenticated(d), middleware.RequireRole(model.RoleSuperAdmin))

    g.POST("/invitations", d.Invitations.Create, reviewers...)
    g.GET("/invitations", d.Invitations.List, reviewers...)
    g.DELETE("/invitations/:id", d.Invitations.Revoke, reviewers...)

    // reads and distribution are limited to the caller's province or city
    // by the donation service
    g.GET("/donations", d.Donations.List, anyAdmin...)
    g.GET("/donations/:id", d.Donations.Get, anyAdmin...)
    g.POST("/donations/:id/approve", d.Donations.Approve, reviewers...)
    g.POST("/donations/:id/reject", d.Donations.Reject, reviewers...)
    g.POST("/donations/:id/distribute", d.Donations.Distribute, anyAdmin...)

    g.GET("/admins", d.Admins.List, super...)
    g.POST("/admins/:id/deactivate", d.Admins.Deactivate, super...)
}

func authenticated(d Deps) []echo.MiddlewareFunc {
    return []echo.MiddlewareFunc{middleware.JWTAuth(d.Tokens), middleware.LoadAdmin(d.Accounts)}
}
