package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/dinetab/table-reservation/internal/config"
	"github.com/dinetab/table-reservation/internal/handler"
	"github.com/dinetab/table-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints and the protected
// account routes. Unauthenticated operations live under /v1/auth;
// /v1/me sits behind the JWT middleware.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a refresh_token body or a bearer token, so it
	// stays outside the JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterRestaurants registers the restaurant read model and the
// employee-only onboarding endpoint. The public listing sits behind the
// Redis response cache; capacity counters served from it may trail the
// truth by one cache TTL, which is acceptable for a browse view.
func RegisterRestaurants(e *echo.Echo, h *handler.RestaurantHandler, jwtSecret string, rdb *redis.Client) {
	cacheCfg := config.LoadCacheConfig()
	e.GET("/v1/restaurants", h.List, middleware.NewRedisCache(cacheCfg, rdb))

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireEmployee())
	g.POST("/restaurants", h.Create)
}

// RegisterReservations registers the reservation lifecycle endpoints.
// Every route requires a valid JWT; the rate limiter keys on the
// authenticated username so one caller cannot starve another.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, rdb *redis.Client) {
	rlCfg := config.LoadRateLimitConfig()
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.NewTokenBucket(rlCfg, rdb),
	)
	g.GET("/reservations", h.List)
	g.POST("/reservations", h.Create)
	g.PUT("/reservations/:id", h.Update)
	g.PUT("/reservations/:id/status", h.UpdateStatus)
}
