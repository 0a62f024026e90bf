// Package router registers the HTTP routes of the service.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spacebook/reservation-core/internal/config"
	"github.com/spacebook/reservation-core/internal/handler"
	"github.com/spacebook/reservation-core/internal/middleware"
)

// Deps bundles what the routes need.  Redis may be nil, which disables
// the rate limiter and the response cache.
type Deps struct {
	Reservations *handler.ReservationHandler
	Withdrawals  *handler.WithdrawHandler
	Events       http.Handler
	JWTSecret    string
	Redis        *redis.Client
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
	Logger       *zap.Logger
}

// RegisterRoutes registers unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAPI registers the reservation, withdrawal and event routes.
func RegisterAPI(e *echo.Echo, d Deps) {
	auth := middleware.JWTAuth(d.JWTSecret)
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	limit := middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Logger)

	if d.Events != nil {
		e.GET("/ws", echo.WrapHandler(d.Events))
	}

	r := e.Group("/api/reservation")
	r.GET("/getallreservation", d.Reservations.ListAll, cache)
	r.GET("/getspacespecificreservation/:spaceId", d.Reservations.ListBySpace, cache)
	r.GET("/getreviews/:spaceId", d.Reservations.ListReviews, cache)

	ra := r.Group("", auth)
	ra.POST("/createReservation", d.Reservations.Create)
	ra.POST("/createCustomReservation", d.Reservations.CreateCustom)
	ra.POST("/postreview", d.Reservations.PostReview)
	ra.GET("/get", d.Reservations.ListOwned)
	ra.GET("/get/:reservationId", d.Reservations.Get)
	ra.GET("/getuserreservation", d.Reservations.ListMine)
	ra.PATCH("/cancel", d.Reservations.Cancel)
	ra.PATCH("/confirm", d.Reservations.Confirm)
	ra.PATCH("/reserved", d.Reservations.MarkReserved)

	w := e.Group("/api/withdraw", auth)
	w.POST("", d.Withdrawals.Request, limit)
	w.GET("", d.Withdrawals.List)
	w.GET("/balance", d.Withdrawals.Balance)
}
