package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/vetrodar/cabinbooking/api"
	"github.com/vetrodar/cabinbooking/config"
	"github.com/vetrodar/cabinbooking/internal/middleware"
	"github.com/vetrodar/cabinbooking/internal/service/booking"
	"github.com/vetrodar/cabinbooking/internal/service/trips"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, rdb *redis.Client, tripSvc trips.TripUseCase, bookingSvc booking.BookingUseCase, syncer api.WeatherSyncer) error {
	router := newRouter(cfg, rdb, tripSvc, bookingSvc, syncer)

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(cfg *config.Config, rdb *redis.Client, tripSvc trips.TripUseCase, bookingSvc booking.BookingUseCase, syncer api.WeatherSyncer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	tripHandler := api.NewTripHandler(tripSvc)
	bookingHandler := api.NewBookingHandler(bookingSvc)

	public := router.Group("/")
	public.Use(middleware.RateLimit(cfg.RateLimit, rdb))

	tripsGroup := public.Group("/trips")
	tripHandler.Register(tripsGroup)
	bookingHandler.RegisterQuotes(tripsGroup)

	bookingsGroup := public.Group("/bookings")
	bookingHandler.Register(bookingsGroup)

	if syncer != nil {
		admin := router.Group("/admin")
		weatherHandler := api.NewWeatherHandler(syncer, cfg.Weather.AdminToken)
		weatherHandler.Register(admin)
	}

	return router
}
