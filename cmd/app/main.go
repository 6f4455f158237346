package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/vetrodar/cabinbooking/config"
	"github.com/vetrodar/cabinbooking/internal/bootstrap"
	"github.com/vetrodar/cabinbooking/internal/cache"
	"github.com/vetrodar/cabinbooking/internal/kafka"
	"github.com/vetrodar/cabinbooking/internal/payment"
	"github.com/vetrodar/cabinbooking/internal/repository"
	"github.com/vetrodar/cabinbooking/internal/service/booking"
	"github.com/vetrodar/cabinbooking/internal/service/trips"
	"github.com/vetrodar/cabinbooking/internal/weather"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis,
		time.Duration(cfg.Booking.TripsCacheTTL)*time.Second,
		time.Duration(cfg.Weather.CacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	tripRepo := repository.NewTripRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	forecastRepo := repository.NewForecastRepository(pool)

	tripService := trips.NewTripService(tripRepo, redisCache)
	bookingService := booking.NewBookingService(
		bookingRepo,
		tripRepo,
		redisCache,
		payment.NewLogGateway(),
		producer,
		cfg.Kafka.BookingTopic,
		time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	syncer := weather.NewSyncer(
		weather.NewHTTPProvider(cfg.Weather),
		forecastRepo,
		redisCache,
		cfg.Weather.Enabled,
		time.Duration(cfg.Weather.RetentionHours)*time.Hour,
	)

	if err := bootstrap.Run(ctx, cfg, redisCache.Client(), tripService, bookingService, syncer); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
