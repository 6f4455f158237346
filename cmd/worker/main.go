package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/vetrodar/cabinbooking/config"
	"github.com/vetrodar/cabinbooking/internal/cache"
	"github.com/vetrodar/cabinbooking/internal/email"
	"github.com/vetrodar/cabinbooking/internal/kafka"
	"github.com/vetrodar/cabinbooking/internal/payment"
	"github.com/vetrodar/cabinbooking/internal/repository"
	"github.com/vetrodar/cabinbooking/internal/service/booking"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	redisCache := cache.NewRedisCache(cfg.Redis,
		time.Duration(cfg.Booking.TripsCacheTTL)*time.Second,
		time.Duration(cfg.Weather.CacheTTLSeconds)*time.Second)

	tripRepo := repository.NewTripRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	forecastRepo := repository.NewForecastRepository(pool)

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

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.BookingEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("decode event error: %v", err)
				return nil
			}
			return emailSender.Send(ctx, event)
		}); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	expireTicker := time.NewTicker(time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute)
	defer expireTicker.Stop()

	syncInterval := time.Duration(cfg.Weather.SyncMinutes) * time.Minute
	if syncInterval <= 0 {
		syncInterval = 3 * time.Hour
	}
	syncTicker := time.NewTicker(syncInterval)
	defer syncTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expireTicker.C:
			expired, err := bookingService.ExpirePendingBookings(ctx)
			if err != nil {
				log.Printf("expire bookings error: %v", err)
				continue
			}
			if len(expired) > 0 {
				log.Printf("expired %d bookings", len(expired))
			}
		case <-syncTicker.C:
			for _, spot := range cfg.Weather.Spots {
				stats, err := syncer.Sync(ctx, spot)
				if err != nil {
					if err != weather.ErrSyncDisabled {
						log.Printf("weather sync error for %s: %v", spot, err)
					}
					continue
				}
				log.Printf("weather sync %s: fetched=%d inserted=%d deleted=%d cache=%v",
					stats.Spot, stats.Fetched, stats.Inserted, stats.Deleted, stats.FromCache)
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}
