package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/database"
	"delivery-dispatch/internal/handlers"
	"delivery-dispatch/internal/hub"
	"delivery-dispatch/internal/jobs"
	"delivery-dispatch/internal/kafka"
	"delivery-dispatch/internal/logger"
	"delivery-dispatch/internal/middleware"
	"delivery-dispatch/internal/models"
	"delivery-dispatch/internal/redis"
	"delivery-dispatch/internal/registry"
	"delivery-dispatch/internal/repository"
	"delivery-dispatch/internal/services"
)

func main() {
	// Загрузка конфигурации
	cfg := config.Load()

	// Инициализация логгера
	log := logger.New(&cfg.Logger)
	log.Info("Starting delivery dispatch server...")

	// Подключение к базе данных
	db, err := database.Connect(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Подключение к Redis
	redisClient, err := redis.Connect(&cfg.Redis, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisClient.Close()

	// Репозитории
	orderRepo := repository.NewOrderRepository(db, log)
	notificationRepo := repository.NewNotificationRepository(db, log)
	courierRepo := repository.NewCourierRepository(db, log)

	// Реестр курьеров восстанавливается из таблицы couriers
	reg := registry.New()
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 10*time.Second)
	loaded, err := courierRepo.WarmUp(warmCtx, reg)
	warmCancel()
	if err != nil {
		log.WithError(err).Warn("Courier registry warm-up failed, starting empty")
	} else {
		log.WithField("couriers", loaded).Info("Courier registry warmed up")
	}

	realtime := hub.New(&cfg.Hub, log)

	// Kafka опциональна: без нее события просто не публикуются
	var (
		events   services.EventPublisher
		producer *kafka.Producer
		consumer *kafka.Consumer
	)
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(&cfg.Kafka, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to create Kafka producer")
		}
		events = producer

		consumer, err = kafka.NewConsumer(&cfg.Kafka, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to create Kafka consumer")
		}
	} else {
		log.Warn("Kafka disabled, domain events will not be published")
	}

	// Инициализация сервисов
	locationCache := services.NewLocationCache(redisClient, &cfg.Cache, log)
	rateLimiter := services.NewRateLimiterService(redisClient, &cfg.RateLimit, log)
	dispatchService := services.NewDispatchService(reg, orderRepo, events, &cfg.Dispatch, log)
	broadcastService := services.NewBroadcastService(realtime, notificationRepo, locationCache, events, log)
	orderEventService := services.NewOrderEventService(dispatchService, broadcastService, orderRepo, log)

	// Инициализация handlers
	healthHandler := handlers.NewHealthHandler(db, redisClient, realtime, cfg.Kafka.Enabled)
	protocolHandler := handlers.NewProtocolHandler(realtime, broadcastService, orderEventService, reg, &cfg.Hub, log)
	pushHandler := handlers.NewPushHandler(broadcastService, log)
	dispatchHandler := handlers.NewDispatchHandler(dispatchService, log)
	courierHandler := handlers.NewCourierHandler(reg, courierRepo, log)
	trackingHandler := handlers.NewTrackingHandler(locationCache, log)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, log)
	cacheHandler := handlers.NewCacheHandler(locationCache, log)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimiter, log)

	if consumer != nil {
		// Регистрация обработчиков событий Kafka
		registerEventHandlers(consumer, orderEventService, log)

		// Запуск Kafka consumer
		if err := consumer.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start Kafka consumer")
		}
	}

	retryJob := jobs.NewRetryAssignmentJob(dispatchService, cfg.Dispatch.RetrySchedule, log)
	if err := retryJob.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start assignment retry job")
	}

	// Настройка HTTP роутера
	mux := setupRoutes(routes{
		health:        healthHandler,
		protocol:      protocolHandler,
		push:          pushHandler,
		dispatch:      dispatchHandler,
		couriers:      courierHandler,
		tracking:      trackingHandler,
		notifications: notificationHandler,
		cache:         cacheHandler,
		rateLimit:     rateLimitHandler,
	}, rateLimiter, log)

	handler := middleware.Logging(log)(middleware.CORS(cfg.Hub.AllowedOrigins)(mux))

	// Создание HTTP сервера; запись в сокеты ограничивают дедлайны хаба
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:     handler,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}

	// Запуск сервера в горутине
	go func() {
		log.WithField("address", server.Addr).Info("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	retryJob.Stop()

	// Hijacked websocket-соединения Shutdown не закрывает
	realtime.Shutdown()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			log.WithError(err).Error("Failed to stop Kafka consumer")
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.WithError(err).Error("Failed to close Kafka producer")
		}
	}

	log.Info("Server exited")
}

type routes struct {
	health        *handlers.HealthHandler
	protocol      *handlers.ProtocolHandler
	push          *handlers.PushHandler
	dispatch      *handlers.DispatchHandler
	couriers      *handlers.CourierHandler
	tracking      *handlers.TrackingHandler
	notifications *handlers.NotificationHandler
	cache         *handlers.CacheHandler
	rateLimit     *handlers.RateLimitHandler
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(h routes, limiter middleware.Limiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("/health", h.health.Health)
	mux.HandleFunc("/health/readiness", h.health.Readiness)
	mux.HandleFunc("/health/liveness", h.health.Liveness)

	// Websocket; лимит только на установку соединения
	mux.Handle("/ws", middleware.RateLimit(limiter, log)(http.HandlerFunc(h.protocol.ServeWS)))

	// Push API
	mux.HandleFunc("/api/notify", h.push.Notify)
	mux.HandleFunc("/api/location", h.push.Location)
	mux.HandleFunc("/api/order-status", h.push.OrderStatus)
	mux.HandleFunc("/api/customer-location", h.push.CustomerLocation)

	// Dispatch endpoints
	mux.HandleFunc("/api/dispatch/assign", h.dispatch.Assign)
	mux.HandleFunc("/api/dispatch/release", h.dispatch.Release)

	// Courier endpoints
	mux.HandleFunc("/api/couriers", h.couriers.GetCouriers)
	mux.HandleFunc("/api/couriers/", handleCourierRoute(h.couriers))

	// Order tracking
	mux.HandleFunc("/api/orders/", handleOrderRoute(h.tracking))

	// Notifications polling
	mux.HandleFunc("/api/notifications", h.notifications.ListUnread)
	mux.HandleFunc("/api/notifications/", handleNotificationRoute(h.notifications))

	// Operations
	mux.HandleFunc("/api/cache/metrics", h.cache.GetMetrics)
	mux.HandleFunc("/api/rate-limit/", h.rateLimit.Reset)

	return mux
}

// handleCourierRoute обрабатывает маршруты для отдельного курьера
func handleCourierRoute(handler *handlers.CourierHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/location"):
			handler.UpdateLocation(w, r)
		case strings.HasSuffix(r.URL.Path, "/status"):
			handler.UpdateStatus(w, r)
		case r.Method == http.MethodDelete:
			handler.Deactivate(w, r)
		default:
			handler.GetCourier(w, r)
		}
	}
}

// handleOrderRoute обрабатывает маршруты для отдельного заказа
func handleOrderRoute(handler *handlers.TrackingHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/location") {
			handler.GetOrderLocation(w, r)
			return
		}
		handlers.NotFound(w, r)
	}
}

// handleNotificationRoute обрабатывает маршруты для отдельного уведомления
func handleNotificationRoute(handler *handlers.NotificationHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/read") {
			handler.MarkAsRead(w, r)
			return
		}
		handlers.NotFound(w, r)
	}
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, orderEvents *services.OrderEventService, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeOrderCreated, func(ctx context.Context, event *models.Event) error {
		var data models.OrderCreatedEvent
		if err := kafka.DecodeData(event, &data); err != nil {
			return err
		}

		result, err := orderEvents.HandleOrderCreated(ctx, data)
		if err != nil {
			return err
		}
		log.WithField("event_id", event.ID).WithField("assigned", result.Success).Debug("Order created event processed")
		return nil
	})

	consumer.RegisterHandler(models.EventTypeOrderStatusChanged, func(ctx context.Context, event *models.Event) error {
		var data models.OrderStatusChangedEvent
		if err := kafka.DecodeData(event, &data); err != nil {
			return err
		}
		return orderEvents.ApplyStatusChange(ctx, data)
	})
}
