package handlers

import (
	"context"
	"net/http"
	"time"

	"delivery-dispatch/internal/hub"
)

// HealthChecker проверяет доступность зависимости
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler представляет обработчик для проверки здоровья системы
type HealthHandler struct {
	db           HealthChecker
	redisClient  HealthChecker
	hub          *hub.Hub
	kafkaEnabled bool
}

// NewHealthHandler создает новый обработчик здоровья
func NewHealthHandler(db, redisClient HealthChecker, h *hub.Hub, kafkaEnabled bool) *HealthHandler {
	return &HealthHandler{
		db:           db,
		redisClient:  redisClient,
		hub:          h,
		kafkaEnabled: kafkaEnabled,
	}
}

// HealthResponse представляет ответ проверки здоровья
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Hub      hub.Stats         `json:"hub"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
}

var startTime = time.Now()

// Health проверяет состояние всех компонентов системы
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	overallStatus := "healthy"

	check := func(name string, c HealthChecker) {
		if err := c.Health(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
			overallStatus = "unhealthy"
			return
		}
		services[name] = "healthy"
	}
	check("database", h.db)
	check("redis", h.redisClient)

	if h.kafkaEnabled {
		services["kafka"] = "enabled"
	} else {
		services["kafka"] = "disabled"
	}

	response := HealthResponse{
		Status:   overallStatus,
		Services: services,
		Hub:      h.hub.Stats(),
		Version:  "1.0.0",
		Uptime:   time.Since(startTime).String(),
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, response)
}

// Readiness проверяет готовность приложения к обработке запросов
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Health(ctx); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Database not ready")
		return
	}

	if err := h.redisClient.Health(ctx); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Redis not ready")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Liveness проверяет, что приложение живо
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}
