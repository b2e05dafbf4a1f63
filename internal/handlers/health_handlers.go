package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"repairhub/internal/caching"
	"repairhub/internal/storage"
)

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db       *pgxpool.Pool
	cacheSvc caching.CacheService
	photos   storage.PhotoStorage
}

func NewHealthHandlers(db *pgxpool.Pool, cacheSvc caching.CacheService, photos storage.PhotoStorage) *HealthHandlers {
	return &HealthHandlers{db: db, cacheSvc: cacheSvc, photos: photos}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// HealthCheck reports the health of every backing service.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
	}

	if err := h.checkDatabase(ctx); err != nil {
		health.Services["database"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["database"] = "healthy"
	}

	if err := h.cacheSvc.Ping(ctx); err != nil {
		health.Services["redis"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["redis"] = "healthy"
	}

	if err := h.photos.Ping(ctx); err != nil {
		health.Services["storage"] = "unhealthy"
		health.Status = "degraded"
	} else {
		health.Services["storage"] = "healthy"
	}

	statusCode := http.StatusOK
	if health.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, health)
}

func (h *HealthHandlers) checkDatabase(ctx context.Context) error {
	_, err := h.db.Exec(ctx, "SELECT 1")
	return err
}

// ReadinessCheck gates traffic on the critical dependencies only; object
// storage being down degrades photos, not the whole app.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.checkDatabase(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
		})
	}
	if err := h.cacheSvc.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// LivenessCheck is the basic liveness probe.
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
