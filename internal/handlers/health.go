package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JobCounter reports how many relay jobs are currently in flight.
type JobCounter interface {
	Active() int
}

type HealthHandler struct {
	logger *slog.Logger
	jobs   JobCounter
}

func NewHealthHandler(log *slog.Logger, jobs JobCounter) *HealthHandler {
	return &HealthHandler{logger: log.With(slog.String("handler", "health")), jobs: jobs}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"active_jobs": h.jobs.Active(),
	})
}
