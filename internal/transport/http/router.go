package httptransport

import (
	"log/slog"

	"github.com/etlcore/orchestrator/internal/transport/http/handler"
	"github.com/etlcore/orchestrator/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

// NewRouter builds the admin/worker-facing HTTP surface (spec.md §6.2,
// §6.3): request lifecycle under /requests, schedule CRUD under
// /schedules. Authentication is out of scope (spec.md §1) — this
// surface is expected to sit behind a trusted network boundary or an
// upstream gateway.
func NewRouter(logger *slog.Logger, requestHandler *handler.RequestHandler, scheduleHandler *handler.ScheduleHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	requests := r.Group("/requests")
	requests.POST("", requestHandler.Create)
	requests.GET("", requestHandler.List)
	requests.GET("/:id", requestHandler.Status)
	requests.DELETE("/:id", requestHandler.Cancel)

	schedules := r.Group("/schedules")
	schedules.POST("", scheduleHandler.Create)
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.POST("/:id/pause", scheduleHandler.Pause)
	schedules.POST("/:id/resume", scheduleHandler.Resume)

	return r
}
