package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/metadata"
	"github.com/etlcore/orchestrator/internal/schedule"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ScheduleHandler exposes schedule CRUD (spec.md §3, §4.2, §6.3) over
// HTTP — the authoring surface the Schedule Evaluator's tick loop reads
// from.
type ScheduleHandler struct {
	schedules metadata.ScheduleGateway
	logger    *slog.Logger
}

func NewScheduleHandler(schedules metadata.ScheduleGateway, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, logger: logger.With("component", "schedule_handler")}
}

type createScheduleRequest struct {
	MappingRef string     `json:"mapping_ref" binding:"required"`
	Frequency  string     `json:"frequency"   binding:"required,oneof=DAILY WEEKLY FORTNIGHTLY MONTHLY HALF_YEARLY YEARLY IMMEDIATE"`
	TimeParam  string     `json:"time_parameter"`
	StartDate  time.Time  `json:"start_date" binding:"required"`
	EndDate    *time.Time `json:"end_date"`
}

func (h *ScheduleHandler) Create(ctx *gin.Context) {
	var req createScheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	freq := domain.Frequency(req.Frequency)
	nextRunAt, err := schedule.NextRunAt(freq, req.TimeParam, req.StartDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidTimeParameter})
		return
	}

	s := &domain.Schedule{
		ScheduleID: uuid.NewString(),
		MappingRef: req.MappingRef,
		Frequency:  freq,
		TimeParam:  req.TimeParam,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		NextRunAt:  nextRunAt,
		Status:     domain.ScheduleActive,
	}

	created, err := h.schedules.Create(ctx.Request.Context(), s)
	if err != nil {
		h.logger.Error("create schedule", "mapping_ref", req.MappingRef, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *ScheduleHandler) List(ctx *gin.Context) {
	items, err := h.schedules.List(ctx.Request.Context())
	if err != nil {
		h.logger.Error("list schedules", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"schedules": items})
}

func (h *ScheduleHandler) GetByID(ctx *gin.Context) {
	id := ctx.Param("id")

	s, err := h.schedules.GetByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("get schedule", "schedule_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, s)
}

func (h *ScheduleHandler) Pause(ctx *gin.Context) {
	h.setStatus(ctx, domain.SchedulePaused)
}

func (h *ScheduleHandler) Resume(ctx *gin.Context) {
	h.setStatus(ctx, domain.ScheduleActive)
}

func (h *ScheduleHandler) setStatus(ctx *gin.Context, status domain.ScheduleStatus) {
	id := ctx.Param("id")

	if err := h.schedules.SetStatus(ctx.Request.Context(), id, status); err != nil {
		if errors.Is(err, domain.ErrScheduleNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errScheduleNotFound})
			return
		}
		h.logger.Error("set schedule status", "schedule_id", id, "status", status, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}
