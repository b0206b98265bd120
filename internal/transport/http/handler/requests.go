package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/etlcore/orchestrator/internal/domain"
	"github.com/etlcore/orchestrator/internal/orchestrator"
	"github.com/gin-gonic/gin"
)

// RequestHandler exposes the worker-facing enqueue/cancel/status/list
// operations (spec.md §6.2) over HTTP.
type RequestHandler struct {
	core   *orchestrator.Core
	logger *slog.Logger
}

func NewRequestHandler(core *orchestrator.Core, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{core: core, logger: logger.With("component", "request_handler")}
}

type createRequestBody struct {
	MappingRef string          `json:"mapping_ref" binding:"required"`
	LoadMode   domain.LoadMode `json:"load_mode"    binding:"omitempty,oneof=INSERT TRUNCATE_LOAD UPSERT"`
}

func (h *RequestHandler) Create(ctx *gin.Context) {
	var body createRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.core.Enqueue(ctx.Request.Context(), body.MappingRef, domain.RequestParameters{
		LoadMode: body.LoadMode,
		Source:   "MANUAL",
	})
	if err != nil {
		h.logger.Error("enqueue request", "mapping_ref", body.MappingRef, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"id": id})
}

type statusResponse struct {
	ID               string                `json:"id"`
	MappingRef       string                `json:"mapping_ref"`
	Status           domain.RequestStatus  `json:"status"`
	LastRunID        string                `json:"last_run_id,omitempty"`
	ProgressSnapshot *progressSnapshotJSON `json:"progress_snapshot,omitempty"`
}

type progressSnapshotJSON struct {
	RunID            string   `json:"run_id"`
	ChunksCompleted  int64    `json:"chunks_completed"`
	ChunksFailed     int64    `json:"chunks_failed"`
	RowsProcessed    int64    `json:"rows_processed"`
	RowsSucceeded    int64    `json:"rows_succeeded"`
	RowsFailed       int64    `json:"rows_failed"`
	Percentage       *float64 `json:"percentage,omitempty"`
	ElapsedSeconds   float64  `json:"elapsed_seconds"`
	ETASeconds       *float64 `json:"eta_seconds,omitempty"`
	ThroughputPerSec float64  `json:"throughput_per_sec"`
}

func (h *RequestHandler) Status(ctx *gin.Context) {
	id := ctx.Param("id")

	st, err := h.core.Status(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errRequestNotFound})
			return
		}
		h.logger.Error("status", "request_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	resp := statusResponse{
		ID:         st.Request.ID,
		MappingRef: st.Request.MappingRef,
		Status:     st.Request.Status,
		LastRunID:  st.LastRunID,
	}
	if st.ProgressSnapshot != nil {
		snap := st.ProgressSnapshot
		resp.ProgressSnapshot = &progressSnapshotJSON{
			RunID:            snap.RunID,
			ChunksCompleted:  snap.ChunksCompleted,
			ChunksFailed:     snap.ChunksFailed,
			RowsProcessed:    snap.RowsProcessed,
			RowsSucceeded:    snap.RowsSucceeded,
			RowsFailed:       snap.RowsFailed,
			Percentage:       snap.Percentage,
			ElapsedSeconds:   snap.Elapsed.Seconds(),
			ThroughputPerSec: snap.ThroughputPerSec,
		}
		if snap.ETA != nil {
			eta := snap.ETA.Seconds()
			resp.ProgressSnapshot.ETASeconds = &eta
		}
	}

	ctx.JSON(http.StatusOK, resp)
}

func (h *RequestHandler) Cancel(ctx *gin.Context) {
	id := ctx.Param("id")

	if err := h.core.Cancel(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errRequestNotFound})
			return
		}
		h.logger.Error("cancel", "request_id", id, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *RequestHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	status := domain.RequestStatus(ctx.Query("status"))

	items, nextCursor, err := h.core.List(ctx.Request.Context(), status, ctx.Query("cursor"), limit)
	if err != nil {
		h.logger.Error("list requests", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"requests":    items,
		"next_cursor": nextCursor,
	})
}
