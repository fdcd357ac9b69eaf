package handlers

import (
	"github.com/gin-gonic/gin"

	"slt-training-harness/internal/core/services"
)

type Handler struct {
	runSvc *services.RunService
}

func New(runSvc *services.RunService) *Handler {
	return &Handler{runSvc: runSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Training Runs
	r.GET("/runs", h.ListRuns)
	r.GET("/runs/:id", h.GetRun)
	r.POST("/runs", h.CreateRun)
	r.POST("/runs/:id/finish", h.FinishRun)
	r.POST("/runs/:id/score", h.RecordScore)
}
