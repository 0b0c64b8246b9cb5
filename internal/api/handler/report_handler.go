package handler

import (
	"net/http"

	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GET /reports/revenue
func (h *ReportHandler) Revenue(c *gin.Context) {
	report, err := h.reports.Revenue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GET /reports/occupancy
func (h *ReportHandler) Occupancy(c *gin.Context) {
	occ, err := h.reports.Occupancy(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, occ)
}

// GET /reports/summary
func (h *ReportHandler) Summary(c *gin.Context) {
	sum, err := h.reports.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// GET /reports/users/:id/usage
func (h *ReportHandler) UserUsage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.usage(c, id)
}

// GET /me/usage
func (h *ReportHandler) MyUsage(c *gin.Context) {
	h.usage(c, identity(c).UserID)
}

func (h *ReportHandler) usage(c *gin.Context, userID int) {
	report, err := h.reports.UserUsage(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
