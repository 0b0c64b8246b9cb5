package handler

import (
	"net/http"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/gin-gonic/gin"
)

type LPRHandler struct {
	lprService *service.LPRService
}

func NewLPRHandler(lprService *service.LPRService) *LPRHandler {
	return &LPRHandler{lprService: lprService}
}

// POST /api/v1/scan/plate
func (h *LPRHandler) ReleaseByPlate(c *gin.Context) {
	var req domain.PlateReleaseDTO
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.lprService.ReleaseByPlate(c.Request.Context(), identity(c), req.ImageBase64)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
