package handler

import (
	"net/http"

	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/gin-gonic/gin"
)

type ParkingSpotHandler struct {
	lots *service.LotService
}

func NewParkingSpotHandler(lots *service.LotService) *ParkingSpotHandler {
	return &ParkingSpotHandler{lots: lots}
}

// GET /parking-spots/:spot_id
func (h *ParkingSpotHandler) GetParkingSpotByID(c *gin.Context) {
	id, ok := paramID(c, "spot_id")
	if !ok {
		return
	}
	spot, err := h.lots.GetSpot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, spot)
}

// DELETE /parking-spots/:spot_id
func (h *ParkingSpotHandler) DeleteParkingSpot(c *gin.Context) {
	id, ok := paramID(c, "spot_id")
	if !ok {
		return
	}
	if err := h.lots.DeleteSpot(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
