package handler

import (
	"net/http"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/gin-gonic/gin"
)

type ParkingLotHandler struct {
	lots *service.LotService
}

func NewParkingLotHandler(lots *service.LotService) *ParkingLotHandler {
	return &ParkingLotHandler{lots: lots}
}

// POST /parking-lots
func (h *ParkingLotHandler) CreateParkingLot(c *gin.Context) {
	var dto domain.ParkingLotDTO
	if !bindJSON(c, &dto) {
		return
	}
	lot, err := h.lots.CreateLot(c.Request.Context(), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// GET /parking-lots/:id
func (h *ParkingLotHandler) GetParkingLotByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	lot, err := h.lots.GetLot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// GET /parking-lots
func (h *ParkingLotHandler) GetAllParkingLots(c *gin.Context) {
	lots, err := h.lots.ListLots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if lots == nil {
		lots = []domain.ParkingLot{}
	}
	c.JSON(http.StatusOK, lots)
}

// GET /parking-lots/search?q=
func (h *ParkingLotHandler) SearchParkingLots(c *gin.Context) {
	lots, err := h.lots.SearchLots(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	if lots == nil {
		lots = []domain.ParkingLot{}
	}
	c.JSON(http.StatusOK, lots)
}

// PUT /parking-lots/:id
func (h *ParkingLotHandler) UpdateParkingLot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var dto domain.ParkingLotDTO
	if !bindJSON(c, &dto) {
		return
	}
	lot, err := h.lots.UpdateLot(c.Request.Context(), id, dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// DELETE /parking-lots/:id
func (h *ParkingLotHandler) DeleteParkingLot(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.lots.DeleteLot(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /parking-lots/:id/spots
func (h *ParkingLotHandler) GetSpotsByLotID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	spots, err := h.lots.ListSpots(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if spots == nil {
		spots = []domain.ParkingSpot{}
	}
	c.JSON(http.StatusOK, spots)
}
