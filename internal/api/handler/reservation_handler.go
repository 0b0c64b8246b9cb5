package handler

import (
	"net/http"

	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/gin-gonic/gin"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

type ReservationHandler struct {
	booking *service.BookingService
	release *service.ReleaseService
}

func NewReservationHandler(booking *service.BookingService, release *service.ReleaseService) *ReservationHandler {
	return &ReservationHandler{booking: booking, release: release}
}

// POST /parking-lots/:id/bookings
func (h *ReservationHandler) Book(c *gin.Context) {
	lotID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.BookingRequestDTO
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.booking.Book(c.Request.Context(), identity(c), lotID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /me/reservations
func (h *ReservationHandler) MyReservations(c *gin.Context) {
	list, err := h.release.ListForUser(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.ReservationView{}
	}
	c.JSON(http.StatusOK, list)
}

// GET /me/recent-bookings
func (h *ReservationHandler) MyRecentBookings(c *gin.Context) {
	list, err := h.booking.RecentBookings(c.Request.Context(), identity(c).UserID, queryLimit(c, defaultRecentLimit, maxRecentLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.RecentBooking{}
	}
	c.JSON(http.StatusOK, list)
}

// GET /recent-bookings (admin)
func (h *ReservationHandler) AllRecentBookings(c *gin.Context) {
	list, err := h.booking.AllRecentBookings(c.Request.Context(), queryLimit(c, defaultRecentLimit, maxRecentLimit))
	if err != nil {
		respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.RecentBooking{}
	}
	c.JSON(http.StatusOK, list)
}

// GET /reservations/:id
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.release.GetReservation(c.Request.Context(), identity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GET /reservations/:id/cost
func (h *ReservationHandler) Cost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	preview, err := h.release.Preview(c.Request.Context(), identity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// POST /reservations/:id/release
func (h *ReservationHandler) Release(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.release.Release(c.Request.Context(), identity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /reservations/:id/qr
func (h *ReservationHandler) QRCode(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	png, err := h.release.QRCode(c.Request.Context(), identity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// POST /scan/release (admin)
func (h *ReservationHandler) ScanRelease(c *gin.Context) {
	var dto domain.ScanReleaseDTO
	if !bindJSON(c, &dto) {
		return
	}
	res, err := h.release.ReleaseByCode(c.Request.Context(), identity(c), dto.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
