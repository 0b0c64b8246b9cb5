package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Megho-git/ParkEase/internal/api/handler"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/notify"
	"github.com/Megho-git/ParkEase/internal/repository/memory"
	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/Megho-git/ParkEase/internal/token"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	lots   *service.LotService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	store := memory.NewStore()
	codec := token.NewCodec("qr-secret-for-tests")
	ws := handler.NewWebSocketManager(log)

	auth := service.NewAuthService(store.Users(), "jwt-secret-for-tests-0123456789", time.Hour, log)
	booking := service.NewBookingService(store, notify.NewLogNotifier(log), codec, ws, service.BookingOptions{
		Location: time.UTC, Grace: 5 * time.Minute, Horizon: 30 * 24 * time.Hour,
	}, log)
	release := service.NewReleaseService(store, codec, ws, log)
	lots := service.NewLotService(store, 500, log)
	require.NoError(t, auth.EnsureAdmin(context.Background(), "admin@parkease.test", "admin-pass"))

	r := SetupRouter(Services{
		Auth:      auth,
		Booking:   booking,
		Release:   release,
		Lots:      lots,
		Reports:   service.NewReportService(store),
		LPR:       service.NewLPRService(nil, store, release, log),
		WebSocket: ws,
	}, log)
	return &testServer{t: t, router: r, lots: lots}
}

func (s *testServer) do(method, path, tok string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/login", "", domain.LoginUserDTO{Email: email, Password: password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var resp domain.AuthResponseDTO
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (s *testServer) register(email string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/auth/register", "", domain.RegisterUserDTO{
		Email: email, Password: "password1", FullName: "Test User", Address: "Park Street", PinCode: "700016",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(email, "password1")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func bookingAt(at time.Time) domain.BookingRequestDTO {
	at = at.UTC()
	return domain.BookingRequestDTO{VehicleNumber: "WB02AB1234", Date: at.Format("2006-01-02"), Time: at.Format("15:04")}
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.login("admin@parkease.test", "admin-pass")

	w := s.do(http.MethodPost, "/api/v1/parking-lots", adminTok, map[string]any{
		"prime_location_name": "City Center", "address": "12 MG Road, Kolkata", "pin_code": "700001",
		"price_per_hour": 50, "max_spots": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	lot := decode[domain.ParkingLot](t, w)

	alice := s.register("alice@example.com")
	bob := s.register("bob@example.com")
	bookPath := "/api/v1/parking-lots/" + strconv.Itoa(lot.ID) + "/bookings"

	w = s.do(http.MethodPost, bookPath, alice, bookingAt(time.Now()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	booked := decode[domain.BookingResult](t, w)
	assert.NotEmpty(t, booked.Token)
	resPath := "/api/v1/reservations/" + strconv.Itoa(booked.Reservation.ID)

	w = s.do(http.MethodPost, bookPath, bob, bookingAt(time.Now()))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "capacity", decode[map[string]any](t, w)["kind"])

	w = s.do(http.MethodPost, bookPath, alice, bookingAt(time.Now()))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decode[map[string]any](t, w)["kind"])

	w = s.do(http.MethodPost, bookPath, bob, bookingAt(time.Now().Add(-2*time.Hour)))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodGet, resPath, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, resPath+"/qr", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(http.MethodGet, resPath+"/cost", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 50.0, decode[domain.ReleaseResult](t, w).Charge.Cost)

	w = s.do(http.MethodPost, "/api/v1/scan/release", adminTok, domain.ScanReleaseDTO{Code: booked.Token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, decode[domain.ReleaseResult](t, w).AlreadyReleased)

	w = s.do(http.MethodPost, resPath+"/release", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[domain.ReleaseResult](t, w).AlreadyReleased)

	w = s.do(http.MethodGet, "/api/v1/me/reservations", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.ReservationView](t, w), 1)

	w = s.do(http.MethodGet, "/api/v1/reports/summary", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sum := decode[domain.AdminSummary](t, w)
	assert.Equal(t, 50.0, sum.TotalRevenue)
	assert.Equal(t, 3, sum.Users)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	alice := s.register("alice@example.com")

	for _, path := range []string{"/api/v1/reports/revenue", "/api/v1/users", "/api/v1/recent-bookings", "/api/v1/parking-spots/1"} {
		w := s.do(http.MethodGet, path, alice, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}
	w := s.do(http.MethodPost, "/api/v1/parking-lots", alice, map[string]any{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/parking-lots", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidationErrorsNameFields(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.login("admin@parkease.test", "admin-pass")

	w := s.do(http.MethodPost, "/api/v1/parking-lots", adminTok, map[string]any{
		"prime_location_name": "X", "address": "Y", "pin_code": "70A001", "price_per_hour": 0, "max_spots": 2,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]any](t, w)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "pin_code")
	assert.Contains(t, fields, "price_per_hour")

	w = s.do(http.MethodPost, "/auth/register", "", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/v1/parking-lots/abc", adminTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResizeConflictReturnsDetails(t *testing.T) {
	s := newTestServer(t)
	adminTok := s.login("admin@parkease.test", "admin-pass")
	w := s.do(http.MethodPost, "/api/v1/parking-lots", adminTok, map[string]any{
		"prime_location_name": "Tiny", "address": "Lake Road", "pin_code": "700029", "price_per_hour": 20, "max_spots": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	lot := decode[domain.ParkingLot](t, w)

	alice := s.register("alice@example.com")
	w = s.do(http.MethodPost, "/api/v1/parking-lots/"+strconv.Itoa(lot.ID)+"/bookings", alice, bookingAt(time.Now()))
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPut, "/api/v1/parking-lots/"+strconv.Itoa(lot.ID), adminTok, map[string]any{
		"prime_location_name": "Tiny", "address": "Lake Road", "pin_code": "700029", "price_per_hour": 20, "max_spots": 0,
	})
	require.Equal(t, http.StatusConflict, w.Code)
	details := decode[map[string]any](t, w)["details"].(map[string]any)
	assert.EqualValues(t, 0, details["removable"])

	w = s.do(http.MethodDelete, "/api/v1/parking-lots/"+strconv.Itoa(lot.ID), adminTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
