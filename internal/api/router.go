package api

import (
	"context"
	"net/http"
	"time"

	"github.com/Megho-git/ParkEase/internal/api/handler"
	"github.com/Megho-git/ParkEase/internal/api/middleware"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services is everything the HTTP layer needs. LPR may be nil when plate
// recognition is disabled.
type Services struct {
	Auth    *service.AuthService
	Booking *service.BookingService
	Release *service.ReleaseService
	Lots    *service.LotService
	Reports *service.ReportService
	LPR     *service.LPRService

	WebSocket   *handler.WebSocketManager
	RateLimiter *middleware.RateLimiter
	// Ping reports whether storage is reachable.
	Ping func(ctx context.Context) error
}

func SetupRouter(s Services, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) {
		if s.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := s.Ping(ctx); err != nil {
				log.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authMw := middleware.NewAuthMiddleware(s.Auth, log)
	admin := authMw.AuthorizeRole(domain.RoleAdmin)

	if s.WebSocket != nil {
		wsHandler := handler.NewWebSocketHandler(s.WebSocket)
		r.GET("/ws", authMw.Authenticate(), admin, wsHandler.HandleWebSocket)
	}

	authHandler := handler.NewAuthHandler(s.Auth)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	lotH := handler.NewParkingLotHandler(s.Lots)
	spotH := handler.NewParkingSpotHandler(s.Lots)
	resH := handler.NewReservationHandler(s.Booking, s.Release)
	reportH := handler.NewReportHandler(s.Reports)

	bookingGuards := []gin.HandlerFunc{}
	if s.RateLimiter != nil {
		bookingGuards = append(bookingGuards, s.RateLimiter.Middleware())
	}

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		me := v1.Group("/me")
		{
			me.GET("", authHandler.Me)
			me.PUT("", authHandler.UpdateMe)
			me.GET("/reservations", resH.MyReservations)
			me.GET("/recent-bookings", resH.MyRecentBookings)
			me.GET("/usage", reportH.MyUsage)
		}

		lotRoutes := v1.Group("/parking-lots")
		{
			lotRoutes.GET("", lotH.GetAllParkingLots)
			lotRoutes.GET("/search", lotH.SearchParkingLots)
			lotRoutes.GET("/:id", lotH.GetParkingLotByID)
			lotRoutes.GET("/:id/spots", lotH.GetSpotsByLotID)
			lotRoutes.POST("/:id/bookings", append(bookingGuards, resH.Book)...)

			lotRoutes.POST("", admin, lotH.CreateParkingLot)
			lotRoutes.PUT("/:id", admin, lotH.UpdateParkingLot)
			lotRoutes.DELETE("/:id", admin, lotH.DeleteParkingLot)
		}

		spotRoutes := v1.Group("/parking-spots", admin)
		{
			spotRoutes.GET("/:spot_id", spotH.GetParkingSpotByID)
			spotRoutes.DELETE("/:spot_id", spotH.DeleteParkingSpot)
		}

		resRoutes := v1.Group("/reservations")
		{
			resRoutes.GET("/:id", resH.GetReservation)
			resRoutes.GET("/:id/cost", resH.Cost)
			resRoutes.POST("/:id/release", resH.Release)
			resRoutes.GET("/:id/qr", resH.QRCode)
		}

		scanRoutes := v1.Group("/scan", admin)
		{
			scanRoutes.POST("/release", resH.ScanRelease)
			if s.LPR.Enabled() {
				scanRoutes.POST("/plate", handler.NewLPRHandler(s.LPR).ReleaseByPlate)
			}
		}

		reportRoutes := v1.Group("/reports", admin)
		{
			reportRoutes.GET("/revenue", reportH.Revenue)
			reportRoutes.GET("/occupancy", reportH.Occupancy)
			reportRoutes.GET("/summary", reportH.Summary)
			reportRoutes.GET("/users/:id/usage", reportH.UserUsage)
		}

		v1.GET("/users", admin, authHandler.ListUsers)
		v1.GET("/recent-bookings", admin, resH.AllRecentBookings)
	}
	return r
}
