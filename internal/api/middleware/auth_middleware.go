package middleware

import (
	"net/http"
	"strings"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/Megho-git/ParkEase/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	IdentityKey             = "identity"
	// Browsers cannot set headers on a websocket handshake.
	wsTokenQuery = "token"
)

type AuthMiddleware struct {
	authService *service.AuthService
	log         *zap.Logger
}

func NewAuthMiddleware(authService *service.AuthService, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{authService: authService, log: log}
}

// Authenticate validates the bearer token and stores the caller's identity.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken, ok := bearerToken(c)
		if !ok {
			abort(c, http.StatusUnauthorized, apperror.KindUnauthorized, "missing or malformed authorization header")
			return
		}

		id, err := m.authService.ValidateToken(accessToken)
		if err != nil {
			m.log.Debug("rejected token", zap.Error(err), zap.String("path", c.FullPath()))
			abort(c, http.StatusUnauthorized, apperror.KindUnauthorized, "invalid or expired token")
			return
		}

		c.Set(IdentityKey, id)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader(AuthorizationHeaderKey)
	if header == "" {
		if websocket.IsWebSocketUpgrade(c.Request) {
			tok := c.Query(wsTokenQuery)
			return tok, tok != ""
		}
		return "", false
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
		return "", false
	}
	return fields[1], true
}

// AuthorizeRole lets the request through only for the listed roles.
func (m *AuthMiddleware) AuthorizeRole(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			m.log.Warn("AuthorizeRole used without Authenticate", zap.String("path", c.FullPath()))
			abort(c, http.StatusForbidden, apperror.KindForbidden, "access denied")
			return
		}
		for _, role := range requiredRoles {
			if id.Role == role {
				c.Next()
				return
			}
		}
		m.log.Info("role not allowed",
			zap.Int("user_id", id.UserID), zap.String("role", id.Role), zap.Strings("required", requiredRoles))
		abort(c, http.StatusForbidden, apperror.KindForbidden, "access denied")
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

// abort ends the request with the same body shape the handlers use.
func abort(c *gin.Context, status int, kind apperror.Kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "kind": kind})
}
