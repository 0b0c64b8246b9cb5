package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Megho-git/ParkEase/internal/api/middleware"
	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var statusByKind = map[apperror.Kind]int{
	apperror.KindValidation:   http.StatusBadRequest,
	apperror.KindOutOfRange:   http.StatusUnprocessableEntity,
	apperror.KindConflict:     http.StatusConflict,
	apperror.KindCapacity:     http.StatusConflict,
	apperror.KindForbidden:    http.StatusForbidden,
	apperror.KindNotFound:     http.StatusNotFound,
	apperror.KindUnauthorized: http.StatusUnauthorized,
	apperror.KindRateLimited:  http.StatusTooManyRequests,
	apperror.KindStorage:      http.StatusServiceUnavailable,
}

// respondError writes err as {"error", "kind"[, "details"]}. Storage and
// unclassified errors never leak their cause to the client.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var ae *apperror.AppError
	if !errors.As(err, &ae) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	status, ok := statusByKind[ae.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := gin.H{"error": ae.Message, "kind": ae.Kind}
	if ae.Kind == apperror.KindStorage {
		body["error"] = "service temporarily unavailable, please retry"
	}
	if len(ae.Meta) > 0 {
		body["details"] = ae.Meta
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON decodes the body and reports validation failures field by field.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[jsonName(fe.Field())] = describe(fe)
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "invalid request body",
			"kind":   apperror.KindValidation,
			"fields": fields,
		})
		return false
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed JSON body", "kind": apperror.KindValidation})
	return false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "numeric":
		return "must contain digits only"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	}
	return "is invalid"
}

// jsonName turns a Go field name such as PricePerHour into price_per_hour.
func jsonName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name, "kind": apperror.KindValidation})
		return 0, false
	}
	return id, true
}

func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func identity(c *gin.Context) domain.Identity {
	id, _ := middleware.IdentityFrom(c)
	return id
}
