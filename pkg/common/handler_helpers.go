package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/richxcame/route-traffic/pkg/logger"
	"github.com/richxcame/route-traffic/pkg/validation"
)

// HandleServiceError handles service errors with consistent patterns.
// Returns true if an error was handled (and response was sent), false otherwise.
//
// Usage:
//
//	result, err := h.service.Annotate(ctx, route)
//	if HandleServiceError(c, err, "failed to annotate route") {
//	    return
//	}
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		AppErrorResponse(c, appErr)
		return true
	}

	logger.ErrorContext(c.Request.Context(), fallbackMessage,
		zap.Error(err),
	)

	ErrorResponse(c, http.StatusInternalServerError, fallbackMessage)
	return true
}

// BindJSON binds a JSON body, runs struct validation and sends a 400 on failure.
// Returns true on success, false on failure (response already sent).
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return false
	}
	if err := validation.ValidateStruct(obj); err != nil {
		AppErrorResponse(c, NewValidationError(err.Error()))
		return false
	}
	return true
}

// ParseLatLonQuery parses a required "lat,lon" query parameter.
// Returns false after sending a 400 when it is missing or malformed.
func ParseLatLonQuery(c *gin.Context, paramName string) (lat, lon float64, ok bool) {
	raw := c.Query(paramName)
	if raw == "" {
		ErrorResponse(c, http.StatusBadRequest, paramName+" is required")
		return 0, 0, false
	}
	lat, lon, err := validation.ParseLatLon(raw)
	if err != nil {
		AppErrorResponse(c, NewValidationError(err.Error()))
		return 0, 0, false
	}
	return lat, lon, true
}
