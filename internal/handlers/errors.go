package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"agile-tracker-api/internal/apperr"

	"github.com/gin-gonic/gin"
)

// writeError maps a service error onto an HTTP status and the error body
// every endpoint shares.
func writeError(c *gin.Context, err error) {
	code := apperr.Code(err)
	var status int
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrConstraint):
		status = http.StatusConflict
	default:
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  code,
		})
		return
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}

// writeBindError reports a malformed request body.
func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request: " + err.Error(),
		"code":  apperr.Code(apperr.ErrValidation),
	})
}

func parseDateFlexible(dateStr string) (time.Time, bool) {
	if dateStr == "" {
		return time.Time{}, false
	}
	layouts := []string{
		"2006-01-02",  // ISO date
		"2 Jan 2006",  // e.g., 30 Oct 2025
		time.RFC3339,  // full RFC3339
		"02 Jan 2006", // zero-padded day
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// optionalDate parses a nullable date field. A nil or empty string yields nil.
func optionalDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, ok := parseDateFlexible(*value)
	if !ok {
		return nil, apperr.Validationf("%s must be a date (YYYY-MM-DD or RFC3339)", field)
	}
	return &t, nil
}

func requiredDate(field, value string) (time.Time, error) {
	t, ok := parseDateFlexible(value)
	if !ok {
		return time.Time{}, apperr.Validationf("%s must be a date (YYYY-MM-DD or RFC3339)", field)
	}
	return t, nil
}
