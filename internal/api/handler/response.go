package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/evetabi/memeoracle/internal/domain"
	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {"count": n}}.
func respondList(c *gin.Context, items interface{}, count int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"count": count,
		},
	})
}

// respondServiceError maps a service error onto the HTTP error envelope.
// Unrecognised errors are reported as 500 with the fallback message so
// internal detail does not leak.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", unwrapDetail(err))
	case errors.Is(err, domain.ErrMarketNotFound):
		respondError(c, http.StatusNotFound, "ERR_MARKET_NOT_FOUND", domain.ErrMarketNotFound.Error())
	case errors.Is(err, domain.ErrMarketClosed):
		respondError(c, http.StatusConflict, "ERR_MARKET_CLOSED", domain.ErrMarketClosed.Error())
	case errors.Is(err, domain.ErrMarketAlreadyResolved):
		respondError(c, http.StatusConflict, "ERR_MARKET_ALREADY_RESOLVED", domain.ErrMarketAlreadyResolved.Error())
	case errors.Is(err, domain.ErrCommentaryUnavailable):
		respondError(c, http.StatusServiceUnavailable, "ERR_COMMENTARY_UNAVAILABLE", domain.ErrCommentaryUnavailable.Error())
	default:
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", fallback)
	}
}

// unwrapDetail strips the "<service>.<Op>: " prefixes so clients see only the
// validation message ("invalid argument: amount must be positive").
func unwrapDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrInvalidArgument.Error()); i >= 0 {
		return msg[i:]
	}
	return msg
}
