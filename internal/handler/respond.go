package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bioscout-islamabad/bioscout/internal/apperr"
	"github.com/bioscout-islamabad/bioscout/internal/middleware"
	"github.com/bioscout-islamabad/bioscout/internal/prefs"
	"github.com/bioscout-islamabad/bioscout/internal/service"
)

// respondError writes {"error": msg} with the status matching err's kind.
func respondError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.UserMessage(err, fallback)})
}

// respond writes data, or on failure the error together with the degraded
// value the view falls back to.
func respond(c *gin.Context, data any, err error, fallback string) {
	if err != nil {
		_ = c.Error(err)
		c.JSON(apperr.HTTPStatus(err), gin.H{
			"error":    apperr.UserMessage(err, fallback),
			"fallback": data,
		})
		return
	}
	c.JSON(http.StatusOK, data)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func clientStore(c *gin.Context, stores service.StoreFactory) *prefs.Store {
	return stores(middleware.ClientID(c))
}

func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
