package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type listOrdersQuery struct {
	Limit int `form:"limit"`
}

func (q *listOrdersQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// getStatus reports controller state, carried session and the last cycle.
func (s *Server) getStatus(c *gin.Context) {
	if s.Status == nil {
		respondError(c, http.StatusServiceUnavailable, "CONTROLLER_UNAVAILABLE", "controller not running")
		return
	}
	mode := "LIVE"
	if s.Meta.DryRun {
		mode = "DRY_RUN"
	}
	body := gin.H{
		"mode":        mode,
		"system":      s.Meta,
		"controller":  s.Status.Snapshot(),
		"server_time": time.Now().UTC(),
	}
	if s.Latency != nil {
		body["cycle_latency_ms"] = s.Latency.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// getOrders returns the newest journaled orders.
func (s *Server) getOrders(c *gin.Context) {
	if s.Journal == nil {
		respondError(c, http.StatusNotFound, "JOURNAL_DISABLED", "order journal not configured")
		return
	}

	var q listOrdersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()

	orders, err := s.Journal.RecentOrders(c.Request.Context(), q.Limit)
	if err != nil {
		s.log.Error().Err(err).Msg("load orders")
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.Header("X-Result-Limit", strconv.Itoa(q.Limit))
	c.JSON(http.StatusOK, orders)
}
