package calls

import (
	"errors"
	"net/http"
	"strconv"

	"webhook-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers exposes read-only call inspection endpoints.
type Handlers struct {
	Repo Repository
}

// ListCalls serves GET /calls?page=&limit=.
func (h Handlers) ListCalls(c *gin.Context) {
	if h.Repo == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "repository not configured"})
		return
	}

	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	records, total, err := h.Repo.List(c.Request.Context(), page, limit)
	if err != nil {
		logger.FromGin(c).Error("call list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call list failed"})
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, callJSON(rec))
	}

	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	c.JSON(http.StatusOK, gin.H{
		"calls":        out,
		"total":        total,
		"pages":        pages,
		"current_page": page,
	})
}

// GetCall serves GET /calls/:id with the call's recordings inlined.
func (h Handlers) GetCall(c *gin.Context) {
	if h.Repo == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "repository not configured"})
		return
	}

	id := c.Param("id")
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call id required"})
		return
	}

	rec, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		logger.FromGin(c).Error("call lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}

	recordings, err := h.Repo.Recordings(c.Request.Context(), id)
	if err != nil {
		logger.FromGin(c).Error("recording lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "recording lookup failed"})
		return
	}

	body := callJSON(rec)
	body["recordings"] = recordings
	c.JSON(http.StatusOK, body)
}

func callJSON(rec CallRecord) gin.H {
	out := gin.H{
		"call_id":          rec.CallID,
		"direction":        rec.Direction,
		"from":             rec.FromAddress,
		"to":               rec.ToAddress,
		"state":            rec.State,
		"duration_seconds": rec.DurationSeconds(),
		"created_at":       rec.CreatedAt,
		"updated_at":       rec.UpdatedAt,
	}
	if rec.SessionID != "" {
		out["session_id"] = rec.SessionID
	}
	if rec.AnsweredAt != nil {
		out["answered_at"] = rec.AnsweredAt
	}
	if rec.EndedAt != nil {
		out["ended_at"] = rec.EndedAt
	}
	return out
}

func intQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
