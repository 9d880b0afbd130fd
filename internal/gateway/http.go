package gateway

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"webhook-gateway/internal/event"
	"webhook-gateway/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Provider envelopes are small; anything bigger is not a webhook.
const maxWebhookBody = 1 << 20 // 1 MiB

// Handlers groups the gateway's HTTP handlers for dependency injection.
// Keep these thin: parse input, call the pipeline or the store, return JSON.
type Handlers struct {
	Gateway *Gateway
	Store   event.Store

	Now func() time.Time
}

// HandleWebhook ingests POST /webhooks/:provider.
//
// Response contract (what the provider's retry logic sees):
// - 200: processed, duplicate, or intentionally ignored
// - 400/401: malformed or unauthenticated; retrying cannot succeed
// - 404: unknown provider path
// - 500: genuine processing failure; the provider should retry
func (h Handlers) HandleWebhook(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Gateway == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "gateway not configured"})
		return
	}

	provider := strings.ToLower(c.Param("provider"))
	if !KnownProvider(provider) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		log.Warn("webhook body read failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if len(body) > maxWebhookBody {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
		return
	}

	sigHeader := c.GetHeader(SignatureHeader(provider))

	res, err := h.Gateway.Process(c.Request.Context(), provider, body, sigHeader)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		case errors.Is(err, ErrMalformedEvent):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		case errors.Is(err, ErrUnknownProvider):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		default:
			log.Error("webhook processing failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received":   true,
		"status":     res.Status,
		"event_id":   res.EventID,
		"event_type": res.EventType,
	})
}

// ListEvents serves GET /webhooks/events?page=&limit= for operational inspection.
func (h Handlers) ListEvents(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}

	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	events, total, err := h.Store.List(c.Request.Context(), page, limit)
	if err != nil {
		logger.FromGin(c).Error("event list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event list failed"})
		return
	}

	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	c.JSON(http.StatusOK, gin.H{
		"events":       events,
		"total":        total,
		"pages":        pages,
		"current_page": page,
	})
}

// GetEvent serves GET /webhooks/events/:provider/:id.
func (h Handlers) GetEvent(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}

	provider := strings.ToLower(c.Param("provider"))
	id := c.Param("id")
	if provider == "" || id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "provider and id required"})
		return
	}

	e, err := h.Store.Get(c.Request.Context(), provider, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		logger.FromGin(c).Error("event lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event lookup failed"})
		return
	}
	c.JSON(http.StatusOK, e)
}

// GetStats serves GET /webhooks/stats.
func (h Handlers) GetStats(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	st, err := h.Store.Stats(c.Request.Context(), now().UTC())
	if err != nil {
		logger.FromGin(c).Error("stats query failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "stats query failed"})
		return
	}
	c.JSON(http.StatusOK, st)
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
