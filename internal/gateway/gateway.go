// Package gateway implements the webhook ingestion pipeline: signature
// verification, idempotency against the event store, typed dispatch, and
// best-effort realtime broadcast.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webhook-gateway/internal/event"
	"webhook-gateway/internal/metrics"
	"webhook-gateway/internal/notify"
	"webhook-gateway/internal/signature"
	"webhook-gateway/pkg/logger"
	"webhook-gateway/pkg/storage"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusProcessed Status = "processed"
	StatusDuplicate Status = "duplicate"
	StatusIgnored   Status = "ignored"
)

var (
	ErrUnknownProvider  = errors.New("gateway: unknown provider")
	ErrInvalidSignature = errors.New("gateway: invalid signature")
	ErrMalformedEvent   = errors.New("gateway: malformed event")
	ErrDispatchFailed   = errors.New("gateway: dispatch failed")
)

// Result is the acknowledgment returned to the webhook HTTP layer.
type Result struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Status    Status `json:"status"`
}

type Config struct {
	// HandlerTimeout bounds each handler's external calls so one slow
	// dependency cannot stall the webhook response into the provider's
	// retry timeout.
	HandlerTimeout time.Duration
	// RedeliveryWindow: see event.Store.Claim.
	RedeliveryWindow time.Duration
	// ClaimTTL is the lifetime of the advisory Redis in-flight claim.
	ClaimTTL time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.HandlerTimeout <= 0 {
		out.HandlerTimeout = 10 * time.Second
	}
	if out.RedeliveryWindow <= 0 {
		out.RedeliveryWindow = 5 * time.Minute
	}
	if out.ClaimTTL <= 0 {
		out.ClaimTTL = 30 * time.Second
	}
	return out
}

// Gateway runs the verify -> claim -> dispatch -> mark-processed -> notify
// pipeline for one inbound delivery at a time. It holds no per-request state
// and is safe for concurrent use.
type Gateway struct {
	store     event.Store
	router    *Router
	verifiers map[string]signature.Verifier
	notifier  notify.Notifier
	metrics   *metrics.Gateway

	// rdb, when set, backs the advisory in-flight claim that collapses the
	// concurrent duplicate-delivery window. Advisory only: Redis being down
	// must never block ingestion.
	rdb *redis.Client

	cfg Config
	now func() time.Time
}

func New(store event.Store, router *Router, verifiers map[string]signature.Verifier, notifier notify.Notifier, m *metrics.Gateway, rdb *redis.Client, cfg Config) *Gateway {
	return &Gateway{
		store:     store,
		router:    router,
		verifiers: verifiers,
		notifier:  notifier,
		metrics:   m,
		rdb:       rdb,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

// Process handles one raw webhook delivery.
//
// Error taxonomy mapping:
// - ErrUnknownProvider / ErrInvalidSignature / ErrMalformedEvent: rejected
//   before any state change.
// - ErrDispatchFailed: infrastructure failure inside a handler; the event
//   stays claimed-unprocessed so the provider's retry can take over after the
//   redelivery window.
// - Everything else (duplicates, unknown event types, handler soft failures,
//   store hiccups) acknowledges success to avoid duplicate-delivery storms.
func (g *Gateway) Process(ctx context.Context, provider string, body []byte, sigHeader string) (Result, error) {
	g.metrics.Received(provider)

	verifier, ok := g.verifiers[provider]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if !verifier.Verify(body, sigHeader) {
		g.metrics.Outcome(provider, metrics.OutcomeRejected)
		logger.From(ctx).Warn("webhook signature verification failed", "provider", provider)
		return Result{}, ErrInvalidSignature
	}

	evt, err := ParseEnvelope(provider, body)
	if err != nil {
		g.metrics.Outcome(provider, metrics.OutcomeRejected)
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	log := logger.From(ctx).With(
		"provider", evt.Provider,
		"event_id", evt.EventID,
		"event_type", evt.EventType,
	)
	ctx = logger.With(ctx, log)

	now := g.now().UTC()

	// Advisory in-flight claim. The durable idempotency decision belongs to
	// the event store below; this only narrows the concurrent window.
	claimKey := "webhook:claim:" + evt.Provider + ":" + evt.EventID
	redisClaimed := false
	if g.rdb != nil {
		acquired, err := storage.AcquireEventClaim(ctx, g.rdb, claimKey, g.cfg.ClaimTTL)
		if err != nil {
			log.Warn("in-flight claim unavailable, continuing", "err", err)
		} else if !acquired {
			log.Info("duplicate delivery suppressed by in-flight claim")
			g.metrics.Outcome(provider, metrics.OutcomeDuplicate)
			return Result{EventID: evt.EventID, EventType: evt.EventType, Status: StatusDuplicate}, nil
		} else {
			redisClaimed = true
		}
	}

	claimed, err := g.store.Claim(ctx, event.InboundEvent{
		ID:              uuid.NewString(),
		Provider:        evt.Provider,
		ProviderEventID: evt.EventID,
		EventType:       evt.EventType,
		RawPayload:      evt.Raw,
		ReceivedAt:      now,
	}, g.cfg.RedeliveryWindow)
	if err != nil {
		// Availability over strict idempotency: process anyway, alert internally.
		log.Error("event store claim failed, processing without durable claim", "err", err)
		g.metrics.StoreFailure()
		claimed = true
	}
	if !claimed {
		log.Info("event already processed, skipping")
		g.metrics.Outcome(provider, metrics.OutcomeDuplicate)
		return Result{EventID: evt.EventID, EventType: evt.EventType, Status: StatusDuplicate}, nil
	}

	handler, ok := g.router.Lookup(evt.Provider, evt.EventType)
	if !ok {
		// Intentionally ignored event types must not be retried by the
		// provider: record, mark processed, acknowledge.
		log.Info("no handler for event type, acknowledging")
		g.markProcessed(ctx, evt, now)
		g.metrics.Outcome(provider, metrics.OutcomeIgnored)
		return Result{EventID: evt.EventID, EventType: evt.EventType, Status: StatusIgnored}, nil
	}

	hctx, cancel := context.WithTimeout(ctx, g.cfg.HandlerTimeout)
	start := g.now()
	err = handler(hctx, evt)
	cancel()
	g.metrics.ObserveHandler(evt.Provider, evt.EventType, g.now().Sub(start))

	if err != nil {
		log.Error("handler failed", "err", err)
		g.metrics.Outcome(provider, metrics.OutcomeFailed)
		if redisClaimed {
			if relErr := storage.ReleaseEventClaim(ctx, g.rdb, claimKey); relErr != nil {
				log.Warn("in-flight claim release failed", "err", relErr)
			}
		}
		return Result{}, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	g.markProcessed(ctx, evt, g.now().UTC())
	g.broadcast(ctx, evt)
	g.metrics.Outcome(provider, metrics.OutcomeProcessed)
	return Result{EventID: evt.EventID, EventType: evt.EventType, Status: StatusProcessed}, nil
}

func (g *Gateway) markProcessed(ctx context.Context, evt event.ProviderEvent, at time.Time) {
	if err := g.store.MarkProcessed(ctx, evt.Provider, evt.EventID, at); err != nil {
		logger.From(ctx).Error("mark processed failed", "err", err)
		g.metrics.StoreFailure()
	}
}

// broadcast notifies dashboard subscribers. Bounded so a slow pub/sub hop
// cannot stall the webhook response; failures are logged and counted, never
// propagated.
func (g *Gateway) broadcast(ctx context.Context, evt event.ProviderEvent) {
	if g.notifier == nil {
		return
	}
	msg := notify.Message{
		EventType: evt.EventType,
		Payload:   evt.Payload,
		Timestamp: g.now().UTC(),
	}
	nctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := g.notifier.Broadcast(nctx, msg); err != nil {
		logger.From(ctx).Warn("broadcast failed", "event_type", msg.EventType, "err", err)
		g.metrics.NotifyFailure()
	}
}
