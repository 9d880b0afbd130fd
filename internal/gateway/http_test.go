package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"webhook-gateway/internal/event"
	"webhook-gateway/internal/notify"
	"webhook-gateway/internal/signature"

	"github.com/gin-gonic/gin"
)

func newTestServer(t *testing.T) (*gin.Engine, *testEnv) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := newTestEnv(t, nil)
	h := Handlers{Gateway: env.gw, Store: env.store}

	r := gin.New()
	r.POST("/webhooks/:provider", h.HandleWebhook)
	r.GET("/webhooks/events", h.ListEvents)
	r.GET("/webhooks/events/:provider/:id", h.GetEvent)
	r.GET("/webhooks/stats", h.GetStats)
	return r, env
}

func postWebhook(r *gin.Engine, provider string, body []byte, sigHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+provider, strings.NewReader(string(body)))
	if sigHeader != "" {
		req.Header.Set(SignatureHeader(provider), sigHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not JSON: %v (%s)", err, w.Body.String())
	}
	return out
}

func TestWebhookEndpointProcessed(t *testing.T) {
	r, env := newTestServer(t)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	body := stripeBody("evt_http_1", "payment_intent.succeeded")
	w := postWebhook(r, ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["received"] != true || resp["status"] != "processed" {
		t.Errorf("response = %v", resp)
	}
	if resp["event_id"] != "evt_http_1" {
		t.Errorf("event_id = %v", resp["event_id"])
	}
}

func TestWebhookEndpointDuplicateAck(t *testing.T) {
	r, env := newTestServer(t)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	body := stripeBody("evt_http_2", "payment_intent.succeeded")
	sig := stripeSig(testStripeSecret, time.Now(), body)

	if w := postWebhook(r, ProviderStripe, body, sig); w.Code != http.StatusOK {
		t.Fatalf("first delivery status = %d", w.Code)
	}
	w := postWebhook(r, ProviderStripe, body, sig)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["status"] != "duplicate" {
		t.Errorf("replay status field = %v, want duplicate", resp["status"])
	}
	if env.calls != 1 {
		t.Errorf("handler invoked %d times, want 1", env.calls)
	}
}

func TestWebhookEndpointRejectsBadSignature(t *testing.T) {
	r, env := newTestServer(t)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	body := stripeBody("evt_http_3", "payment_intent.succeeded")
	w := postWebhook(r, ProviderStripe, body, "t=123,v1=deadbeef")

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if env.calls != 0 {
		t.Error("handler invoked despite rejected signature")
	}
	if _, total, _ := env.store.List(context.Background(), 1, 10); total != 0 {
		t.Error("event store mutated by rejected delivery")
	}
}

func TestWebhookEndpointUnhandledTypeAcks(t *testing.T) {
	r, _ := newTestServer(t)

	body := stripeBody("evt_http_4", "foo.unhandled")
	w := postWebhook(r, ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp := decodeBody(t, w); resp["status"] != "ignored" {
		t.Errorf("status field = %v, want ignored", resp["status"])
	}
}

func TestWebhookEndpointUnknownProvider(t *testing.T) {
	r, _ := newTestServer(t)

	w := postWebhook(r, "sinch", []byte(`{}`), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestWebhookEndpointMalformedBody(t *testing.T) {
	r, _ := newTestServer(t)

	body := []byte(`{"type":"payment_intent.succeeded"}`)
	w := postWebhook(r, ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestWebhookEndpointHandlerFailure(t *testing.T) {
	r, env := newTestServer(t)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", func(context.Context, event.ProviderEvent) error {
		return context.DeadlineExceeded
	})

	body := stripeBody("evt_http_5", "payment_intent.succeeded")
	w := postWebhook(r, ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so the provider retries", w.Code)
	}
}

func TestEventInspectionEndpoints(t *testing.T) {
	r, env := newTestServer(t)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	body := stripeBody("evt_http_6", "payment_intent.succeeded")
	if w := postWebhook(r, ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body)); w.Code != http.StatusOK {
		t.Fatalf("seed delivery status = %d", w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/events?page=1&limit=10", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := decodeBody(t, w)
	if resp["total"] != float64(1) {
		t.Errorf("list total = %v, want 1", resp["total"])
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/events/stripe/evt_http_6", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	got := decodeBody(t, w)
	if got["processed"] != true {
		t.Errorf("stored event processed = %v, want true", got["processed"])
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/events/stripe/evt_missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing event status = %d, want 404", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	st := decodeBody(t, w)
	if st["total"] != float64(1) || st["processed"] != float64(1) {
		t.Errorf("stats = %v", st)
	}
}

// Notifier wiring sanity: the HTTP path ends in a broadcast subscribers see.
func TestWebhookEndpointBroadcasts(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := event.NewMemoryStore()
	router := NewRouter()
	router.Register(ProviderTelnyx, "call.initiated", func(context.Context, event.ProviderEvent) error { return nil })
	notifier := notify.NewMemoryNotifier()
	verifiers := map[string]signature.Verifier{
		ProviderTelnyx: signature.NewTelnyxVerifier(testTelnyxSecret, nil),
	}
	gw := New(store, router, verifiers, notifier, nil, nil, Config{})

	r := gin.New()
	r.POST("/webhooks/:provider", Handlers{Gateway: gw, Store: store}.HandleWebhook)

	body := []byte(`{"data":{"id":"evt_b1","event_type":"call.initiated","occurred_at":"2025-03-01T12:00:00Z","payload":{"call_control_id":"cc_9"}}}`)
	w := postWebhook(r, ProviderTelnyx, body, telnyxSig(testTelnyxSecret, body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	msgs := notifier.Messages()
	if len(msgs) != 1 || msgs[0].EventType != "call.initiated" {
		t.Errorf("broadcasts = %+v, want one call.initiated", msgs)
	}
}
