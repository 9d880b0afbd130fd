package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"webhook-gateway/internal/event"
	"webhook-gateway/internal/notify"
	"webhook-gateway/internal/signature"
	"webhook-gateway/pkg/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testStripeSecret = "whsec_test"
	testTelnyxSecret = "telnyx_test"
)

func stripeSig(secret string, ts time.Time, payload []byte) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", t, hex.EncodeToString(mac.Sum(nil)))
}

func telnyxSig(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func stripeBody(eventID, eventType string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"created":1740830400,"data":{"object":{"id":"pi_001","amount":4200}}}`,
		eventID, eventType))
}

type testEnv struct {
	gw       *Gateway
	store    *event.MemoryStore
	router   *Router
	notifier *notify.MemoryNotifier
	calls    int
}

func newTestEnv(t *testing.T, rdb *redis.Client) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    event.NewMemoryStore(),
		router:   NewRouter(),
		notifier: notify.NewMemoryNotifier(),
	}
	verifiers := map[string]signature.Verifier{
		ProviderStripe: signature.NewStripeVerifier(testStripeSecret, 5*time.Minute, nil),
		ProviderTelnyx: signature.NewTelnyxVerifier(testTelnyxSecret, nil),
	}
	env.gw = New(env.store, env.router, verifiers, env.notifier, nil, rdb, Config{})
	return env
}

func (e *testEnv) countingHandler(err error) HandlerFunc {
	return func(context.Context, event.ProviderEvent) error {
		e.calls++
		return err
	}
}

func TestProcessPaymentSucceededScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	body := stripeBody("evt_pi_001", "payment_intent.succeeded")
	res, err := env.gw.Process(context.Background(), ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Status != StatusProcessed {
		t.Errorf("status = %q, want processed", res.Status)
	}
	if res.EventID != "evt_pi_001" || res.EventType != "payment_intent.succeeded" {
		t.Errorf("result = %+v", res)
	}
	if env.calls != 1 {
		t.Errorf("handler invoked %d times, want 1", env.calls)
	}

	stored, err := env.store.Get(context.Background(), ProviderStripe, "evt_pi_001")
	if err != nil {
		t.Fatalf("stored event: %v", err)
	}
	if !stored.Processed || stored.ProcessedAt == nil {
		t.Errorf("stored event not marked processed: %+v", stored)
	}

	msgs := env.notifier.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d broadcasts, want 1", len(msgs))
	}
	if msgs[0].EventType != "payment_intent.succeeded" {
		t.Errorf("broadcast event_type = %q", msgs[0].EventType)
	}
}

func TestReplayedDeliveryIsDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	body := stripeBody("evt_replay", "payment_intent.succeeded")
	sig := stripeSig(testStripeSecret, time.Now(), body)

	if _, err := env.gw.Process(context.Background(), ProviderStripe, body, sig); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	res, err := env.gw.Process(context.Background(), ProviderStripe, body, sig)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if res.Status != StatusDuplicate {
		t.Errorf("second delivery status = %q, want duplicate", res.Status)
	}
	if env.calls != 1 {
		t.Errorf("handler invoked %d times across replay, want 1", env.calls)
	}
	if len(env.notifier.Messages()) != 1 {
		t.Errorf("got %d broadcasts across replay, want 1", len(env.notifier.Messages()))
	}
}

func TestInvalidSignatureNeverReachesHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	body := stripeBody("evt_bad_sig", "payment_intent.succeeded")
	for _, header := range []string{
		"",
		"garbage",
		stripeSig("whsec_wrong", time.Now(), body),
		stripeSig(testStripeSecret, time.Now().Add(-time.Hour), body),
	} {
		_, err := env.gw.Process(context.Background(), ProviderStripe, body, header)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("header %q: err = %v, want ErrInvalidSignature", header, err)
		}
	}

	if env.calls != 0 {
		t.Errorf("handler invoked %d times on invalid signatures, want 0", env.calls)
	}
	if _, total, _ := env.store.List(context.Background(), 1, 10); total != 0 {
		t.Errorf("event store gained %d records from rejected deliveries", total)
	}
	if len(env.notifier.Messages()) != 0 {
		t.Error("broadcast observed for rejected delivery")
	}
}

func TestUnknownEventTypeAcknowledged(t *testing.T) {
	env := newTestEnv(t, nil)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	body := stripeBody("evt_foo", "foo.unhandled")
	res, err := env.gw.Process(context.Background(), ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Status != StatusIgnored {
		t.Errorf("status = %q, want ignored", res.Status)
	}
	if env.calls != 0 {
		t.Errorf("handler invoked %d times for unhandled type, want 0", env.calls)
	}

	// The delivery is recorded and marked processed so the provider never
	// retries it.
	stored, err := env.store.Get(context.Background(), ProviderStripe, "evt_foo")
	if err != nil {
		t.Fatalf("stored event: %v", err)
	}
	if !stored.Processed {
		t.Error("ignored event not marked processed")
	}
	if len(env.notifier.Messages()) != 0 {
		t.Error("broadcast observed for ignored event")
	}
}

func TestMalformedEnvelopeRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	body := []byte(`{"type":"payment_intent.succeeded"}`) // no id
	_, err := env.gw.Process(context.Background(), ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body))
	if !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("err = %v, want ErrMalformedEvent", err)
	}
}

func TestUnknownProviderRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.gw.Process(context.Background(), "sinch", []byte(`{}`), "")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestHandlerInfrastructureFailureAllowsRetry(t *testing.T) {
	env := newTestEnv(t, nil)

	fail := true
	env.router.Register(ProviderStripe, "payment_intent.succeeded", func(context.Context, event.ProviderEvent) error {
		env.calls++
		if fail {
			return errors.New("db unavailable")
		}
		return nil
	})

	body := stripeBody("evt_retry", "payment_intent.succeeded")
	sig := stripeSig(testStripeSecret, time.Now(), body)

	_, err := env.gw.Process(context.Background(), ProviderStripe, body, sig)
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("err = %v, want ErrDispatchFailed", err)
	}

	stored, err := env.store.Get(context.Background(), ProviderStripe, "evt_retry")
	if err != nil {
		t.Fatalf("stored event: %v", err)
	}
	if stored.Processed {
		t.Fatal("failed event marked processed")
	}

	// Provider redelivers after the redelivery window; the stale unprocessed
	// claim is taken over and the handler runs again.
	fail = false
	env.gw.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	res, err := env.gw.Process(context.Background(), ProviderStripe, body, sig)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if res.Status != StatusProcessed {
		t.Errorf("redelivery status = %q, want processed", res.Status)
	}
	if env.calls != 2 {
		t.Errorf("handler invoked %d times, want 2", env.calls)
	}
}

func TestRedeliveryBeforeWindowIsDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", func(context.Context, event.ProviderEvent) error {
		env.calls++
		return errors.New("db unavailable")
	})

	body := stripeBody("evt_early", "payment_intent.succeeded")
	sig := stripeSig(testStripeSecret, time.Now(), body)

	if _, err := env.gw.Process(context.Background(), ProviderStripe, body, sig); !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("first delivery err = %v, want ErrDispatchFailed", err)
	}

	// The unprocessed claim is still fresh; an eager redelivery is suppressed
	// rather than racing the original.
	res, err := env.gw.Process(context.Background(), ProviderStripe, body, sig)
	if err != nil {
		t.Fatalf("eager redelivery: %v", err)
	}
	if res.Status != StatusDuplicate {
		t.Errorf("eager redelivery status = %q, want duplicate", res.Status)
	}
	if env.calls != 1 {
		t.Errorf("handler invoked %d times, want 1", env.calls)
	}
}

func TestInflightClaimSuppressesConcurrentDuplicate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := newTestEnv(t, rdb)
	env.router.Register(ProviderStripe, "payment_intent.succeeded", env.countingHandler(nil))

	// Another delivery of the same event is mid-flight.
	key := "webhook:claim:stripe:evt_inflight"
	acquired, err := storage.AcquireEventClaim(context.Background(), rdb, key, time.Minute)
	if err != nil || !acquired {
		t.Fatalf("seed claim: acquired=%v err=%v", acquired, err)
	}

	body := stripeBody("evt_inflight", "payment_intent.succeeded")
	res, err := env.gw.Process(context.Background(), ProviderStripe, body, stripeSig(testStripeSecret, time.Now(), body))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Status != StatusDuplicate {
		t.Errorf("status = %q, want duplicate", res.Status)
	}
	if env.calls != 0 {
		t.Errorf("handler invoked %d times behind in-flight claim, want 0", env.calls)
	}
	if _, total, _ := env.store.List(context.Background(), 1, 10); total != 0 {
		t.Errorf("event store gained %d records behind in-flight claim", total)
	}
}

func TestRedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close() // claim lookups now error

	env := newTestEnv(t, rdb)
	env.router.Register(ProviderTelnyx, "call.initiated", env.countingHandler(nil))

	body := []byte(`{"data":{"id":"evt_t1","event_type":"call.initiated","occurred_at":"2025-03-01T12:00:00Z","payload":{"call_control_id":"cc_1"}}}`)
	res, err := env.gw.Process(context.Background(), ProviderTelnyx, body, telnyxSig(testTelnyxSecret, body))
	if err != nil {
		t.Fatalf("Process with redis down: %v", err)
	}
	if res.Status != StatusProcessed {
		t.Errorf("status = %q, want processed", res.Status)
	}
	if env.calls != 1 {
		t.Errorf("handler invoked %d times, want 1", env.calls)
	}
}
