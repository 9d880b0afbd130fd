package billing

import (
	"context"
	"encoding/json"
	"time"

	"webhook-gateway/internal/event"
	"webhook-gateway/internal/gateway"
	"webhook-gateway/pkg/logger"
)

// Notifications delivers customer-facing messages triggered by payment
// events. Delivery is best-effort: the service fires these off a detached
// goroutine and a failure never rolls back the record that triggered it.
type Notifications interface {
	PaymentConfirmation(ctx context.Context, rec PaymentRecord) error
	PaymentFailure(ctx context.Context, rec PaymentRecord) error
	TrialEnding(ctx context.Context, rec SubscriptionRecord) error
}

const notifyTimeout = 5 * time.Second

// Service applies payment provider events to the billing repository.
//
// Handlers follow the dispatch contract: malformed payloads are logged and
// absorbed so the delivery still acks; only repository infrastructure errors
// propagate. Every mutation is an upsert, so replays converge.
type Service struct {
	repo     Repository
	notifier Notifications
	now      func() time.Time
}

// NewService builds the service. notifier may be nil; notifications are then
// skipped entirely.
func NewService(repo Repository, notifier Notifications) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

// Register wires the service's handlers into the dispatch table.
func (s *Service) Register(r *gateway.Router) {
	r.Register(gateway.ProviderStripe, "payment_intent.succeeded", s.HandlePaymentSucceeded)
	r.Register(gateway.ProviderStripe, "payment_intent.payment_failed", s.HandlePaymentFailed)
	r.Register(gateway.ProviderStripe, "payment_intent.canceled", s.HandlePaymentCanceled)
	r.Register(gateway.ProviderStripe, "payment_intent.requires_action", s.HandlePaymentRequiresAction)
	r.Register(gateway.ProviderStripe, "checkout.session.completed", s.HandleCheckoutCompleted)
	r.Register(gateway.ProviderStripe, "checkout.session.expired", s.HandleCheckoutExpired)
	r.Register(gateway.ProviderStripe, "invoice.created", s.HandleInvoiceEvent)
	r.Register(gateway.ProviderStripe, "invoice.updated", s.HandleInvoiceEvent)
	r.Register(gateway.ProviderStripe, "invoice.payment_succeeded", s.HandleInvoicePaymentSucceeded)
	r.Register(gateway.ProviderStripe, "invoice.payment_failed", s.HandleInvoicePaymentFailed)
	r.Register(gateway.ProviderStripe, "customer.created", s.HandleCustomerUpserted)
	r.Register(gateway.ProviderStripe, "customer.updated", s.HandleCustomerUpserted)
	r.Register(gateway.ProviderStripe, "customer.deleted", s.HandleCustomerDeleted)
	r.Register(gateway.ProviderStripe, "customer.subscription.created", s.HandleSubscriptionUpserted)
	r.Register(gateway.ProviderStripe, "customer.subscription.updated", s.HandleSubscriptionUpserted)
	r.Register(gateway.ProviderStripe, "customer.subscription.deleted", s.HandleSubscriptionUpserted)
	r.Register(gateway.ProviderStripe, "customer.subscription.trial_will_end", s.HandleTrialWillEnd)
	r.Register(gateway.ProviderStripe, "charge.refunded", s.HandleChargeRefunded)
}

// Payload shapes cover only the provider fields this service reads.

type paymentIntentPayload struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Customer string `json:"customer"`
	Metadata struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

type checkoutSessionPayload struct {
	ID          string `json:"id"`
	AmountTotal int64  `json:"amount_total"`
	Currency    string `json:"currency"`
	Metadata    struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	Status       string `json:"status"`
	AmountDue    int64  `json:"amount_due"`
	AmountPaid   int64  `json:"amount_paid"`
	Currency     string `json:"currency"`
}

type customerPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type subscriptionPayload struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Status            string `json:"status"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64  `json:"current_period_end"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type chargePayload struct {
	ID             string `json:"id"`
	PaymentIntent  string `json:"payment_intent"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
}

func (s *Service) HandlePaymentSucceeded(ctx context.Context, evt event.ProviderEvent) error {
	rec, ok, err := s.upsertPaymentStatus(ctx, evt, PaymentSucceeded)
	if err != nil || !ok {
		return err
	}
	s.notify(ctx, "payment confirmation", func(ctx context.Context) error {
		return s.notifier.PaymentConfirmation(ctx, rec)
	})
	return nil
}

func (s *Service) HandlePaymentFailed(ctx context.Context, evt event.ProviderEvent) error {
	rec, ok, err := s.upsertPaymentStatus(ctx, evt, PaymentFailed)
	if err != nil || !ok {
		return err
	}
	s.notify(ctx, "payment failure notice", func(ctx context.Context) error {
		return s.notifier.PaymentFailure(ctx, rec)
	})
	return nil
}

func (s *Service) HandlePaymentCanceled(ctx context.Context, evt event.ProviderEvent) error {
	_, _, err := s.upsertPaymentStatus(ctx, evt, PaymentCanceled)
	return err
}

func (s *Service) HandlePaymentRequiresAction(ctx context.Context, evt event.ProviderEvent) error {
	_, _, err := s.upsertPaymentStatus(ctx, evt, PaymentRequiresAction)
	return err
}

func (s *Service) upsertPaymentStatus(ctx context.Context, evt event.ProviderEvent, status string) (PaymentRecord, bool, error) {
	var p paymentIntentPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.ID == "" {
		logger.From(ctx).Warn("payment payload missing id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return PaymentRecord{}, false, nil
	}

	rec := PaymentRecord{
		PaymentIntentID: p.ID,
		Status:          status,
		AmountMinor:     p.Amount,
		Currency:        p.Currency,
		CustomerID:      p.Customer,
		OrderID:         p.Metadata.OrderID,
		UpdatedAt:       s.eventTime(evt),
	}
	if err := s.repo.UpsertPayment(ctx, rec); err != nil {
		return PaymentRecord{}, false, err
	}

	logger.From(ctx).Info("payment status updated", "payment_intent_id", p.ID, "status", status)
	return rec, true, nil
}

func (s *Service) HandleCheckoutCompleted(ctx context.Context, evt event.ProviderEvent) error {
	return s.upsertOrderStatus(ctx, evt, OrderCompleted)
}

func (s *Service) HandleCheckoutExpired(ctx context.Context, evt event.ProviderEvent) error {
	return s.upsertOrderStatus(ctx, evt, OrderExpired)
}

func (s *Service) upsertOrderStatus(ctx context.Context, evt event.ProviderEvent, status string) error {
	var p checkoutSessionPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.ID == "" {
		logger.From(ctx).Warn("checkout payload missing id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}
	if p.Metadata.OrderID == "" {
		// Checkout sessions created outside the order flow carry no order
		// reference; nothing to mirror.
		logger.From(ctx).Info("checkout session without order_id metadata, skipping",
			"session_id", p.ID)
		return nil
	}

	err := s.repo.UpsertOrderStatus(ctx, OrderRecord{
		OrderID:           p.Metadata.OrderID,
		Status:            status,
		CheckoutSessionID: p.ID,
		AmountMinor:       p.AmountTotal,
		Currency:          p.Currency,
		UpdatedAt:         s.eventTime(evt),
	})
	if err != nil {
		return err
	}

	logger.From(ctx).Info("order status updated", "order_id", p.Metadata.OrderID, "status", status)
	return nil
}

func (s *Service) HandleInvoiceEvent(ctx context.Context, evt event.ProviderEvent) error {
	return s.upsertInvoice(ctx, evt, "")
}

func (s *Service) HandleInvoicePaymentSucceeded(ctx context.Context, evt event.ProviderEvent) error {
	return s.upsertInvoice(ctx, evt, "paid")
}

func (s *Service) HandleInvoicePaymentFailed(ctx context.Context, evt event.ProviderEvent) error {
	return s.upsertInvoice(ctx, evt, "payment_failed")
}

func (s *Service) upsertInvoice(ctx context.Context, evt event.ProviderEvent, statusOverride string) error {
	var p invoicePayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.ID == "" {
		logger.From(ctx).Warn("invoice payload missing id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}

	status := p.Status
	if statusOverride != "" {
		status = statusOverride
	}

	err := s.repo.UpsertInvoice(ctx, InvoiceRecord{
		InvoiceID:       p.ID,
		CustomerID:      p.Customer,
		SubscriptionID:  p.Subscription,
		Status:          status,
		AmountDueMinor:  p.AmountDue,
		AmountPaidMinor: p.AmountPaid,
		Currency:        p.Currency,
		UpdatedAt:       s.eventTime(evt),
	})
	if err != nil {
		return err
	}

	logger.From(ctx).Info("invoice updated", "invoice_id", p.ID, "status", status)
	return nil
}

func (s *Service) HandleCustomerUpserted(ctx context.Context, evt event.ProviderEvent) error {
	var p customerPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.ID == "" {
		logger.From(ctx).Warn("customer payload missing id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}

	err := s.repo.UpsertCustomer(ctx, CustomerRecord{
		CustomerID: p.ID,
		Email:      p.Email,
		Name:       p.Name,
		UpdatedAt:  s.eventTime(evt),
	})
	if err != nil {
		return err
	}

	logger.From(ctx).Info("customer updated", "customer_id", p.ID)
	return nil
}

func (s *Service) HandleCustomerDeleted(ctx context.Context, evt event.ProviderEvent) error {
	var p customerPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.ID == "" {
		logger.From(ctx).Warn("customer payload missing id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}

	// Soft delete: the record stays for audit, flagged as gone upstream.
	err := s.repo.UpsertCustomer(ctx, CustomerRecord{
		CustomerID: p.ID,
		Email:      p.Email,
		Name:       p.Name,
		Deleted:    true,
		UpdatedAt:  s.eventTime(evt),
	})
	if err != nil {
		return err
	}

	logger.From(ctx).Info("customer deleted", "customer_id", p.ID)
	return nil
}

func (s *Service) HandleSubscriptionUpserted(ctx context.Context, evt event.ProviderEvent) error {
	rec, ok := s.parseSubscription(ctx, evt)
	if !ok {
		return nil
	}
	if err := s.repo.UpsertSubscription(ctx, rec); err != nil {
		return err
	}
	logger.From(ctx).Info("subscription updated",
		"subscription_id", rec.SubscriptionID, "status", rec.Status)
	return nil
}

func (s *Service) HandleTrialWillEnd(ctx context.Context, evt event.ProviderEvent) error {
	rec, ok := s.parseSubscription(ctx, evt)
	if !ok {
		return nil
	}
	if err := s.repo.UpsertSubscription(ctx, rec); err != nil {
		return err
	}
	s.notify(ctx, "trial ending notice", func(ctx context.Context) error {
		return s.notifier.TrialEnding(ctx, rec)
	})
	return nil
}

func (s *Service) parseSubscription(ctx context.Context, evt event.ProviderEvent) (SubscriptionRecord, bool) {
	var p subscriptionPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.ID == "" {
		logger.From(ctx).Warn("subscription payload missing id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return SubscriptionRecord{}, false
	}

	rec := SubscriptionRecord{
		SubscriptionID:    p.ID,
		CustomerID:        p.Customer,
		Status:            p.Status,
		CancelAtPeriodEnd: p.CancelAtPeriodEnd,
		UpdatedAt:         s.eventTime(evt),
	}
	if len(p.Items.Data) > 0 {
		rec.PriceID = p.Items.Data[0].Price.ID
	}
	if p.CurrentPeriodEnd > 0 {
		t := time.Unix(p.CurrentPeriodEnd, 0).UTC()
		rec.CurrentPeriodEnd = &t
	}
	return rec, true
}

func (s *Service) HandleChargeRefunded(ctx context.Context, evt event.ProviderEvent) error {
	var p chargePayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil || p.ID == "" {
		logger.From(ctx).Warn("charge payload missing id, skipping",
			"event_type", evt.EventType, "event_id", evt.EventID)
		return nil
	}

	err := s.repo.UpsertRefund(ctx, RefundRecord{
		ChargeID:            p.ID,
		PaymentIntentID:     p.PaymentIntent,
		AmountRefundedMinor: p.AmountRefunded,
		Currency:            p.Currency,
		UpdatedAt:           s.eventTime(evt),
	})
	if err != nil {
		return err
	}

	logger.From(ctx).Info("charge refunded",
		"charge_id", p.ID, "amount_refunded_minor", p.AmountRefunded)
	return nil
}

func (s *Service) eventTime(evt event.ProviderEvent) time.Time {
	if !evt.OccurredAt.IsZero() {
		return evt.OccurredAt
	}
	return s.now()
}

// notify runs a best-effort notification off the request path. The goroutine
// carries the request's values but not its cancellation, so an acked webhook
// does not cut the send short; failures are only logged.
func (s *Service) notify(ctx context.Context, label string, send func(context.Context) error) {
	if s.notifier == nil {
		return
	}
	log := logger.From(ctx)
	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, notifyTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			log.Warn("notification delivery failed", "notification", label, "err", err)
		}
	}()
}
