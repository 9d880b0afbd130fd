package billing

import (
	"context"

	"webhook-gateway/pkg/logger"
)

// LogNotifications is the default Notifications sink. Actual delivery
// channels (email, SMS) hang off an external service; until one is wired in,
// every notification is recorded in the log so nothing disappears silently.
type LogNotifications struct{}

func (LogNotifications) PaymentConfirmation(ctx context.Context, rec PaymentRecord) error {
	logger.From(ctx).Info("payment confirmation queued",
		"payment_intent_id", rec.PaymentIntentID, "customer_id", rec.CustomerID)
	return nil
}

func (LogNotifications) PaymentFailure(ctx context.Context, rec PaymentRecord) error {
	logger.From(ctx).Info("payment failure notice queued",
		"payment_intent_id", rec.PaymentIntentID, "customer_id", rec.CustomerID)
	return nil
}

func (LogNotifications) TrialEnding(ctx context.Context, rec SubscriptionRecord) error {
	logger.From(ctx).Info("trial ending notice queued",
		"subscription_id", rec.SubscriptionID, "customer_id", rec.CustomerID)
	return nil
}
