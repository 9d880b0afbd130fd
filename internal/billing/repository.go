package billing

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("billing: record not found")

// Repository persists billing mirrors. Every mutation is an upsert keyed by
// the provider's identifier so replayed and concurrent duplicate deliveries
// converge on the same state.
type Repository interface {
	UpsertPayment(ctx context.Context, rec PaymentRecord) error
	GetPayment(ctx context.Context, paymentIntentID string) (PaymentRecord, error)

	// UpsertOrderStatus moves an order to status, creating the record when the
	// checkout session is the first we hear of the order.
	UpsertOrderStatus(ctx context.Context, rec OrderRecord) error
	GetOrder(ctx context.Context, orderID string) (OrderRecord, error)

	UpsertCustomer(ctx context.Context, rec CustomerRecord) error
	GetCustomer(ctx context.Context, customerID string) (CustomerRecord, error)

	UpsertSubscription(ctx context.Context, rec SubscriptionRecord) error
	GetSubscription(ctx context.Context, subscriptionID string) (SubscriptionRecord, error)

	UpsertInvoice(ctx context.Context, rec InvoiceRecord) error
	GetInvoice(ctx context.Context, invoiceID string) (InvoiceRecord, error)

	UpsertRefund(ctx context.Context, rec RefundRecord) error
	GetRefund(ctx context.Context, chargeID string) (RefundRecord, error)
}
