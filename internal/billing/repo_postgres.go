package billing

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo stores billing mirrors across the billing_* tables. All writes
// are single-statement upserts; no cross-record invariants need transactions.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) UpsertPayment(ctx context.Context, rec PaymentRecord) error {
	const q = `
INSERT INTO billing_payments (payment_intent_id, status, amount_minor, currency, customer_id, order_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (payment_intent_id)
DO UPDATE SET status       = EXCLUDED.status,
              amount_minor = EXCLUDED.amount_minor,
              currency     = EXCLUDED.currency,
              customer_id  = EXCLUDED.customer_id,
              order_id     = EXCLUDED.order_id,
              updated_at   = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.PaymentIntentID, rec.Status, rec.AmountMinor, rec.Currency,
		rec.CustomerID, rec.OrderID, rec.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetPayment(ctx context.Context, paymentIntentID string) (PaymentRecord, error) {
	const q = `
SELECT payment_intent_id, status, amount_minor, currency, customer_id, order_id, created_at, updated_at
FROM billing_payments
WHERE payment_intent_id = $1
`
	var rec PaymentRecord
	err := r.db.QueryRowContext(ctx, q, paymentIntentID).Scan(
		&rec.PaymentIntentID, &rec.Status, &rec.AmountMinor, &rec.Currency,
		&rec.CustomerID, &rec.OrderID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PaymentRecord{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepo) UpsertOrderStatus(ctx context.Context, rec OrderRecord) error {
	const q = `
INSERT INTO billing_orders (order_id, status, checkout_session_id, amount_minor, currency, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
ON CONFLICT (order_id)
DO UPDATE SET status              = EXCLUDED.status,
              checkout_session_id = EXCLUDED.checkout_session_id,
              amount_minor        = EXCLUDED.amount_minor,
              currency            = EXCLUDED.currency,
              updated_at          = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.OrderID, rec.Status, rec.CheckoutSessionID, rec.AmountMinor,
		rec.Currency, rec.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetOrder(ctx context.Context, orderID string) (OrderRecord, error) {
	const q = `
SELECT order_id, status, checkout_session_id, amount_minor, currency, created_at, updated_at
FROM billing_orders
WHERE order_id = $1
`
	var rec OrderRecord
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(
		&rec.OrderID, &rec.Status, &rec.CheckoutSessionID, &rec.AmountMinor,
		&rec.Currency, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return OrderRecord{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepo) UpsertCustomer(ctx context.Context, rec CustomerRecord) error {
	const q = `
INSERT INTO billing_customers (customer_id, email, name, deleted, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (customer_id)
DO UPDATE SET email      = EXCLUDED.email,
              name       = EXCLUDED.name,
              deleted    = EXCLUDED.deleted,
              updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.CustomerID, rec.Email, rec.Name, rec.Deleted, rec.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetCustomer(ctx context.Context, customerID string) (CustomerRecord, error) {
	const q = `
SELECT customer_id, email, name, deleted, created_at, updated_at
FROM billing_customers
WHERE customer_id = $1
`
	var rec CustomerRecord
	err := r.db.QueryRowContext(ctx, q, customerID).Scan(
		&rec.CustomerID, &rec.Email, &rec.Name, &rec.Deleted,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return CustomerRecord{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepo) UpsertSubscription(ctx context.Context, rec SubscriptionRecord) error {
	const q = `
INSERT INTO billing_subscriptions (subscription_id, customer_id, status, price_id, current_period_end, cancel_at_period_end, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (subscription_id)
DO UPDATE SET customer_id          = EXCLUDED.customer_id,
              status               = EXCLUDED.status,
              price_id             = EXCLUDED.price_id,
              current_period_end   = EXCLUDED.current_period_end,
              cancel_at_period_end = EXCLUDED.cancel_at_period_end,
              updated_at           = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.SubscriptionID, rec.CustomerID, rec.Status, rec.PriceID,
		rec.CurrentPeriodEnd, rec.CancelAtPeriodEnd, rec.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetSubscription(ctx context.Context, subscriptionID string) (SubscriptionRecord, error) {
	const q = `
SELECT subscription_id, customer_id, status, price_id, current_period_end, cancel_at_period_end, created_at, updated_at
FROM billing_subscriptions
WHERE subscription_id = $1
`
	var (
		rec       SubscriptionRecord
		periodEnd sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, q, subscriptionID).Scan(
		&rec.SubscriptionID, &rec.CustomerID, &rec.Status, &rec.PriceID,
		&periodEnd, &rec.CancelAtPeriodEnd, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SubscriptionRecord{}, ErrNotFound
	}
	if err != nil {
		return SubscriptionRecord{}, err
	}
	if periodEnd.Valid {
		t := periodEnd.Time
		rec.CurrentPeriodEnd = &t
	}
	return rec, nil
}

func (r *PostgresRepo) UpsertInvoice(ctx context.Context, rec InvoiceRecord) error {
	const q = `
INSERT INTO billing_invoices (invoice_id, customer_id, subscription_id, status, amount_due_minor, amount_paid_minor, currency, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
ON CONFLICT (invoice_id)
DO UPDATE SET customer_id       = EXCLUDED.customer_id,
              subscription_id   = EXCLUDED.subscription_id,
              status            = EXCLUDED.status,
              amount_due_minor  = EXCLUDED.amount_due_minor,
              amount_paid_minor = EXCLUDED.amount_paid_minor,
              currency          = EXCLUDED.currency,
              updated_at        = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.InvoiceID, rec.CustomerID, rec.SubscriptionID, rec.Status,
		rec.AmountDueMinor, rec.AmountPaidMinor, rec.Currency, rec.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetInvoice(ctx context.Context, invoiceID string) (InvoiceRecord, error) {
	const q = `
SELECT invoice_id, customer_id, subscription_id, status, amount_due_minor, amount_paid_minor, currency, created_at, updated_at
FROM billing_invoices
WHERE invoice_id = $1
`
	var rec InvoiceRecord
	err := r.db.QueryRowContext(ctx, q, invoiceID).Scan(
		&rec.InvoiceID, &rec.CustomerID, &rec.SubscriptionID, &rec.Status,
		&rec.AmountDueMinor, &rec.AmountPaidMinor, &rec.Currency,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return InvoiceRecord{}, ErrNotFound
	}
	return rec, err
}

func (r *PostgresRepo) UpsertRefund(ctx context.Context, rec RefundRecord) error {
	const q = `
INSERT INTO billing_refunds (charge_id, payment_intent_id, amount_refunded_minor, currency, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (charge_id)
DO UPDATE SET payment_intent_id     = EXCLUDED.payment_intent_id,
              amount_refunded_minor = EXCLUDED.amount_refunded_minor,
              currency              = EXCLUDED.currency,
              updated_at            = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.ChargeID, rec.PaymentIntentID, rec.AmountRefundedMinor,
		rec.Currency, rec.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetRefund(ctx context.Context, chargeID string) (RefundRecord, error) {
	const q = `
SELECT charge_id, payment_intent_id, amount_refunded_minor, currency, created_at, updated_at
FROM billing_refunds
WHERE charge_id = $1
`
	var rec RefundRecord
	err := r.db.QueryRowContext(ctx, q, chargeID).Scan(
		&rec.ChargeID, &rec.PaymentIntentID, &rec.AmountRefundedMinor,
		&rec.Currency, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RefundRecord{}, ErrNotFound
	}
	return rec, err
}
