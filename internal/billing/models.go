package billing

import "time"

// Billing records mirror the payment provider's objects. The provider owns
// every lifecycle; webhook deliveries only replace our copy of its state,
// which keeps every write an upsert and every replay harmless.

// Payment statuses follow the provider's payment_intent states.
const (
	PaymentSucceeded      = "succeeded"
	PaymentFailed         = "failed"
	PaymentCanceled       = "canceled"
	PaymentRequiresAction = "requires_action"
)

const (
	OrderCompleted = "completed"
	OrderExpired   = "expired"
)

type PaymentRecord struct {
	PaymentIntentID string    `json:"payment_intent_id" db:"payment_intent_id"`
	Status          string    `json:"status" db:"status"`
	AmountMinor     int64     `json:"amount_minor" db:"amount_minor"`
	Currency        string    `json:"currency" db:"currency"`
	CustomerID      string    `json:"customer_id,omitempty" db:"customer_id"`
	OrderID         string    `json:"order_id,omitempty" db:"order_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type OrderRecord struct {
	OrderID           string    `json:"order_id" db:"order_id"`
	Status            string    `json:"status" db:"status"`
	CheckoutSessionID string    `json:"checkout_session_id,omitempty" db:"checkout_session_id"`
	AmountMinor       int64     `json:"amount_minor" db:"amount_minor"`
	Currency          string    `json:"currency" db:"currency"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

type CustomerRecord struct {
	CustomerID string    `json:"customer_id" db:"customer_id"`
	Email      string    `json:"email,omitempty" db:"email"`
	Name       string    `json:"name,omitempty" db:"name"`
	Deleted    bool      `json:"deleted" db:"deleted"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type SubscriptionRecord struct {
	SubscriptionID    string     `json:"subscription_id" db:"subscription_id"`
	CustomerID        string     `json:"customer_id" db:"customer_id"`
	Status            string     `json:"status" db:"status"`
	PriceID           string     `json:"price_id,omitempty" db:"price_id"`
	CurrentPeriodEnd  *time.Time `json:"current_period_end,omitempty" db:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

type InvoiceRecord struct {
	InvoiceID       string    `json:"invoice_id" db:"invoice_id"`
	CustomerID      string    `json:"customer_id,omitempty" db:"customer_id"`
	SubscriptionID  string    `json:"subscription_id,omitempty" db:"subscription_id"`
	Status          string    `json:"status" db:"status"`
	AmountDueMinor  int64     `json:"amount_due_minor" db:"amount_due_minor"`
	AmountPaidMinor int64     `json:"amount_paid_minor" db:"amount_paid_minor"`
	Currency        string    `json:"currency" db:"currency"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

type RefundRecord struct {
	ChargeID            string    `json:"charge_id" db:"charge_id"`
	PaymentIntentID     string    `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	AmountRefundedMinor int64     `json:"amount_refunded_minor" db:"amount_refunded_minor"`
	Currency            string    `json:"currency" db:"currency"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
