package billing

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu            sync.Mutex
	payments      map[string]PaymentRecord
	orders        map[string]OrderRecord
	customers     map[string]CustomerRecord
	subscriptions map[string]SubscriptionRecord
	invoices      map[string]InvoiceRecord
	refunds       map[string]RefundRecord
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		payments:      make(map[string]PaymentRecord),
		orders:        make(map[string]OrderRecord),
		customers:     make(map[string]CustomerRecord),
		subscriptions: make(map[string]SubscriptionRecord),
		invoices:      make(map[string]InvoiceRecord),
		refunds:       make(map[string]RefundRecord),
	}
}

func (r *MemoryRepo) UpsertPayment(_ context.Context, rec PaymentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.payments[rec.PaymentIntentID]; ok {
		rec.CreatedAt = cur.CreatedAt
	} else {
		rec.CreatedAt = rec.UpdatedAt
	}
	r.payments[rec.PaymentIntentID] = rec
	return nil
}

func (r *MemoryRepo) GetPayment(_ context.Context, id string) (PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.payments[id]
	if !ok {
		return PaymentRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) UpsertOrderStatus(_ context.Context, rec OrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.orders[rec.OrderID]; ok {
		rec.CreatedAt = cur.CreatedAt
	} else {
		rec.CreatedAt = rec.UpdatedAt
	}
	r.orders[rec.OrderID] = rec
	return nil
}

func (r *MemoryRepo) GetOrder(_ context.Context, id string) (OrderRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.orders[id]
	if !ok {
		return OrderRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) UpsertCustomer(_ context.Context, rec CustomerRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.customers[rec.CustomerID]; ok {
		rec.CreatedAt = cur.CreatedAt
	} else {
		rec.CreatedAt = rec.UpdatedAt
	}
	r.customers[rec.CustomerID] = rec
	return nil
}

func (r *MemoryRepo) GetCustomer(_ context.Context, id string) (CustomerRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.customers[id]
	if !ok {
		return CustomerRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) UpsertSubscription(_ context.Context, rec SubscriptionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.subscriptions[rec.SubscriptionID]; ok {
		rec.CreatedAt = cur.CreatedAt
	} else {
		rec.CreatedAt = rec.UpdatedAt
	}
	r.subscriptions[rec.SubscriptionID] = rec
	return nil
}

func (r *MemoryRepo) GetSubscription(_ context.Context, id string) (SubscriptionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.subscriptions[id]
	if !ok {
		return SubscriptionRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) UpsertInvoice(_ context.Context, rec InvoiceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.invoices[rec.InvoiceID]; ok {
		rec.CreatedAt = cur.CreatedAt
	} else {
		rec.CreatedAt = rec.UpdatedAt
	}
	r.invoices[rec.InvoiceID] = rec
	return nil
}

func (r *MemoryRepo) GetInvoice(_ context.Context, id string) (InvoiceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.invoices[id]
	if !ok {
		return InvoiceRecord{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) UpsertRefund(_ context.Context, rec RefundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.refunds[rec.ChargeID]; ok {
		rec.CreatedAt = cur.CreatedAt
	} else {
		rec.CreatedAt = rec.UpdatedAt
	}
	r.refunds[rec.ChargeID] = rec
	return nil
}

func (r *MemoryRepo) GetRefund(_ context.Context, id string) (RefundRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.refunds[id]
	if !ok {
		return RefundRecord{}, ErrNotFound
	}
	return rec, nil
}
