package application

import (
	"context"
	"errors"
	"sync"

	"oracleboxing-funnel-layer/internal/domain"
)

// fakePaymentClient records calls and returns canned responses.
type fakePaymentClient struct {
	mu sync.Mutex

	customers map[string]*domain.Customer
	sessions  map[string]*domain.ProviderSession
	prices    map[string]*domain.Price

	createdCustomers []domain.CustomerInfo
	sessionRequests  []*domain.SessionRequest
	subRequests      []*domain.SubscriptionRequest
	chargeRequests   []*domain.OffSessionCharge
	attached         []string
	defaulted        []string

	sessionResult *domain.SessionResult
	chargeResult  *domain.ChargeResult
	subResult     *domain.SubscriptionResult
	chargeErr     error
}

func newFakePaymentClient() *fakePaymentClient {
	return &fakePaymentClient{
		customers: map[string]*domain.Customer{},
		sessions:  map[string]*domain.ProviderSession{},
		prices:    map[string]*domain.Price{},
		sessionResult: &domain.SessionResult{
			SessionID:       "cs_test_1",
			ClientSecret:    "cs_test_1_secret",
			PaymentIntentID: "pi_test_1",
		},
	}
}

func (f *fakePaymentClient) FindCustomerByEmail(_ context.Context, email string) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[email], nil
}

func (f *fakePaymentClient) CreateCustomer(_ context.Context, info domain.CustomerInfo) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdCustomers = append(f.createdCustomers, info)
	c := &domain.Customer{ID: "cus_new", Email: info.Email, Name: info.FullName()}
	f.customers[info.Email] = c
	return c, nil
}

func (f *fakePaymentClient) CreateCheckoutSession(_ context.Context, req *domain.SessionRequest) (*domain.SessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionRequests = append(f.sessionRequests, req)
	return f.sessionResult, nil
}

func (f *fakePaymentClient) GetCheckoutSession(_ context.Context, sessionID string) (*domain.ProviderSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakePaymentClient) GetPaymentIntent(_ context.Context, id string) (*domain.ProviderSession, error) {
	return f.GetCheckoutSession(context.Background(), id)
}

func (f *fakePaymentClient) GetSubscription(_ context.Context, id string) (*domain.ProviderSession, error) {
	return f.GetCheckoutSession(context.Background(), id)
}

func (f *fakePaymentClient) GetPrice(_ context.Context, priceID string) (*domain.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[priceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePaymentClient) AttachPaymentMethod(_ context.Context, customerID, paymentMethodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, customerID+":"+paymentMethodID)
	return nil
}

func (f *fakePaymentClient) SetDefaultPaymentMethod(_ context.Context, customerID, paymentMethodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaulted = append(f.defaulted, customerID+":"+paymentMethodID)
	return nil
}

func (f *fakePaymentClient) CreateSubscription(_ context.Context, req *domain.SubscriptionRequest) (*domain.SubscriptionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subRequests = append(f.subRequests, req)
	if f.subResult != nil {
		return f.subResult, nil
	}
	return &domain.SubscriptionResult{SubscriptionID: "sub_test_1", Status: "active"}, nil
}

func (f *fakePaymentClient) ChargeOffSession(_ context.Context, req *domain.OffSessionCharge) (*domain.ChargeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chargeRequests = append(f.chargeRequests, req)
	if f.chargeErr != nil {
		return nil, f.chargeErr
	}
	if f.chargeResult != nil {
		return f.chargeResult, nil
	}
	return &domain.ChargeResult{PaymentIntentID: "pi_upsell_1", Status: domain.ChargeSucceeded}, nil
}

// fakeStateStore is an in-memory StateStore.
type fakeStateStore struct {
	mu        sync.Mutex
	snapshots map[string]*domain.CheckoutSnapshot
	tracked   map[string]bool
	failed    [][]byte
	countries map[string]string

	trackedErr error
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{
		snapshots: map[string]*domain.CheckoutSnapshot{},
		tracked:   map[string]bool{},
		countries: map[string]string{},
	}
}

func (f *fakeStateStore) SaveSnapshot(_ context.Context, visitorID string, snap *domain.CheckoutSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[visitorID] = snap
	return nil
}

func (f *fakeStateStore) GetSnapshot(_ context.Context, visitorID string) (*domain.CheckoutSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots[visitorID], nil
}

func (f *fakeStateStore) ClearSnapshot(_ context.Context, visitorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snapshots, visitorID)
	return nil
}

func (f *fakeStateStore) IsPurchaseTracked(_ context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trackedErr != nil {
		return false, f.trackedErr
	}
	return f.tracked[sessionID], nil
}

func (f *fakeStateStore) MarkPurchaseTracked(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked[sessionID] = true
	return nil
}

func (f *fakeStateStore) PushFailedWebhook(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, payload)
	return nil
}

func (f *fakeStateStore) CachedCountry(_ context.Context, visitorID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countries[visitorID], nil
}

func (f *fakeStateStore) CacheCountry(_ context.Context, visitorID, country string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countries[visitorID] = country
	return nil
}

// fakeConversions records sent purchase events.
type fakeConversions struct {
	mu     sync.Mutex
	events []*domain.PurchaseEvent
	err    error
}

func (f *fakeConversions) SendPurchase(_ context.Context, event *domain.PurchaseEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeConversions) sent() []*domain.PurchaseEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.PurchaseEvent(nil), f.events...)
}

// fakeWorkflowRepo records workflow log entries.
type fakeWorkflowRepo struct {
	mu      sync.Mutex
	entries []*domain.WorkflowLogEntry
}

func (f *fakeWorkflowRepo) LogEntry(_ context.Context, entry *domain.WorkflowLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeWorkflowRepo) statuses() []domain.WorkflowStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.WorkflowStatus, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Status)
	}
	return out
}

var errFakeStore = errors.New("store unavailable")
