package ports

import (
	"context"

	"oracleboxing-funnel-layer/internal/domain"
)

// PaymentClient is the port to the payment provider. The stripe adapter in
// internal/infrastructure/stripe implements it.
type PaymentClient interface {
	// FindCustomerByEmail returns the existing customer for an email, or
	// nil when none exists.
	FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, info domain.CustomerInfo) (*domain.Customer, error)

	CreateCheckoutSession(ctx context.Context, req *domain.SessionRequest) (*domain.SessionResult, error)

	// GetCheckoutSession retrieves a finalized session, expanding the
	// payment intent, its latest charge and the subscription so the
	// caller can recover the customer and payment method actually used.
	GetCheckoutSession(ctx context.Context, sessionID string) (*domain.ProviderSession, error)
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.ProviderSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.ProviderSession, error)

	GetPrice(ctx context.Context, priceID string) (*domain.Price, error)

	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	CreateSubscription(ctx context.Context, req *domain.SubscriptionRequest) (*domain.SubscriptionResult, error)
	ChargeOffSession(ctx context.Context, req *domain.OffSessionCharge) (*domain.ChargeResult, error)
}
