package domain

// SubscriptionRequest creates a recurring upsell off-session: the payment
// method has already been attached and set as default.
type SubscriptionRequest struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	Metadata        map[string]string
}

// SubscriptionResult is the created subscription.
type SubscriptionResult struct {
	SubscriptionID string
	Status         string
}

// OffSessionCharge creates and confirms a one-time payment intent reusing a
// saved payment method.
type OffSessionCharge struct {
	CustomerID      string
	PaymentMethodID string
	Amount          int64
	Currency        Currency
	Description     string
	Metadata        map[string]string
}

// Charge outcome statuses the upsell flow branches on.
const (
	ChargeSucceeded      = "succeeded"
	ChargeRequiresAction = "requires_action"
)

// ChargeResult is the outcome of an off-session charge. ClientSecret is
// populated when the charge requires a 3-D Secure challenge.
type ChargeResult struct {
	PaymentIntentID string
	Status          string
	ClientSecret    string
}
