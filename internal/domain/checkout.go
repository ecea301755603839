package domain

import (
	"errors"
	"strings"
	"time"
)

// Provider error classes surfaced to the HTTP layer. The payment adapter
// wraps provider failures with one of these so handlers can map card
// declines to 402 without importing the SDK.
var (
	ErrCardDeclined = errors.New("card declined")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// CheckoutMode mirrors the provider's session mode.
type CheckoutMode string

const (
	ModePayment      CheckoutMode = "payment"
	ModeSubscription CheckoutMode = "subscription"
)

// CustomerInfo is the customer input collected on step 1 of checkout.
type CustomerInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
}

// FullName joins the name parts the way the provider expects.
func (c CustomerInfo) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// Validate rejects requests before any provider call is made.
func (c CustomerInfo) Validate() error {
	if strings.TrimSpace(c.FirstName) == "" || strings.TrimSpace(c.Email) == "" {
		return errors.New("first name and email are required")
	}
	at := strings.Index(c.Email, "@")
	if at <= 0 || at == len(c.Email)-1 || !strings.Contains(c.Email[at:], ".") {
		return errors.New("invalid email format")
	}
	return nil
}

// Customer is the provider-side customer record.
type Customer struct {
	ID    string
	Email string
	Name  string
}

// SessionRequest is everything the payment adapter needs to create a
// checkout session.
type SessionRequest struct {
	Mode         CheckoutMode
	CustomerID   string
	PriceIDs     []PricedItem
	SuccessURL   string
	CancelURL    string
	Metadata     map[string]string
	OffSession   bool // one-time payments save the payment method for upsells
	UIMode       string
	ReturnURL    string
	CustomerInfo CustomerInfo
}

// PricedItem is a cart item resolved to a provider price id.
type PricedItem struct {
	PriceID  string
	Quantity int64
}

// SessionResult is what session creation hands back to the page.
type SessionResult struct {
	SessionID       string `json:"session_id"`
	URL             string `json:"url,omitempty"`
	ClientSecret    string `json:"clientSecret,omitempty"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
}

// LineItem is one normalized line of a finalized session.
type LineItem struct {
	ProductID   string `json:"product_id"`
	PriceID     string `json:"price_id"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	Amount      int64  `json:"amount"`
}

// ProviderSession is the normalized view of a provider checkout session,
// payment intent or subscription as returned by the session lookup.
type ProviderSession struct {
	ID               string            `json:"id"`
	Status           string            `json:"status"`
	AmountTotal      int64             `json:"amount_total"`
	Currency         string            `json:"currency"`
	CustomerID       string            `json:"customer,omitempty"`
	CustomerEmail    string            `json:"customer_email,omitempty"`
	CustomerName     string            `json:"customer_name,omitempty"`
	CustomerPhone    string            `json:"customer_phone,omitempty"`
	PaymentIntentID  string            `json:"payment_intent,omitempty"`
	PaymentMethodID  string            `json:"payment_method,omitempty"`
	SubscriptionID   string            `json:"subscription,omitempty"`
	ChargeCustomerID string            `json:"-"` // latest charge's customer, guest fallback
	LineItems        []LineItem        `json:"line_items"`
	Metadata         map[string]string `json:"metadata"`
}

// ResolveCustomerID returns the session customer, falling back to the
// customer recorded on the latest charge for guest one-time payments.
func (s *ProviderSession) ResolveCustomerID() string {
	if s.CustomerID != "" {
		return s.CustomerID
	}
	return s.ChargeCustomerID
}

// SnapshotTTL bounds how long an interrupted checkout can be resumed.
const SnapshotTTL = 45 * time.Minute

// CheckoutSnapshot is the resumable step-2 checkout state, formerly kept in
// browser session storage, now keyed by visitor id with a 45-minute TTL.
type CheckoutSnapshot struct {
	Customer        CustomerInfo `json:"customer"`
	ClientSecret    string       `json:"client_secret"`
	PaymentIntentID string       `json:"payment_intent_id"`
	AddOns          []string     `json:"add_ons"`
	Currency        Currency     `json:"currency"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Expired reports whether the snapshot is past its resume window.
func (s CheckoutSnapshot) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > SnapshotTTL
}
