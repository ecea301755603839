package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/infrastructure/metrics"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/rs/zerolog"
)

// CheckoutService builds provider checkout sessions from customer input,
// cart items and attribution data.
type CheckoutService struct {
	payments ports.PaymentClient
	catalog  *domain.Catalog
	state    ports.StateStore
	tracker  *TrackingService
	logger   zerolog.Logger
	siteURL  string
}

// NewCheckoutService creates the checkout session builder.
func NewCheckoutService(
	payments ports.PaymentClient,
	catalog *domain.Catalog,
	state ports.StateStore,
	tracker *TrackingService,
	logger zerolog.Logger,
	siteURL string,
) *CheckoutService {
	return &CheckoutService{
		payments: payments,
		catalog:  catalog,
		state:    state,
		tracker:  tracker,
		logger:   logger,
		siteURL:  strings.TrimRight(siteURL, "/"),
	}
}

// CreateSessionInput is the POST /api/checkout/session request body.
type CreateSessionInput struct {
	Items        []domain.CartItem   `json:"items"`
	CustomerInfo domain.CustomerInfo `json:"customerInfo"`
	Currency     string              `json:"currency"`
	CookieData   map[string]any      `json:"cookieData,omitempty"`
	AddOns       []string            `json:"addOns,omitempty"`
	PageURL      string              `json:"pageUrl,omitempty"`
	Embedded     bool                `json:"embedded,omitempty"`

	// Tracking is filled from the attribution middleware, not the body.
	Tracking domain.TrackingParams `json:"-"`
}

// CreateSession resolves the cart, picks the mode, reuses or creates the
// provider customer and creates the checkout session with flat metadata.
func (s *CheckoutService) CreateSession(ctx context.Context, in *CreateSessionInput) (*domain.SessionResult, error) {
	if err := in.CustomerInfo.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: items are required", domain.ErrInvalidInput)
	}

	currency := domain.NormalizeCurrency(in.Currency)

	var (
		priced       []domain.PricedItem
		anyRecurring bool
	)
	for _, item := range in.Items {
		price, err := s.catalog.ResolvePrice(item.ProductID, currency)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		priced = append(priced, domain.PricedItem{PriceID: price.ID, Quantity: qty})
		if price.Recurring {
			anyRecurring = true
		}
	}

	mode := domain.ModePayment
	if anyRecurring {
		mode = domain.ModeSubscription
	}

	entryProduct, err := s.catalog.Product(in.Items[0].ProductID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
	}

	customer, err := s.payments.FindCustomerByEmail(ctx, in.CustomerInfo.Email)
	if err != nil {
		return nil, fmt.Errorf("look up customer: %w", err)
	}
	if customer == nil {
		customer, err = s.payments.CreateCustomer(ctx, in.CustomerInfo)
		if err != nil {
			return nil, fmt.Errorf("create customer: %w", err)
		}
	}

	metadata := s.buildMetadata(in, entryProduct)
	successURL, cancelURL := s.funnelURLs(entryProduct.Funnel)

	s.track(ctx, &domain.Event{
		Name:  "InitiateCheckout",
		Page:  in.PageURL,
		Value: s.totalUSD(in.Items, currency),
		Metadata: map[string]any{
			"funnel":   string(entryProduct.Funnel),
			"currency": string(currency),
		},
	})

	result, err := s.payments.CreateCheckoutSession(ctx, &domain.SessionRequest{
		Mode:         mode,
		CustomerID:   customer.ID,
		PriceIDs:     priced,
		SuccessURL:   successURL,
		CancelURL:    cancelURL,
		Metadata:     metadata,
		OffSession:   mode == domain.ModePayment,
		UIMode:       uiMode(in.Embedded),
		ReturnURL:    successURL,
		CustomerInfo: in.CustomerInfo,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	metrics.CheckoutSessionsCreated.WithLabelValues(string(entryProduct.Funnel), string(mode)).Inc()

	if visitorID := domain.GetVisitorIDFromContext(ctx); visitorID != "" {
		snap := &domain.CheckoutSnapshot{
			Customer:        in.CustomerInfo,
			ClientSecret:    result.ClientSecret,
			PaymentIntentID: result.PaymentIntentID,
			AddOns:          in.AddOns,
			Currency:        currency,
		}
		if err := s.state.SaveSnapshot(ctx, visitorID, snap); err != nil {
			// Losing the snapshot only costs resumability.
			s.logger.Warn().Err(err).Str("visitorId", visitorID).Msg("Failed to save checkout snapshot")
		}
	}

	s.logger.Info().
		Str("sessionId", result.SessionID).
		Str("funnel", string(entryProduct.Funnel)).
		Str("mode", string(mode)).
		Str("currency", string(currency)).
		Msg("Checkout session created")

	return result, nil
}

// buildMetadata flattens attribution and customer data into the flat
// string map the provider requires.
func (s *CheckoutService) buildMetadata(in *CreateSessionInput, entry domain.Product) map[string]string {
	var metadata map[string]string
	if len(in.CookieData) > 0 {
		metadata = domain.FlattenCookieBlob(in.CookieData, "cookie_")
	} else {
		metadata = in.Tracking.Flatten("cookie_")
	}

	metadata["first_name"] = strings.TrimSpace(in.CustomerInfo.FirstName)
	metadata["last_name"] = strings.TrimSpace(in.CustomerInfo.LastName)
	metadata["funnel_type"] = string(entry.Funnel)
	metadata["entry_product"] = entry.ID
	if in.Tracking.EventID != "" {
		metadata["event_id"] = in.Tracking.EventID
	}

	if summary, err := json.Marshal(in.Items); err == nil {
		metadata["cart"] = string(summary)
	}
	return metadata
}

// funnelURLs picks the success/cancel pages for a funnel.
func (s *CheckoutService) funnelURLs(funnel domain.Funnel) (string, string) {
	switch funnel {
	case domain.FunnelChallenge:
		return s.siteURL + "/challenge/success?session_id={CHECKOUT_SESSION_ID}", s.siteURL + "/challenge"
	case domain.FunnelMembership:
		return s.siteURL + "/membership/welcome?session_id={CHECKOUT_SESSION_ID}", s.siteURL + "/membership"
	case domain.FunnelBundle:
		return s.siteURL + "/bundle/success?session_id={CHECKOUT_SESSION_ID}", s.siteURL + "/bundle"
	default:
		return s.siteURL + "/success?session_id={CHECKOUT_SESSION_ID}", s.siteURL + "/course"
	}
}

// ComputeAmount recomputes the cart total for the current add-on
// selection; backs the debounced amount-update endpoint.
func (s *CheckoutService) ComputeAmount(baseProductID string, bumps []string, currency string) (int64, domain.Currency, error) {
	cur := domain.NormalizeCurrency(currency)
	items, err := s.catalog.BuildCart(baseProductID, bumps)
	if err != nil {
		return 0, cur, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
	}
	total, err := s.catalog.Total(items, cur)
	if err != nil {
		return 0, cur, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err)
	}
	return total, cur, nil
}

// SessionRef identifies a finalized transaction for lookup.
type SessionRef struct {
	SessionID       string
	PaymentIntentID string
	SubscriptionID  string
}

// LookupSession retrieves and normalizes a finalized session by checkout
// session, payment intent or subscription id.
func (s *CheckoutService) LookupSession(ctx context.Context, ref SessionRef) (*domain.ProviderSession, error) {
	switch {
	case ref.SessionID != "":
		return s.payments.GetCheckoutSession(ctx, ref.SessionID)
	case ref.PaymentIntentID != "":
		return s.payments.GetPaymentIntent(ctx, ref.PaymentIntentID)
	case ref.SubscriptionID != "":
		return s.payments.GetSubscription(ctx, ref.SubscriptionID)
	default:
		return nil, fmt.Errorf("%w: session_id, payment_intent or subscription is required", domain.ErrInvalidInput)
	}
}

// Snapshot returns the visitor's resumable checkout state, if any.
func (s *CheckoutService) Snapshot(ctx context.Context) (*domain.CheckoutSnapshot, error) {
	visitorID := domain.GetVisitorIDFromContext(ctx)
	if visitorID == "" {
		return nil, nil
	}
	return s.state.GetSnapshot(ctx, visitorID)
}

func (s *CheckoutService) totalUSD(items []domain.CartItem, currency domain.Currency) float64 {
	total, err := s.catalog.Total(items, currency)
	if err != nil {
		return 0
	}
	return s.catalog.ToUSD(total, currency)
}

func (s *CheckoutService) track(ctx context.Context, e *domain.Event) {
	if s.tracker != nil {
		s.tracker.TrackEvent(ctx, e, "")
	}
}

func uiMode(embedded bool) string {
	if embedded {
		return "embedded"
	}
	return ""
}
