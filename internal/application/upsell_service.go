package application

import (
	"context"
	"fmt"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/infrastructure/metrics"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/rs/zerolog"
)

// UpsellService performs one-click post-purchase charges against the
// payment method saved during the original checkout.
type UpsellService struct {
	payments    ports.PaymentClient
	conversions ports.ConversionsClient
	workflows   *WorkflowLogger
	tracker     *TrackingService
	logger      zerolog.Logger
}

// NewUpsellService creates the one-click upsell service.
func NewUpsellService(
	payments ports.PaymentClient,
	conversions ports.ConversionsClient,
	workflows *WorkflowLogger,
	tracker *TrackingService,
	logger zerolog.Logger,
) *UpsellService {
	return &UpsellService{
		payments:    payments,
		conversions: conversions,
		workflows:   workflows,
		tracker:     tracker,
		logger:      logger,
	}
}

// UpsellInput is the POST /api/upsell/charge request.
type UpsellInput struct {
	SessionID  string         `json:"session_id"`
	PriceID    string         `json:"price_id"`
	ProductID  string         `json:"product_id"`
	CookieData map[string]any `json:"cookieData,omitempty"`

	Tracking  domain.TrackingParams `json:"-"`
	ClientIP  string                `json:"-"`
	UserAgent string                `json:"-"`
	PageURL   string                `json:"-"`
}

// UpsellResult is the charge outcome handed back to the upsell page.
type UpsellResult struct {
	Success         bool   `json:"success"`
	SubscriptionID  string `json:"subscription_id,omitempty"`
	PaymentIntentID string `json:"payment_intent_id,omitempty"`
	RequiresAction  bool   `json:"requires_action,omitempty"`
	ClientSecret    string `json:"client_secret,omitempty"`
}

// Charge recovers the customer and payment method from the original
// session and creates the upsell subscription or off-session payment.
func (s *UpsellService) Charge(ctx context.Context, in *UpsellInput) (*UpsellResult, error) {
	if in.SessionID == "" || in.PriceID == "" || in.ProductID == "" {
		return nil, fmt.Errorf("%w: session_id, price_id and product_id are required", domain.ErrInvalidInput)
	}

	run := s.workflows.Start(ctx, "one_click_upsell", "payment")

	result, err := s.charge(ctx, in, run)
	if err != nil {
		run.Failed(ctx, "upsell charge failed", err)
		metrics.UpsellCharges.WithLabelValues("failed").Inc()
		return nil, err
	}

	switch {
	case result.RequiresAction:
		run.Step(ctx, "charge requires 3DS confirmation")
		metrics.UpsellCharges.WithLabelValues("requires_action").Inc()
	default:
		run.Completed(ctx, "upsell charge succeeded")
		metrics.UpsellCharges.WithLabelValues("succeeded").Inc()
	}
	return result, nil
}

func (s *UpsellService) charge(ctx context.Context, in *UpsellInput, run *WorkflowRun) (*UpsellResult, error) {
	session, err := s.payments.GetCheckoutSession(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve original session: %w", err)
	}

	// Guest one-time payments leave the session customer empty; the
	// charge still records one.
	customerID := session.ResolveCustomerID()
	if customerID == "" {
		return nil, fmt.Errorf("%w: no customer found on session", domain.ErrInvalidInput)
	}
	if session.PaymentMethodID == "" {
		return nil, fmt.Errorf("%w: no payment method found on session", domain.ErrInvalidInput)
	}
	run.Step(ctx, fmt.Sprintf("resolved customer %s", customerID))

	price, err := s.payments.GetPrice(ctx, in.PriceID)
	if err != nil {
		return nil, fmt.Errorf("retrieve upsell price: %w", err)
	}

	metadata := s.buildMetadata(in, session)

	if price.Recurring {
		return s.chargeRecurring(ctx, in, customerID, session.PaymentMethodID, metadata, run)
	}
	return s.chargeOneTime(ctx, in, session, customerID, price, metadata, run)
}

// chargeRecurring attaches the saved payment method and starts the
// subscription. No 3DS path is offered for subscriptions in this flow.
func (s *UpsellService) chargeRecurring(
	ctx context.Context,
	in *UpsellInput,
	customerID, paymentMethodID string,
	metadata map[string]string,
	run *WorkflowRun,
) (*UpsellResult, error) {
	if err := s.payments.AttachPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		return nil, fmt.Errorf("attach payment method: %w", err)
	}
	if err := s.payments.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		return nil, fmt.Errorf("set default payment method: %w", err)
	}

	sub, err := s.payments.CreateSubscription(ctx, &domain.SubscriptionRequest{
		CustomerID:      customerID,
		PriceID:         in.PriceID,
		PaymentMethodID: paymentMethodID,
		Metadata:        metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create upsell subscription: %w", err)
	}

	run.Step(ctx, fmt.Sprintf("subscription %s created", sub.SubscriptionID))
	s.logger.Info().
		Str("subscriptionId", sub.SubscriptionID).
		Str("customerId", customerID).
		Msg("Upsell subscription created")

	return &UpsellResult{Success: true, SubscriptionID: sub.SubscriptionID}, nil
}

func (s *UpsellService) chargeOneTime(
	ctx context.Context,
	in *UpsellInput,
	session *domain.ProviderSession,
	customerID string,
	price *domain.Price,
	metadata map[string]string,
	run *WorkflowRun,
) (*UpsellResult, error) {
	result, err := s.payments.ChargeOffSession(ctx, &domain.OffSessionCharge{
		CustomerID:      customerID,
		PaymentMethodID: session.PaymentMethodID,
		Amount:          price.UnitAmount,
		Currency:        price.Currency,
		Description:     fmt.Sprintf("Upsell %s", in.ProductID),
		Metadata:        metadata,
	})
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case domain.ChargeRequiresAction:
		return &UpsellResult{
			PaymentIntentID: result.PaymentIntentID,
			RequiresAction:  true,
			ClientSecret:    result.ClientSecret,
		}, nil
	case domain.ChargeSucceeded:
		s.reportPurchase(ctx, in, session, price)
		return &UpsellResult{Success: true, PaymentIntentID: result.PaymentIntentID}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected payment status %q", domain.ErrInvalidInput, result.Status)
	}
}

// reportPurchase fires the server-side Purchase conversion for a
// succeeded upsell. Best effort: failures are logged, never surfaced.
func (s *UpsellService) reportPurchase(ctx context.Context, in *UpsellInput, session *domain.ProviderSession, price *domain.Price) {
	event := &domain.PurchaseEvent{
		EventID:       in.Tracking.EventID,
		Value:         float64(price.UnitAmount) / 100,
		Currency:      string(price.Currency),
		ContentIDs:    []string{in.ProductID},
		CustomerEmail: session.CustomerEmail,
		CustomerPhone: session.CustomerPhone,
		FBCLID:        in.Tracking.FBCLID,
		ClientIP:      in.ClientIP,
		UserAgent:     in.UserAgent,
		SourceURL:     in.PageURL,
	}
	if err := s.conversions.SendPurchase(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("sessionId", in.SessionID).Msg("Upsell conversion send failed")
	} else {
		metrics.PurchaseEvents.WithLabelValues("capi").Inc()
	}

	if s.tracker != nil {
		s.tracker.TrackEvent(ctx, &domain.Event{
			Name:  "UpsellPurchase",
			Page:  in.PageURL,
			Value: float64(price.UnitAmount) / 100,
			Metadata: map[string]any{
				"product_id": in.ProductID,
				"currency":   string(price.Currency),
			},
		}, in.ClientIP)
	}
}

func (s *UpsellService) buildMetadata(in *UpsellInput, session *domain.ProviderSession) map[string]string {
	var metadata map[string]string
	if len(in.CookieData) > 0 {
		metadata = domain.FlattenCookieBlob(in.CookieData, "cookie_")
	} else {
		metadata = in.Tracking.Flatten("cookie_")
	}
	metadata["upsell"] = "true"
	metadata["upsell_product"] = in.ProductID
	metadata["original_session"] = in.SessionID
	if session.CustomerName != "" {
		metadata["customer_name"] = session.CustomerName
	}
	if funnel, ok := session.Metadata["funnel_type"]; ok {
		metadata["funnel_type"] = funnel
	}
	return metadata
}
