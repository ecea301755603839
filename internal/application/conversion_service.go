package application

import (
	"context"
	"fmt"
	"net/url"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/infrastructure/metrics"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConversionService fires Purchase conversions from the success page,
// exactly once per session id. The same event id is sent to the browser
// pixel, the Conversions API and the analytics store so the ad platform
// can deduplicate.
type ConversionService struct {
	payments    ports.PaymentClient
	conversions ports.ConversionsClient
	state       ports.StateStore
	catalog     *domain.Catalog
	tracker     *TrackingService
	logger      zerolog.Logger
	onboardURL  string
}

// NewConversionService creates the success-page conversion reporter.
func NewConversionService(
	payments ports.PaymentClient,
	conversions ports.ConversionsClient,
	state ports.StateStore,
	catalog *domain.Catalog,
	tracker *TrackingService,
	logger zerolog.Logger,
	onboardURL string,
) *ConversionService {
	return &ConversionService{
		payments:    payments,
		conversions: conversions,
		state:       state,
		catalog:     catalog,
		tracker:     tracker,
		logger:      logger,
		onboardURL:  onboardURL,
	}
}

// ReportInput identifies the finalized transaction being reported.
type ReportInput struct {
	SessionID string
	Tracking  domain.TrackingParams
	ClientIP  string
	UserAgent string
	PageURL   string
}

// PixelPayload is returned to the success page: the exact arguments for
// the browser-side fbq('track', 'Purchase', ...) call plus the onboarding
// redirect.
type PixelPayload struct {
	EventID        string   `json:"event_id"`
	Value          float64  `json:"value"`
	Currency       string   `json:"currency"`
	ContentIDs     []string `json:"content_ids"`
	AlreadyTracked bool     `json:"already_tracked"`
	RedirectURL    string   `json:"redirect_url"`
}

// ReportPurchase fetches the finalized session and fires the Purchase
// event to all sinks unless the session id was already tracked.
func (s *ConversionService) ReportPurchase(ctx context.Context, in *ReportInput) (*PixelPayload, error) {
	if in.SessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", domain.ErrInvalidInput)
	}

	session, err := s.payments.GetCheckoutSession(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve session: %w", err)
	}

	tracked, err := s.state.IsPurchaseTracked(ctx, in.SessionID)
	if err != nil {
		s.logger.Warn().Err(err).Str("sessionId", in.SessionID).Msg("Dedup check failed, assuming tracked")
		tracked = true
	}

	eventID := in.Tracking.EventID
	if eventID == "" {
		eventID = uuid.New().String()
	}

	contentIDs := make([]string, 0, len(session.LineItems))
	for _, li := range session.LineItems {
		contentIDs = append(contentIDs, li.ProductID)
	}

	payload := &PixelPayload{
		EventID:        eventID,
		Value:          float64(session.AmountTotal) / 100,
		Currency:       session.Currency,
		ContentIDs:     contentIDs,
		AlreadyTracked: tracked,
		RedirectURL:    s.redirectURL(session),
	}
	if tracked {
		return payload, nil
	}

	// Server-side CAPI event, same event id as the pixel.
	capiEvent := &domain.PurchaseEvent{
		EventID:       eventID,
		Value:         payload.Value,
		Currency:      session.Currency,
		ContentIDs:    contentIDs,
		CustomerEmail: session.CustomerEmail,
		CustomerPhone: session.CustomerPhone,
		FBCLID:        in.Tracking.FBCLID,
		ClientIP:      in.ClientIP,
		UserAgent:     in.UserAgent,
		SourceURL:     in.PageURL,
	}
	if err := s.conversions.SendPurchase(ctx, capiEvent); err != nil {
		s.logger.Warn().Err(err).Str("sessionId", in.SessionID).Msg("Conversions API send failed")
	} else {
		metrics.PurchaseEvents.WithLabelValues("capi").Inc()
	}

	// Analytics row with the amount normalized to USD for reporting.
	if s.tracker != nil {
		s.tracker.TrackEvent(ctx, &domain.Event{
			EventID: eventID,
			Name:    "Purchase",
			Page:    in.PageURL,
			Value:   s.catalog.ToUSD(session.AmountTotal, domain.NormalizeCurrency(session.Currency)),
			Metadata: map[string]any{
				"session_id_provider": in.SessionID,
				"currency":            session.Currency,
				"content_ids":         contentIDs,
			},
		}, in.ClientIP)
		metrics.PurchaseEvents.WithLabelValues("analytics").Inc()
	}
	metrics.PurchaseEvents.WithLabelValues("pixel").Inc()

	if err := s.state.MarkPurchaseTracked(ctx, in.SessionID); err != nil {
		s.logger.Warn().Err(err).Str("sessionId", in.SessionID).Msg("Failed to mark purchase tracked")
	}

	s.logger.Info().
		Str("sessionId", in.SessionID).
		Str("eventId", eventID).
		Float64("value", payload.Value).
		Str("currency", session.Currency).
		Msg("Purchase conversion reported")

	return payload, nil
}

// redirectURL builds the onboarding redirect carrying the customer's
// email and name.
func (s *ConversionService) redirectURL(session *domain.ProviderSession) string {
	if s.onboardURL == "" {
		return ""
	}
	q := url.Values{}
	if session.CustomerEmail != "" {
		q.Set("email", session.CustomerEmail)
	}
	if session.CustomerName != "" {
		q.Set("name", session.CustomerName)
	}
	if len(q) == 0 {
		return s.onboardURL
	}
	return s.onboardURL + "?" + q.Encode()
}
