package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"oracleboxing-funnel-layer/internal/application"
	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/infrastructure/makecom"
	"oracleboxing-funnel-layer/internal/infrastructure/metrics"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookURLs are the fixed Make.com endpoints the funnel pages relay to.
type WebhookURLs struct {
	ChallengeSignup string
	AbandonedCart   string
}

// Handlers exposes the funnel HTTP surface.
type Handlers struct {
	checkout    *application.CheckoutService
	upsell      *application.UpsellService
	conversions *application.ConversionService
	tracker     *application.TrackingService
	capi        ports.ConversionsClient
	webhooks    *makecom.Sender
	webhookURLs WebhookURLs
	logger      zerolog.Logger
}

// NewHandlers wires the services into the HTTP layer.
func NewHandlers(
	checkout *application.CheckoutService,
	upsell *application.UpsellService,
	conversions *application.ConversionService,
	tracker *application.TrackingService,
	capi ports.ConversionsClient,
	webhooks *makecom.Sender,
	webhookURLs WebhookURLs,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		checkout:    checkout,
		upsell:      upsell,
		conversions: conversions,
		tracker:     tracker,
		capi:        capi,
		webhooks:    webhooks,
		webhookURLs: webhookURLs,
		logger:      logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses: validation 400,
// card decline 402, missing resources 404, everything else 500.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrCardDeclined):
		status = http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	}
	if status >= 500 {
		h.logger.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// CreateCheckoutSession handles POST /api/checkout/session.
func (h *Handlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var in application.CreateSessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	in.Tracking = domain.GetTrackingParamsFromContext(r.Context())

	result, err := h.checkout.CreateSession(r.Context(), &in)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if result.URL != "" {
		writeJSON(w, http.StatusOK, map[string]string{"url": result.URL})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"clientSecret":    result.ClientSecret,
		"paymentIntentId": result.PaymentIntentID,
	})
}

// UpdateAmount handles POST /api/checkout/amount: the debounced add-on
// toggle endpoint.
func (h *Handlers) UpdateAmount(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BaseProductID string   `json:"base_product_id"`
		AddOns        []string `json:"add_ons"`
		Currency      string   `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	total, currency, err := h.checkout.ComputeAmount(in.BaseProductID, in.AddOns, in.Currency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"amount":   total,
		"currency": string(currency),
	})
}

// UpsellCharge handles POST /api/upsell/charge.
func (h *Handlers) UpsellCharge(w http.ResponseWriter, r *http.Request) {
	var in application.UpsellInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	in.Tracking = domain.GetTrackingParamsFromContext(r.Context())
	in.ClientIP = clientIP(r)
	in.UserAgent = r.UserAgent()
	in.PageURL = r.Referer()

	result, err := h.upsell.Charge(r.Context(), &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetSession handles GET /api/session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	ref := application.SessionRef{
		SessionID:       r.URL.Query().Get("session_id"),
		PaymentIntentID: r.URL.Query().Get("payment_intent"),
		SubscriptionID:  r.URL.Query().Get("subscription"),
	}

	session, err := h.checkout.LookupSession(r.Context(), ref)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ResumeCheckout handles GET /api/checkout/resume: the step-2 refresh.
func (h *Handlers) ResumeCheckout(w http.ResponseWriter, r *http.Request) {
	snap, err := h.checkout.Snapshot(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"resumable": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resumable": true, "checkout": snap})
}

// ReportPurchase handles POST /api/purchase/report: the success-page
// conversion orchestration.
func (h *Handlers) ReportPurchase(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	payload, err := h.conversions.ReportPurchase(r.Context(), &application.ReportInput{
		SessionID: in.SessionID,
		Tracking:  domain.GetTrackingParamsFromContext(r.Context()),
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
		PageURL:   r.Referer(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// FacebookPurchase handles POST /api/facebook-purchase: the raw CAPI
// relay used by pages that assemble the event themselves.
func (h *Handlers) FacebookPurchase(w http.ResponseWriter, r *http.Request) {
	var in struct {
		EventID       string         `json:"event_id"`
		Value         float64        `json:"value"`
		Currency      string         `json:"currency"`
		ContentIDs    []string       `json:"content_ids"`
		CustomerEmail string         `json:"customer_email"`
		CustomerPhone string         `json:"customer_phone"`
		CookieData    map[string]any `json:"cookie_data"`
		FBCLID        string         `json:"fbclid"`
		SessionURL    string         `json:"session_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if in.EventID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "event_id is required"})
		return
	}

	event := &domain.PurchaseEvent{
		EventID:       in.EventID,
		Value:         in.Value,
		Currency:      in.Currency,
		ContentIDs:    in.ContentIDs,
		CustomerEmail: in.CustomerEmail,
		CustomerPhone: in.CustomerPhone,
		FBCLID:        in.FBCLID,
		ClientIP:      clientIP(r),
		UserAgent:     r.UserAgent(),
		SourceURL:     in.SessionURL,
	}
	if fbp, ok := in.CookieData["_fbp"].(string); ok {
		event.FBP = fbp
	}

	if err := h.capi.SendPurchase(r.Context(), event); err != nil {
		h.writeError(w, err)
		return
	}
	metrics.PurchaseEvents.WithLabelValues("capi").Inc()
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// TrackEvent handles POST /api/track. Always 202: analytics failures never
// reach the page.
func (h *Handlers) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var event domain.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	h.tracker.TrackEvent(r.Context(), &event, clientIP(r))
	w.WriteHeader(http.StatusAccepted)
}

// ChallengeSignup handles POST /api/webhooks/challenge-signup.
func (h *Handlers) ChallengeSignup(w http.ResponseWriter, r *http.Request) {
	h.relayWebhook(w, r, h.webhookURLs.ChallengeSignup, "challenge_signup")
}

// AbandonedCart handles POST /api/webhooks/abandoned-cart.
func (h *Handlers) AbandonedCart(w http.ResponseWriter, r *http.Request) {
	h.relayWebhook(w, r, h.webhookURLs.AbandonedCart, "abandoned_cart")
}

// relayWebhook flattens the body with the attribution snapshot and hands
// it to the retrying sender. The page gets a 202 immediately; delivery is
// best effort.
func (h *Handlers) relayWebhook(w http.ResponseWriter, r *http.Request, url, target string) {
	if url == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "webhook not configured"})
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	payload := make(map[string]any, len(body)+8)
	for k, v := range body {
		payload[k] = v
	}
	for k, v := range domain.GetTrackingParamsFromContext(r.Context()).Flatten("") {
		if _, exists := payload[k]; !exists {
			payload[k] = v
		}
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if err := h.webhooks.Send(ctx, url, payload); err != nil {
			metrics.WebhookDeliveries.WithLabelValues(target, "failed").Inc()
			return
		}
		metrics.WebhookDeliveries.WithLabelValues(target, "delivered").Inc()
	}()

	w.WriteHeader(http.StatusAccepted)
}

func clientIP(r *http.Request) string {
	return r.RemoteAddr
}
