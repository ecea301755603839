package application

import (
	"context"
	"testing"

	"oracleboxing-funnel-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversionService(payments *fakePaymentClient, state *fakeStateStore, conversions *fakeConversions) *ConversionService {
	return NewConversionService(
		payments, conversions, state, domain.NewCatalog(), nil,
		zerolog.Nop(), "https://oracleboxing.com/onboarding",
	)
}

func completedSession() *domain.ProviderSession {
	return &domain.ProviderSession{
		ID:            "cs_done",
		Status:        "complete",
		AmountTotal:   14700,
		Currency:      "usd",
		CustomerEmail: "mo@example.com",
		CustomerName:  "Mo Ali",
		LineItems: []domain.LineItem{
			{ProductID: domain.ProductVaultCourse, PriceID: "price_vault_usd", Quantity: 1, Amount: 14700},
		},
	}
}

func TestReportPurchase_FirstReportFiresAllSinks(t *testing.T) {
	payments := newFakePaymentClient()
	payments.sessions["cs_done"] = completedSession()
	state := newFakeStateStore()
	conversions := &fakeConversions{}
	svc := newConversionService(payments, state, conversions)

	payload, err := svc.ReportPurchase(context.Background(), &ReportInput{
		SessionID: "cs_done",
		Tracking:  domain.TrackingParams{EventID: "evt-1", FBCLID: "click-1"},
		ClientIP:  "203.0.113.9",
		UserAgent: "Mozilla/5.0",
	})
	require.NoError(t, err)

	assert.False(t, payload.AlreadyTracked)
	assert.Equal(t, "evt-1", payload.EventID)
	assert.InDelta(t, 147.0, payload.Value, 0.001)
	assert.Equal(t, "usd", payload.Currency)
	assert.Equal(t, []string{domain.ProductVaultCourse}, payload.ContentIDs)
	assert.Contains(t, payload.RedirectURL, "email=mo%40example.com")
	assert.Contains(t, payload.RedirectURL, "name=Mo+Ali")

	// The CAPI event carries the pixel's event id for deduplication.
	events := conversions.sent()
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].EventID)
	assert.Equal(t, "click-1", events[0].FBCLID)
	assert.Equal(t, "203.0.113.9", events[0].ClientIP)

	assert.True(t, state.tracked["cs_done"])
}

func TestReportPurchase_SecondReportIsDeduplicated(t *testing.T) {
	payments := newFakePaymentClient()
	payments.sessions["cs_done"] = completedSession()
	state := newFakeStateStore()
	conversions := &fakeConversions{}
	svc := newConversionService(payments, state, conversions)

	in := &ReportInput{SessionID: "cs_done", Tracking: domain.TrackingParams{EventID: "evt-1"}}

	first, err := svc.ReportPurchase(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, first.AlreadyTracked)

	second, err := svc.ReportPurchase(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, second.AlreadyTracked)

	// The pixel payload is still returned, but nothing fires twice.
	assert.Equal(t, first.Value, second.Value)
	assert.Len(t, conversions.sent(), 1)
}

func TestReportPurchase_DedupCheckFailureAssumesTracked(t *testing.T) {
	payments := newFakePaymentClient()
	payments.sessions["cs_done"] = completedSession()
	state := newFakeStateStore()
	state.trackedErr = errFakeStore
	conversions := &fakeConversions{}
	svc := newConversionService(payments, state, conversions)

	payload, err := svc.ReportPurchase(context.Background(), &ReportInput{SessionID: "cs_done"})
	require.NoError(t, err)

	// Double-firing ad conversions is worse than missing one.
	assert.True(t, payload.AlreadyTracked)
	assert.Empty(t, conversions.sent())
}

func TestReportPurchase_GeneratesEventIDWhenMissing(t *testing.T) {
	payments := newFakePaymentClient()
	payments.sessions["cs_done"] = completedSession()
	conversions := &fakeConversions{}
	svc := newConversionService(payments, newFakeStateStore(), conversions)

	payload, err := svc.ReportPurchase(context.Background(), &ReportInput{SessionID: "cs_done"})
	require.NoError(t, err)
	assert.NotEmpty(t, payload.EventID)

	events := conversions.sent()
	require.Len(t, events, 1)
	assert.Equal(t, payload.EventID, events[0].EventID)
}

func TestReportPurchase_UnknownSession(t *testing.T) {
	svc := newConversionService(newFakePaymentClient(), newFakeStateStore(), &fakeConversions{})

	_, err := svc.ReportPurchase(context.Background(), &ReportInput{SessionID: "cs_missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReportPurchase_MissingSessionID(t *testing.T) {
	svc := newConversionService(newFakePaymentClient(), newFakeStateStore(), &fakeConversions{})

	_, err := svc.ReportPurchase(context.Background(), &ReportInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
