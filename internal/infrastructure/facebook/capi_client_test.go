package facebook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"oracleboxing-funnel-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestHashIdentifier(t *testing.T) {
	// Identifiers are lowercased and trimmed before hashing.
	assert.Equal(t, sha256Hex("mo@example.com"), hashIdentifier("  MO@Example.COM "))
	assert.Empty(t, hashIdentifier("   "))
}

func TestSendPurchase(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewCAPIClientWithOptions("1234567890", "token-1", srv.URL, "", zerolog.Nop())

	err := client.SendPurchase(context.Background(), &domain.PurchaseEvent{
		EventID:       "evt-1",
		Value:         147,
		Currency:      "usd",
		ContentIDs:    []string{domain.ProductVaultCourse},
		CustomerEmail: "MO@Example.com",
		CustomerPhone: "+447700900000",
		FBCLID:        "abc123",
		FBP:           "fb.1.1700000000.111",
		ClientIP:      "203.0.113.9",
		UserAgent:     "Mozilla/5.0",
		SourceURL:     "https://oracleboxing.com/success",
	})
	require.NoError(t, err)

	assert.Equal(t, "/1234567890/events", gotPath)
	assert.Equal(t, "access_token=token-1", gotQuery)

	data, ok := gotBody["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	event := data[0].(map[string]any)

	assert.Equal(t, "Purchase", event["event_name"])
	assert.Equal(t, "evt-1", event["event_id"])
	assert.Equal(t, "website", event["action_source"])
	assert.Equal(t, "https://oracleboxing.com/success", event["event_source_url"])

	userData := event["user_data"].(map[string]any)
	assert.Equal(t, []any{sha256Hex("mo@example.com")}, userData["em"])
	assert.Equal(t, []any{sha256Hex("+447700900000")}, userData["ph"])
	assert.Equal(t, "203.0.113.9", userData["client_ip_address"])
	assert.Equal(t, "fb.1.1700000000.111", userData["fbp"])
	// A raw fbclid is wrapped into the fbc format.
	assert.Contains(t, userData["fbc"], "abc123")
	assert.Contains(t, userData["fbc"], "fb.1.")

	customData := event["custom_data"].(map[string]any)
	assert.Equal(t, float64(147), customData["value"])
	assert.Equal(t, "USD", customData["currency"])
	assert.Equal(t, []any{domain.ProductVaultCourse}, customData["content_ids"])
	assert.Equal(t, "product", customData["content_type"])
}

func TestSendPurchase_OmitsMissingIdentifiers(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewCAPIClientWithOptions("1234567890", "token-1", srv.URL, "", zerolog.Nop())

	err := client.SendPurchase(context.Background(), &domain.PurchaseEvent{
		EventID:  "evt-1",
		Value:    47,
		Currency: "usd",
	})
	require.NoError(t, err)

	event := gotBody["data"].([]any)[0].(map[string]any)
	userData := event["user_data"].(map[string]any)
	assert.NotContains(t, userData, "em")
	assert.NotContains(t, userData, "ph")
	assert.NotContains(t, userData, "fbc")
	assert.NotContains(t, userData, "fbp")
}

func TestSendPurchase_TestEventCode(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewCAPIClientWithOptions("1234567890", "token-1", srv.URL, "TEST123", zerolog.Nop())

	err := client.SendPurchase(context.Background(), &domain.PurchaseEvent{EventID: "evt-1"})
	require.NoError(t, err)
	assert.Equal(t, "TEST123", gotBody["test_event_code"])
}

func TestSendPurchase_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewCAPIClientWithOptions("1234567890", "bad-token", srv.URL, "", zerolog.Nop())

	err := client.SendPurchase(context.Background(), &domain.PurchaseEvent{EventID: "evt-1"})
	assert.ErrorContains(t, err, "status 400")
}

func TestFBCFromClickID(t *testing.T) {
	// Ready-made fbc values pass through untouched.
	assert.Equal(t, "fb.1.1700000000.abc", fbcFromClickID("fb.1.1700000000.abc"))

	built := fbcFromClickID("abc123")
	assert.Contains(t, built, "fb.1.")
	assert.Contains(t, built, ".abc123")
}
