package facebook

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/rs/zerolog"
)

const defaultGraphURL = "https://graph.facebook.com/v18.0"

// CAPIClient sends server-side conversion events to the Facebook
// Conversions API. Browser pixel events with the same event id are
// deduplicated platform-side.
type CAPIClient struct {
	pixelID     string
	accessToken string
	testCode    string
	baseURL     string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewCAPIClient creates a Conversions API client.
func NewCAPIClient(pixelID, accessToken string, logger zerolog.Logger) *CAPIClient {
	return &CAPIClient{
		pixelID:     pixelID,
		accessToken: accessToken,
		baseURL:     defaultGraphURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

// NewCAPIClientWithOptions allows overriding the endpoint and test event
// code, used by tests and staging.
func NewCAPIClientWithOptions(pixelID, accessToken, baseURL, testCode string, logger zerolog.Logger) *CAPIClient {
	c := NewCAPIClient(pixelID, accessToken, logger)
	if baseURL != "" {
		c.baseURL = baseURL
	}
	c.testCode = testCode
	return c
}

var _ ports.ConversionsClient = (*CAPIClient)(nil)

// hashIdentifier normalizes and SHA-256 hashes customer identifiers before
// they leave the server, as the Conversions API requires.
func hashIdentifier(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// SendPurchase fires one Purchase event carrying the canonical event id.
func (c *CAPIClient) SendPurchase(ctx context.Context, event *domain.PurchaseEvent) error {
	userData := map[string]any{}
	if h := hashIdentifier(event.CustomerEmail); h != "" {
		userData["em"] = []string{h}
	}
	if h := hashIdentifier(event.CustomerPhone); h != "" {
		userData["ph"] = []string{h}
	}
	if event.ClientIP != "" {
		userData["client_ip_address"] = event.ClientIP
	}
	if event.UserAgent != "" {
		userData["client_user_agent"] = event.UserAgent
	}
	if event.FBP != "" {
		userData["fbp"] = event.FBP
	}
	if event.FBCLID != "" {
		userData["fbc"] = fbcFromClickID(event.FBCLID)
	}

	contents := make([]map[string]any, 0, len(event.ContentIDs))
	for _, id := range event.ContentIDs {
		contents = append(contents, map[string]any{"id": id, "quantity": 1})
	}

	payload := map[string]any{
		"data": []map[string]any{{
			"event_name":       "Purchase",
			"event_time":       time.Now().Unix(),
			"event_id":         event.EventID,
			"action_source":    "website",
			"event_source_url": event.SourceURL,
			"user_data":        userData,
			"custom_data": map[string]any{
				"value":        event.Value,
				"currency":     strings.ToUpper(event.Currency),
				"content_ids":  event.ContentIDs,
				"contents":     contents,
				"content_type": "product",
			},
		}},
	}
	if c.testCode != "" {
		payload["test_event_code"] = c.testCode
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal conversion payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/events?access_token=%s", c.baseURL, c.pixelID, c.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build conversion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send conversion event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("conversions api returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug().
		Str("eventId", event.EventID).
		Float64("value", event.Value).
		Str("currency", event.Currency).
		Msg("Purchase conversion sent")
	return nil
}

// fbcFromClickID builds the fbc parameter from a raw fbclid when the
// browser cookie did not carry a ready-made value.
func fbcFromClickID(fbclid string) string {
	if strings.HasPrefix(fbclid, "fb.") {
		return fbclid
	}
	return fmt.Sprintf("fb.1.%d.%s", time.Now().UnixMilli(), fbclid)
}
