package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"oracleboxing-funnel-layer/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAttributed(t *testing.T, req *http.Request) (domain.TrackingParams, string, *http.Response) {
	t.Helper()

	var (
		gotParams  domain.TrackingParams
		gotVisitor string
	)
	handler := AttributionMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotParams = domain.GetTrackingParamsFromContext(r.Context())
		gotVisitor = domain.GetVisitorIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return gotParams, gotVisitor, rec.Result()
}

func trackingCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == domain.TrackingCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie set", domain.TrackingCookieName)
	return nil
}

func TestAttribution_NewVisitor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?utm_source=facebook&utm_campaign=launch&fbclid=abc", nil)
	req.Header.Set("Referer", "https://facebook.com")

	params, visitorID, resp := runAttributed(t, req)

	assert.NotEmpty(t, params.SessionID)
	assert.NotEmpty(t, params.EventID)
	assert.Equal(t, params.SessionID, visitorID)
	assert.Equal(t, "facebook", params.FirstUTMSource)
	assert.Equal(t, "facebook", params.LastUTMSource)
	assert.Equal(t, "abc", params.FBCLID)
	assert.Equal(t, "https://facebook.com", params.FirstReferrer)

	cookie := trackingCookie(t, resp)
	stored := domain.ParseTrackingCookie(cookie.Value)
	assert.Equal(t, params.SessionID, stored.SessionID)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestAttribution_ReturningVisitorKeepsFirstTouch(t *testing.T) {
	existing := domain.TrackingParams{
		SessionID:      "sess-1",
		EventID:        "evt-1",
		FirstUTMSource: "facebook",
		FirstTouchedAt: "2026-01-10T09:00:00Z",
		LastUTMSource:  "facebook",
	}

	req := httptest.NewRequest(http.MethodGet, "/?utm_source=youtube", nil)
	req.AddCookie(&http.Cookie{Name: domain.TrackingCookieName, Value: existing.Encode()})

	params, visitorID, resp := runAttributed(t, req)

	assert.Equal(t, "sess-1", visitorID)
	assert.Equal(t, "facebook", params.FirstUTMSource)
	assert.Equal(t, "2026-01-10T09:00:00Z", params.FirstTouchedAt)
	assert.Equal(t, "youtube", params.LastUTMSource)

	stored := domain.ParseTrackingCookie(trackingCookie(t, resp).Value)
	assert.Equal(t, "facebook", stored.FirstUTMSource)
	assert.Equal(t, "youtube", stored.LastUTMSource)
}

func TestAttribution_MalformedCookieStartsFresh(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: domain.TrackingCookieName, Value: "%%%garbage"})

	params, visitorID, _ := runAttributed(t, req)

	require.NotEmpty(t, params.SessionID)
	assert.Equal(t, params.SessionID, visitorID)
	assert.Empty(t, params.FirstUTMSource)
}

func TestAttribution_NoUTMLeavesTouchUntouched(t *testing.T) {
	existing := domain.TrackingParams{
		SessionID:     "sess-1",
		EventID:       "evt-1",
		LastUTMSource: "facebook",
		LastTouchedAt: "2026-01-10T09:00:00Z",
	}

	req := httptest.NewRequest(http.MethodGet, "/api/track", nil)
	req.AddCookie(&http.Cookie{Name: domain.TrackingCookieName, Value: existing.Encode()})

	params, _, _ := runAttributed(t, req)

	assert.Equal(t, "facebook", params.LastUTMSource)
	assert.Equal(t, "2026-01-10T09:00:00Z", params.LastTouchedAt)
}
