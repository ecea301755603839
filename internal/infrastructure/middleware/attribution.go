package middleware

import (
	"net/http"
	"time"

	"oracleboxing-funnel-layer/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AttributionMiddleware captures marketing attribution on every request:
// it parses the ob_track cookie (malformed JSON is treated as absent),
// merges the current touch, refreshes the cookie and exposes the params
// through the request context. First-touch fields are never overwritten.
func AttributionMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := domain.TrackingParams{}
			if cookie, err := r.Cookie(domain.TrackingCookieName); err == nil {
				params = domain.ParseTrackingCookie(cookie.Value)
			}

			fresh := params.SessionID == ""
			if fresh {
				params.SessionID = uuid.New().String()
			}
			if params.EventID == "" {
				params.EventID = uuid.New().String()
			}

			params.Merge(domain.TouchFromURL(r.URL, r.Referer(), time.Now()))

			http.SetCookie(w, &http.Cookie{
				Name:     domain.TrackingCookieName,
				Value:    params.Encode(),
				Path:     "/",
				Expires:  time.Now().Add(domain.TrackingCookieTTL),
				SameSite: http.SameSiteLaxMode,
			})

			if fresh {
				logger.Debug().
					Str("sessionId", params.SessionID).
					Str("utmSource", params.LastUTMSource).
					Msg("New visitor attributed")
			}

			ctx := domain.WithTrackingParams(r.Context(), params)
			ctx = domain.WithVisitorID(ctx, params.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
