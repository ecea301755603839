package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCountry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/203.0.113.9/json/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ip":"203.0.113.9","country_code":"GB","country_name":"United Kingdom"}`))
	}))
	defer srv.Close()

	resolver := NewResolverWithEndpoint(srv.URL, zerolog.Nop())
	assert.Equal(t, "GB", resolver.Country(context.Background(), "203.0.113.9"))
}

func TestCountry_FailsSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"rate limited",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
		},
		{
			"server error",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		},
		{
			"malformed body",
			func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("not json")) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			resolver := NewResolverWithEndpoint(srv.URL, zerolog.Nop())
			assert.Empty(t, resolver.Country(context.Background(), "203.0.113.9"))
		})
	}
}

func TestCountry_EmptyIP(t *testing.T) {
	resolver := NewResolver(zerolog.Nop())
	assert.Empty(t, resolver.Country(context.Background(), ""))
}

func TestCountry_UnreachableService(t *testing.T) {
	resolver := NewResolverWithEndpoint("http://127.0.0.1:1", zerolog.Nop())
	assert.Empty(t, resolver.Country(context.Background(), "203.0.113.9"))
}
