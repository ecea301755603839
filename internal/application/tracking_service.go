package application

import (
	"context"
	"time"

	"oracleboxing-funnel-layer/internal/domain"
	"oracleboxing-funnel-layer/internal/infrastructure/metrics"
	"oracleboxing-funnel-layer/internal/infrastructure/pubsub"
	"oracleboxing-funnel-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TrackingService is the fire-and-forget analytics logger: it enriches
// events with session id, attribution and country, then publishes them on
// the event bus without blocking the caller. Insert failures never reach
// the user-facing flow.
type TrackingService struct {
	bus    *pubsub.EventBus
	state  ports.StateStore
	geo    ports.GeoResolver
	logger zerolog.Logger
}

// NewTrackingService creates the analytics logger.
func NewTrackingService(bus *pubsub.EventBus, state ports.StateStore, geo ports.GeoResolver, logger zerolog.Logger) *TrackingService {
	return &TrackingService{bus: bus, state: state, geo: geo, logger: logger}
}

// TrackEvent enriches and publishes one event. It returns immediately;
// enrichment and publication happen off the request path.
func (t *TrackingService) TrackEvent(ctx context.Context, e *domain.Event, clientIP string) {
	params := domain.GetTrackingParamsFromContext(ctx)
	visitorID := domain.GetVisitorIDFromContext(ctx)

	if e.EventID == "" {
		e.EventID = uuid.New().String()
	}
	if e.SessionID == "" {
		e.SessionID = visitorID
	}
	if e.UTMSource == "" {
		e.UTMSource = params.LastUTMSource
		e.UTMMedium = params.LastUTMMedium
		e.UTMCampaign = params.LastUTMCampaign
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.ElementID = domain.TruncateText(e.ElementID)
	e.ElementText = domain.TruncateText(e.ElementText)
	e.ElementType = domain.TruncateText(e.ElementType)

	bg := context.WithoutCancel(ctx)
	go func() {
		if e.Country == "" {
			e.Country = t.resolveCountry(bg, visitorID, clientIP)
		}
		t.bus.Publish(e)
		metrics.EventsLogged.Inc()
	}()
}

// resolveCountry returns the cached country for the visitor, falling back
// to a bounded geolocation lookup.
func (t *TrackingService) resolveCountry(ctx context.Context, visitorID, clientIP string) string {
	if visitorID != "" {
		if country, err := t.state.CachedCountry(ctx, visitorID); err == nil && country != "" {
			return country
		}
	}
	if clientIP == "" || t.geo == nil {
		return ""
	}
	country := t.geo.Country(ctx, clientIP)
	if country != "" && visitorID != "" {
		if err := t.state.CacheCountry(ctx, visitorID, country); err != nil {
			t.logger.Debug().Err(err).Msg("Failed to cache visitor country")
		}
	}
	return country
}

// RunStoreSink consumes the event bus and writes rows to the analytics
// store until the context is cancelled. Run it in its own goroutine.
func RunStoreSink(ctx context.Context, bus *pubsub.EventBus, store ports.EventStore, logger zerolog.Logger) {
	channel := bus.Subscribe(ctx, nil)
	for {
		select {
		case event, ok := <-channel.Events:
			if !ok {
				return
			}
			insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			if err := store.InsertEvent(insertCtx, event); err != nil {
				logger.Warn().Err(err).Str("event", event.Name).Msg("Analytics insert failed")
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}
}
