package domain

import (
	"encoding/json"
	"net/url"
	"time"
)

// TrackingCookieName is the attribution cookie shared with the marketing pages.
const TrackingCookieName = "ob_track"

// TrackingCookieTTL mirrors the cookie expiry set by the browser tracker.
const TrackingCookieTTL = 90 * 24 * time.Hour

// TrackingParams is the attribution record persisted in the ob_track cookie.
// First-touch fields are write-once; last-touch fields follow the newest
// UTM/referrer combination.
type TrackingParams struct {
	SessionID string `json:"session_id,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	FBCLID    string `json:"fbclid,omitempty"`

	FirstUTMSource   string `json:"first_utm_source,omitempty"`
	FirstUTMMedium   string `json:"first_utm_medium,omitempty"`
	FirstUTMCampaign string `json:"first_utm_campaign,omitempty"`
	FirstUTMTerm     string `json:"first_utm_term,omitempty"`
	FirstUTMContent  string `json:"first_utm_content,omitempty"`

	LastUTMSource   string `json:"last_utm_source,omitempty"`
	LastUTMMedium   string `json:"last_utm_medium,omitempty"`
	LastUTMCampaign string `json:"last_utm_campaign,omitempty"`
	LastUTMTerm     string `json:"last_utm_term,omitempty"`
	LastUTMContent  string `json:"last_utm_content,omitempty"`

	FirstReferrer  string `json:"first_referrer,omitempty"`
	LastReferrer   string `json:"last_referrer,omitempty"`
	FirstTouchedAt string `json:"first_touched_at,omitempty"`
	LastTouchedAt  string `json:"last_touched_at,omitempty"`
}

// Touch is one observed visit: UTM parameters, referrer and click id
// extracted from the incoming request.
type Touch struct {
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string
	Referrer    string
	FBCLID      string
	At          time.Time
}

// TouchFromURL extracts a Touch from a landing page URL and referrer header.
func TouchFromURL(u *url.URL, referrer string, at time.Time) Touch {
	q := u.Query()
	return Touch{
		UTMSource:   q.Get("utm_source"),
		UTMMedium:   q.Get("utm_medium"),
		UTMCampaign: q.Get("utm_campaign"),
		UTMTerm:     q.Get("utm_term"),
		UTMContent:  q.Get("utm_content"),
		Referrer:    referrer,
		FBCLID:      q.Get("fbclid"),
		At:          at,
	}
}

// HasAttribution reports whether the touch carries anything worth recording.
func (t Touch) HasAttribution() bool {
	return t.UTMSource != "" || t.UTMMedium != "" || t.UTMCampaign != "" ||
		t.UTMTerm != "" || t.UTMContent != "" || t.Referrer != "" || t.FBCLID != ""
}

// ParseTrackingCookie decodes the ob_track cookie value. Malformed JSON is
// swallowed and treated as absent: the zero TrackingParams is returned.
func ParseTrackingCookie(raw string) TrackingParams {
	var params TrackingParams
	if raw == "" {
		return params
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		decoded = raw
	}
	if err := json.Unmarshal([]byte(decoded), &params); err != nil {
		return TrackingParams{}
	}
	return params
}

// Encode serializes the params back into a cookie value.
func (p TrackingParams) Encode() string {
	b, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return url.QueryEscape(string(b))
}

// Merge applies a new touch. First-touch fields are only set when still
// empty; last-touch fields are overwritten whenever the touch carries a new
// UTM/referrer combination.
func (p *TrackingParams) Merge(t Touch) {
	if !t.HasAttribution() {
		return
	}

	stamp := t.At.UTC().Format(time.RFC3339)
	if p.FirstTouchedAt == "" {
		p.FirstUTMSource = t.UTMSource
		p.FirstUTMMedium = t.UTMMedium
		p.FirstUTMCampaign = t.UTMCampaign
		p.FirstUTMTerm = t.UTMTerm
		p.FirstUTMContent = t.UTMContent
		p.FirstReferrer = t.Referrer
		p.FirstTouchedAt = stamp
	}

	p.LastUTMSource = t.UTMSource
	p.LastUTMMedium = t.UTMMedium
	p.LastUTMCampaign = t.UTMCampaign
	p.LastUTMTerm = t.UTMTerm
	p.LastUTMContent = t.UTMContent
	p.LastReferrer = t.Referrer
	p.LastTouchedAt = stamp

	if t.FBCLID != "" {
		p.FBCLID = t.FBCLID
	}
}

// Flatten converts the params into flat string metadata with the given key
// prefix. Empty fields are omitted; the payment provider requires flat
// string metadata values.
func (p TrackingParams) Flatten(prefix string) map[string]string {
	raw, err := json.Marshal(p)
	if err != nil {
		return map[string]string{}
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err != nil {
		return map[string]string{}
	}

	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if v == "" {
			continue
		}
		out[prefix+k] = v
	}
	return out
}

// FlattenCookieBlob flattens an arbitrary raw cookie blob the same way:
// flat string values with the prefix, nulls and empties dropped. Non-scalar
// values are re-serialized as JSON strings.
func FlattenCookieBlob(blob map[string]any, prefix string) map[string]string {
	out := make(map[string]string, len(blob))
	for k, v := range blob {
		if v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			if val == "" {
				continue
			}
			out[prefix+k] = val
		case float64:
			out[prefix+k] = trimFloat(val)
		case bool:
			if val {
				out[prefix+k] = "true"
			} else {
				out[prefix+k] = "false"
			}
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[prefix+k] = string(b)
		}
	}
	return out
}

func trimFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}
