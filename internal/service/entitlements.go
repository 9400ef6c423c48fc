package service

import (
	"encoding/json"
	"errors"
	"strconv"
)

var ErrFeatureNotAvailable = errors.New("feature not available on current plan")

// Feature keys the platform gates on. Plans may define more; these are the
// ones with hardcoded fallback values when no plan row can be loaded.
const (
	FeatureLiveTrading        = "live_trading_enabled"
	FeatureSignalDelayMinutes = "signal_delay_minutes"
	FeatureMaxWatchlist       = "max_watchlist_symbols"
	FeatureDailyAPIRequests   = "daily_api_requests"
	FeatureRealtimeAlerts     = "realtime_alerts_enabled"
)

// Entitlements is the resolved feature set for one user. Values are kept in
// decoded form; plan rows store them as strings which may or may not be JSON.
type Entitlements struct {
	PlanName string                  `json:"plan_name"`
	Features map[string]FeatureValue `json:"features"`
}

// FeatureValue holds one decoded plan feature. Exactly one of the typed
// fields is meaningful, per Kind.
type FeatureValue struct {
	Kind   FeatureKind `json:"kind"`
	Bool   bool        `json:"bool,omitempty"`
	Int    int64       `json:"int,omitempty"`
	String string      `json:"string,omitempty"`
}

type FeatureKind string

const (
	FeatureKindBool   FeatureKind = "bool"
	FeatureKindInt    FeatureKind = "int"
	FeatureKindString FeatureKind = "string"
)

func BoolFeature(v bool) FeatureValue   { return FeatureValue{Kind: FeatureKindBool, Bool: v} }
func IntFeature(v int64) FeatureValue   { return FeatureValue{Kind: FeatureKindInt, Int: v} }
func StringFeature(v string) FeatureValue {
	return FeatureValue{Kind: FeatureKindString, String: v}
}

// DecodeFeatureValue parses a stored feature value. Plan rows are authored by
// humans, so the decoder accepts JSON scalars first and falls back to the
// literal string for anything that does not parse.
func DecodeFeatureValue(raw string) FeatureValue {
	var b bool
	if err := json.Unmarshal([]byte(raw), &b); err == nil {
		return BoolFeature(b)
	}
	var n int64
	if err := json.Unmarshal([]byte(raw), &n); err == nil {
		return IntFeature(n)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return IntFeature(i)
	}
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return StringFeature(s)
	}
	return StringFeature(raw)
}

func (e *Entitlements) HasFeature(key string) bool {
	if e == nil {
		return false
	}
	_, ok := e.Features[key]
	return ok
}

// BoolValue returns the feature as a flag. Missing or non-bool features read
// as false, so gates fail closed.
func (e *Entitlements) BoolValue(key string) bool {
	if e == nil {
		return false
	}
	v, ok := e.Features[key]
	return ok && v.Kind == FeatureKindBool && v.Bool
}

// IntValue returns the feature as a limit, or def when absent or mistyped.
func (e *Entitlements) IntValue(key string, def int64) int64 {
	if e == nil {
		return def
	}
	v, ok := e.Features[key]
	if !ok || v.Kind != FeatureKindInt {
		return def
	}
	return v.Int
}

func (e *Entitlements) StringValue(key string, def string) string {
	if e == nil {
		return def
	}
	v, ok := e.Features[key]
	if !ok || v.Kind != FeatureKindString {
		return def
	}
	return v.String
}

// RequireFeature gates an operation on a boolean feature flag.
func (e *Entitlements) RequireFeature(key string) error {
	if !e.BoolValue(key) {
		return ErrFeatureNotAvailable
	}
	return nil
}

// DefaultEntitlements is the last-resort feature set used when neither an
// active subscription nor a free plan row can be loaded. Values match the
// free tier and fail closed on anything dangerous.
func DefaultEntitlements() *Entitlements {
	return &Entitlements{
		PlanName: "free",
		Features: map[string]FeatureValue{
			FeatureLiveTrading:        BoolFeature(false),
			FeatureSignalDelayMinutes: IntFeature(15),
			FeatureMaxWatchlist:       IntFeature(5),
			FeatureDailyAPIRequests:   IntFeature(100),
			FeatureRealtimeAlerts:     BoolFeature(false),
		},
	}
}
