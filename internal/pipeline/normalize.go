package pipeline

import (
	"encoding/json"

	"ariot.dev/platform/internal/store"
)

// Defaults applied when the decoder output omits a field. RSSI uses a floor
// sentinel meaning "no signal"; frequency falls back to the EU868 ISM band.
const (
	DefaultRSSI      = -120.0
	DefaultSNR       = 0.0
	DefaultFrequency = 868.0
	DefaultGatewayID = "gw"
)

// Accepted field-naming conventions, in priority order: the first key present
// with a usable value wins. The table is applied uniformly to every decoder
// output; there is no per-integration variation.
var (
	latitudeKeys        = []string{"latitude", "lat"}
	longitudeKeys       = []string{"longitude", "lng", "lon"}
	spreadingFactorKeys = []string{"spreadingFactor", "sf", "spreading_factor"}
)

// Normalize reconciles a freeform decoder output object into the canonical
// measurement shape. Every field has a fallback, so normalization cannot
// fail: missing coordinates produce a valid unlocated record.
func Normalize(decoded map[string]any) *store.Measurement {
	m := &store.Measurement{
		GatewayID: DefaultGatewayID,
		RSSI:      DefaultRSSI,
		SNR:       DefaultSNR,
		Frequency: DefaultFrequency,
	}

	if v, ok := firstNumber(decoded, "rssi"); ok {
		m.RSSI = v
	}
	if v, ok := firstNumber(decoded, "snr"); ok {
		m.SNR = v
	}
	if v, ok := firstNumber(decoded, "frequency"); ok {
		m.Frequency = v
	}
	if v, ok := firstString(decoded, "gateway_id"); ok {
		m.GatewayID = v
	}
	if v, ok := firstNumber(decoded, spreadingFactorKeys...); ok {
		m.SpreadingFactor = &v
	}
	if v, ok := firstNumber(decoded, latitudeKeys...); ok {
		m.Latitude = &v
	}
	if v, ok := firstNumber(decoded, longitudeKeys...); ok {
		m.Longitude = &v
	}

	return m
}

// firstNumber returns the first key holding a numeric value.
// Decoder output crosses two boundaries with different numeric
// representations: encoding/json produces float64, the script runtime
// exports int64 for JS integers.
func firstNumber(decoded map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		value, present := decoded[key]
		if !present {
			continue
		}
		switch v := value.(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int64:
			return float64(v), true
		case int:
			return float64(v), true
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// firstString returns the first key holding a non-empty string value.
func firstString(decoded map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := decoded[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}
