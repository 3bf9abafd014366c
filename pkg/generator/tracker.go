// Package generator synthesizes LoRa drive-test trackers and the uplinks
// they would emit while moving around a gateway.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// TrackerDevice is a simulated GPS tracker doing a drive test.
type TrackerDevice struct {
	DeviceID   string  `fake:"{uuid}"`
	Name       string  `fake:"{carmodel}"`
	MacAddress string  `fake:"{macaddress}"`
	Firmware   string  `fake:"{appversion}"`
	Latitude   float64 `fake:"{latitude}"`
	Longitude  float64 `fake:"{longitude}"`
}

// Uplink is one synthetic payload in the shape a gateway bridge would POST.
// Field names match the conventions the normalization table accepts.
type Uplink struct {
	GatewayID       string  `json:"gateway_id"`
	RSSI            float64 `json:"rssi"`
	SNR             float64 `json:"snr"`
	Frequency       float64 `json:"frequency"`
	SpreadingFactor float64 `json:"spreadingFactor"`
	Latitude        float64 `json:"lat"`
	Longitude       float64 `json:"lon"`
}

// NewTrackerDevice creates a randomized tracker.
func NewTrackerDevice() *TrackerDevice {
	var device TrackerDevice
	if err := gofakeit.Struct(&device); err != nil {
		return nil
	}
	return &device
}

// Log-distance path loss parameters for a suburban EU868 deployment:
// 14 dBm tx power, ~40 dB loss at the 1 m reference distance, exponent 2.9.
const (
	txPowerDBm       = 14.0
	refPathLossDB    = 40.0
	pathLossExponent = 2.9
	degreesPerMeter  = 1.0 / 111320.0
)

// UplinkGenerator walks one tracker away from and around a fixed gateway,
// deriving signal quality from the distance on each step.
type UplinkGenerator struct {
	device     *TrackerDevice
	gatewayID  string
	gatewayLat float64
	gatewayLon float64
	lat        float64
	lon        float64
	stepMeters float64
}

// NewUplinkGenerator starts a drive test at the gateway position.
// Note: math/rand is acceptable for simulation data.
func NewUplinkGenerator(device *TrackerDevice, gatewayID string, gatewayLat, gatewayLon float64) *UplinkGenerator {
	return &UplinkGenerator{
		device:     device,
		gatewayID:  gatewayID,
		gatewayLat: gatewayLat,
		gatewayLon: gatewayLon,
		lat:        gatewayLat,
		lon:        gatewayLon,
		stepMeters: 20 + rand.Float64()*60, // 20-80 m between uplinks
	}
}

// Device returns the tracker being simulated.
func (g *UplinkGenerator) Device() *TrackerDevice {
	return g.device
}

// Next moves the tracker one step and produces the uplink heard at the new
// position.
func (g *UplinkGenerator) Next(t time.Time) *Uplink {
	g.move()

	distance := math.Max(1, g.distanceMeters())
	pathLoss := refPathLossDB + 10*pathLossExponent*math.Log10(distance)

	// Shadowing noise, a few dB either way.
	noise := (rand.Float64() - 0.5) * 6

	rssi := txPowerDBm - pathLoss + noise
	rssi = math.Max(-130, math.Min(-30, rssi))

	// SNR degrades from ~10 dB near the gateway down past the LoRa
	// demodulation floor at the cell edge.
	snr := 10 - (distance/100)*1.5 + (rand.Float64()-0.5)*4
	snr = math.Max(-20, math.Min(12, snr))

	return &Uplink{
		GatewayID:       g.gatewayID,
		RSSI:            math.Round(rssi*100) / 100,
		SNR:             math.Round(snr*100) / 100,
		Frequency:       868.1,
		SpreadingFactor: spreadingFactorFor(snr),
		Latitude:        math.Round(g.lat*1e6) / 1e6,
		Longitude:       math.Round(g.lon*1e6) / 1e6,
	}
}

// move advances the tracker by one random-walk step biased away from the
// gateway, so a long run sweeps the whole coverage range.
func (g *UplinkGenerator) move() {
	heading := rand.Float64() * 2 * math.Pi
	step := g.stepMeters * (0.5 + rand.Float64())

	// Slight outward drift.
	awayLat := g.lat - g.gatewayLat
	awayLon := g.lon - g.gatewayLon
	if norm := math.Hypot(awayLat, awayLon); norm > 0 {
		g.lat += awayLat / norm * step * 0.3 * degreesPerMeter
		g.lon += awayLon / norm * step * 0.3 * degreesPerMeter
	}

	g.lat += math.Sin(heading) * step * degreesPerMeter
	g.lon += math.Cos(heading) * step * degreesPerMeter / math.Cos(g.gatewayLat*math.Pi/180)
}

// distanceMeters is the equirectangular distance to the gateway, plenty for
// sub-kilometer drive-test scales.
func (g *UplinkGenerator) distanceMeters() float64 {
	dLat := (g.lat - g.gatewayLat) / degreesPerMeter
	dLon := (g.lon - g.gatewayLon) / degreesPerMeter * math.Cos(g.gatewayLat*math.Pi/180)
	return math.Hypot(dLat, dLon)
}

// spreadingFactorFor picks the SF an ADR-steered device would settle on for
// the given SNR headroom.
func spreadingFactorFor(snr float64) float64 {
	switch {
	case snr > 5:
		return 7
	case snr > 2.5:
		return 8
	case snr > 0:
		return 9
	case snr > -5:
		return 10
	case snr > -10:
		return 11
	default:
		return 12
	}
}
