// Package telemetry assembles behavior samples from the freshest
// available device, location and typing-cadence readings.
package telemetry

// Sample is one snapshot of observable user/device/session signals,
// submitted for logging or scoring. Immutable once constructed.
type Sample struct {
	TypingSpeedWPM         float64  `json:"typing_speed"`
	TapPressure            float64  `json:"tap_pressure"`
	Latitude               *float64 `json:"location_lat,omitempty"`
	Longitude              *float64 `json:"location_lng,omitempty"`
	DeviceModel            string   `json:"device_model"`
	DeviceOS               string   `json:"device_os"`
	ScreenWidth            int      `json:"screen_width"`
	ScreenHeight           int      `json:"screen_height"`
	SessionHour            int      `json:"session_hour"`
	SessionDurationSeconds int      `json:"session_duration"`
}

// Defaults used when a reading is unavailable.
const (
	DefaultTapPressure     = 0.75
	DefaultScreenWidth     = 1080
	DefaultScreenHeight    = 2400
	DefaultSessionDuration = 300
)
