package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LocationProvider produces a best-effort location reading. A denial or
// failure must be reported as an error, not a blocking wait.
type LocationProvider interface {
	Current(ctx context.Context) (lat, lng float64, err error)
}

// Sampler builds one Sample per call from the freshest readings. A sample
// with partial data is always preferable to no sample: a failed location
// read yields an absent location, never a failed sample.
type Sampler struct {
	device   DeviceProvider
	location LocationProvider // nil means no location source
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	typingWPM float64
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithLocation attaches a location source.
func WithLocation(p LocationProvider) SamplerOption {
	return func(s *Sampler) { s.location = p }
}

// WithLogger sets the sampler logger.
func WithLogger(logger *slog.Logger) SamplerOption {
	return func(s *Sampler) { s.logger = logger }
}

// withClock overrides the wall clock (tests).
func withClock(now func() time.Time) SamplerOption {
	return func(s *Sampler) { s.now = now }
}

// NewSampler creates a sampler over the given device identity.
func NewSampler(device DeviceProvider, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		device: device,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordTypingSpeed stores the most recent observed typing cadence. The
// presentation layer feeds this from its input handling.
func (s *Sampler) RecordTypingSpeed(wpm float64) {
	s.mu.Lock()
	s.typingWPM = wpm
	s.mu.Unlock()
}

// SampleOption overrides a reading for one sample.
type SampleOption func(*Sample)

// WithDuration supplies a real measured session duration in seconds,
// replacing the fixed nominal default.
func WithDuration(seconds int) SampleOption {
	return func(sm *Sample) { sm.SessionDurationSeconds = seconds }
}

// WithTypingSpeed supplies a typing cadence for this sample only.
func WithTypingSpeed(wpm float64) SampleOption {
	return func(sm *Sample) { sm.TypingSpeedWPM = wpm }
}

// Sample assembles one behavior sample at call time.
func (s *Sampler) Sample(ctx context.Context, opts ...SampleOption) Sample {
	s.mu.Lock()
	wpm := s.typingWPM
	s.mu.Unlock()

	sample := Sample{
		TypingSpeedWPM:         wpm,
		TapPressure:            DefaultTapPressure,
		DeviceModel:            s.device.Model(),
		DeviceOS:               s.device.OS(),
		SessionHour:            s.now().Hour(),
		SessionDurationSeconds: DefaultSessionDuration,
	}

	if w, h, ok := s.device.Screen(); ok {
		sample.ScreenWidth, sample.ScreenHeight = w, h
	} else {
		sample.ScreenWidth, sample.ScreenHeight = DefaultScreenWidth, DefaultScreenHeight
	}

	if s.location != nil {
		if lat, lng, err := s.location.Current(ctx); err == nil {
			sample.Latitude = &lat
			sample.Longitude = &lng
		} else {
			// Absent location beats no sample.
			s.logger.Debug("location unavailable", "error", err)
		}
	}

	for _, opt := range opts {
		opt(&sample)
	}

	return sample
}
