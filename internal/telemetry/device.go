package telemetry

import (
	"os"
	"runtime"
	"sync"
)

// DeviceProvider resolves the identity of the device the agent runs on.
type DeviceProvider interface {
	Model() string
	OS() string
	// Screen returns the display dimensions, or ok=false when they
	// cannot be determined.
	Screen() (width, height int, ok bool)
}

// HostDevice identifies the local host. Model and OS are resolved once
// per process lifetime and cached.
type HostDevice struct {
	once  sync.Once
	model string
	os    string
}

// NewHostDevice creates a provider for the local host.
func NewHostDevice() *HostDevice {
	return &HostDevice{}
}

func (d *HostDevice) resolve() {
	d.once.Do(func() {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "unknown-host"
		}
		d.model = host
		d.os = runtime.GOOS + "/" + runtime.GOARCH
	})
}

func (d *HostDevice) Model() string {
	d.resolve()
	return d.model
}

func (d *HostDevice) OS() string {
	d.resolve()
	return d.os
}

// Screen reports no reading for a headless host; the sampler falls back
// to the fixed default dimensions.
func (d *HostDevice) Screen() (int, int, bool) {
	return 0, 0, false
}
