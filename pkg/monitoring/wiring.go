package monitoring

import (
	"time"

	"github.com/NERVsystems/osmshapes/pkg/osm"
)

// InstallRequestHooks points the shared HTTP client's monitoring hooks
// at the Prometheus metrics, so every external service request,
// rate-limit wait, and transport error is recorded. Safe to call more
// than once; the last installation wins.
func InstallRequestHooks() {
	osm.SetMonitoringHooks(&osm.MonitoringHooks{
		OnResponse: RecordExternalServiceRequest,
		OnRateLimit: func(service string, waitTime time.Duration) {
			RecordRateLimitExceeded(service)
			RecordRateLimitWait(service, waitTime)
		},
		OnError: RecordError,
	})
}

// NewServiceMonitors builds connection monitors for the Overpass and
// Nominatim endpoints, reporting into hc. The endpoints are explicit
// parameters so callers can point the probes at mirrors or fakes.
// Each returned monitor still needs Start.
func NewServiceMonitors(hc *HealthChecker, overpassURL, nominatimURL string, interval time.Duration) []*ConnectionMonitor {
	return []*ConnectionMonitor{
		NewConnectionMonitor("overpass", hc, func() error {
			return osm.CheckOverpassEndpoint(overpassURL)
		}, interval),
		NewConnectionMonitor("nominatim", hc, func() error {
			return osm.CheckNominatimEndpoint(nominatimURL)
		}, interval),
	}
}
