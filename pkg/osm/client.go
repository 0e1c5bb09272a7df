package osm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmshapes/pkg/tracing"
)

const (
	// API endpoints
	NominatimBaseURL = "https://nominatim.openstreetmap.org"
	OverpassBaseURL  = "https://overpass-api.de/api/interpreter"

	// DefaultUserAgent identifies this library to the OSM services
	// (required by Nominatim's usage policy)
	DefaultUserAgent = "osmshapes/0.1.0"
)

var (
	// Global HTTP client with connection pooling
	httpClient *http.Client

	// Rate limiters for each service, guarded so runtime updates do not
	// race with in-flight requests
	nominatimLimiter *rate.Limiter
	overpassLimiter  *rate.Limiter
	limiterLock      sync.RWMutex

	// User agent string
	userAgent     string
	userAgentLock sync.RWMutex
)

// init initializes the global HTTP client and rate limiters
func init() {
	httpClient = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: 30 * time.Second,
	}

	initRateLimiters()
	SetUserAgent(DefaultUserAgent)
}

// initRateLimiters initializes the rate limiters with default values.
// Both public services ask for at most 1 request per second.
func initRateLimiters() {
	nominatimLimiter = rate.NewLimiter(rate.Limit(1), 1)
	overpassLimiter = rate.NewLimiter(rate.Limit(1), 1)
}

// UpdateNominatimRateLimits updates the Nominatim rate limiter
func UpdateNominatimRateLimits(rps float64, burst int) {
	limiterLock.Lock()
	defer limiterLock.Unlock()
	nominatimLimiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// UpdateOverpassRateLimits updates the Overpass rate limiter
func UpdateOverpassRateLimits(rps float64, burst int) {
	limiterLock.Lock()
	defer limiterLock.Unlock()
	overpassLimiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// limiterForHost returns the service name and limiter for a request
// host, or nil for hosts that are not rate limited.
func limiterForHost(host string) (string, *rate.Limiter) {
	limiterLock.RLock()
	defer limiterLock.RUnlock()

	switch host {
	case hostFromURL(NominatimBaseURL):
		return tracing.ServiceNominatim, nominatimLimiter
	case hostFromURL(OverpassBaseURL):
		return tracing.ServiceOverpass, overpassLimiter
	}
	return "", nil
}

// SetUserAgent sets the User-Agent string
func SetUserAgent(ua string) {
	userAgentLock.Lock()
	defer userAgentLock.Unlock()
	userAgent = ua
}

// GetUserAgent returns the current User-Agent string
func GetUserAgent() string {
	userAgentLock.RLock()
	defer userAgentLock.RUnlock()
	return userAgent
}

// GetClient returns the global HTTP client
func GetClient(ctx context.Context) *http.Client {
	return httpClient
}

// hostFromURL extracts the host from a URL string
func hostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Host
}

// waitForRateLimit waits for the appropriate rate limiter based on the request URL
func waitForRateLimit(ctx context.Context, req *http.Request) error {
	service, limiter := limiterForHost(req.URL.Host)
	if limiter == nil {
		return nil // No rate limiting for unknown hosts
	}

	if !limiter.Allow() {
		startWait := time.Now()

		tracing.AddEvent(ctx, "rate_limit_wait",
			trace.WithAttributes(
				attribute.String(tracing.AttrRateLimitService, service),
			),
		)

		err := limiter.Wait(ctx)

		waitDuration := time.Since(startWait)
		tracing.SetAttributes(ctx,
			attribute.String(tracing.AttrRateLimitService, service),
			attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
		)

		if err != nil {
			return err
		}
	}

	return nil
}

// DoRequest performs an HTTP request with rate limiting
func DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", GetUserAgent())

	if err := waitForRateLimit(ctx, req); err != nil {
		return nil, err
	}

	return httpClient.Do(req)
}

// Health check functions for external services

// CheckNominatimHealth checks if the Nominatim service is available
func CheckNominatimHealth() error {
	return CheckNominatimEndpoint(NominatimBaseURL)
}

// CheckNominatimEndpoint checks a Nominatim-compatible service at baseURL
func CheckNominatimEndpoint(baseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/status", nil)
	if err != nil {
		return fmt.Errorf("failed to create nominatim health check request: %w", err)
	}

	resp, err := DoRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("nominatim health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nominatim health check returned status %d", resp.StatusCode)
	}

	return nil
}

// CheckOverpassHealth checks if the Overpass API is available
func CheckOverpassHealth() error {
	return CheckOverpassEndpoint(OverpassBaseURL)
}

// CheckOverpassEndpoint checks an Overpass-compatible service at baseURL
func CheckOverpassEndpoint(baseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create overpass health check request: %w", err)
	}

	// Add a simple query to check if the service is responsive
	req.URL.RawQuery = "data=[out:json];out meta;"

	resp, err := DoRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("overpass health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("overpass health check returned status %d", resp.StatusCode)
	}

	return nil
}
