package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for pipeline operations
const (
	// Pipeline stage attributes
	AttrPipelineStage    = "pipeline.stage"
	AttrPipelineQuery    = "pipeline.query"
	AttrPipelineElements = "pipeline.element_count"
	AttrPipelineWays     = "pipeline.way_count"
	AttrPipelineRows     = "pipeline.row_count"
	AttrPipelineGaps     = "pipeline.gap_count"
	AttrPipelinePolygons = "pipeline.polygon_count"
	AttrPipelineCRS      = "pipeline.crs"

	// External service attributes
	AttrServiceName      = "osm.service.name"
	AttrServiceOperation = "osm.service.operation"
	AttrServiceURL       = "osm.service.url"
	AttrServiceStatus    = "osm.service.status"

	// Cache attributes
	AttrCacheType = "osm.cache.type"
	AttrCacheHit  = "osm.cache.hit"
	AttrCacheKey  = "osm.cache.key"

	// Rate limiting attributes
	AttrRateLimitService = "osm.ratelimit.service"
	AttrRateLimitWaitMs  = "osm.ratelimit.wait_ms"

	// HTTP attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusTimeout     = "timeout"
	StatusRateLimited = "rate_limited"
)

// Service names
const (
	ServiceNominatim = "nominatim"
	ServiceOverpass  = "overpass"
)

// Cache types
const (
	CacheTypeElementDisk   = "element_disk"
	CacheTypeElementMemory = "element_memory"
)

// Helper functions for common attributes

// ServiceAttributes returns attributes for external service calls
func ServiceAttributes(service, operation, url string, status int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrServiceName, service),
		attribute.String(AttrServiceOperation, operation),
		attribute.String(AttrServiceURL, url),
		attribute.Int(AttrServiceStatus, status),
	}
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes for errors
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
