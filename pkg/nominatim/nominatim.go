// Package nominatim provides reverse geocoding against the Nominatim API.
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/NERVsystems/osmshapes/pkg/osm"
	"github.com/NERVsystems/osmshapes/pkg/tracing"
)

// NotAvailable marks a coordinate the service did not return.
// It is a data sentinel, not an error condition.
const NotAvailable = "NA"

// OSM entity type letters accepted by the reverse endpoint
const (
	TypeWay  = "W"
	TypeNode = "N"
)

// ReverseResult is one reverse-geocode row. Lat and Lon carry the
// service's string-typed coordinates, or NotAvailable when the response
// omits them.
type ReverseResult struct {
	OSMID string `json:"osm_id"`
	Lat   string `json:"lat"`
	Lon   string `json:"lon"`
}

// Client is a Nominatim API client
type Client struct {
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a Nominatim client against the public endpoint
func NewClient() *Client {
	return &Client{
		baseURL: osm.NominatimBaseURL,
		logger:  slog.Default(),
	}
}

// SetLogger sets the logger for the client
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// SetBaseURL overrides the service endpoint
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Reverse looks up the coordinates for an OSM entity. osmType must be
// TypeWay or TypeNode. Transport and decode failures propagate; a
// response missing lat or lon yields the NotAvailable sentinel in that
// field with the supplied id still attached.
func (c *Client) Reverse(ctx context.Context, osmType string, osmID int64) (*ReverseResult, error) {
	ctx, span := tracing.StartSpan(ctx, "nominatim.reverse")
	defer span.End()

	span.SetAttributes(
		attribute.String("osm.entity.type", osmType),
		attribute.Int64("osm.entity.id", osmID),
	)

	if osmType != TypeWay && osmType != TypeNode {
		return nil, osm.NewError(osm.ErrInvalidInput,
			fmt.Sprintf("osm_type must be %q or %q, got %q", TypeWay, TypeNode, osmType))
	}

	params := url.Values{}
	params.Set("osm_type", osmType)
	params.Set("osm_id", strconv.FormatInt(osmID, 10))
	params.Set("format", "json")
	reqURL := c.baseURL + "/reverse?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, osm.NewError(osm.ErrTransport, "failed to create reverse geocode request").Wrap(err)
	}

	resp, err := osm.MonitoredDoRequest(ctx, req, "reverse_geocode")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reverse geocode request failed")
		return nil, osm.NewError(osm.ErrTransport, "reverse geocode request failed").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "reverse geocode returned error status")
		return nil, osm.ServiceError("nominatim", resp.StatusCode,
			fmt.Sprintf("reverse geocode for %s%d failed", osmType, osmID))
	}

	// Lat/Lon are pointers so an omitted key is distinguishable from
	// an empty string.
	var body struct {
		Lat *string `json:"lat"`
		Lon *string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		span.RecordError(err)
		return nil, osm.NewError(osm.ErrSchema, "malformed reverse geocode response").Wrap(err)
	}

	result := &ReverseResult{
		OSMID: strconv.FormatInt(osmID, 10),
		Lat:   NotAvailable,
		Lon:   NotAvailable,
	}
	if body.Lat != nil {
		result.Lat = *body.Lat
	}
	if body.Lon != nil {
		result.Lon = *body.Lon
	}

	if result.Lat == NotAvailable || result.Lon == NotAvailable {
		c.logger.Debug("reverse geocode response missing coordinates",
			"osm_type", osmType, "osm_id", osmID)
	}

	return result, nil
}
