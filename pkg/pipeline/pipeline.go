// Package pipeline wires the reconstruction stages together:
// query generation, fetch-or-cache loading, the way/node join, and
// polygon assembly.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/NERVsystems/osmshapes/pkg/cache"
	"github.com/NERVsystems/osmshapes/pkg/geo"
	"github.com/NERVsystems/osmshapes/pkg/geometry"
	"github.com/NERVsystems/osmshapes/pkg/monitoring"
	"github.com/NERVsystems/osmshapes/pkg/osm"
	"github.com/NERVsystems/osmshapes/pkg/osm/queries"
	"github.com/NERVsystems/osmshapes/pkg/tracing"
)

// Request parameterizes one reconstruction run
type Request struct {
	Tags    []string        // tag values to match (e.g. "residential")
	Objects []string        // OSM object kinds to query (e.g. "way", "node")
	BBox    geo.BoundingBox // area of interest, (south, west, north, east)
	Entity  string          // tag key to filter on; empty means "building"
	CRS     string          // reference system for the output; empty means EPSG:4167
}

// Pipeline reconstructs building polygons from Overpass data.
// Each run is a synchronous left-to-right pass; the only shared state
// is the element cache, and concurrent runs against the same cache key
// are collapsed to a single fetch.
type Pipeline struct {
	store       *cache.Store
	logger      *slog.Logger
	overpassURL string
	group       singleflight.Group
}

// New creates a pipeline backed by the given element cache. It also
// wires the shared HTTP client's monitoring hooks to the Prometheus
// metrics; callers wanting custom hooks can install theirs afterwards
// via osm.SetMonitoringHooks.
func New(store *cache.Store) *Pipeline {
	monitoring.InstallRequestHooks()
	return &Pipeline{
		store:       store,
		logger:      slog.Default().With("component", "pipeline"),
		overpassURL: osm.OverpassBaseURL,
	}
}

// SetLogger sets the logger for the pipeline
func (p *Pipeline) SetLogger(logger *slog.Logger) {
	p.logger = logger.With("component", "pipeline")
}

// SetOverpassURL overrides the Overpass endpoint
func (p *Pipeline) SetOverpassURL(u string) {
	p.overpassURL = u
}

// Run executes the full reconstruction for req. Transport and schema
// failures abort the run with no partial result; referential gaps only
// thin the affected rings.
func (p *Pipeline) Run(ctx context.Context, req Request) (*geometry.Collection, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.run")
	defer span.End()

	start := time.Now()

	if err := req.BBox.Validate(); err != nil {
		return nil, osm.NewError(osm.ErrInvalidInput, "invalid bounding box").Wrap(err)
	}

	query := queries.Build(req.Tags, req.Objects, req.BBox, req.Entity)
	span.SetAttributes(attribute.String(tracing.AttrPipelineQuery, query))

	elements, err := p.load(ctx, query, req.BBox, req.Objects)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		monitoring.RecordPipelineRun(time.Since(start), false)
		return nil, err
	}

	joinStart := time.Now()
	rows, stats := geometry.Join(elements)
	monitoring.RecordStageDuration("join", time.Since(joinStart))
	monitoring.RecordReferentialGaps(stats.Gaps)

	span.SetAttributes(
		attribute.Int(tracing.AttrPipelineElements, len(elements)),
		attribute.Int(tracing.AttrPipelineWays, stats.Ways),
		attribute.Int(tracing.AttrPipelineRows, stats.Rows),
		attribute.Int(tracing.AttrPipelineGaps, stats.Gaps),
	)

	if stats.Gaps > 0 {
		p.logger.Warn("dropped unresolvable node references",
			"gaps", stats.Gaps, "ways", stats.Ways, "rows", stats.Rows)
	}

	assembleStart := time.Now()
	collection := geometry.Assemble(rows, req.CRS)
	monitoring.RecordStageDuration("assemble", time.Since(assembleStart))

	span.SetAttributes(
		attribute.Int(tracing.AttrPipelinePolygons, len(collection.Polygons)),
		attribute.String(tracing.AttrPipelineCRS, collection.CRS),
	)
	span.SetStatus(codes.Ok, "")
	monitoring.RecordPipelineRun(time.Since(start), true)

	return collection, nil
}

// load returns the element table for the request, consulting the cache
// first. Concurrent loads for the same key share one fetch, which also
// keeps two writers from racing on the same cache file.
func (p *Pipeline) load(ctx context.Context, query string, bbox geo.BoundingBox, objects []string) ([]osm.Element, error) {
	key := cache.Key(bbox, objects)

	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		elements, ok, err := p.store.Get(key)
		if err != nil {
			// A corrupt file must never be served; refetch instead.
			p.logger.Error("cache entry failed validation, refetching",
				"key", key, "error", err)
			monitoring.RecordError("cache", string(osm.ErrCacheCorrupt))
		}
		if ok {
			return elements, nil
		}

		elements, err = p.fetch(ctx, query)
		if err != nil {
			return nil, err
		}

		// Persistence is best-effort; the fetched batch is still good.
		if err := p.store.Put(key, elements); err != nil {
			p.logger.Warn("failed to persist element table", "key", key, "error", err)
			monitoring.RecordError("cache", "persist_failed")
		}
		return elements, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]osm.Element), nil
}

// fetch performs the Overpass request carrying the query string as the
// data parameter and decodes the element array. Failures propagate
// unmasked; there is no retry.
func (p *Pipeline) fetch(ctx context.Context, query string) ([]osm.Element, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.fetch")
	defer span.End()

	start := time.Now()

	reqURL := p.overpassURL + "?data=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, osm.NewError(osm.ErrTransport, "failed to create Overpass request").
			WithQuery(query).Wrap(err)
	}

	resp, err := osm.MonitoredDoRequest(ctx, req, "fetch_elements")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "overpass request failed")
		return nil, osm.NewError(osm.ErrTransport, "Overpass request failed").
			WithQuery(query).Wrap(err)
	}
	defer resp.Body.Close()

	span.SetAttributes(tracing.ServiceAttributes(
		tracing.ServiceOverpass, "fetch_elements", p.overpassURL, resp.StatusCode)...)

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "overpass returned error status")
		return nil, osm.ServiceError("overpass", resp.StatusCode,
			fmt.Sprintf("query returned status %d", resp.StatusCode)).WithQuery(query)
	}

	elements, err := osm.DecodeElements(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "overpass response failed to decode")
		return nil, err
	}

	monitoring.RecordStageDuration("fetch", time.Since(start))
	p.logger.Debug("fetched element batch",
		"elements", len(elements), "duration", time.Since(start))
	return elements, nil
}
