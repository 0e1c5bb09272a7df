// Package queries provides utilities for building Overpass API queries.
package queries

import (
	"fmt"
	"strings"

	"github.com/NERVsystems/osmshapes/pkg/geo"
)

const (
	// DefaultEntity is the tag key filtered on when the caller does not
	// supply one
	DefaultEntity = "building"

	// DefaultTimeout is the server-side query timeout in seconds
	DefaultTimeout = 60
)

// Builder composes an Overpass QL query that matches ways and nodes by
// regex tag filters within a bounding box. The recursive tail
// (">;out skel qt;") also fetches the node geometry referenced by
// matched ways, which the join stage depends on.
type Builder struct {
	bbox    geo.BoundingBox
	entity  string
	timeout int
	tags    []string
	objects []string
}

// NewBuilder creates a query builder for the given bounding box with
// default settings.
func NewBuilder(bbox geo.BoundingBox) *Builder {
	return &Builder{
		bbox:    bbox,
		entity:  DefaultEntity,
		timeout: DefaultTimeout,
	}
}

// WithEntity sets the tag key each filter clause matches against
func (b *Builder) WithEntity(entity string) *Builder {
	if entity != "" {
		b.entity = entity
	}
	return b
}

// WithTimeout sets the server-side query timeout in seconds
func (b *Builder) WithTimeout(seconds int) *Builder {
	b.timeout = seconds
	return b
}

// WithTags appends tag values to filter on (e.g. "residential")
func (b *Builder) WithTags(tags ...string) *Builder {
	b.tags = append(b.tags, tags...)
	return b
}

// WithObjects appends OSM object kinds to query (e.g. "way", "node")
func (b *Builder) WithObjects(objects ...string) *Builder {
	b.objects = append(b.objects, objects...)
	return b
}

// Build generates the Overpass query string. One filter clause is
// emitted per (tag, object) pair in tag-then-object order; empty tag or
// object sets yield a syntactically valid query that matches nothing.
// Tag and object strings are interpolated verbatim.
func (b *Builder) Build() string {
	var query strings.Builder

	query.WriteString(fmt.Sprintf("[out:json][timeout:%d];(", b.timeout))

	bbox := b.bbox.String()
	for _, tag := range b.tags {
		for _, obj := range b.objects {
			query.WriteString(fmt.Sprintf(`%s["%s"~"%s"](%s);`, obj, b.entity, tag, bbox))
		}
	}

	query.WriteString(");out body;>;out skel qt;")
	return query.String()
}

// Build is a convenience wrapper for the common single-shot case.
// An empty entity falls back to DefaultEntity.
func Build(tags, objects []string, bbox geo.BoundingBox, entity string) string {
	return NewBuilder(bbox).
		WithEntity(entity).
		WithTags(tags...).
		WithObjects(objects...).
		Build()
}
