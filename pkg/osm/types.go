// Package osm provides the element data model and shared HTTP plumbing
// for the OpenStreetMap APIs used by the pipeline.
package osm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ElementType discriminates the raw OSM entity kinds handled here.
// Relations are not fetched by any query this module builds.
type ElementType string

const (
	ElementTypeNode ElementType = "node"
	ElementTypeWay  ElementType = "way"
)

// Element is one raw OSM entity from an Overpass response batch.
// The core schema is fixed; tags promoted off the wire live in the open
// Attributes map, so a tag named "id" or "nodes" can never clobber a
// core field.
type Element struct {
	Type ElementType `json:"type"`
	ID   int64       `json:"id"`

	// Node fields. Presence is validated at decode time; zero values
	// here always mean a real (0,0) coordinate.
	Lat float64 `json:"lat,omitempty"`
	Lon float64 `json:"lon,omitempty"`

	// Way fields
	Nodes      []int64           `json:"nodes,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// IsNode reports whether the element is a node
func (e Element) IsNode() bool { return e.Type == ElementTypeNode }

// IsWay reports whether the element is a way
func (e Element) IsWay() bool { return e.Type == ElementTypeWay }

// wireElement mirrors the Overpass JSON element shape. Lat/Lon are
// pointers so an absent coordinate is distinguishable from 0.
type wireElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   *float64          `json:"lat"`
	Lon   *float64          `json:"lon"`
	Nodes json.RawMessage   `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

type wireResponse struct {
	Elements *[]wireElement `json:"elements"`
}

// DecodeElements parses an Overpass JSON response body into the element
// sequence, hoisting each element's nested tag mapping into Attributes.
// A response without an "elements" key, or a node element missing lat or
// lon, is a SCHEMA_ERROR; coordinates are never defaulted silently.
func DecodeElements(r io.Reader) ([]Element, error) {
	var resp wireResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, NewError(ErrSchema, "malformed Overpass response body").Wrap(err)
	}
	if resp.Elements == nil {
		return nil, NewError(ErrSchema, "Overpass response has no elements key")
	}

	elements := make([]Element, 0, len(*resp.Elements))
	for _, we := range *resp.Elements {
		el := Element{Type: ElementType(we.Type), ID: we.ID}

		switch el.Type {
		case ElementTypeNode:
			if we.Lat == nil || we.Lon == nil {
				return nil, NewError(ErrSchema,
					fmt.Sprintf("node %d is missing lat or lon", we.ID))
			}
			el.Lat = *we.Lat
			el.Lon = *we.Lon
		case ElementTypeWay:
			refs, err := decodeNodeRefs(we.Nodes)
			if err != nil {
				return nil, NewError(ErrSchema,
					fmt.Sprintf("way %d has a malformed node list", we.ID)).Wrap(err)
			}
			el.Nodes = refs
		}

		if len(we.Tags) > 0 {
			el.Attributes = make(map[string]string, len(we.Tags))
			for k, v := range we.Tags {
				el.Attributes[k] = v
			}
		}

		elements = append(elements, el)
	}
	return elements, nil
}

// decodeNodeRefs accepts a way's node-reference field either as a JSON
// array of ids or as a string-encoded list literal.
func decodeNodeRefs(raw json.RawMessage) ([]int64, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var literal string
		if err := json.Unmarshal(trimmed, &literal); err != nil {
			return nil, err
		}
		return ParseNodeList(literal)
	}
	var refs []int64
	if err := json.Unmarshal(trimmed, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// ParseNodeList parses a string-encoded list literal of node ids, e.g.
// "[4247507, 4247508, 4247507]". Malformed literals fail with
// PARSE_ERROR; a truncated list must never be returned in their place.
func ParseNodeList(s string) ([]int64, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return nil, NewError(ErrParse, fmt.Sprintf("node list %q is not bracketed", s))
	}
	inner := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	if inner == "" {
		return []int64{}, nil
	}

	parts := strings.Split(inner, ",")
	refs := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, NewError(ErrParse,
				fmt.Sprintf("node list %q has a malformed entry %q", s, part)).Wrap(err)
		}
		refs = append(refs, id)
	}
	return refs, nil
}

// FormatNodeList renders node ids as the list literal form ParseNodeList
// accepts. FormatNodeList and ParseNodeList round-trip losslessly.
func FormatNodeList(refs []int64) string {
	var buf strings.Builder
	buf.WriteByte('[')
	for i, id := range refs {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(strconv.FormatInt(id, 10))
	}
	buf.WriteByte(']')
	return buf.String()
}
