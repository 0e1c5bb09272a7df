package osm

import (
	"reflect"
	"strings"
	"testing"
)

func TestDecodeElements(t *testing.T) {
	body := `{
		"elements": [
			{"type": "node", "id": 1, "lat": -41.3, "lon": 174.7},
			{"type": "way", "id": 100, "nodes": [1, 2, 1], "tags": {"building": "residential", "id": "sneaky"}}
		]
	}`

	elements, err := DecodeElements(strings.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeElements() error = %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(elements))
	}

	node := elements[0]
	if !node.IsNode() || node.ID != 1 || node.Lat != -41.3 || node.Lon != 174.7 {
		t.Errorf("node decoded as %+v", node)
	}

	way := elements[1]
	if !way.IsWay() || way.ID != 100 {
		t.Errorf("way decoded as %+v", way)
	}
	if !reflect.DeepEqual(way.Nodes, []int64{1, 2, 1}) {
		t.Errorf("way nodes = %v", way.Nodes)
	}

	// Tags land in Attributes; a tag named "id" never clobbers the core field
	if way.Attributes["building"] != "residential" {
		t.Errorf("attributes = %v", way.Attributes)
	}
	if way.Attributes["id"] != "sneaky" || way.ID != 100 {
		t.Error("a tag named id must stay in the attribute map")
	}
}

func TestDecodeElementsStringNodeList(t *testing.T) {
	// Cached or re-serialized batches carry node lists as string literals
	body := `{"elements": [{"type": "way", "id": 7, "nodes": "[4247507, 4247508, 4247507]"}]}`

	elements, err := DecodeElements(strings.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeElements() error = %v", err)
	}
	if !reflect.DeepEqual(elements[0].Nodes, []int64{4247507, 4247508, 4247507}) {
		t.Errorf("nodes = %v", elements[0].Nodes)
	}
}

func TestDecodeElementsMissingElementsKey(t *testing.T) {
	_, err := DecodeElements(strings.NewReader(`{"version": 0.6}`))
	if !IsCode(err, ErrSchema) {
		t.Errorf("expected SCHEMA_ERROR for missing elements key, got %v", err)
	}
}

func TestDecodeElementsEmptyBatch(t *testing.T) {
	elements, err := DecodeElements(strings.NewReader(`{"elements": []}`))
	if err != nil {
		t.Fatalf("DecodeElements() error = %v", err)
	}
	if len(elements) != 0 {
		t.Errorf("expected empty batch, got %d elements", len(elements))
	}
}

func TestDecodeElementsNodeMissingCoordinate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing lat", `{"elements": [{"type": "node", "id": 1, "lon": 174.7}]}`},
		{"missing lon", `{"elements": [{"type": "node", "id": 1, "lat": -41.3}]}`},
		{"missing both", `{"elements": [{"type": "node", "id": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeElements(strings.NewReader(tt.body))
			if !IsCode(err, ErrSchema) {
				t.Errorf("expected SCHEMA_ERROR, got %v", err)
			}
		})
	}
}

func TestDecodeElementsZeroCoordinateIsValid(t *testing.T) {
	// An explicit (0, 0) is a real coordinate, not an absence
	body := `{"elements": [{"type": "node", "id": 1, "lat": 0, "lon": 0}]}`
	elements, err := DecodeElements(strings.NewReader(body))
	if err != nil {
		t.Fatalf("DecodeElements() error = %v", err)
	}
	if elements[0].Lat != 0 || elements[0].Lon != 0 {
		t.Errorf("node = %+v", elements[0])
	}
}

func TestDecodeElementsMalformedBody(t *testing.T) {
	_, err := DecodeElements(strings.NewReader(`not json`))
	if !IsCode(err, ErrSchema) {
		t.Errorf("expected SCHEMA_ERROR for malformed body, got %v", err)
	}
}

func TestParseNodeList(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []int64
		wantErr bool
	}{
		{
			name: "typical list",
			in:   "[4247507, 4247508, 4247507]",
			want: []int64{4247507, 4247508, 4247507},
		},
		{
			name: "no spaces",
			in:   "[1,2,3]",
			want: []int64{1, 2, 3},
		},
		{
			name: "empty list",
			in:   "[]",
			want: []int64{},
		},
		{
			name: "surrounding whitespace",
			in:   "  [1, 2]  ",
			want: []int64{1, 2},
		},
		{
			name:    "unbracketed",
			in:      "1, 2, 3",
			wantErr: true,
		},
		{
			name:    "truncated literal",
			in:      "[1, 2, 3",
			wantErr: true,
		},
		{
			name:    "non-numeric entry",
			in:      "[1, x, 3]",
			wantErr: true,
		},
		{
			name:    "trailing comma",
			in:      "[1, 2,]",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNodeList(tt.in)
			if tt.wantErr {
				if !IsCode(err, ErrParse) {
					t.Errorf("expected PARSE_ERROR, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNodeList(%q) error = %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseNodeList(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatNodeListRoundTrip(t *testing.T) {
	tests := [][]int64{
		{4247507, 4247508, 4247509, 4247507},
		{1},
		{},
	}

	for _, refs := range tests {
		s := FormatNodeList(refs)
		got, err := ParseNodeList(s)
		if err != nil {
			t.Fatalf("ParseNodeList(%q) error = %v", s, err)
		}
		if !reflect.DeepEqual(got, refs) {
			t.Errorf("round trip of %v via %q = %v", refs, s, got)
		}
	}
}

func TestFormatNodeList(t *testing.T) {
	if got := FormatNodeList([]int64{1, 2, 3}); got != "[1, 2, 3]" {
		t.Errorf("FormatNodeList = %q", got)
	}
	if got := FormatNodeList(nil); got != "[]" {
		t.Errorf("FormatNodeList(nil) = %q", got)
	}
}
