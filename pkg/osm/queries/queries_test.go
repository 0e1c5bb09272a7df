package queries

import (
	"strings"
	"testing"

	"github.com/NERVsystems/osmshapes/pkg/geo"
)

var testBBox = geo.NewBoundingBox(-41.3, 174.7, -41.2, 174.8)

func TestBuildClauseCount(t *testing.T) {
	tests := []struct {
		name    string
		tags    []string
		objects []string
		want    int
	}{
		{"two by two", []string{"residential", "house"}, []string{"way", "node"}, 4},
		{"one by one", []string{"residential"}, []string{"way"}, 1},
		{"three by one", []string{"a", "b", "c"}, []string{"way"}, 3},
		{"no tags", nil, []string{"way"}, 0},
		{"no objects", []string{"residential"}, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := Build(tt.tags, tt.objects, testBBox, "")
			if got := strings.Count(query, ");"); got-1 != tt.want { // one ");" closes the union
				t.Errorf("expected %d filter clauses, counted %d in %q", tt.want, got-1, query)
			}
		})
	}
}

func TestBuildStructure(t *testing.T) {
	query := Build([]string{"residential"}, []string{"way"}, testBBox, "")

	if !strings.HasPrefix(query, "[out:json][timeout:60];(") {
		t.Errorf("query prefix wrong: %q", query)
	}
	if !strings.HasSuffix(query, ");out body;>;out skel qt;") {
		t.Errorf("query suffix wrong: %q", query)
	}

	want := `way["building"~"residential"](-41.3,174.7,-41.2,174.8);`
	if !strings.Contains(query, want) {
		t.Errorf("query %q missing clause %q", query, want)
	}
}

func TestBuildClauseOrder(t *testing.T) {
	// Clauses iterate tags in the outer loop, objects in the inner
	query := Build([]string{"a", "b"}, []string{"way", "node"}, testBBox, "")

	order := []string{
		`way["building"~"a"]`,
		`node["building"~"a"]`,
		`way["building"~"b"]`,
		`node["building"~"b"]`,
	}

	pos := -1
	for _, clause := range order {
		i := strings.Index(query, clause)
		if i < 0 {
			t.Fatalf("query %q missing clause %q", query, clause)
		}
		if i < pos {
			t.Errorf("clause %q out of order in %q", clause, query)
		}
		pos = i
	}
}

func TestBuildEntity(t *testing.T) {
	query := Build([]string{"primary"}, []string{"way"}, testBBox, "highway")
	if !strings.Contains(query, `way["highway"~"primary"]`) {
		t.Errorf("entity not applied: %q", query)
	}

	// Empty entity falls back to the default
	query = Build([]string{"x"}, []string{"way"}, testBBox, "")
	if !strings.Contains(query, `["building"~`) {
		t.Errorf("default entity not applied: %q", query)
	}
}

func TestBuildEmptyInputsStillValid(t *testing.T) {
	query := Build(nil, nil, testBBox, "")
	want := "[out:json][timeout:60];();out body;>;out skel qt;"
	if query != want {
		t.Errorf("Build() = %q, want %q", query, want)
	}
}

func TestBuilderTimeout(t *testing.T) {
	query := NewBuilder(testBBox).
		WithTimeout(120).
		WithTags("residential").
		WithObjects("way").
		Build()

	if !strings.HasPrefix(query, "[out:json][timeout:120];") {
		t.Errorf("timeout not applied: %q", query)
	}
}

func TestBuilderAccumulates(t *testing.T) {
	query := NewBuilder(testBBox).
		WithTags("a").
		WithTags("b").
		WithObjects("way").
		Build()

	if !strings.Contains(query, `~"a"`) || !strings.Contains(query, `~"b"`) {
		t.Errorf("chained WithTags calls should accumulate: %q", query)
	}
}
