package geometry

import (
	"reflect"
	"testing"

	"github.com/NERVsystems/osmshapes/pkg/osm"
)

func node(id int64, lat, lon float64) osm.Element {
	return osm.Element{Type: osm.ElementTypeNode, ID: id, Lat: lat, Lon: lon}
}

func way(id int64, nodes ...int64) osm.Element {
	return osm.Element{Type: osm.ElementTypeWay, ID: id, Nodes: nodes}
}

func TestJoinExpandsWays(t *testing.T) {
	elements := []osm.Element{
		node(1, 0, 0),
		node(2, 0, 1),
		node(3, 1, 1),
		way(100, 1, 2, 3, 1),
	}

	rows, stats := Join(elements)

	want := []WayNodeRow{
		{WayID: 100, SampleNum: 0, NodeID: 1, Lat: 0, Lon: 0},
		{WayID: 100, SampleNum: 1, NodeID: 2, Lat: 0, Lon: 1},
		{WayID: 100, SampleNum: 2, NodeID: 3, Lat: 1, Lon: 1},
		{WayID: 100, SampleNum: 3, NodeID: 1, Lat: 0, Lon: 0},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("Join rows:\n got %+v\nwant %+v", rows, want)
	}

	if stats.Ways != 1 || stats.Nodes != 3 || stats.Rows != 4 || stats.Gaps != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestJoinRepeatedNodeGetsDistinctPositions(t *testing.T) {
	// A closed ring repeats its first node; each occurrence is its own row
	elements := []osm.Element{
		node(1, 5, 6),
		way(100, 1, 1, 1),
	}

	rows, _ := Join(elements)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.SampleNum != i {
			t.Errorf("row %d has SampleNum %d", i, row.SampleNum)
		}
	}
}

func TestJoinMissingNodeIsGapNotError(t *testing.T) {
	elements := []osm.Element{
		node(1, 0, 0),
		node(3, 1, 1),
		way(100, 1, 2, 3), // node 2 absent from the batch
	}

	rows, stats := Join(elements)

	if stats.Gaps != 1 {
		t.Errorf("Gaps = %d, want 1", stats.Gaps)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	// Surviving rows keep their original positions in the way
	if rows[0].NodeID != 1 || rows[0].SampleNum != 0 {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[1].NodeID != 3 || rows[1].SampleNum != 2 {
		t.Errorf("second row = %+v", rows[1])
	}
}

func TestJoinMultipleWaysKeepInputOrder(t *testing.T) {
	elements := []osm.Element{
		node(1, 0, 0),
		node(2, 1, 1),
		way(200, 2, 1),
		way(100, 1, 2),
	}

	rows, stats := Join(elements)
	if stats.Ways != 2 || stats.Rows != 4 {
		t.Fatalf("stats = %+v", stats)
	}

	// Way 200 appears first in the input, so its rows come first
	if rows[0].WayID != 200 || rows[2].WayID != 100 {
		t.Errorf("rows out of input order: %+v", rows)
	}
}

func TestJoinNodeOrderIndependent(t *testing.T) {
	// Nodes may arrive after the ways that reference them
	elements := []osm.Element{
		way(100, 1, 2),
		node(2, 1, 1),
		node(1, 0, 0),
	}

	rows, stats := Join(elements)
	if stats.Gaps != 0 {
		t.Errorf("Gaps = %d, want 0", stats.Gaps)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestJoinIdempotent(t *testing.T) {
	elements := []osm.Element{
		node(1, 0, 0),
		node(2, 0, 1),
		way(100, 1, 2),
		way(200, 2, 1),
	}

	first, firstStats := Join(elements)
	second, secondStats := Join(elements)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated joins differ:\n%+v\n%+v", first, second)
	}
	if firstStats != secondStats {
		t.Errorf("stats differ: %+v vs %+v", firstStats, secondStats)
	}
}

func TestJoinEmptyBatch(t *testing.T) {
	rows, stats := Join(nil)
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
	if stats != (JoinStats{}) {
		t.Errorf("stats = %+v", stats)
	}
}

func TestJoinWayWithNoNodes(t *testing.T) {
	rows, stats := Join([]osm.Element{way(100)})
	if len(rows) != 0 || stats.Ways != 1 || stats.Gaps != 0 {
		t.Errorf("rows = %v, stats = %+v", rows, stats)
	}
}
