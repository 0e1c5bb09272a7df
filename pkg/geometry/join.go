// Package geometry reconstructs polygon geometry from flattened
// Overpass element tables.
package geometry

import "github.com/NERVsystems/osmshapes/pkg/osm"

// WayNodeRow is one (way, position-in-way) record produced by expanding
// a way's node-reference list and joining it against node coordinates.
type WayNodeRow struct {
	WayID     int64
	SampleNum int // 0-based position of the node within the way's list
	NodeID    int64
	Lat       float64
	Lon       float64
}

// JoinStats summarizes a join pass
type JoinStats struct {
	Ways  int // way elements seen
	Nodes int // node elements seen
	Rows  int // rows emitted
	Gaps  int // way node references dropped for want of a node
}

// Join partitions elements into ways and nodes, expands each way's
// node-id list into one row per position, and inner-joins the rows
// against node coordinates. A reference to a node absent from the batch
// is dropped and counted in Gaps, never an error: partial rings are
// accepted data-quality loss. Rows come out grouped by way in input
// order, positions ascending within each way.
func Join(elements []osm.Element) ([]WayNodeRow, JoinStats) {
	var stats JoinStats

	coords := make(map[int64]osm.Element)
	for _, el := range elements {
		if el.IsNode() {
			coords[el.ID] = el
			stats.Nodes++
		}
	}

	var rows []WayNodeRow
	for _, el := range elements {
		if !el.IsWay() {
			continue
		}
		stats.Ways++

		for i, nodeID := range el.Nodes {
			node, ok := coords[nodeID]
			if !ok {
				stats.Gaps++
				continue
			}
			rows = append(rows, WayNodeRow{
				WayID:     el.ID,
				SampleNum: i,
				NodeID:    nodeID,
				Lat:       node.Lat,
				Lon:       node.Lon,
			})
		}
	}

	stats.Rows = len(rows)
	return rows, stats
}
