package geometry

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/NERVsystems/osmshapes/pkg/geo"
)

// Polygon is one way's ring of (lon, lat) points in sample order.
// Closure is the data's responsibility: building ways arrive closed,
// and the assembler neither verifies nor forces it. A ring with fewer
// than 3 distinct points is degenerate but not rejected.
type Polygon struct {
	WayID int64
	Ring  orb.Ring
}

// Collection maps way ids to their assembled polygons under a single
// coordinate reference system. No reprojection is performed.
type Collection struct {
	CRS      string
	Polygons map[int64]Polygon
}

// WayIDs returns the collection's way ids in ascending order
func (c *Collection) WayIDs() []int64 {
	ids := make([]int64, 0, len(c.Polygons))
	for id := range c.Polygons {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Assemble converts joined rows into point geometry (longitude first,
// the planar-coordinate convention) and groups them by way id into
// rings ordered by sample number. An empty crs falls back to
// geo.DefaultCRS.
func Assemble(rows []WayNodeRow, crs string) *Collection {
	if crs == "" {
		crs = geo.DefaultCRS
	}

	byWay := make(map[int64][]WayNodeRow)
	for _, row := range rows {
		byWay[row.WayID] = append(byWay[row.WayID], row)
	}

	polygons := make(map[int64]Polygon, len(byWay))
	for wayID, wayRows := range byWay {
		// Join output is ordered within a way, but cross-stage callers
		// may hand rows in any interleaving.
		sort.SliceStable(wayRows, func(i, j int) bool {
			return wayRows[i].SampleNum < wayRows[j].SampleNum
		})

		ring := make(orb.Ring, 0, len(wayRows))
		for _, row := range wayRows {
			ring = append(ring, orb.Point{row.Lon, row.Lat})
		}
		polygons[wayID] = Polygon{WayID: wayID, Ring: ring}
	}

	return &Collection{CRS: crs, Polygons: polygons}
}
