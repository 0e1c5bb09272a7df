package geometry

import (
	"encoding/json"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// namedCRS is the legacy GeoJSON crs member. The collection's reference
// system is not WGS 84 by default, so it is declared explicitly rather
// than left to the RFC 7946 assumption.
type namedCRS struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

type featureCollection struct {
	Type     string             `json:"type"`
	CRS      namedCRS           `json:"crs"`
	Features []*geojson.Feature `json:"features"`
}

// WriteGeoJSON encodes the collection as a GeoJSON FeatureCollection,
// one Polygon feature per way with a "way_id" property, to the given
// writer. The target is an explicit parameter; there is no implicit
// current-figure state to draw into.
func (c *Collection) WriteGeoJSON(w io.Writer) error {
	fc := featureCollection{
		Type: "FeatureCollection",
		CRS: namedCRS{
			Type:       "name",
			Properties: map[string]string{"name": c.CRS},
		},
		Features: make([]*geojson.Feature, 0, len(c.Polygons)),
	}

	for _, wayID := range c.WayIDs() {
		poly := c.Polygons[wayID]
		f := geojson.NewFeature(orb.Polygon{poly.Ring})
		f.Properties["way_id"] = wayID
		fc.Features = append(fc.Features, f)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(fc)
}
