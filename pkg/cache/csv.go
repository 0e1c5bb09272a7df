package cache

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/NERVsystems/osmshapes/pkg/geo"
	"github.com/NERVsystems/osmshapes/pkg/osm"
)

// tableHeader is the fixed column set of the on-disk element table.
// Promoted tags are carried in one JSON-encoded attributes column, so
// a tag key can never collide with a core column name.
var tableHeader = []string{"type", "id", "lat", "lon", "nodes", "attributes"}

// encodeTable serializes elements as delimited text with a header row.
// Way node lists are written as list literals that ParseNodeList reads
// back losslessly.
func encodeTable(elements []osm.Element) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(tableHeader); err != nil {
		return nil, err
	}

	for _, el := range elements {
		record := make([]string, len(tableHeader))
		record[0] = string(el.Type)
		record[1] = strconv.FormatInt(el.ID, 10)

		if el.IsNode() {
			record[2] = geo.FormatCoord(el.Lat)
			record[3] = geo.FormatCoord(el.Lon)
		}
		if el.Nodes != nil {
			record[4] = osm.FormatNodeList(el.Nodes)
		}
		if len(el.Attributes) > 0 {
			attrs, err := json.Marshal(el.Attributes)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", el.ID, err)
			}
			record[5] = string(attrs)
		}

		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

// decodeTable parses a persisted element table. Any malformed cell
// fails the whole decode; a truncated node list must never yield a
// shorter ring silently.
func decodeTable(data []byte) ([]osm.Element, error) {
	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("element table has no header row")
	}

	header := records[0]
	if len(header) != len(tableHeader) {
		return nil, fmt.Errorf("element table header has %d columns, want %d",
			len(header), len(tableHeader))
	}
	for i, col := range tableHeader {
		if header[i] != col {
			return nil, fmt.Errorf("element table column %d is %q, want %q", i, header[i], col)
		}
	}

	elements := make([]osm.Element, 0, len(records)-1)
	for _, record := range records[1:] {
		el := osm.Element{Type: osm.ElementType(record[0])}

		el.ID, err = strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed element id %q: %w", record[1], err)
		}

		switch el.Type {
		case osm.ElementTypeNode:
			el.Lat, err = strconv.ParseFloat(record[2], 64)
			if err != nil {
				return nil, fmt.Errorf("node %d: malformed lat %q: %w", el.ID, record[2], err)
			}
			el.Lon, err = strconv.ParseFloat(record[3], 64)
			if err != nil {
				return nil, fmt.Errorf("node %d: malformed lon %q: %w", el.ID, record[3], err)
			}
		case osm.ElementTypeWay:
			if record[4] != "" {
				el.Nodes, err = osm.ParseNodeList(record[4])
				if err != nil {
					return nil, fmt.Errorf("way %d: %w", el.ID, err)
				}
			}
		default:
			return nil, fmt.Errorf("element %d has unknown type %q", el.ID, record[0])
		}

		if record[5] != "" {
			if err := json.Unmarshal([]byte(record[5]), &el.Attributes); err != nil {
				return nil, fmt.Errorf("element %d: malformed attributes: %w", el.ID, err)
			}
		}

		elements = append(elements, el)
	}
	return elements, nil
}
