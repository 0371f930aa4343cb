package geo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"golang.org/x/text/encoding/charmap"
)

// ErrMissingAttributes reports a shapefile without its .dbf attribute table.
var ErrMissingAttributes = errors.New("shapefile attribute table missing")

type shapeReader interface {
	Next() bool
	Shape() (int, shp.Shape)
	Fields() []shp.Field
	Err() error
}

func readShapefile(path string) ([]Feature, error) {
	if err := checkAttributeTable(path); err != nil {
		return nil, err
	}
	r, err := shp.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return readShapes(r, func(row, field int) string { return r.ReadAttribute(row, field) })
}

// checkAttributeTable fails when the .dbf next to path is absent or
// unreadable; go-shp would otherwise load every feature without attributes.
func checkAttributeTable(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	var lastErr error
	for _, ext := range []string{".dbf", ".DBF"} {
		f, err := os.Open(base + ext)
		if err == nil {
			return f.Close()
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %s.dbf: %v", ErrMissingAttributes, base, lastErr)
}

func readZippedShapefile(path string) ([]Feature, error) {
	r, err := shp.OpenZip(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return readShapes(r, func(_, field int) string { return r.Attribute(field) })
}

func readShapes(r shapeReader, attribute func(row, field int) string) ([]Feature, error) {
	fields := r.Fields()
	var out []Feature
	for r.Next() {
		row, shape := r.Shape()
		g, err := toGeometry(shape)
		if err != nil {
			return nil, fmt.Errorf("shape %d: %w", row, err)
		}
		props := make(map[string]any, len(fields))
		for i, f := range fields {
			props[fieldName(f)] = attributeValue(f, attribute(row, i))
		}
		out = append(out, Feature{Properties: props, Geometry: g})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func fieldName(f shp.Field) string {
	return strings.TrimRight(string(f.Name[:]), "\x00")
}

// attributeValue decodes a DBF cell. Text that is not valid UTF-8 is read
// as ISO-8859-1; numeric fields become float64.
func attributeValue(f shp.Field, raw string) any {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if !utf8.ValidString(s) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().String(s); err == nil {
			s = decoded
		}
	}
	switch f.Fieldtype {
	case 'N', 'F':
		if s == "" {
			return nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return s
}

func toGeometry(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case *shp.Polygon:
		return assemblePolygon(s.Parts, s.Points)
	case *shp.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported shape type %T", shape)
	}
}

// assemblePolygon groups shapefile rings into polygons. Clockwise rings are
// shells; counter-clockwise rings are holes of the shell that contains them.
func assemblePolygon(parts []int32, points []shp.Point) (geom.T, error) {
	if len(parts) == 0 {
		return nil, errors.New("polygon without parts")
	}

	rings := make([][]geom.Coord, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			return nil, fmt.Errorf("invalid part bounds %d..%d", start, end)
		}
		ring := make([]geom.Coord, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, geom.Coord{p.X, p.Y})
		}
		rings = append(rings, ring)
	}

	if len(rings) == 1 {
		return geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{rings[0]})
	}

	var polys [][][]geom.Coord
	var holes [][]geom.Coord
	for _, ring := range rings {
		if signedArea(ring) > 0 {
			holes = append(holes, ring)
			continue
		}
		polys = append(polys, [][]geom.Coord{ring})
	}
	for _, hole := range holes {
		owner := -1
		for i, poly := range polys {
			if xy.IsPointInRing(geom.XY, hole[0], flatten(poly[0])) {
				owner = i
				break
			}
		}
		if owner < 0 {
			polys = append(polys, [][]geom.Coord{hole})
			continue
		}
		polys[owner] = append(polys[owner], hole)
	}

	if len(polys) == 1 {
		return geom.NewPolygon(geom.XY).SetCoords(polys[0])
	}
	return geom.NewMultiPolygon(geom.XY).SetCoords(polys)
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []geom.Coord) float64 {
	area := 0.0
	for i := 0; i+1 < len(ring); i++ {
		area += ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
	}
	return area / 2
}

func flatten(ring []geom.Coord) []float64 {
	out := make([]float64, 0, 2*len(ring))
	for _, c := range ring {
		out = append(out, c[0], c[1])
	}
	return out
}
