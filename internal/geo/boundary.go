package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// DefaultNameKey is the attribute carrying the French arrondissement name.
const DefaultNameKey = "ADM3_FR"

var ErrMissingName = errors.New("boundary feature has no name attribute")

// Feature is one administrative region. It is not modified after loading.
type Feature struct {
	Name       string
	Properties map[string]any
	Geometry   geom.T
}

type Collection struct {
	NameKey  string
	Features []Feature
}

func (c Collection) Names() []string {
	out := make([]string, 0, len(c.Features))
	for _, f := range c.Features {
		out = append(out, f.Name)
	}
	return out
}

// Load reads boundaries from a shapefile (.shp), a zipped shapefile (.zip)
// or a GeoJSON file (.json, .geojson).
func Load(path, nameKey string) (Collection, error) {
	if nameKey == "" {
		nameKey = DefaultNameKey
	}
	var (
		features []Feature
		err      error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		features, err = readShapefile(path)
	case ".zip":
		features, err = readZippedShapefile(path)
	case ".json", ".geojson":
		features, err = readGeoJSON(path)
	default:
		return Collection{}, fmt.Errorf("unsupported boundary format: %s", path)
	}
	if err != nil {
		return Collection{}, fmt.Errorf("load boundaries %s: %w", path, err)
	}

	for i := range features {
		name, ok := features[i].Properties[nameKey].(string)
		if !ok || strings.TrimSpace(name) == "" {
			return Collection{}, fmt.Errorf("%w: feature %d, key %s", ErrMissingName, i, nameKey)
		}
		features[i].Name = name
	}
	return Collection{NameKey: nameKey, Features: features}, nil
}

// WriteGeoJSON serializes the collection as a GeoJSON FeatureCollection,
// keeping every attribute and the geometry as loaded.
func (c Collection) WriteGeoJSON(path string) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(c.Features))}
	for _, f := range c.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}
	blob, err := json.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

func readGeoJSON(path string) ([]Feature, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(blob, &fc); err != nil {
		return nil, err
	}
	out := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		out = append(out, Feature{Properties: props, Geometry: f.Geometry})
	}
	return out, nil
}
