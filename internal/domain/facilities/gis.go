package facilities

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// CoordinatesCollection renders facilities as GeoJSON points. Facilities
// without a full coordinate pair are skipped.
func CoordinatesCollection(items []*Facility) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(items))}
	for _, f := range items {
		if f.Latitude == nil || f.Longitude == nil {
			continue
		}
		point, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{*f.Longitude, *f.Latitude})
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       f.ID.String(),
			Geometry: point,
			Properties: map[string]interface{}{
				"name":         f.Name,
				"code":         f.Code,
				"county":       f.CountyName,
				"constituency": f.ConstituencyName,
				"ward":         f.WardName,
			},
		})
	}
	return fc, nil
}
