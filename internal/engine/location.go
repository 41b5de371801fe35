package engine

import (
	"math"

	"github.com/twpayne/go-polyline"

	"github.com/nieko-nera/core/internal/domain"
)

// checkLocation reports whether any candidate coordinate falls inside the
// operator's square bounding box around the condition's target point.
func checkLocation(points []domain.Coordinates, cond domain.Condition) (bool, error) {
	lat, lon, err := parseCoordinates(asString(cond.Value))
	if err != nil {
		return false, valueError(cond, "coordinate pair required")
	}
	radius, ok := locationRadius(cond.Operator)
	if !ok {
		return false, operatorError(cond)
	}
	for _, p := range points {
		if math.Abs(p.Lat-lat) <= radius && math.Abs(p.Lon-lon) <= radius {
			return true, nil
		}
	}
	return false, nil
}

// decodePolyline decodes a Google encoded polyline into coordinates.
// Malformed input decodes to nothing rather than failing the evaluation.
func decodePolyline(encoded string) []domain.Coordinates {
	if encoded == "" {
		return nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil
	}
	out := make([]domain.Coordinates, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		out = append(out, domain.Coordinates{Lat: c[0], Lon: c[1]})
	}
	return out
}
