package directions

import "github.com/route-plotter/backend/internal/models"

// polylinePrecision is the Google Maps standard (1e-5). OSRM's
// geometries=polyline output uses the same factor.
const polylinePrecision = 1e-5

// DecodePolyline converts an encoded polyline string to lat/lng coordinates
// per Google's Encoded Polyline Algorithm Format.
func DecodePolyline(encoded string) []models.LatLng {
	var points []models.LatLng
	index, lat, lng := 0, 0, 0

	for index < len(encoded) {
		dLat, next, ok := decodeValue(encoded, index)
		if !ok {
			return points
		}
		lat += dLat
		index = next

		dLng, next, ok := decodeValue(encoded, index)
		if !ok {
			return points
		}
		lng += dLng
		index = next

		points = append(points, models.LatLng{
			float64(lat) * polylinePrecision,
			float64(lng) * polylinePrecision,
		})
	}

	return points
}

// decodeValue reads one varint-encoded delta starting at index. ok is false
// when the string ends mid-value.
func decodeValue(encoded string, index int) (value, next int, ok bool) {
	shift, result := 0, 0
	for {
		if index >= len(encoded) {
			return 0, index, false
		}
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Zigzag decode: odd values are negated via bitwise complement.
	if result&1 != 0 {
		return ^(result >> 1), index, true
	}
	return result >> 1, index, true
}
