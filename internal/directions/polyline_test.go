package directions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePolyline(t *testing.T) {
	// Reference vector from the polyline format documentation
	points := DecodePolyline("_p~iF~ps|U_ulLnnqC_mqNvxq`@")

	require.Len(t, points, 3)
	assert.InDelta(t, 38.5, points[0][0], 1e-5)
	assert.InDelta(t, -120.2, points[0][1], 1e-5)
	assert.InDelta(t, 40.7, points[1][0], 1e-5)
	assert.InDelta(t, -120.95, points[1][1], 1e-5)
	assert.InDelta(t, 43.252, points[2][0], 1e-5)
	assert.InDelta(t, -126.453, points[2][1], 1e-5)
}

func TestDecodePolylineSinglePoint(t *testing.T) {
	points := DecodePolyline("_p~iF~ps|U")

	require.Len(t, points, 1)
	assert.InDelta(t, 38.5, points[0][0], 1e-5)
	assert.InDelta(t, -120.2, points[0][1], 1e-5)
}

func TestDecodePolylineEmpty(t *testing.T) {
	assert.Empty(t, DecodePolyline(""))
}

func TestDecodePolylineTruncated(t *testing.T) {
	// Input cut off mid-value; decoded prefix is kept, the partial point dropped
	points := DecodePolyline("_p~iF~ps|U_ul")
	assert.Len(t, points, 1)
}
