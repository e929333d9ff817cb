package webmercator_test

import (
	"testing"

	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPixelConversions(t *testing.T) {
	assert.Equal(t, 0, webmercator.LonToPixel(-180, 9))
	assert.Equal(t, 65536, webmercator.LonToPixel(0, 9))
	assert.Equal(t, 65536, webmercator.LatToPixel(0, 9))
	assert.InDelta(t, 0.0, webmercator.PixelToLon(65536, 9), 1e-12)
	assert.InDelta(t, 0.0, webmercator.PixelToLat(65536, 9), 1e-12)

	// 截断向原点：像素内任意位置都落回同一个像素
	for zoom := webmercator.MinZoom; zoom <= webmercator.MaxZoom; zoom++ {
		for _, x := range []int{1000, 123456 >> (12 - zoom), 70001 >> (12 - zoom)} {
			assert.Equal(t, x, webmercator.LonToPixel(webmercator.PixelToCenterLon(x, zoom), zoom))
			assert.Equal(t, x, webmercator.LatToPixel(webmercator.PixelToCenterLat(x, zoom), zoom))
			assert.LessOrEqual(t, webmercator.PixelToLon(float64(webmercator.LonToPixel(10.123, zoom)), zoom), 10.123)
		}
	}
}

func TestMercatorBoundsMeters(t *testing.T) {
	// 澳大利亚东南部，参考 http://www.maptiler.org/google-maps-coordinates-tile-bounds-projection/
	e := webmercator.Extents{Zoom: 4, West: 256 * 14, North: 256 * 9, Width: 256, Height: 256}
	b := e.MercatorBoundsMeters()
	assert.InDelta(t, 15028131.257091936, b.Min.X, 0.1)
	assert.InDelta(t, -5009377.085697312, b.Min.Y, 0.1)
	assert.InDelta(t, 17532819.79994059, b.Max.X, 0.1)
	assert.InDelta(t, -2504688.542848654, b.Max.Y, 0.1)

	// 穿过巴黎
	e = webmercator.Extents{Zoom: 5, West: 256 * 16, North: 256 * 11, Width: 256, Height: 256}
	b = e.MercatorBoundsMeters()
	assert.InDelta(t, 0, b.Min.X, 0.1)
	assert.InDelta(t, 5009377.085697312, b.Min.Y, 0.1)
	assert.InDelta(t, 1252344.271424327, b.Max.X, 0.1)
	assert.InDelta(t, 6261721.357121639, b.Max.Y, 0.1)
}

func TestNewExtentsValidation(t *testing.T) {
	_, err := webmercator.NewExtents(0, 0, 10, 10, 8)
	assert.ErrorIs(t, err, webmercator.ErrExtentTooLarge)
	_, err = webmercator.NewExtents(0, 0, 10, 10, 13)
	assert.ErrorIs(t, err, webmercator.ErrExtentTooLarge)
	_, err = webmercator.NewExtents(0, 0, 3000, 3000, 10)
	assert.ErrorIs(t, err, webmercator.ErrExtentTooLarge)
	_, err = webmercator.NewExtents(0, 0, 0, 10, 10)
	assert.ErrorIs(t, err, webmercator.ErrInvalidExtents)

	e, err := webmercator.NewExtents(100, 200, 2000, 2000, 10)
	require.NoError(t, err)
	// 2000×2000×250 恰好等于像素上限
	assert.NoError(t, e.CheckPixelCount(250))
	assert.ErrorIs(t, e.CheckPixelCount(251), webmercator.ErrExtentTooLarge)
}

func TestWGSBoundsRoundTrip(t *testing.T) {
	e, err := webmercator.NewExtents(131072, 97000, 37, 21, 10)
	require.NoError(t, err)
	b := e.ToWGSBounds()

	trimmed, err := webmercator.ForTrimmedWGSBounds(b, 10)
	require.NoError(t, err)
	assert.Equal(t, e, trimmed)

	// 扩张后至多在每个方向多出一个像素
	buffered, err := webmercator.ForBufferedWGSBounds(b, 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, buffered.West, e.West)
	assert.LessOrEqual(t, buffered.North, e.North)
	assert.GreaterOrEqual(t, buffered.Width, e.Width)
	assert.LessOrEqual(t, buffered.Width, e.Width+2)
	assert.LessOrEqual(t, buffered.Height, e.Height+2)

	_, err = webmercator.ForTrimmedWGSBounds(&geom.Bounds{
		Min: geom.Point{X: 10, Y: 10},
		Max: geom.Point{X: 10.00002, Y: 11},
	}, 10)
	assert.ErrorIs(t, err, webmercator.ErrInvalidExtents)
}

func TestForWGSBoundsContainsPoints(t *testing.T) {
	b := &geom.Bounds{
		Min: geom.Point{X: 116.30, Y: 39.85},
		Max: geom.Point{X: 116.45, Y: 39.99},
	}
	e, err := webmercator.ForWGSBounds(b, 11)
	require.NoError(t, err)
	for _, p := range []geom.Point{b.Min, b.Max, {X: 116.37, Y: 39.9}} {
		x := webmercator.LonToPixel(p.X, 11) - e.West
		y := webmercator.LatToPixel(p.Y, 11) - e.North
		// 东南角可能恰好落在边界外一个像素（截断策略），其余点必须在网格内
		if p == b.Max || p == b.Min {
			assert.True(t, x <= e.Width && y <= e.Height)
			continue
		}
		assert.True(t, e.Contains(x, y))
	}
}

func TestExpandToInclude(t *testing.T) {
	a, err := webmercator.NewExtents(100, 100, 10, 20, 9)
	require.NoError(t, err)
	b, err := webmercator.NewExtents(105, 90, 30, 5, 9)
	require.NoError(t, err)

	u, err := a.ExpandToInclude(b)
	require.NoError(t, err)
	assert.Equal(t, webmercator.Extents{Zoom: 9, West: 100, North: 90, Width: 35, Height: 30}, u)

	u2, err := webmercator.Union(b, a)
	require.NoError(t, err)
	assert.Equal(t, u, u2)

	c, err := webmercator.NewExtents(100, 100, 10, 20, 10)
	require.NoError(t, err)
	_, err = a.ExpandToInclude(c)
	assert.ErrorIs(t, err, webmercator.ErrIncompatibleExtents)
	_, err = webmercator.Union()
	assert.ErrorIs(t, err, webmercator.ErrInvalidExtents)
}

func TestPixelGeometry(t *testing.T) {
	e, err := webmercator.NewExtents(65536, 65536, 4, 4, 9)
	require.NoError(t, err)
	p := e.PixelGeometry(0, 0)
	require.Len(t, p, 1)
	require.Len(t, p[0], 5)
	assert.Equal(t, p[0][0], p[0][4])
	bounds := p.Bounds()
	assert.InDelta(t, 0, bounds.Min.X, 1e-12)
	assert.InDelta(t, 0, bounds.Max.Y, 1e-12)
	assert.InDelta(t, 360.0/(512*256), bounds.Max.X, 1e-12)
	assert.Greater(t, p.Area(), 0.0)
}
