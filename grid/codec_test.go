package grid_test

import (
	"bytes"
	"io"
	"math"
	"math/rand"
	"testing"

	"git.fiblab.net/sim/accessibility/grid"
	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomIntegerGrid(t *testing.T, seed int64) *grid.Grid {
	e, err := webmercator.NewExtents(215000, 99000, 37, 23, 10)
	require.NoError(t, err)
	g, err := grid.New(e)
	require.NoError(t, err)
	r := rand.New(rand.NewSource(seed))
	for y := 0; y < e.Height; y++ {
		for x := 0; x < e.Width; x++ {
			require.NoError(t, g.Set(x, y, float64(r.Intn(5000))))
		}
	}
	return g
}

func TestCodecRoundTrip(t *testing.T) {
	g := randomIntegerGrid(t, 1)
	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf))
	assert.Equal(t, 4*(5+g.Len()), buf.Len())

	h, err := grid.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Extents, h.Extents)
	assert.Equal(t, g.Values(), h.Values())
}

func TestCodecRoundTripCompressed(t *testing.T) {
	g := randomIntegerGrid(t, 2)
	var buf bytes.Buffer
	require.NoError(t, g.WriteCompressed(&buf))
	assert.Equal(t, []byte{0x1f, 0x8b}, buf.Bytes()[:2])

	h, err := grid.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, g.Extents, h.Extents)
	assert.Equal(t, g.Values(), h.Values())
}

func TestCodecHeaderLayout(t *testing.T) {
	e, err := webmercator.NewExtents(3, 4, 2, 1, 9)
	require.NoError(t, err)
	g, err := grid.New(e)
	require.NoError(t, err)
	require.NoError(t, g.Set(0, 0, 7))
	require.NoError(t, g.Set(1, 0, 5))
	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf))
	assert.Equal(t, []byte{
		9, 0, 0, 0,
		3, 0, 0, 0,
		4, 0, 0, 0,
		2, 0, 0, 0,
		1, 0, 0, 0,
		7, 0, 0, 0,
		0xfe, 0xff, 0xff, 0xff,
	}, buf.Bytes())
}

func TestCodecRoundsWithErrorDiffusion(t *testing.T) {
	e, err := webmercator.NewExtents(0, 0, 3, 2, 9)
	require.NoError(t, err)
	g, err := grid.New(e)
	require.NoError(t, err)
	for x := 0; x < 3; x++ {
		require.NoError(t, g.Set(x, 0, 0.4))
		require.NoError(t, g.Set(x, 1, 1.6))
	}
	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf))
	h, err := grid.Read(&buf)
	require.NoError(t, err)
	// 每行误差重置：0.4,0.8->1,0.2 和 1.6->2,1.2->1,1.8->2
	assert.Equal(t, []float64{0, 1, 0, 2, 1, 2}, h.Values())
}

func TestCodecRejectsNegativeDensity(t *testing.T) {
	g := randomIntegerGrid(t, 3)
	require.NoError(t, g.Set(5, 5, -1))
	var buf bytes.Buffer
	assert.ErrorIs(t, g.Write(&buf), grid.ErrFormat)
	assert.Zero(t, buf.Len())
}

func TestCodecRejectsDensityBeyondInt32(t *testing.T) {
	e, err := webmercator.NewExtents(0, 0, 2, 1, 9)
	require.NoError(t, err)
	g, err := grid.New(e)
	require.NoError(t, err)
	require.NoError(t, g.Set(0, 0, 3e9))
	require.NoError(t, g.Set(1, 0, 10))
	var buf bytes.Buffer
	assert.ErrorIs(t, g.Write(&buf), grid.ErrFormat)
	assert.Zero(t, buf.Len())

	// 上限本身可以无损写出
	require.NoError(t, g.Set(0, 0, grid.MaxDensity))
	require.NoError(t, g.Write(&buf))
	h, err := grid.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, []float64{math.MaxInt32, 10}, h.Values())
}

func TestCodecRejectsTruncatedInput(t *testing.T) {
	g := randomIntegerGrid(t, 4)
	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf))
	data := buf.Bytes()

	_, err := grid.Read(bytes.NewReader(data[:12]))
	assert.ErrorIs(t, err, grid.ErrFormat)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = grid.Read(bytes.NewReader(data[:len(data)-4]))
	assert.ErrorIs(t, err, grid.ErrFormat)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = grid.Read(bytes.NewReader(nil))
	assert.ErrorIs(t, err, grid.ErrFormat)
}

func TestCodecRejectsInvalidHeader(t *testing.T) {
	header := func(zoom, width, height byte) []byte {
		return []byte{zoom, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, width, 0, 0, 0, height, 0, 0, 0}
	}
	_, err := grid.Read(bytes.NewReader(header(9, 0, 3)))
	assert.ErrorIs(t, err, grid.ErrFormat)

	_, err = grid.Read(bytes.NewReader(header(20, 1, 1)))
	assert.ErrorIs(t, err, grid.ErrFormat)
	assert.ErrorIs(t, err, webmercator.ErrExtentTooLarge)
}
