package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"git.fiblab.net/sim/accessibility/config"
	"git.fiblab.net/sim/accessibility/grid"
	"git.fiblab.net/sim/accessibility/reducer"
	"git.fiblab.net/sim/accessibility/reducer/decay"
	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisYAML = `
zoom: 10
bounds:
  north: 40.0
  south: 39.8
  east: 116.5
  west: 116.2
grids:
  - grids/jobs.grid
  - accessibility.grids/residents
percentiles: [5, 50, 95]
cutoffsMinutes: [15, 30, 45, 60]
samplesPerDestination: 120
maxTripDurationMinutes: 90
recordTimes: true
decay:
  type: logistic
  standardDeviationMinutes: 10
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.yml")
	require.NoError(t, os.WriteFile(path, []byte(analysisYAML), 0o644))
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, c.Zoom)
	assert.Equal(t, []string{"grids/jobs.grid", "accessibility.grids/residents"}, c.Grids)
	assert.Equal(t, []float64{5, 50, 95}, c.Percentiles)
	assert.Equal(t, []int{15, 30, 45, 60}, c.CutoffsMinutes)
	assert.True(t, c.RecordTimes)

	f, err := c.DecayFunction()
	require.NoError(t, err)
	assert.Equal(t, decay.TypeLogistic, f.Type())

	extents, err := c.DestinationExtents()
	require.NoError(t, err)
	assert.Equal(t, 10, extents.Zoom)
	assert.Equal(t, webmercator.LonToPixel(116.2, 10), extents.West)
	assert.Equal(t, webmercator.LatToPixel(40.0, 10), extents.North)

	g, err := grid.New(extents)
	require.NoError(t, err)
	opts, err := c.ReducerOptions([]*grid.Grid{g})
	require.NoError(t, err)
	assert.Equal(t, 120, opts.SamplesPerDestination)
	assert.NotNil(t, opts.Decay)
	_, err = reducer.New(opts)
	assert.NoError(t, err)
}

func TestParseDefaults(t *testing.T) {
	c, err := config.Parse([]byte(`
extents: {west: 100, north: 200, width: 10, height: 5}
percentiles: [50]
samplesPerDestination: 1
`))
	require.NoError(t, err)
	assert.Equal(t, webmercator.DefaultZoom, c.Zoom)
	assert.Equal(t, decay.TypeStep, c.Decay.Type)

	extents, err := c.DestinationExtents()
	require.NoError(t, err)
	assert.Equal(t, webmercator.Extents{Zoom: webmercator.DefaultZoom, West: 100, North: 200, Width: 10, Height: 5}, extents)

	// 没有机会网格时不需要衰减函数
	opts, err := c.ReducerOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, opts.Decay)
}

func TestParseInvalid(t *testing.T) {
	cases := map[string]string{
		"no destinations": `
percentiles: [50]
samplesPerDestination: 1`,
		"both destinations": `
bounds: {north: 40, south: 39, east: 117, west: 116}
extents: {west: 0, north: 0, width: 1, height: 1}
percentiles: [50]
samplesPerDestination: 1`,
		"inverted bounds": `
bounds: {north: 39, south: 40, east: 117, west: 116}
percentiles: [50]
samplesPerDestination: 1`,
		"zoom": `
zoom: 14
extents: {west: 0, north: 0, width: 1, height: 1}
percentiles: [50]
samplesPerDestination: 1`,
		"percentile": `
extents: {west: 0, north: 0, width: 1, height: 1}
percentiles: [150]
samplesPerDestination: 1`,
		"cutoff": `
extents: {west: 0, north: 0, width: 1, height: 1}
percentiles: [50]
cutoffsMinutes: [0]
samplesPerDestination: 1`,
		"samples": `
extents: {west: 0, north: 0, width: 1, height: 1}
percentiles: [50]`,
		"decay type": `
extents: {west: 0, north: 0, width: 1, height: 1}
percentiles: [50]
samplesPerDestination: 1
decay: {type: gaussian}`,
		"yaml": `percentiles: [50`,
	}
	for name, data := range cases {
		_, err := config.Parse([]byte(data))
		assert.ErrorIs(t, err, config.ErrInvalidConfig, name)
	}
}

func TestDecayParameterRejected(t *testing.T) {
	c, err := config.Parse([]byte(`
extents: {west: 0, north: 0, width: 1, height: 1}
percentiles: [50]
cutoffsMinutes: [30]
samplesPerDestination: 1
decay: {type: fixed-exponential}
`))
	require.NoError(t, err)
	_, err = c.ReducerOptions([]*grid.Grid{nil})
	assert.ErrorIs(t, err, decay.ErrInvalidParameter)
}
