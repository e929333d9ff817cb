// Package config 可达性分析请求的YAML配置
package config

import (
	"errors"
	"fmt"
	"os"

	"git.fiblab.net/sim/accessibility/grid"
	"git.fiblab.net/sim/accessibility/reducer"
	"git.fiblab.net/sim/accessibility/reducer/decay"
	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/ctessum/geom"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var log = logrus.WithField("module", "config")

var (
	// 错误：配置文件格式或取值不合法
	ErrInvalidConfig = errors.New("invalid analysis config")
)

// Bounds WGS84经纬度范围
type Bounds struct {
	North float64 `yaml:"north" validate:"gte=-85,lte=85,gtfield=South"`
	South float64 `yaml:"south" validate:"gte=-85,lte=85"`
	East  float64 `yaml:"east" validate:"gte=-180,lte=180,gtfield=West"`
	West  float64 `yaml:"west" validate:"gte=-180,lte=180"`
}

// Extents 直接给出的像素范围
type Extents struct {
	West   int `yaml:"west" validate:"gte=0"`
	North  int `yaml:"north" validate:"gte=0"`
	Width  int `yaml:"width" validate:"gte=1"`
	Height int `yaml:"height" validate:"gte=1"`
}

// AnalysisConfig 单次分析的配置，目的地范围由bounds或extents之一给出
type AnalysisConfig struct {
	// 为0时取webmercator.DefaultZoom
	Zoom    int      `yaml:"zoom" validate:"omitempty,min=9,max=12"`
	Bounds  *Bounds  `yaml:"bounds" validate:"required_without=Extents,excluded_with=Extents"`
	Extents *Extents `yaml:"extents" validate:"required_without=Bounds"`
	// 机会网格定位符：文件路径或db.collection/key
	Grids []string `yaml:"grids" validate:"dive,required"`

	Percentiles            []float64  `yaml:"percentiles" validate:"required,min=1,dive,gte=0,lte=100"`
	CutoffsMinutes         []int      `yaml:"cutoffsMinutes" validate:"dive,min=1,max=120"`
	SamplesPerDestination  int        `yaml:"samplesPerDestination" validate:"gte=1"`
	MaxTripDurationMinutes int        `yaml:"maxTripDurationMinutes" validate:"gte=0"`
	RecordTimes            bool       `yaml:"recordTimes"`
	Decay                  decay.Spec `yaml:"decay"`
}

// Load 读取并校验配置文件
func Load(path string) (*AnalysisConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("loaded analysis config %s: %d grids, percentiles %v, cutoffs %v",
		path, len(c.Grids), c.Percentiles, c.CutoffsMinutes)
	return c, nil
}

func Parse(data []byte) (*AnalysisConfig, error) {
	var c AnalysisConfig
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Zoom == 0 {
		c.Zoom = webmercator.DefaultZoom
	}
	if c.Decay.Type == "" {
		c.Decay.Type = decay.TypeStep
	}
	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &c, nil
}

// DecayFunction 按decay段构造衰减函数
func (c *AnalysisConfig) DecayFunction() (decay.Function, error) {
	return decay.New(c.Decay)
}

// DestinationExtents 目的地网格范围
func (c *AnalysisConfig) DestinationExtents() (webmercator.Extents, error) {
	if c.Extents != nil {
		return webmercator.NewExtents(c.Extents.West, c.Extents.North, c.Extents.Width, c.Extents.Height, c.Zoom)
	}
	return webmercator.ForWGSBounds(&geom.Bounds{
		Min: geom.Point{X: c.Bounds.West, Y: c.Bounds.South},
		Max: geom.Point{X: c.Bounds.East, Y: c.Bounds.North},
	}, c.Zoom)
}

// ReducerOptions 组装单个起点的汇总配置，grids须与Grids一一对应且范围与目的地一致
func (c *AnalysisConfig) ReducerOptions(grids []*grid.Grid) (reducer.Options, error) {
	extents, err := c.DestinationExtents()
	if err != nil {
		return reducer.Options{}, err
	}
	opts := reducer.Options{
		Percentiles:            c.Percentiles,
		CutoffsMinutes:         c.CutoffsMinutes,
		SamplesPerDestination:  c.SamplesPerDestination,
		MaxTripDurationMinutes: c.MaxTripDurationMinutes,
		Destinations:           extents,
		Grids:                  grids,
		RecordTimes:            c.RecordTimes,
	}
	if len(grids) > 0 {
		if opts.Decay, err = c.DecayFunction(); err != nil {
			return reducer.Options{}, err
		}
	}
	return opts, nil
}
