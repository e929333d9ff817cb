package grid

import (
	"errors"
	"fmt"

	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

var log = logrus.WithField("module", "grid")

const (
	// 面要素面积下限（平方度），小于此值视为退化几何
	MinFeatureAreaSqDeg = 1e-12
	// 面要素面积上限（平方度）
	MaxFeatureAreaSqDeg = 2
)

var (
	// 错误：几何无效（过小、过大或无法求交）
	ErrInvalidGeometry = errors.New("invalid geometry")
	// 错误：二进制网格格式错误
	ErrFormat = errors.New("invalid grid format")
	// 错误：数据源中不存在该网格
	ErrNotFound = errors.New("grid not found")
	// 错误：key越出数据目录
	ErrInvalidKey = errors.New("invalid grid key")
)

// Grid 机会（岗位、人口等）密度网格，与webmercator.Extents一一对应
// 数据按行存储，下标为 y*width + x
// 写操作（IncrementPoint/ApplyWeights/Set）互斥，读操作可并发
// 作为可达性计算目标时只读
type Grid struct {
	Extents webmercator.Extents
	Name    string

	density  []float64
	features int

	mu *xsync.RBMutex
}

// New 创建全零网格，范围不合法时返回错误
func New(extents webmercator.Extents) (*Grid, error) {
	if err := extents.Check(); err != nil {
		return nil, err
	}
	return &Grid{
		Extents: extents,
		density: make([]float64, extents.Area()),
		mu:      xsync.NewRBMutex(),
	}, nil
}

// NewLayers 为同一组要素的多个属性创建同尺寸网格，检查像素总数
func NewLayers(extents webmercator.Extents, names []string) ([]*Grid, error) {
	if err := extents.CheckPixelCount(len(names)); err != nil {
		return nil, err
	}
	grids := make([]*Grid, len(names))
	for i, name := range names {
		g, err := New(extents)
		if err != nil {
			return nil, err
		}
		g.Name = name
		grids[i] = g
	}
	return grids, nil
}

func (g *Grid) Width() int {
	return g.Extents.Width
}

func (g *Grid) Height() int {
	return g.Extents.Height
}

// Len 像素数
func (g *Grid) Len() int {
	return len(g.density)
}

func (g *Grid) index(x, y int) int {
	return y*g.Extents.Width + x
}

// At 局部坐标(x, y)处的机会数，越界返回0
func (g *Grid) At(x, y int) float64 {
	if !g.Extents.Contains(x, y) {
		return 0
	}
	t := g.mu.RLock()
	defer g.mu.RUnlock(t)
	return g.density[g.index(x, y)]
}

// Set 直接设置某个像素的值
func (g *Grid) Set(x, y int, v float64) error {
	if !g.Extents.Contains(x, y) {
		return fmt.Errorf("%w: pixel (%d, %d) outside %v", webmercator.ErrInvalidExtents, x, y, g.Extents)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.density[g.index(x, y)] = v
	return nil
}

// OpportunityCount 按展平下标（x变化最快）取机会数
func (g *Grid) OpportunityCount(i int) float64 {
	t := g.mu.RLock()
	defer g.mu.RUnlock(t)
	return g.density[i]
}

// Sum 全网格机会总数
func (g *Grid) Sum() float64 {
	t := g.mu.RLock()
	defer g.mu.RUnlock(t)
	return floats.Sum(g.density)
}

// Values 数据副本
func (g *Grid) Values() []float64 {
	t := g.mu.RLock()
	defer g.mu.RUnlock(t)
	out := make([]float64, len(g.density))
	copy(out, g.density)
	return out
}

// Lat 展平下标i对应像素中心的纬度
func (g *Grid) Lat(i int) float64 {
	y := i / g.Extents.Width
	return webmercator.PixelToCenterLat(g.Extents.North+y, g.Extents.Zoom)
}

// Lon 展平下标i对应像素中心的经度
func (g *Grid) Lon(i int) float64 {
	x := i % g.Extents.Width
	return webmercator.PixelToCenterLon(g.Extents.West+x, g.Extents.Zoom)
}

// FeatureCount 已写入网格的要素数（落在网格内的点与栅格化的面）
func (g *Grid) FeatureCount() int {
	t := g.mu.RLock()
	defer g.mu.RUnlock(t)
	return g.features
}

func (g *Grid) String() string {
	return fmt.Sprintf("grid %q %v", g.Name, g.Extents)
}
