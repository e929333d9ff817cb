package webmercator

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Extents 世界瓦片金字塔中的一个矩形像素窗口
// West/North为左上角像素的世界坐标，Width/Height单位为像素
// 值类型，字段比较即语义相等，可直接作为map的key
type Extents struct {
	Zoom   int
	West   int
	North  int
	Width  int
	Height int
}

// NewExtents 所有构造方式最终都经过此函数，以保证缩放级别和像素数受限
func NewExtents(west, north, width, height, zoom int) (Extents, error) {
	e := Extents{Zoom: zoom, West: west, North: north, Width: width, Height: height}
	if err := e.Check(); err != nil {
		return Extents{}, err
	}
	return e, nil
}

// Check 检查缩放级别与网格大小
func (e Extents) Check() error {
	if e.Zoom < MinZoom || e.Zoom > MaxZoom {
		return fmt.Errorf("%w: zoom %d is outside valid range [%d, %d]", ErrExtentTooLarge, e.Zoom, MinZoom, MaxZoom)
	}
	if e.Width < 1 || e.Height < 1 {
		return fmt.Errorf("%w: width %d and height %d must be at least one pixel", ErrInvalidExtents, e.Width, e.Height)
	}
	if int64(e.Width)*int64(e.Height) > MaxGridCells {
		return fmt.Errorf("%w: %d cells exceeds limit %d, use smaller bounds or a lower zoom level",
			ErrExtentTooLarge, int64(e.Width)*int64(e.Height), MaxGridCells)
	}
	return nil
}

// CheckPixelCount 多个同尺寸图层同时创建时检查像素总数
func (e Extents) CheckPixelCount(layers int) error {
	pixels := int64(e.Width) * int64(e.Height) * int64(layers)
	if pixels > MaxPixels {
		return fmt.Errorf("%w: %d pixels at zoom %d exceeds limit %d, reduce the zoom level, extents or number of layers",
			ErrExtentTooLarge, pixels, e.Zoom, MaxPixels)
	}
	return nil
}

// ForWGSBounds 构造包含WGS84包围盒内所有点的最小范围
// 西、北边缘向原点截断；东、南边缘取小数像素坐标的上取整，
// 因此恰好落在像素边界上的包围盒不会多出一行/一列
func ForWGSBounds(b *geom.Bounds, zoom int) (Extents, error) {
	north := LatToPixel(b.Max.Y, zoom)
	west := LonToPixel(b.Min.X, zoom)
	height := int(math.Ceil(LatToFractionalPixel(b.Min.Y, zoom) - float64(north)))
	width := int(math.Ceil(LonToFractionalPixel(b.Max.X, zoom) - float64(west)))
	return NewExtents(west, north, width, height, zoom)
}

// ForTrimmedWGSBounds 先向内收缩约1米再构造范围
// 用于本应与像素边界对齐、但浮点运算略有偏差的包围盒
func ForTrimmedWGSBounds(b *geom.Bounds, zoom int) (Extents, error) {
	if b.Max.X-b.Min.X <= 3*WGSEpsilon {
		return Extents{}, fmt.Errorf("%w: bounds are too narrow to trim", ErrInvalidExtents)
	}
	if b.Max.Y-b.Min.Y <= 3*WGSEpsilon {
		return Extents{}, fmt.Errorf("%w: bounds are too short to trim", ErrInvalidExtents)
	}
	return ForWGSBounds(expandBounds(b, -WGSEpsilon), zoom)
}

// ForBufferedWGSBounds 先向外扩张约1米再构造范围，保证包围盒内的点都落在网格内
func ForBufferedWGSBounds(b *geom.Bounds, zoom int) (Extents, error) {
	return ForWGSBounds(expandBounds(b, WGSEpsilon), zoom)
}

func expandBounds(b *geom.Bounds, d float64) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: b.Min.X - d, Y: b.Min.Y - d},
		Max: geom.Point{X: b.Max.X + d, Y: b.Max.Y + d},
	}
}

// ExpandToInclude 返回同时包含两个范围的最小范围，不修改原值
func (e Extents) ExpandToInclude(other Extents) (Extents, error) {
	if e.Zoom != other.Zoom {
		return Extents{}, fmt.Errorf("%w: zoom %d != %d", ErrIncompatibleExtents, e.Zoom, other.Zoom)
	}
	west := min(e.West, other.West)
	north := min(e.North, other.North)
	east := max(e.West+e.Width, other.West+other.Width)
	south := max(e.North+e.Height, other.North+other.Height)
	return NewExtents(west, north, east-west, south-north, e.Zoom)
}

// Union 多个范围的并集
func Union(extents ...Extents) (Extents, error) {
	if len(extents) == 0 {
		return Extents{}, fmt.Errorf("%w: no extents supplied", ErrInvalidExtents)
	}
	out := extents[0]
	for _, e := range extents[1:] {
		var err error
		if out, err = out.ExpandToInclude(e); err != nil {
			return Extents{}, err
		}
	}
	return out, nil
}

// Equal 两个范围是否描述同一个像素窗口
func (e Extents) Equal(other Extents) bool {
	return e == other
}

// Area 像素数
func (e Extents) Area() int {
	return e.Width * e.Height
}

// Contains 网格内局部坐标是否有效
func (e Extents) Contains(x, y int) bool {
	return x >= 0 && x < e.Width && y >= 0 && y < e.Height
}

// ToWGSBounds 恰好沿像素边界包住整个范围的WGS84包围盒
func (e Extents) ToWGSBounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{
			X: PixelToLon(float64(e.West), e.Zoom),
			Y: PixelToLat(float64(e.North+e.Height), e.Zoom),
		},
		Max: geom.Point{
			X: PixelToLon(float64(e.West+e.Width), e.Zoom),
			Y: PixelToLat(float64(e.North), e.Zoom),
		},
	}
}

// MercatorBoundsMeters EPSG:3857下的范围（米），供外部GIS工具使用
func (e Extents) MercatorBoundsMeters() *geom.Bounds {
	minX, maxY := PixelToMeters(float64(e.West), float64(e.North), e.Zoom)
	maxX, minY := PixelToMeters(float64(e.West+e.Width), float64(e.North+e.Height), e.Zoom)
	return &geom.Bounds{
		Min: geom.Point{X: minX, Y: minY},
		Max: geom.Point{X: maxX, Y: maxY},
	}
}

// PixelGeometry 局部坐标(x, y)对应像素在WGS84下的闭合外轮廓（逆时针）
func (e Extents) PixelGeometry(localX, localY int) geom.Polygon {
	x := float64(localX + e.West)
	y := float64(localY + e.North)
	minLon := PixelToLon(x, e.Zoom)
	maxLon := PixelToLon(x+1, e.Zoom)
	// y轴由北向南递增
	minLat := PixelToLat(y+1, e.Zoom)
	maxLat := PixelToLat(y, e.Zoom)
	return geom.Polygon{{
		{X: minLon, Y: minLat},
		{X: maxLon, Y: minLat},
		{X: maxLon, Y: maxLat},
		{X: minLon, Y: maxLat},
		{X: minLon, Y: minLat},
	}}
}

func (e Extents) String() string {
	return fmt.Sprintf("[zoom=%d west=%d north=%d width=%d height=%d]", e.Zoom, e.West, e.North, e.Width, e.Height)
}
