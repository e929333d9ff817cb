package grid

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/ctessum/geom"
	"golang.org/x/sync/errgroup"
)

// PixelWeight 面要素落在某个像素内的比例
type PixelWeight struct {
	X      int
	Y      int
	Weight float64
}

// Feature 待栅格化的要素，Point与Polygon二选一
// 坐标均为WGS84，X为经度，Y为纬度
type Feature struct {
	Point   *geom.Point
	Polygon geom.Polygonal
	Value   float64
}

// WeightedPoint 带机会数的点
type WeightedPoint struct {
	Lat    float64
	Lon    float64
	Amount float64
}

// RasterizeReport 批量栅格化结果统计
type RasterizeReport struct {
	Points      int
	Polygons    int
	OutOfBounds int
	Invalid     int
}

// IncrementPoint 将点要素的机会数累加到所在像素
// 网格外的点记录警告并跳过，返回是否落在网格内
func (g *Grid) IncrementPoint(lat, lon, amount float64) bool {
	x := webmercator.LonToPixel(lon, g.Extents.Zoom) - g.Extents.West
	y := webmercator.LatToPixel(lat, g.Extents.Zoom) - g.Extents.North
	if !g.Extents.Contains(x, y) {
		log.Warnf("%v opportunities are outside grid bounds, at %v, %v", amount, lon, lat)
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.density[g.index(x, y)] += amount
	g.features++
	return true
}

// PixelWeights 计算面要素与网格各像素的重叠比例
// relativeToPixel为true时权重为像素被覆盖的比例，否则为要素落在该像素内的比例（各像素权重之和为1）
// 面要素与像素均保持WGS84坐标：同一纬度上两者在x方向的畸变相同，因此比例是准确的
func (g *Grid) PixelWeights(polygon geom.Polygonal, relativeToPixel bool) ([]PixelWeight, error) {
	if polygon == nil {
		return nil, fmt.Errorf("%w: nil polygon", ErrInvalidGeometry)
	}
	area := polygon.Area()
	if !(area >= MinFeatureAreaSqDeg) {
		return nil, fmt.Errorf("%w: feature area %g sq deg is too small", ErrInvalidGeometry, area)
	}
	if area > MaxFeatureAreaSqDeg {
		return nil, fmt.Errorf("%w: feature area %g sq deg exceeds limit %v", ErrInvalidGeometry, area, MaxFeatureAreaSqDeg)
	}
	e := g.Extents
	env := polygon.Bounds()
	boundary := rings(polygon)

	weights := make([]PixelWeight, 0)
	// 外层按行（纬度）遍历，同一行的像素面积相同，只需计算一次
	// 墨卡托y轴与纬度方向相反
	for worldY := webmercator.LatToPixel(env.Max.Y, e.Zoom); worldY <= webmercator.LatToPixel(env.Min.Y, e.Zoom); worldY++ {
		y := worldY - e.North
		if y < 0 || y >= e.Height {
			continue
		}
		pixelArea := -1.0
		var edges []segment
		for worldX := webmercator.LonToPixel(env.Min.X, e.Zoom); worldX <= webmercator.LonToPixel(env.Max.X, e.Zoom); worldX++ {
			x := worldX - e.West
			if x < 0 || x >= e.Width {
				continue
			}
			pixel := e.PixelGeometry(x, y)
			if pixelArea < 0 {
				pixelArea = pixel.Area()
				edges = rowSegments(boundary, pixel[0][0].Y, pixel[0][2].Y)
			}
			// 像素完全在面内：无需求交
			if containsPixel(polygon, edges, pixel) {
				weight := 1.0
				if !relativeToPixel {
					weight = pixelArea / area
				}
				weights = append(weights, PixelWeight{X: x, Y: y, Weight: weight})
				continue
			}
			// 像素部分在面内
			intersection := pixel.Intersection(polygon)
			if intersection == nil {
				continue
			}
			overlap := intersection.Area()
			if overlap <= 0 {
				continue
			}
			denominator := area
			if relativeToPixel {
				denominator = pixelArea
			}
			weights = append(weights, PixelWeight{X: x, Y: y, Weight: overlap / denominator})
		}
	}
	return weights, nil
}

type segment struct {
	a, b geom.Point
}

func rings(polygon geom.Polygonal) [][]geom.Point {
	out := make([][]geom.Point, 0)
	for _, p := range polygon.Polygons() {
		for _, r := range p {
			if len(r) > 0 {
				out = append(out, r)
			}
		}
	}
	return out
}

// rowSegments 与纬度带[minLat, maxLat]相交的边界线段
func rowSegments(rings [][]geom.Point, minLat, maxLat float64) []segment {
	out := make([]segment, 0)
	for _, r := range rings {
		for i := range r {
			a, b := r[i], r[(i+1)%len(r)]
			if math.Max(a.Y, b.Y) >= minLat && math.Min(a.Y, b.Y) <= maxLat {
				out = append(out, segment{a: a, b: b})
			}
		}
	}
	return out
}

// touchesBox 线段是否与闭合矩形有公共点（Liang–Barsky裁剪）
func (s segment) touchesBox(minX, minY, maxX, maxY float64) bool {
	dx, dy := s.b.X-s.a.X, s.b.Y-s.a.Y
	t0, t1 := 0.0, 1.0
	clip := func(p, q float64) bool {
		if p == 0 {
			// 与该边界平行，起点在外侧则不相交
			return q >= 0
		}
		r := q / p
		if p < 0 {
			if r > t1 {
				return false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return false
			}
			t1 = math.Min(t1, r)
		}
		return true
	}
	return clip(-dx, s.a.X-minX) && clip(dx, maxX-s.a.X) &&
		clip(-dy, s.a.Y-minY) && clip(dy, maxY-s.a.Y)
}

// containsPixel 像素是否严格位于面内部
// 面的边界不触及像素包围盒时，像素整体在面内或整体在面外，由像素中心决定
// 边界触及像素时返回false，交给求交路径处理
func containsPixel(polygon geom.Polygonal, edges []segment, pixel geom.Polygon) bool {
	minLon, minLat := pixel[0][0].X, pixel[0][0].Y
	maxLon, maxLat := pixel[0][2].X, pixel[0][2].Y
	for _, s := range edges {
		if s.touchesBox(minLon, minLat, maxLon, maxLat) {
			return false
		}
	}
	center := geom.Point{X: (minLon + maxLon) / 2, Y: (minLat + maxLat) / 2}
	return center.Within(polygon) == geom.Inside
}

// ApplyWeights 按权重将机会数累加到网格，网格外的权重被丢弃
func (g *Grid) ApplyWeights(weights []PixelWeight, value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	dropped := 0
	for _, w := range weights {
		if !g.Extents.Contains(w.X, w.Y) {
			dropped++
			continue
		}
		g.density[g.index(w.X, w.Y)] += w.Weight * value
	}
	if dropped > 0 {
		log.Debugf("%d pixel weights outside %v dropped", dropped, g.Extents)
	}
	g.features++
}

// Rasterize 将面要素的机会数按面积比例分配到各像素（总量守恒）
// 多个同尺寸图层共用同一批要素时，应先调用一次PixelWeights再对各图层ApplyWeights
func (g *Grid) Rasterize(polygon geom.Polygonal, value float64) error {
	weights, err := g.PixelWeights(polygon, false)
	if err != nil {
		return err
	}
	g.ApplyWeights(weights, value)
	return nil
}

// RasterizeFeatures 批量栅格化
// 面要素的像素权重并行计算，最后串行写入网格；无效几何记录并跳过，不中断整批
func (g *Grid) RasterizeFeatures(ctx context.Context, features []Feature, workers int) (RasterizeReport, error) {
	var report RasterizeReport
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	weights := make([][]PixelWeight, len(features))
	invalid := make([]bool, len(features))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, f := range features {
		if f.Polygon == nil {
			continue
		}
		i, f := i, f
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			w, err := g.PixelWeights(f.Polygon, false)
			if errors.Is(err, ErrInvalidGeometry) {
				log.Warnf("skip feature %d: %v", i, err)
				invalid[i] = true
				return nil
			}
			weights[i] = w
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for i, f := range features {
		switch {
		case f.Polygon != nil:
			if invalid[i] {
				report.Invalid++
				continue
			}
			g.ApplyWeights(weights[i], f.Value)
			report.Polygons++
		case f.Point != nil:
			if g.IncrementPoint(f.Point.Y, f.Point.X, f.Value) {
				report.Points++
			} else {
				report.OutOfBounds++
			}
		default:
			log.Warnf("skip feature %d: no geometry", i)
			report.Invalid++
		}
	}
	log.Infof("rasterized %d polygons and %d points into %v, %d outside, %d invalid",
		report.Polygons, report.Points, g, report.OutOfBounds, report.Invalid)
	return report, nil
}

// FromPoints 以点集的包围盒（外扩约1米）建网格并写入所有点
func FromPoints(points []WeightedPoint, zoom int) (*Grid, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no points", ErrInvalidGeometry)
	}
	b := &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, p := range points {
		b.Min.X = math.Min(b.Min.X, p.Lon)
		b.Min.Y = math.Min(b.Min.Y, p.Lat)
		b.Max.X = math.Max(b.Max.X, p.Lon)
		b.Max.Y = math.Max(b.Max.Y, p.Lat)
	}
	extents, err := webmercator.ForBufferedWGSBounds(b, zoom)
	if err != nil {
		return nil, err
	}
	g, err := New(extents)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		g.IncrementPoint(p.Lat, p.Lon, p.Amount)
	}
	return g, nil
}
