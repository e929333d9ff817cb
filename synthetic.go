package main

import (
	"math"

	"git.fiblab.net/sim/accessibility/reducer"
	"git.fiblab.net/sim/accessibility/webmercator"
)

// TravelTimeProvider 给出起点到目的地在各出发时刻的出行时间（秒）与所乘路径
// times与paths长度均为每个目的地的样本数，不可达时为reducer.Unreached与零值路径
type TravelTimeProvider interface {
	Sample(origin, dest int, times []int32, paths []transitPath)
}

// transitPath 一条公交出行：首条线路与换乘次数
type transitPath struct {
	route     int32
	transfers int
}

func (p transitPath) Transfers() int { return p.transfers }

// syntheticTravelTimes 不依赖路网的合成出行时间：
// 直线距离按固定速度行驶，加上每段候车时间，结果只取决于种子与起终点
type syntheticTravelTimes struct {
	extents webmercator.Extents
	seed    int64

	// 米/秒
	speed float64
	// 每段乘车的最长候车时间（秒）
	maxWaitSeconds int
	// 每隔多少米需要一次换乘
	transferMeters float64
	routes         int32
}

func newSyntheticTravelTimes(extents webmercator.Extents, seed int64) *syntheticTravelTimes {
	return &syntheticTravelTimes{
		extents:        extents,
		seed:           seed,
		speed:          6,
		maxWaitSeconds: 10 * 60,
		transferMeters: 4000,
		routes:         20,
	}
}

func (s *syntheticTravelTimes) distanceMeters(origin, dest int) float64 {
	e := s.extents
	ox, oy := webmercator.PixelToMeters(float64(e.West+origin%e.Width)+0.5, float64(e.North+origin/e.Width)+0.5, e.Zoom)
	dx, dy := webmercator.PixelToMeters(float64(e.West+dest%e.Width)+0.5, float64(e.North+dest/e.Width)+0.5, e.Zoom)
	// 墨卡托坐标按纬度缩放为地面距离
	lat := webmercator.PixelToCenterLat(e.North+origin/e.Width, e.Zoom)
	return math.Hypot(ox-dx, oy-dy) * math.Cos(lat*math.Pi/180)
}

func (s *syntheticTravelTimes) Sample(origin, dest int, times []int32, paths []transitPath) {
	distance := s.distanceMeters(origin, dest)
	transfers := min(int(distance/s.transferMeters), 3)
	ride := distance / s.speed
	for i := range times {
		h := splitmix64(uint64(s.seed) ^ uint64(origin)<<40 ^ uint64(dest)<<16 ^ uint64(i))
		// 约2%的出发时刻错过末班车
		if h%50 == 0 && origin != dest {
			times[i] = reducer.Unreached
			paths[i] = transitPath{}
			continue
		}
		wait := 0
		for leg := 0; leg <= transfers; leg++ {
			h = splitmix64(h)
			wait += int(h % uint64(s.maxWaitSeconds))
		}
		t := int64(ride) + int64(wait)
		if t >= reducer.Unreached {
			t = reducer.Unreached
		}
		times[i] = int32(t)
		paths[i] = transitPath{route: 1 + int32((h>>32)%uint64(s.routes)), transfers: transfers}
	}
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
