package reducer

import (
	"math"
	"slices"

	"github.com/samber/lo"
)

// percentileIndex 长度为n的有序数组中百分位p（不插值）所在的下标
// 定义：最小的值，使不超过p%的数据严格小于它，且至少p%的数据小于等于它；第100百分位为最大值
// 一基下标为ceil(p/100·n)，这里换算为零基并限制在[0, n-1]
func percentileIndex(n int, p float64) int {
	index := int(math.Ceil(p/100*float64(n))) - 1
	return lo.Clamp(index, 0, n-1)
}

// sorter 对每个目的地的出行时间样本原地排序
// 样本较多时使用按秒计数的计数排序，直方图在目的地之间复用；
// 超过最大出行时间的值（含Unreached）单独排序后放在最后
type sorter struct {
	histogram []int32
	overflow  []int32
	counting  bool
}

func newSorter(samples, maxTripSeconds int) *sorter {
	s := &sorter{counting: samples >= CountingSortThreshold}
	if s.counting {
		s.histogram = make([]int32, maxTripSeconds)
		s.overflow = make([]int32, 0, samples)
	}
	return s
}

func (s *sorter) sort(times []int32) {
	if !s.counting {
		slices.Sort(times)
		return
	}
	s.overflow = s.overflow[:0]
	for _, t := range times {
		if int(t) < len(s.histogram) {
			s.histogram[t]++
		} else {
			s.overflow = append(s.overflow, t)
		}
	}
	i := 0
	for v, n := range s.histogram {
		for ; n > 0; n-- {
			times[i] = int32(v)
			i++
		}
		s.histogram[v] = 0
	}
	slices.Sort(s.overflow)
	copy(times[i:], s.overflow)
}
