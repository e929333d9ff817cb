package reducer

import (
	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/samber/lo"
)

// TimeMatrix 单个起点到所有目的地的各百分位出行时间（秒），未记录的目的地为Unreached
type TimeMatrix struct {
	Extents     webmercator.Extents
	Percentiles []float64

	// [百分位][目的地]
	values [][]int32
}

func newTimeMatrix(extents webmercator.Extents, percentiles []float64) *TimeMatrix {
	values := make([][]int32, len(percentiles))
	for p := range values {
		values[p] = make([]int32, extents.Area())
		for i := range values[p] {
			values[p][i] = Unreached
		}
	}
	return &TimeMatrix{
		Extents:     extents,
		Percentiles: percentiles,
		values:      values,
	}
}

func (m *TimeMatrix) set(dest int, times []int32) {
	for p, t := range times {
		m.values[p][dest] = t
	}
}

// Get 第p个百分位下到目的地dest的出行时间
func (m *TimeMatrix) Get(p, dest int) int32 {
	return m.values[p][dest]
}

// Percentile 第p个百分位下到所有目的地的出行时间（副本）
func (m *TimeMatrix) Percentile(p int) []int32 {
	out := make([]int32, len(m.values[p]))
	copy(out, m.values[p])
	return out
}

// Reached 第p个百分位下可达的目的地数
func (m *TimeMatrix) Reached(p int) int {
	return lo.CountBy(m.values[p], func(t int32) bool {
		return t != Unreached
	})
}

// AccessibilityResult 累积机会可达性 [机会网格][百分位][截止时间]
type AccessibilityResult struct {
	GridNames      []string
	Percentiles    []float64
	CutoffsMinutes []int

	values [][][]float64
}

func newAccessibilityResult(gridNames []string, percentiles []float64, cutoffsMinutes []int) *AccessibilityResult {
	values := make([][][]float64, len(gridNames))
	for g := range values {
		values[g] = make([][]float64, len(percentiles))
		for p := range values[g] {
			values[g][p] = make([]float64, len(cutoffsMinutes))
		}
	}
	return &AccessibilityResult{
		GridNames:      gridNames,
		Percentiles:    percentiles,
		CutoffsMinutes: cutoffsMinutes,
		values:         values,
	}
}

// Get 第g个机会网格、第p个百分位、第c个截止时间下的可达机会数
func (a *AccessibilityResult) Get(g, p, c int) float64 {
	return a.values[g][p][c]
}

// Values 全部结果的深拷贝
func (a *AccessibilityResult) Values() [][][]float64 {
	return lo.Map(a.values, func(byPercentile [][]float64, _ int) [][]float64 {
		return lo.Map(byPercentile, func(byCutoff []float64, _ int) []float64 {
			out := make([]float64, len(byCutoff))
			copy(out, byCutoff)
			return out
		})
	})
}

// OneOriginResult 单个起点的计算结果，未开启的部分为nil
type OneOriginResult struct {
	TimeMatrix    *TimeMatrix
	Accessibility *AccessibilityResult
}
