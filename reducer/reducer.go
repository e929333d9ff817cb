package reducer

import (
	"fmt"
	"slices"

	"git.fiblab.net/sim/accessibility/grid"
	"git.fiblab.net/sim/accessibility/reducer/decay"
	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/samber/lo"
)

// Options 单个起点的汇总配置
type Options struct {
	// 百分位，严格递增，取值[0, 100]
	Percentiles []float64
	// 可达性截止时间（分钟），严格递增，取值[MinCutoffMinutes, MaxCutoffMinutes]
	CutoffsMinutes []int
	Decay          decay.Function
	// 每个目的地的出行时间样本数
	SamplesPerDestination int
	// 不小于此出行时间视为不可达，为0时取MaxCutoffMinutes
	MaxTripDurationMinutes int
	// 目的地网格范围，目的地下标为其中的展平下标
	Destinations webmercator.Extents
	// 机会网格，范围必须与Destinations一致；为空时不计算可达性
	Grids []*grid.Grid
	// 是否保留各目的地的百分位出行时间
	RecordTimes bool
}

// TravelTimeReducer 将单个起点到各目的地的出行时间样本汇总为百分位出行时间与累积机会可达性
// 非并发安全：同一起点的目的地必须依次记录；不同起点使用各自的实例，可共享只读的机会网格
type TravelTimeReducer struct {
	percentileIndexes []int
	cutoffsSeconds    []int
	zeroPoints        []int
	decay             decay.Function
	samples           int
	maxTripSeconds    int
	destinations      webmercator.Extents
	grids             []*grid.Grid

	sorter        *sorter
	timeMatrix    *TimeMatrix
	accessibility *AccessibilityResult
	finished      bool
}

func New(opts Options) (*TravelTimeReducer, error) {
	if len(opts.Percentiles) == 0 {
		return nil, fmt.Errorf("%w: at least one percentile is required", ErrMalformedInput)
	}
	for i, p := range opts.Percentiles {
		if !(p >= 0 && p <= 100) {
			return nil, fmt.Errorf("%w: percentile %v outside [0, 100]", ErrMalformedInput, p)
		}
		if i > 0 && p <= opts.Percentiles[i-1] {
			return nil, fmt.Errorf("%w: percentiles %v must be in ascending order", ErrMalformedInput, opts.Percentiles)
		}
	}
	for i, c := range opts.CutoffsMinutes {
		if c < MinCutoffMinutes || c > MaxCutoffMinutes {
			return nil, fmt.Errorf("%w: cutoff %d minutes outside [%d, %d]", ErrMalformedInput, c, MinCutoffMinutes, MaxCutoffMinutes)
		}
		if i > 0 && c <= opts.CutoffsMinutes[i-1] {
			return nil, fmt.Errorf("%w: cutoffs %v must be in ascending order", ErrMalformedInput, opts.CutoffsMinutes)
		}
	}
	if opts.SamplesPerDestination < 1 {
		return nil, fmt.Errorf("%w: samples per destination %d must be positive", ErrMalformedInput, opts.SamplesPerDestination)
	}
	maxTrip := opts.MaxTripDurationMinutes
	if maxTrip == 0 {
		maxTrip = MaxCutoffMinutes
	}
	if maxTrip < 1 {
		return nil, fmt.Errorf("%w: max trip duration %d minutes must be positive", ErrMalformedInput, maxTrip)
	}
	if err := opts.Destinations.Check(); err != nil {
		return nil, err
	}
	if len(opts.Grids) > 0 {
		if opts.Decay == nil {
			return nil, fmt.Errorf("%w: decay function is required for accessibility", ErrMalformedInput)
		}
		if len(opts.CutoffsMinutes) == 0 {
			return nil, fmt.Errorf("%w: at least one cutoff is required for accessibility", ErrMalformedInput)
		}
		// 只在构造时检查一次
		for _, g := range opts.Grids {
			if !g.Extents.Equal(opts.Destinations) {
				return nil, fmt.Errorf("%w: grid %q has extents %v, destinations have %v",
					ErrIncompatibleExtents, g.Name, g.Extents, opts.Destinations)
			}
		}
	}

	opts.Percentiles = slices.Clone(opts.Percentiles)
	opts.CutoffsMinutes = slices.Clone(opts.CutoffsMinutes)
	r := &TravelTimeReducer{
		percentileIndexes: lo.Map(opts.Percentiles, func(p float64, _ int) int {
			return percentileIndex(opts.SamplesPerDestination, p)
		}),
		cutoffsSeconds: lo.Map(opts.CutoffsMinutes, func(c int, _ int) int {
			return c * SecondsPerMinute
		}),
		decay:          opts.Decay,
		samples:        opts.SamplesPerDestination,
		maxTripSeconds: maxTrip * SecondsPerMinute,
		destinations:   opts.Destinations,
		grids:          opts.Grids,
		sorter:         newSorter(opts.SamplesPerDestination, maxTrip*SecondsPerMinute),
	}
	if opts.RecordTimes {
		r.timeMatrix = newTimeMatrix(opts.Destinations, opts.Percentiles)
	}
	if len(opts.Grids) > 0 {
		r.zeroPoints = lo.Map(r.cutoffsSeconds, func(c int, _ int) int {
			return opts.Decay.ReachesZeroAt(c)
		})
		names := lo.Map(opts.Grids, func(g *grid.Grid, _ int) string {
			return g.Name
		})
		r.accessibility = newAccessibilityResult(names, opts.Percentiles, opts.CutoffsMinutes)
	}
	log.Debugf("reducer for %d destinations: percentile indexes %v of %d samples, cutoffs %v, %d grids",
		opts.Destinations.Area(), r.percentileIndexes, r.samples, opts.CutoffsMinutes, len(opts.Grids))
	return r, nil
}

// ExtractAndRecord 从目的地dest的出行时间样本（秒）中提取各百分位并记录
// 注意：times会被原地排序，调用后其顺序不再对应原始样本
// 返回各百分位的出行时间，不小于最大出行时间的值为Unreached
func (r *TravelTimeReducer) ExtractAndRecord(dest int, times []int32) ([]int32, error) {
	if err := r.checkDestination(dest); err != nil {
		return nil, err
	}
	if len(times) != r.samples {
		return nil, fmt.Errorf("%w: expected %d travel times for destination %d, got %d",
			ErrMalformedInput, r.samples, dest, len(times))
	}
	for _, t := range times {
		if t < 0 {
			return nil, fmt.Errorf("%w: negative travel time %d for destination %d", ErrMalformedInput, t, dest)
		}
	}
	r.sorter.sort(times)
	percentileTimes := make([]int32, len(r.percentileIndexes))
	for p, i := range r.percentileIndexes {
		percentileTimes[p] = r.truncate(times[i])
	}
	r.record(dest, percentileTimes)
	return percentileTimes, nil
}

// RecordUnvarying 记录没有随出发时间变化的单一出行时间（步行、骑行、驾车等）
func (r *TravelTimeReducer) RecordUnvarying(dest int, t int32) ([]int32, error) {
	if err := r.checkDestination(dest); err != nil {
		return nil, err
	}
	if t < 0 {
		return nil, fmt.Errorf("%w: negative travel time %d for destination %d", ErrMalformedInput, t, dest)
	}
	percentileTimes := make([]int32, len(r.percentileIndexes))
	for p := range percentileTimes {
		percentileTimes[p] = r.truncate(t)
	}
	r.record(dest, percentileTimes)
	return percentileTimes, nil
}

// Finish 输出结果，之后不能继续记录
func (r *TravelTimeReducer) Finish() *OneOriginResult {
	r.finished = true
	result := &OneOriginResult{
		TimeMatrix:    r.timeMatrix,
		Accessibility: r.accessibility,
	}
	r.timeMatrix = nil
	r.accessibility = nil
	return result
}

func (r *TravelTimeReducer) checkDestination(dest int) error {
	if r.finished {
		return ErrFinished
	}
	if dest < 0 || dest >= r.destinations.Area() {
		return fmt.Errorf("%w: destination %d outside [0, %d)", ErrMalformedInput, dest, r.destinations.Area())
	}
	return nil
}

func (r *TravelTimeReducer) truncate(t int32) int32 {
	if int(t) >= r.maxTripSeconds {
		return Unreached
	}
	return t
}

func (r *TravelTimeReducer) record(dest int, percentileTimes []int32) {
	if r.timeMatrix != nil {
		r.timeMatrix.set(dest, percentileTimes)
	}
	if r.accessibility == nil {
		return
	}
	for g, opportunities := range r.grids {
		count := opportunities.OpportunityCount(dest)
		if count <= 0 {
			continue
		}
		for p, t := range percentileTimes {
			// 百分位递增，之后的百分位也不可达
			if t == Unreached {
				break
			}
			// 截止时间递减，零点只会更早
			for c := len(r.cutoffsSeconds) - 1; c >= 0; c-- {
				if int(t) >= r.zeroPoints[c] {
					break
				}
				r.accessibility.values[g][p][c] += count * r.decay.ComputeWeight(r.cutoffsSeconds[c], int(t))
			}
		}
	}
}
