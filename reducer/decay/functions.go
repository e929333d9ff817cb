package decay

import (
	"math"
)

// Step 阶跃函数，出行时间小于cutoff时权重为1，否则为0
type Step struct{}

func (Step) ReachesZeroAt(cutoffSeconds int) int {
	return cutoffSeconds
}

func (Step) ComputeWeight(cutoffSeconds, travelTimeSeconds int) float64 {
	if travelTimeSeconds < cutoffSeconds {
		return 1
	}
	return 0
}

func (Step) Type() string { return TypeStep }
func (Step) sealed()      {}

// Linear 在[cutoff - w/2, cutoff + w/2]内由1线性降到0，宽度为0时退化为阶跃函数
type Linear struct {
	WidthMinutes float64
}

func (f Linear) halfWidthSeconds() int {
	return int(math.Round(f.WidthMinutes * 60 / 2))
}

func (f Linear) ReachesZeroAt(cutoffSeconds int) int {
	return cutoffSeconds + f.halfWidthSeconds()
}

func (f Linear) ComputeWeight(cutoffSeconds, travelTimeSeconds int) float64 {
	half := f.halfWidthSeconds()
	if half <= 0 {
		return Step{}.ComputeWeight(cutoffSeconds, travelTimeSeconds)
	}
	start := cutoffSeconds - half
	end := cutoffSeconds + half
	switch {
	case travelTimeSeconds <= start:
		return 1
	case travelTimeSeconds >= end:
		return 0
	default:
		return float64(end-travelTimeSeconds) / float64(end-start)
	}
}

func (Linear) Type() string { return TypeLinear }
func (Linear) sealed()      {}

// Logistic 逻辑斯蒂（S形）衰减，cutoff处权重为0.5
// 标准差σ对应的尺度参数 s = σ·√3/π
type Logistic struct {
	StandardDeviationMinutes float64

	scaleSeconds float64
}

func NewLogistic(standardDeviationMinutes float64) Logistic {
	return Logistic{
		StandardDeviationMinutes: standardDeviationMinutes,
		scaleSeconds:             standardDeviationMinutes * 60 * math.Sqrt(3) / math.Pi,
	}
}

func (f Logistic) ReachesZeroAt(cutoffSeconds int) int {
	return findZeroPoint(f, cutoffSeconds, cutoffSeconds)
}

func (f Logistic) ComputeWeight(cutoffSeconds, travelTimeSeconds int) float64 {
	s := f.scaleSeconds
	if s <= 0 {
		s = f.StandardDeviationMinutes * 60 * math.Sqrt(3) / math.Pi
	}
	return 1 / (1 + math.Exp(float64(travelTimeSeconds-cutoffSeconds)/s))
}

func (Logistic) Type() string { return TypeLogistic }
func (Logistic) sealed()      {}

// Exponential 半衰期为cutoff的指数衰减：2^(-t/cutoff)
// t<=0时为1，两小时及以上为0，低于ZeroEpsilon截断为0
type Exponential struct{}

func (f Exponential) ReachesZeroAt(cutoffSeconds int) int {
	return findZeroPoint(f, cutoffSeconds, max(cutoffSeconds, 0))
}

func (Exponential) ComputeWeight(cutoffSeconds, travelTimeSeconds int) float64 {
	if travelTimeSeconds <= 0 {
		return 1
	}
	if cutoffSeconds <= 0 || travelTimeSeconds >= TwoHoursInSeconds {
		return 0
	}
	w := math.Exp2(-float64(travelTimeSeconds) / float64(cutoffSeconds))
	if w < ZeroEpsilon {
		return 0
	}
	return w
}

func (Exponential) Type() string { return TypeExponential }
func (Exponential) sealed()      {}

// FixedExponential 固定衰减常数k的指数衰减：exp(-k·t)，忽略cutoff
type FixedExponential struct {
	DecayConstant float64
}

func (f FixedExponential) ReachesZeroAt(cutoffSeconds int) int {
	return findZeroPoint(f, cutoffSeconds, 0)
}

func (f FixedExponential) ComputeWeight(cutoffSeconds, travelTimeSeconds int) float64 {
	if travelTimeSeconds <= 0 {
		return 1
	}
	w := math.Exp(-f.DecayConstant * float64(travelTimeSeconds))
	if w < ZeroEpsilon {
		return 0
	}
	return w
}

func (FixedExponential) Type() string { return TypeFixedExponential }
func (FixedExponential) sealed()      {}
