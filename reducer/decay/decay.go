// Package decay 出行时间衰减函数：将到达机会点的出行时间映射为[0, 1]内的权重
//
// 每个函数至少有一个参数cutoff（截止时间），即权重由1降到0过程的中点；
// 部分函数另有参数控制过渡区间的宽度。函数关于出行时间单调不增。
package decay

import (
	"errors"
	"fmt"
	"math"
)

const (
	TwoHoursInSeconds  = 2 * 60 * 60
	FourHoursInSeconds = 4 * 60 * 60
	// 权重低于此值视为0
	ZeroEpsilon = 0.001

	// 函数类型，与配置文件中的type字段对应
	TypeStep             = "step"
	TypeLinear           = "linear"
	TypeLogistic         = "logistic"
	TypeExponential      = "exponential"
	TypeFixedExponential = "fixed-exponential"
)

var (
	// 错误：参数不合法或函数不满足单调、值域等约束
	ErrInvalidParameter = errors.New("invalid decay function parameter")
)

// Function 衰减函数，仅限本包定义的几种实现
//
// ReachesZeroAt 给定cutoff，返回权重恒为0的最小出行时间（秒），用于提前终止累加
// ComputeWeight 出行时间travelTimeSeconds处的权重，取值[0, 1]
type Function interface {
	ReachesZeroAt(cutoffSeconds int) int
	ComputeWeight(cutoffSeconds, travelTimeSeconds int) float64
	Type() string

	sealed()
}

// Spec 衰减函数配置
type Spec struct {
	Type                     string  `yaml:"type" validate:"required,oneof=step linear logistic exponential fixed-exponential"`
	WidthMinutes             float64 `yaml:"widthMinutes" validate:"gte=0"`
	StandardDeviationMinutes float64 `yaml:"standardDeviationMinutes" validate:"gte=0"`
	DecayConstant            float64 `yaml:"decayConstant" validate:"gte=0"`
}

// New 按配置构造衰减函数，并检查其满足约束
func New(spec Spec) (Function, error) {
	var f Function
	switch spec.Type {
	case TypeStep, "":
		f = Step{}
	case TypeLinear:
		if spec.WidthMinutes < 0 || math.IsNaN(spec.WidthMinutes) {
			return nil, fmt.Errorf("%w: linear width %v minutes must be non-negative", ErrInvalidParameter, spec.WidthMinutes)
		}
		f = Linear{WidthMinutes: spec.WidthMinutes}
	case TypeLogistic:
		if !(spec.StandardDeviationMinutes > 0) {
			return nil, fmt.Errorf("%w: logistic standard deviation %v minutes must be positive", ErrInvalidParameter, spec.StandardDeviationMinutes)
		}
		f = NewLogistic(spec.StandardDeviationMinutes)
	case TypeExponential:
		f = Exponential{}
	case TypeFixedExponential:
		if !(spec.DecayConstant > 0) || math.IsInf(spec.DecayConstant, 1) {
			return nil, fmt.Errorf("%w: decay constant %v must be positive", ErrInvalidParameter, spec.DecayConstant)
		}
		f = FixedExponential{DecayConstant: spec.DecayConstant}
	default:
		return nil, fmt.Errorf("%w: unknown decay function type %q", ErrInvalidParameter, spec.Type)
	}
	if err := Validate(f); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate 以30分钟为cutoff检查函数：零点在四小时以内且确实接近0，
// 两小时内权重在[0, 1]内且单调不增
func Validate(f Function) error {
	const cutoffSeconds = 30 * 60
	zero := f.ReachesZeroAt(cutoffSeconds)
	if zero < 0 || zero >= FourHoursInSeconds {
		return fmt.Errorf("%w: %s zero point %d outside [0, %d)", ErrInvalidParameter, f.Type(), zero, FourHoursInSeconds)
	}
	if w := f.ComputeWeight(cutoffSeconds, zero); math.Abs(w) >= ZeroEpsilon {
		return fmt.Errorf("%w: %s weight %v at zero point %d is not close to zero", ErrInvalidParameter, f.Type(), w, zero)
	}
	prev := math.Inf(1)
	for s := 0; s <= TwoHoursInSeconds; s++ {
		w := f.ComputeWeight(cutoffSeconds, s)
		if !(w >= 0 && w <= 1) {
			return fmt.Errorf("%w: %s weight %v at %d seconds outside [0, 1]", ErrInvalidParameter, f.Type(), w, s)
		}
		if w > prev {
			return fmt.Errorf("%w: %s is not monotonically decreasing at %d seconds", ErrInvalidParameter, f.Type(), s)
		}
		prev = w
	}
	return nil
}

// findZeroPoint 二分查找权重首次低于ZeroEpsilon的出行时间，范围[low, 四小时]
func findZeroPoint(f Function, cutoffSeconds, low int) int {
	high := FourHoursInSeconds
	for low < high {
		mid := (low + high) / 2
		if f.ComputeWeight(cutoffSeconds, mid) < ZeroEpsilon {
			high = mid
		} else {
			low = mid + 1
		}
	}
	return low
}
