package reducer

import (
	"errors"
	"math"

	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "reducer")

const (
	// 不可达的出行时间，排序时位于最后
	Unreached = math.MaxInt32

	SecondsPerMinute = 60

	// 可达性截止时间（分钟）的允许范围
	MinCutoffMinutes = 1
	MaxCutoffMinutes = 120

	// 每个目的地的样本数不少于此值时使用计数排序
	CountingSortThreshold = 256

	// 换乘惩罚，相当于5分钟出行时间
	TransferPenaltySeconds = 5 * SecondsPerMinute
)

var (
	// 错误：样本数、出行时间、百分位或截止时间不合法
	ErrMalformedInput = errors.New("malformed input")
	// 错误：机会网格与目的地范围不一致
	ErrIncompatibleExtents = webmercator.ErrIncompatibleExtents
	// 错误：结果已输出，不能继续记录
	ErrFinished = errors.New("reducer already finished")
)
