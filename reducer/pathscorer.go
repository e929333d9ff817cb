package reducer

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Path 到达目的地的一条公交路径，相等即为同一路径
type Path interface {
	comparable
	Transfers() int
}

type pathScore[P Path] struct {
	path       P
	travelTime int32
	score      int64
}

// PathScorer 对到达同一目的地的所有路径按与目标出行时间的接近程度排序，
// 选出最具代表性的若干条
type PathScorer[P Path] struct {
	scores []pathScore[P]
}

// NewPathScorer paths与travelTimes一一对应，零值路径与不可达的出行时间被忽略
func NewPathScorer[P Path](paths []P, travelTimes []int32) (*PathScorer[P], error) {
	if len(paths) != len(travelTimes) {
		return nil, fmt.Errorf("%w: %d paths but %d travel times", ErrMalformedInput, len(paths), len(travelTimes))
	}
	var zero P
	scores := make([]pathScore[P], 0, len(paths))
	for i, p := range paths {
		if p == zero || travelTimes[i] == Unreached {
			continue
		}
		scores = append(scores, pathScore[P]{path: p, travelTime: travelTimes[i]})
	}
	return &PathScorer[P]{scores: scores}, nil
}

// TopPaths 与目标出行时间最接近的至多n条不同路径，得分越小越好：
// 换乘次数×5分钟 + |目标出行时间 - 路径出行时间|
// 目标不可达时返回空
func (s *PathScorer[P]) TopPaths(n int, target int32) []P {
	if target == Unreached || n <= 0 {
		return []P{}
	}
	// 在副本上排序，同分路径始终保持输入顺序
	scores := slices.Clone(s.scores)
	for i := range scores {
		ps := &scores[i]
		distance := int64(target) - int64(ps.travelTime)
		if distance < 0 {
			distance = -distance
		}
		ps.score = int64(ps.path.Transfers())*TransferPenaltySeconds + distance
	}
	slices.SortStableFunc(scores, func(a, b pathScore[P]) int {
		return cmp.Compare(a.score, b.score)
	})
	distinct := lo.Uniq(lo.Map(scores, func(ps pathScore[P], _ int) P {
		return ps.path
	}))
	return distinct[:min(n, len(distinct))]
}

// Len 参与评分的路径数
func (s *PathScorer[P]) Len() int {
	return len(s.scores)
}
