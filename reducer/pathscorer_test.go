package reducer_test

import (
	"testing"

	"git.fiblab.net/sim/accessibility/reducer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transitPath struct {
	routes    string
	transfers int
}

func (p transitPath) Transfers() int { return p.transfers }

func TestTopPaths(t *testing.T) {
	direct := transitPath{routes: "1", transfers: 0}
	oneTransfer := transitPath{routes: "2>5", transfers: 1}
	twoTransfers := transitPath{routes: "3>4>7", transfers: 2}
	paths := []transitPath{direct, oneTransfer, direct, {}, twoTransfers, oneTransfer}
	times := []int32{1500, 1200, 1800, 900, 1210, reducer.Unreached}

	s, err := reducer.NewPathScorer(paths, times)
	require.NoError(t, err)
	// 零值路径与不可达样本被忽略
	assert.Equal(t, 4, s.Len())

	// 目标1200：oneTransfer得分300，direct得分300，twoTransfers得分610
	assert.Equal(t, []transitPath{direct, oneTransfer, twoTransfers}, s.TopPaths(3, 1200))
	assert.Equal(t, []transitPath{direct}, s.TopPaths(1, 1200))
	// 去重后不足n条
	assert.Len(t, s.TopPaths(10, 1200), 3)
	// 目标1800：direct得分0
	assert.Equal(t, direct, s.TopPaths(2, 1800)[0])

	assert.Empty(t, s.TopPaths(3, reducer.Unreached))
	assert.Empty(t, s.TopPaths(0, 1200))
}

func TestPathScorerLengthMismatch(t *testing.T) {
	_, err := reducer.NewPathScorer([]transitPath{{routes: "1"}}, nil)
	assert.ErrorIs(t, err, reducer.ErrMalformedInput)
}

func TestTopPathsTieKeepsInputOrder(t *testing.T) {
	early := transitPath{routes: "8", transfers: 0}
	late := transitPath{routes: "9", transfers: 0}
	s, err := reducer.NewPathScorer([]transitPath{early, late}, []int32{1000, 1400})
	require.NoError(t, err)

	assert.Equal(t, []transitPath{early}, s.TopPaths(1, 1200))
	// 之前以其他目标排序不影响同分时的顺序
	assert.Equal(t, []transitPath{late}, s.TopPaths(1, 1400))
	assert.Equal(t, []transitPath{early}, s.TopPaths(1, 1200))
	assert.Equal(t, []transitPath{early, late}, s.TopPaths(2, 1200))
}
