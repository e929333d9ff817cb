package main

import (
	"context"
	"fmt"
	"sync"

	"git.fiblab.net/sim/accessibility/config"
	"git.fiblab.net/sim/accessibility/grid"
	"git.fiblab.net/sim/accessibility/reducer"
	"git.fiblab.net/sim/accessibility/webmercator"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// OriginResult 单个起点的计算结果
type OriginResult struct {
	Origin int
	*reducer.OneOriginResult
	// 目的地 -> 与中位出行时间最接近的代表性路径
	Paths map[int][]transitPath
}

type AccessibilityServer struct {
	config       *config.AnalysisConfig
	destinations webmercator.Extents
	source       *locatorSource
	store        *grid.Store
	grids        []*grid.Grid
	// 每个目的地保留的代表性路径数，0表示不保留
	pathsPerDestination int

	// 计算开启true或暂停false
	ok bool
	// 条件变量
	cond *sync.Cond
}

func NewAccessibilityServer(
	mongoURI string,
	cfg *config.AnalysisConfig,
	cacheDir string,
	pathsPerDestination int,
) *AccessibilityServer {
	source := &locatorSource{mongoURI: mongoURI}
	store := grid.NewStore(source, grid.DefaultStoreCapacity, cacheDir)

	// 机会网格并行加载
	grids := make([]*grid.Grid, len(cfg.Grids))
	g, ctx := errgroup.WithContext(context.Background())
	for i, locator := range cfg.Grids {
		i, locator := i, locator
		g.Go(func() error {
			l, err := NewLocator(locator)
			if err != nil {
				return err
			}
			grids[i], err = store.Get(ctx, l.String())
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Panicf("failed to load opportunity grids: %v", err)
	}

	destinations, err := cfg.DestinationExtents()
	if err != nil {
		log.Panicf("invalid destinations: %v", err)
	}
	s := &AccessibilityServer{
		config:              cfg,
		destinations:        destinations,
		source:              source,
		store:               store,
		grids:               grids,
		pathsPerDestination: pathsPerDestination,
		ok:                  true, cond: sync.NewCond(&sync.Mutex{}),
	}
	// 提前检查配置，避免每个起点重复报错
	if _, err := s.newReducer(); err != nil {
		log.Panicf("invalid analysis config: %v", err)
	}
	log.Infof("accessibility server ready: destinations %v, grids %v",
		destinations, lo.Map(grids, func(g *grid.Grid, _ int) string { return g.String() }))
	return s
}

func (s *AccessibilityServer) newReducer() (*reducer.TravelTimeReducer, error) {
	opts, err := s.config.ReducerOptions(s.grids)
	if err != nil {
		return nil, err
	}
	return reducer.New(opts)
}

// Destinations 目的地网格范围，起点使用相同的下标
func (s *AccessibilityServer) Destinations() webmercator.Extents {
	return s.destinations
}

// ComputeOrigin 计算一个起点到所有目的地的百分位出行时间与可达性
// 不同起点可并发调用
func (s *AccessibilityServer) ComputeOrigin(ctx context.Context, origin int, provider TravelTimeProvider) (*OriginResult, error) {
	// 暂停-恢复机制
	s.cond.L.Lock()
	for !s.ok {
		// 暂停中
		s.cond.Wait()
	}
	s.cond.L.Unlock()

	if origin < 0 || origin >= s.destinations.Area() {
		return nil, fmt.Errorf("%w: origin %d outside [0, %d)", reducer.ErrMalformedInput, origin, s.destinations.Area())
	}
	r, err := s.newReducer()
	if err != nil {
		return nil, err
	}
	samples := s.config.SamplesPerDestination
	times := make([]int32, samples)
	paths := make([]transitPath, samples)
	result := &OriginResult{Origin: origin}
	if s.pathsPerDestination > 0 {
		result.Paths = make(map[int][]transitPath)
	}
	for dest := 0; dest < s.destinations.Area(); dest++ {
		if dest%s.destinations.Width == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		provider.Sample(origin, dest, times, paths)
		// 排序会改变times，先交给路径评分
		var scorer *reducer.PathScorer[transitPath]
		if s.pathsPerDestination > 0 {
			if scorer, err = reducer.NewPathScorer(paths, times); err != nil {
				return nil, err
			}
		}
		percentileTimes, err := r.ExtractAndRecord(dest, times)
		if err != nil {
			return nil, err
		}
		if scorer != nil {
			median := percentileTimes[len(percentileTimes)/2]
			if top := scorer.TopPaths(s.pathsPerDestination, median); len(top) > 0 {
				result.Paths[dest] = top
			}
		}
	}
	result.OneOriginResult = r.Finish()
	log.Debugf("origin %d finished", origin)
	return result, nil
}

// AccessibilitySurface 以起点为像素的可达性网格：第g个机会网格、第p个百分位、第c个截止时间
func (s *AccessibilityServer) AccessibilitySurface(results []*OriginResult, g, p, c int) (*grid.Grid, error) {
	surface, err := grid.New(s.destinations)
	if err != nil {
		return nil, err
	}
	surface.Name = fmt.Sprintf("accessibility-%d-%d-%d", g, p, c)
	for _, r := range results {
		if r.Accessibility == nil {
			return nil, fmt.Errorf("%w: origin %d has no accessibility", reducer.ErrMalformedInput, r.Origin)
		}
		x, y := r.Origin%s.destinations.Width, r.Origin/s.destinations.Width
		if err := surface.Set(x, y, r.Accessibility.Get(g, p, c)); err != nil {
			return nil, err
		}
	}
	return surface, nil
}

// Save 写出网格到定位符所指位置
func (s *AccessibilityServer) Save(ctx context.Context, locator string, g *grid.Grid) error {
	l, err := NewLocator(locator)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, l.String(), g)
}

// 暂停计算
func (s *AccessibilityServer) Suspend() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = false
}

// 恢复计算
func (s *AccessibilityServer) Resume() {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	s.ok = true
	s.cond.Broadcast()
}

// 关闭服务
func (s *AccessibilityServer) Close() {
	s.store.Close()
	s.source.Close()
}
