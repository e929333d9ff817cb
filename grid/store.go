package grid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// DefaultStoreCapacity 默认缓存的网格数
const DefaultStoreCapacity = 64

// Store 按key加载网格并缓存
// 同一key的并发请求只触发一次加载，其余请求等待其结果
// 超过容量时按加载顺序淘汰最早的网格
type Store struct {
	source   Source
	cache    FileSource
	capacity int

	grids *xsync.MapOf[string, *Grid]
	group singleflight.Group

	mu    sync.Mutex
	order []string

	loads atomic.Int64
}

// NewStore cacheDir为空表示不使用本地磁盘缓存
func NewStore(source Source, capacity int, cacheDir string) *Store {
	if capacity < 1 {
		capacity = DefaultStoreCapacity
	}
	return &Store{
		source:   source,
		cache:    FileSource{Dir: cacheDir},
		capacity: capacity,
		grids:    xsync.NewMapOf[string, *Grid](),
	}
}

// Get 获取网格，返回的网格由所有调用者共享，只读使用
func (s *Store) Get(ctx context.Context, key string) (*Grid, error) {
	if g, ok := s.grids.Load(key); ok {
		return g, nil
	}
	// 加载由所有等待者共享，不随首个调用者取消；每个调用者只按自己的ctx放弃等待
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		if g, ok := s.grids.Load(key); ok {
			return g, nil
		}
		g, err := s.load(loadCtx, key)
		if err != nil {
			return nil, err
		}
		s.insert(key, g)
		return g, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to load grid %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to load grid %s: %w", key, res.Err)
		}
		if res.Shared {
			log.Debugf("grid %s load shared between concurrent requests", key)
		}
		return res.Val.(*Grid), nil
	}
}

// Put 缓存网格，数据源支持写回时同时写回
func (s *Store) Put(ctx context.Context, key string, g *Grid) error {
	if sink, ok := s.source.(Sink); ok {
		var buf bytes.Buffer
		if err := g.Write(&buf); err != nil {
			return err
		}
		if err := sink.Save(ctx, key, buf.Bytes()); err != nil {
			return fmt.Errorf("failed to save grid %s: %w", key, err)
		}
	}
	g.Name = key
	s.insert(key, g)
	return nil
}

// Len 当前缓存的网格数
func (s *Store) Len() int {
	return s.grids.Size()
}

// Loads 实际执行的加载次数
func (s *Store) Loads() int64 {
	return s.loads.Load()
}

// load 先读本地磁盘缓存，未命中时从数据源下载并写入缓存
func (s *Store) load(ctx context.Context, key string) (*Grid, error) {
	s.loads.Add(1)
	if s.cache.Dir != "" {
		f, err := s.cache.Open(ctx, key)
		if err == nil {
			defer f.Close()
			g, err := Read(f)
			if err == nil {
				g.Name = key
				log.Debugf("grid %s loaded from cache %s", key, s.cache.Dir)
				return g, nil
			}
			log.Warnf("ignore broken cache of %s in %s: %v", key, s.cache.Dir, err)
		} else if !errors.Is(err, ErrNotFound) {
			log.Warnf("failed to open cache of %s in %s: %v", key, s.cache.Dir, err)
		}
	}

	r, err := s.source.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	g, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	g.Name = key
	if s.cache.Dir != "" {
		if err := s.cache.Save(ctx, key, data); err != nil {
			log.Warnf("failed to write cache of %s in %s: %v", key, s.cache.Dir, err)
		}
	}
	log.Infof("grid %s loaded: %v, total %.1f opportunities", key, g.Extents, g.Sum())
	return g, nil
}

func (s *Store) insert(key string, g *Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, loaded := s.grids.LoadAndStore(key, g); !loaded {
		s.order = append(s.order, key)
	}
	for len(s.order) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		s.grids.Delete(oldest)
		log.Debugf("grid %s evicted", oldest)
	}
}

// Close 清空缓存
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grids.Clear()
	s.order = nil
}

var _ Source = FileSource{}
var _ Sink = FileSource{}
var _ Source = MongoSource{}
var _ Sink = MongoSource{}
