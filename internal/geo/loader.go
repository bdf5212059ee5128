package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"paman-dede/internal/logger"
	"paman-dede/internal/metrics"
)

// UnifiedID：旧版编号文件合并后的边界标识
const UnifiedID = "unified"

// Fetcher：按标识取回边界原文
type Fetcher interface {
	FetchBoundary(ctx context.Context, id string) ([]byte, error)
}

// FetcherFunc：函数适配 Fetcher
type FetcherFunc func(ctx context.Context, id string) ([]byte, error)

func (f FetcherFunc) FetchBoundary(ctx context.Context, id string) ([]byte, error) {
	return f(ctx, id)
}

// Report：批量加载结果；Failed 中的条目已记录日志
type Report struct {
	Loaded []string
	Failed map[string]error
}

func (r Report) OK() bool { return len(r.Failed) == 0 }

// Loader：并发加载边界并写入 Cache
type Loader struct {
	Fetcher     Fetcher
	Cache       *Cache
	Concurrency int
	Log         *slog.Logger
}

func NewLoader(f Fetcher, c *Cache, concurrency int) *Loader {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Loader{Fetcher: f, Cache: c, Concurrency: concurrency, Log: logger.For("geo")}
}

// LoadAll：逐标识并发获取与解析
// 背景：17 个村界常有个别缺失，部分成功是常态
// 约束：单项失败只记录到 Report，不会使整批失败；ctx 取消后未开始的项记为失败
func (l *Loader) LoadAll(ctx context.Context, ids []string) Report {
	rep := Report{Failed: make(map[string]error)}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			b, err := l.Load(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				rep.Failed[id] = err
				return nil
			}
			rep.Loaded = append(rep.Loaded, b.ID)
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(rep.Loaded)
	return rep
}

// Load：取回并解析单个边界；成功时写入缓存
func (l *Loader) Load(ctx context.Context, id string) (*Boundary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := l.Fetcher.FetchBoundary(ctx, id)
	if err != nil {
		metrics.BoundaryLoadTotal.WithLabelValues("fetch_error").Inc()
		l.Log.Warn("boundary_load_skip", "id", id, "err", err)
		return nil, err
	}
	b, err := ParseBoundary(id, raw)
	if err != nil {
		result := "parse_error"
		if errors.Is(err, ErrEmptyGeometry) {
			result = "empty"
		}
		metrics.BoundaryLoadTotal.WithLabelValues(result).Inc()
		l.Log.Warn("boundary_load_skip", "id", id, "err", err)
		return nil, err
	}
	l.Cache.Put(b)
	metrics.BoundaryLoadTotal.WithLabelValues("ok").Inc()
	l.Log.Debug("boundary_loaded", "id", id, "geometries", len(b.Geometries))
	return b, nil
}

// LoadNumbered：旧版布局，依次读取 1..n 号文件并合并为 UnifiedID
// 约束：顺序读取；缺失的编号跳过；不会按村写入缓存
func (l *Loader) LoadNumbered(ctx context.Context, n int) (*Boundary, error) {
	parts := make([]*Boundary, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := strconv.Itoa(i)
		raw, err := l.Fetcher.FetchBoundary(ctx, key)
		if err != nil {
			l.Log.Warn("boundary_numbered_skip", "index", i, "err", err)
			continue
		}
		b, err := ParseBoundary(key, raw)
		if err != nil {
			l.Log.Warn("boundary_numbered_skip", "index", i, "err", err)
			continue
		}
		parts = append(parts, b)
	}
	merged, err := Merge(UnifiedID, parts)
	if err != nil {
		return nil, fmt.Errorf("numbered boundaries: %w", err)
	}
	return merged, nil
}
