// 包 backend：地图服务的数据来源（表格代理、设施数据、村界文件）
package backend

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"paman-dede/internal/logger"
	"paman-dede/internal/metrics"
)

var (
	ErrNoSheetURL = errors.New("SHEET_URL is not configured")
	ErrUpstream   = errors.New("upstream sheet fetch failed")
	ErrTooLarge   = errors.New("sheet body exceeds size limit")
)

const maxSheetBytes = 16 << 20

// SheetProxy：代理 SHEET_URL，并在 Redis（可选）与进程内缓存中保存原文
// 背景：表格发布地址响应慢且有频率限制；多实例部署时共享 Redis
// 约束：缓存的是原始字节，解析在会话侧完成；上游非 2xx 不写缓存
type SheetProxy struct {
	url string
	ttl time.Duration
	hc  *http.Client
	rdb *redis.Client
	mem *cache.Cache
	key string
	max int64
	log *slog.Logger
}

// NewSheetProxy：rdb 为 nil 时只使用进程内缓存；ttl<=0 时不缓存
func NewSheetProxy(url string, timeout, ttl time.Duration, rdb *redis.Client) *SheetProxy {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sum := sha1.Sum([]byte(url))
	p := &SheetProxy{
		url: url,
		ttl: ttl,
		hc:  &http.Client{Timeout: timeout},
		rdb: rdb,
		key: "pamandede:sheet:" + hex.EncodeToString(sum[:8]),
		max: maxSheetBytes,
		log: logger.For("sheet_proxy"),
	}
	if ttl > 0 {
		p.mem = cache.New(ttl, 2*ttl)
	}
	return p
}

// Fetch：依次查询进程内缓存、Redis、上游
func (p *SheetProxy) Fetch(ctx context.Context) ([]byte, error) {
	if p.url == "" {
		return nil, ErrNoSheetURL
	}
	if p.mem != nil {
		if v, ok := p.mem.Get(p.key); ok {
			metrics.SheetCacheHitsTotal.WithLabelValues("memory").Inc()
			return v.([]byte), nil
		}
	}
	if p.rdb != nil && p.ttl > 0 {
		b, err := p.rdb.Get(ctx, p.key).Bytes()
		switch {
		case err == nil:
			metrics.SheetCacheHitsTotal.WithLabelValues("redis").Inc()
			p.mem.Set(p.key, b, cache.DefaultExpiration)
			return b, nil
		case !errors.Is(err, redis.Nil):
			p.log.Warn("sheet_cache_redis_error", "err", err)
		}
	}
	b, err := p.fetchUpstream(ctx)
	if err != nil {
		return nil, err
	}
	if p.ttl > 0 {
		p.mem.Set(p.key, b, cache.DefaultExpiration)
		if p.rdb != nil {
			if err := p.rdb.Set(ctx, p.key, b, p.ttl).Err(); err != nil {
				p.log.Warn("sheet_cache_redis_error", "err", err)
			}
		}
	}
	return b, nil
}

func (p *SheetProxy) fetchUpstream(ctx context.Context) ([]byte, error) {
	start := time.Now()
	metrics.SheetFetchTotal.Inc()
	defer func() {
		metrics.SheetFetchDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	}()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		metrics.SheetFetchFailTotal.Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	resp, err := p.hc.Do(req)
	if err != nil {
		metrics.SheetFetchFailTotal.Inc()
		p.log.Error("sheet_fetch_error", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.SheetFetchFailTotal.Inc()
		p.log.Error("sheet_fetch_error", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}
	// 多读一个字节用于判断是否超限，超限时整体失败而不是截断
	b, err := io.ReadAll(io.LimitReader(resp.Body, p.max+1))
	if err != nil {
		metrics.SheetFetchFailTotal.Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if int64(len(b)) > p.max {
		metrics.SheetFetchFailTotal.Inc()
		p.log.Error("sheet_fetch_too_large", "limit", p.max)
		return nil, fmt.Errorf("%w: %w (%d bytes)", ErrUpstream, ErrTooLarge, p.max)
	}
	p.log.Debug("sheet_fetched", "bytes", len(b), "dur_ms", time.Since(start).Milliseconds())
	return b, nil
}

// Invalidate：清除两级缓存，下次 Fetch 直接访问上游
func (p *SheetProxy) Invalidate(ctx context.Context) {
	if p.mem != nil {
		p.mem.Delete(p.key)
	}
	if p.rdb != nil {
		if err := p.rdb.Del(ctx, p.key).Err(); err != nil {
			p.log.Warn("sheet_cache_redis_error", "err", err)
		}
	}
}
