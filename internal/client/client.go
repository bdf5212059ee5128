// 包 client：按 /api 契约访问地图服务，实现 view.Source
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paman-dede/internal/config"
	"paman-dede/internal/logger"
	"paman-dede/internal/record"
)

// ErrStatus：非 2xx 响应
var ErrStatus = errors.New("unexpected http status")

// ErrTooLarge：响应体超过上限
var ErrTooLarge = errors.New("response body exceeds size limit")

// maxBody：单个响应体上限
const maxBody = 32 << 20

// Client：base 为 API 根地址，例如 http://localhost:3000/api
type Client struct {
	base string
	hc   *http.Client
	max  int64
	log  *slog.Logger
}

func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), hc: hc, max: maxBody, log: logger.For("client")}
}

// get：返回响应体；非 2xx 时返回包装 ErrStatus 的错误
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	u := c.base + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.max+1))
	c.log.Debug("client_get", "url", u, "status", resp.StatusCode, "bytes", len(body), "dur_ms", time.Since(start).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Path: path}
	}
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.max {
		return nil, fmt.Errorf("%s: %w (%d bytes)", path, ErrTooLarge, c.max)
	}
	return body, nil
}

func (c *Client) FetchConfig(ctx context.Context) (*config.MapConfig, error) {
	b, err := c.get(ctx, "/config")
	if err != nil {
		return nil, err
	}
	var mc config.MapConfig
	if err := json.Unmarshal(b, &mc); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &mc, nil
}

// FetchSheet：原始表格文本；分隔符与编码由调用方识别
func (c *Client) FetchSheet(ctx context.Context) ([]byte, error) {
	return c.get(ctx, "/sheet-data")
}

func (c *Client) FetchPlaces(ctx context.Context) ([]record.PlaceRecord, error) {
	b, err := c.get(ctx, "/place-data")
	if err != nil {
		return nil, err
	}
	var out []record.PlaceRecord
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("place-data: %w", err)
	}
	return out, nil
}

func (c *Client) FetchBoundary(ctx context.Context, id string) ([]byte, error) {
	return c.get(ctx, "/geojson/"+url.PathEscape(id)+".geojson")
}

// StatusError：携带状态码；errors.Is(err, ErrStatus) 为真
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d (%s)", e.Code, e.Path)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// StatusCode：从错误中取出 HTTP 状态码；非状态错误返回 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
