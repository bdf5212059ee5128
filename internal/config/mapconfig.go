package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidMapConfig = errors.New("invalid map config")

// MapConfig：/api/config 响应体，字段名与前端契约保持一致
type MapConfig struct {
	Years     []string     `json:"YEARS"`
	MapBounds [][2]float64 `json:"MAP_BOUNDS"`
	DesaIDs   []string     `json:"desaIds"`
}

// ParseMapConfig：解析 YEARS / MAP_BOUNDS / DESA_IDS 三项原始文本
// 约束：YEARS 不可为空；MAP_BOUNDS 必须是两个 [lat,lng] 点；DESA_IDS 允许为空
func ParseMapConfig(years, bounds, desaIDs string) (*MapConfig, error) {
	mc := &MapConfig{Years: SplitList(years), DesaIDs: SplitList(desaIDs)}
	if len(mc.Years) == 0 {
		return nil, fmt.Errorf("%w: YEARS is empty", ErrInvalidMapConfig)
	}
	b, err := ParseBounds(bounds)
	if err != nil {
		return nil, err
	}
	mc.MapBounds = b
	if mc.DesaIDs == nil {
		mc.DesaIDs = []string{}
	}
	return mc, nil
}

// ParseBounds：解析 [[lat,lng],[lat,lng]] 文本
func ParseBounds(s string) ([][2]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: MAP_BOUNDS is empty", ErrInvalidMapConfig)
	}
	var raw [][]float64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: MAP_BOUNDS: %v", ErrInvalidMapConfig, err)
	}
	if err := validPairs(raw); err != nil {
		return nil, err
	}
	return [][2]float64{{raw[0][0], raw[0][1]}, {raw[1][0], raw[1][1]}}, nil
}

// ValidBounds：判断已解码的 MAP_BOUNDS 是否可用于视口初始化
func (m *MapConfig) ValidBounds() bool {
	if m == nil || len(m.MapBounds) != 2 {
		return false
	}
	raw := [][]float64{m.MapBounds[0][:], m.MapBounds[1][:]}
	return validPairs(raw) == nil
}

func validPairs(raw [][]float64) error {
	if len(raw) != 2 {
		return fmt.Errorf("%w: MAP_BOUNDS needs 2 corners, got %d", ErrInvalidMapConfig, len(raw))
	}
	for _, p := range raw {
		if len(p) != 2 {
			return fmt.Errorf("%w: MAP_BOUNDS corner needs [lat,lng]", ErrInvalidMapConfig)
		}
		if p[0] < -90 || p[0] > 90 || p[1] < -180 || p[1] > 180 {
			return fmt.Errorf("%w: MAP_BOUNDS corner out of range", ErrInvalidMapConfig)
		}
	}
	return nil
}
