// 包 filter：年份/村庄筛选与文本搜索
package filter

import (
	"sort"
	"strconv"
	"strings"
)

// Selection：当前筛选条件
// 约束：Village 为空表示不限村庄；Years 为空集合时不显示任何项目
type Selection struct {
	Years   map[string]bool `json:"-"`
	Village string          `json:"desa"`
}

// NewSelection：years 全部选中
func NewSelection(years []string, village string) Selection {
	s := Selection{Years: make(map[string]bool, len(years)), Village: strings.TrimSpace(village)}
	for _, y := range years {
		if y = strings.TrimSpace(y); y != "" {
			s.Years[y] = true
		}
	}
	return s
}

func (s Selection) Clone() Selection {
	out := Selection{Years: make(map[string]bool, len(s.Years)), Village: s.Village}
	for y, on := range s.Years {
		if on {
			out.Years[y] = true
		}
	}
	return out
}

// YearList：已选年份，自然序
func (s Selection) YearList() []string {
	out := make([]string, 0, len(s.Years))
	for y, on := range s.Years {
		if on {
			out = append(out, y)
		}
	}
	SortNatural(out)
	return out
}

func (s Selection) HasYear(y string) bool { return s.Years[y] }

// Toggle：切换单个年份，返回副本
func (s Selection) Toggle(y string) Selection {
	out := s.Clone()
	if out.Years[y] {
		delete(out.Years, y)
	} else if y != "" {
		out.Years[y] = true
	}
	return out
}

// SortNatural：两侧均为整数时按数值，否则按字典序；整数排在非整数之前
func SortNatural(xs []string) {
	sort.SliceStable(xs, func(i, j int) bool { return naturalLess(xs[i], xs[j]) })
}

func naturalLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aerr == nil:
		return true
	case berr == nil:
		return false
	}
	return a < b
}
