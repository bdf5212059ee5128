package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed villages.yaml
var defaultVillages []byte

var ErrDuplicateVillage = errors.New("duplicate village")

// Village：一条 名称 -> 行政代码 映射
type Village struct {
	Name    string   `yaml:"name"`
	Code    string   `yaml:"code"`
	Aliases []string `yaml:"aliases"`
}

// VillageTable：静态的村名查找表
// 背景：表格数据只有村名，边界文件以行政代码命名；二者只能通过这张表对应。
// 约束：查找不区分大小写并忽略首尾空白；同一名称（含别名）只能出现一次。
type VillageTable struct {
	villages []Village
	byKey    map[string]int
}

// LoadVillageTable：path 为空时使用内置表
func LoadVillageTable(path string) (*VillageTable, error) {
	b := defaultVillages
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	return ParseVillageTable(b)
}

func ParseVillageTable(b []byte) (*VillageTable, error) {
	var doc struct {
		Villages []Village `yaml:"villages"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("villages: %w", err)
	}
	t := &VillageTable{byKey: make(map[string]int)}
	for _, v := range doc.Villages {
		v.Name = strings.TrimSpace(v.Name)
		v.Code = strings.TrimSpace(v.Code)
		if v.Name == "" || v.Code == "" {
			continue
		}
		idx := len(t.villages)
		for _, k := range append([]string{v.Name}, v.Aliases...) {
			key := villageKey(k)
			if key == "" {
				continue
			}
			if _, dup := t.byKey[key]; dup {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateVillage, k)
			}
			t.byKey[key] = idx
		}
		t.villages = append(t.villages, v)
	}
	return t, nil
}

// Code：村名 -> 行政代码
func (t *VillageTable) Code(name string) (string, bool) {
	if t == nil {
		return "", false
	}
	i, ok := t.byKey[villageKey(name)]
	if !ok {
		return "", false
	}
	return t.villages[i].Code, true
}

// Names：表内全部正式名称（不含别名），按字典序
func (t *VillageTable) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.villages))
	for _, v := range t.villages {
		out = append(out, v.Name)
	}
	sort.Strings(out)
	return out
}

// Codes：表内全部代码，按表内顺序
func (t *VillageTable) Codes() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.villages))
	for _, v := range t.villages {
		out = append(out, v.Code)
	}
	return out
}

func (t *VillageTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.villages)
}

func villageKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
