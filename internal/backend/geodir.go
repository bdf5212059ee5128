package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var ErrNotFound = errors.New("not found")

const geojsonExt = ".geojson"

var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// GeoDir：GEOJSON_DIR 下的 {id}.geojson
type GeoDir struct {
	Dir string
}

// ValidID：只允许字母数字与 . _ -，且不能以点开头
func ValidID(id string) bool {
	return validID.MatchString(id) && !strings.HasPrefix(id, ".")
}

func (g GeoDir) Path(id string) string { return filepath.Join(g.Dir, id+geojsonExt) }

// Read：非法标识与缺失文件都返回 ErrNotFound
func (g GeoDir) Read(_ context.Context, id string) ([]byte, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("boundary %q: %w", id, ErrNotFound)
	}
	b, err := os.ReadFile(g.Path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("boundary %q: %w", id, ErrNotFound)
	}
	return b, err
}

// IDs：目录中的全部标识，升序
func (g GeoDir) IDs() ([]string, error) {
	entries, err := os.ReadDir(g.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if id, ok := IDFromPath(e.Name()); ok && !e.IsDir() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

// IDFromPath：文件名 -> 标识；非 .geojson 返回 false
func IDFromPath(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.EqualFold(filepath.Ext(base), geojsonExt) {
		return "", false
	}
	id := base[:len(base)-len(geojsonExt)]
	return id, ValidID(id)
}
