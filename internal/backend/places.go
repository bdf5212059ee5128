package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"paman-dede/internal/record"
	"paman-dede/internal/sheet"
)

// PlaceReader：设施数据来源
type PlaceReader interface {
	ReadPlaces(ctx context.Context) ([]record.PlaceRecord, error)
}

// PlaceFile：按扩展名读取 .xlsx 或 .json
type PlaceFile struct {
	Path string
}

func (f PlaceFile) ReadPlaces(_ context.Context) ([]record.PlaceRecord, error) {
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".xlsx", ".xlsm":
		return ReadPlacesXLSX(f.Path)
	case ".json":
		return ReadPlacesJSON(f.Path)
	}
	return nil, fmt.Errorf("place data %s: unsupported file type", f.Path)
}

// ReadPlacesXLSX：读取第一个工作表，首行为表头
// 约束：空行跳过；短行按缺失单元格为空处理
func ReadPlacesXLSX(path string) ([]record.PlaceRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("place data: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("place data %s: %w", path, sheet.ErrEmpty)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("place data: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("place data %s: %w", path, sheet.ErrEmpty)
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	out := make([]sheet.Row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		row := make(sheet.Row, len(header))
		for i, h := range header {
			if i < len(cells) {
				row[h] = strings.TrimSpace(cells[i])
			} else {
				row[h] = ""
			}
		}
		out = append(out, row)
	}
	return record.PlacesFromRows(header, out)
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ReadPlacesJSON：与 /api/place-data 同形的 JSON 数组
func ReadPlacesJSON(path string) ([]record.PlaceRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("place data: %w", err)
	}
	var out []record.PlaceRecord
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("place data %s: %w", path, err)
	}
	return out, nil
}

// PlaceLister：store.Store
type PlaceLister interface {
	ListPlaces(ctx context.Context) ([]record.PlaceRecord, error)
}

// PlaceDB：PLACE_SOURCE=postgres
type PlaceDB struct {
	Store PlaceLister
}

func (d PlaceDB) ReadPlaces(ctx context.Context) ([]record.PlaceRecord, error) {
	return d.Store.ListPlaces(ctx)
}
