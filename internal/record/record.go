// 包 record：表格行与设施数据到强类型记录的转换；校验集中在此边界完成
package record

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"paman-dede/internal/sheet"
)

var ErrMissingColumn = errors.New("missing required column")

// ProjectRecord：一条村级资金项目
// 约束：坐标无效时 HasCoords=false，记录仍保留（参与分面统计，但不生成标记）
type ProjectRecord struct {
	Name        string  `json:"name"`
	Village     string  `json:"village"`
	Year        string  `json:"year"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	HasCoords   bool    `json:"hasCoords"`
	Description string  `json:"description,omitempty"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	Row         int     `json:"row"`
}

type field int

const (
	fLat field = iota
	fLng
	fName
	fVillage
	fYear
	fDesc
	fImage
	fCode
	fLabel
	fPlaceDesc
)

var fieldNames = map[field]string{
	fLat: "Latitude", fLng: "Longitude", fName: "Nama", fVillage: "Desa", fYear: "TahunAnggaran",
	fDesc: "Keterangan", fImage: "ImageUrl", fCode: "Kode", fLabel: "Keterangan", fPlaceDesc: "Deskripsi",
}

// 表头同义词：按折叠后的键匹配（小写，去空格/下划线/连字符）
var projectSynonyms = map[string]field{
	"latitude": fLat, "lat": fLat,
	"longitude": fLng, "lng": fLng, "lon": fLng, "long": fLng,
	"nama": fName,
	"desa": fVillage,
	"tahunanggaran": fYear, "tahun": fYear,
	"keterangan": fDesc,
	"imageurl": fImage, "image": fImage, "gambar": fImage,
}

var projectRequired = []field{fLat, fLng, fName, fVillage, fYear}

// Schema：表头到字段的解析结果
type Schema struct {
	cols map[field]string
}

func foldKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

func resolve(header []string, synonyms map[string]field, required []field) (*Schema, error) {
	s := &Schema{cols: make(map[field]string)}
	for _, h := range header {
		f, ok := synonyms[foldKey(h)]
		if !ok {
			continue
		}
		if _, seen := s.cols[f]; !seen {
			s.cols[f] = h
		}
	}
	var missing []string
	for _, f := range required {
		if _, ok := s.cols[f]; !ok {
			missing = append(missing, fieldNames[f])
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return s, nil
}

// NewProjectSchema：校验项目表头
// 背景："TahunAnggaran" 在不同版本表格中写作 "Tahun Anggaran"，按折叠键统一识别
func NewProjectSchema(header []string) (*Schema, error) {
	return resolve(header, projectSynonyms, projectRequired)
}

func (s *Schema) get(row sheet.Row, f field) string {
	h, ok := s.cols[f]
	if !ok {
		return ""
	}
	return strings.TrimSpace(row[h])
}

// Project：按 schema 取出一行；row 为 1 起的数据行号
func (s *Schema) Project(row sheet.Row, n int) ProjectRecord {
	p := ProjectRecord{
		Name:        s.get(row, fName),
		Village:     s.get(row, fVillage),
		Year:        s.get(row, fYear),
		Description: s.get(row, fDesc),
		ImageURL:    s.get(row, fImage),
		Row:         n,
	}
	lat, okLat := ParseCoord(s.get(row, fLat))
	lng, okLng := ParseCoord(s.get(row, fLng))
	if okLat && okLng && ValidLatLng(lat, lng) {
		p.Lat, p.Lng, p.HasCoords = lat, lng, true
	}
	return p
}

// ProjectsFromSheet：解析结果 -> 项目记录
// 异常：表头缺少必填列时返回 ErrMissingColumn，视为数据不可用
func ProjectsFromSheet(res *sheet.Result) ([]ProjectRecord, error) {
	s, err := NewProjectSchema(res.Header)
	if err != nil {
		return nil, err
	}
	out := make([]ProjectRecord, 0, len(res.Rows))
	for i, row := range res.Rows {
		out = append(out, s.Project(row, i+1))
	}
	return out, nil
}

// ParseCoord：解析坐标文本
// 约束：仅含一个逗号且无小数点时视为小数逗号（"-7,79"）；NaN/Inf 视为无效
func ParseCoord(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func ValidLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
