package record

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"paman-dede/internal/sheet"
)

// PlaceRecord：一处公共设施（村公所、卫生所、警所等）
// 约束：Code 对应图标表；不参与年份/村庄筛选
type PlaceRecord struct {
	Code        int
	Label       string
	Description string
	ImageURL    string
	Lat         float64
	Lng         float64
	HasCoords   bool
}

type placeWire struct {
	Kode       json.RawMessage `json:"Kode"`
	Keterangan json.RawMessage `json:"Keterangan"`
	Deskripsi  json.RawMessage `json:"Deskripsi"`
	ImageURL   json.RawMessage `json:"ImageUrl"`
	Latitude   json.RawMessage `json:"Latitude"`
	Longitude  json.RawMessage `json:"Longitude"`
}

// UnmarshalJSON：数字字段同时接受 JSON 数字与数字字符串（表格导出常见）
func (p *PlaceRecord) UnmarshalJSON(b []byte) error {
	var w placeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*p = PlaceRecord{
		Label:       rawText(w.Keterangan),
		Description: rawText(w.Deskripsi),
		ImageURL:    rawText(w.ImageURL),
	}
	p.Code = parseCode(rawText(w.Kode))
	lat, okLat := ParseCoord(rawText(w.Latitude))
	lng, okLng := ParseCoord(rawText(w.Longitude))
	if okLat && okLng && ValidLatLng(lat, lng) {
		p.Lat, p.Lng, p.HasCoords = lat, lng, true
	}
	return nil
}

// MarshalJSON：输出与 /api/place-data 契约一致的字段；无效坐标输出 null
func (p PlaceRecord) MarshalJSON() ([]byte, error) {
	out := struct {
		Kode       int      `json:"Kode"`
		Keterangan string   `json:"Keterangan"`
		Deskripsi  string   `json:"Deskripsi,omitempty"`
		ImageURL   string   `json:"ImageUrl,omitempty"`
		Latitude   *float64 `json:"Latitude"`
		Longitude  *float64 `json:"Longitude"`
	}{Kode: p.Code, Keterangan: p.Label, Deskripsi: p.Description, ImageURL: p.ImageURL}
	if p.HasCoords {
		lat, lng := p.Lat, p.Lng
		out.Latitude, out.Longitude = &lat, &lng
	}
	return json.Marshal(out)
}

func rawText(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ""
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			return strings.TrimSpace(s)
		}
	}
	return strings.TrimSpace(string(b))
}

var placeSynonyms = map[string]field{
	"kode": fCode, "code": fCode,
	"keterangan": fLabel, "nama": fLabel,
	"deskripsi": fPlaceDesc,
	"imageurl": fImage, "image": fImage, "gambar": fImage,
	"latitude": fLat, "lat": fLat,
	"longitude": fLng, "lng": fLng, "lon": fLng, "long": fLng,
}

var placeRequired = []field{fCode, fLabel, fLat, fLng}

func NewPlaceSchema(header []string) (*Schema, error) {
	return resolve(header, placeSynonyms, placeRequired)
}

// Place：表格行 -> 设施记录；Kode 不是整数时为 0，落到默认图标
func (s *Schema) Place(row sheet.Row) PlaceRecord {
	p := PlaceRecord{
		Label:       s.get(row, fLabel),
		Description: s.get(row, fPlaceDesc),
		ImageURL:    s.get(row, fImage),
	}
	p.Code = parseCode(s.get(row, fCode))
	lat, okLat := ParseCoord(s.get(row, fLat))
	lng, okLng := ParseCoord(s.get(row, fLng))
	if okLat && okLng && ValidLatLng(lat, lng) {
		p.Lat, p.Lng, p.HasCoords = lat, lng, true
	}
	return p
}

// PlacesFromRows：header + 行 -> 设施记录（xlsx 与数据库来源共用）
func PlacesFromRows(header []string, rows []sheet.Row) ([]PlaceRecord, error) {
	s, err := NewPlaceSchema(header)
	if err != nil {
		return nil, err
	}
	out := make([]PlaceRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.Place(row))
	}
	return out, nil
}

// parseCode：接受 "3" 与 "3.0"；其余返回 0
func parseCode(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return 0
}
