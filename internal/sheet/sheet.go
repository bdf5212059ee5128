// 包 sheet：把远端表格导出的分隔文本规整为按表头取值的行
package sheet

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
)

// Delimiters：候选分隔符，顺序即平局时的优先级
var Delimiters = []rune{',', ';', '\t', '|'}

var ErrEmpty = errors.New("sheet: no header line")

// Row：表头名 -> 单元格值（均已去除首尾空白）
type Row map[string]string

// Result：一次解析的完整结果
// Fallback 为 true 表示主解析失败，改用逐行切分；Dropped 为因列数不符被丢弃的行数。
type Result struct {
	Header    []string
	Rows      []Row
	Delimiter rune
	Fallback  bool
	Dropped   int
}

// Clean：去除 BOM、解开 JSON 字符串包裹、统一换行为 \n
// 背景：早期后端以 res.json(text) 回传表格，内容被编码成一个 JSON 字符串
func Clean(raw string) string {
	s := strings.TrimPrefix(raw, "\uFEFF")
	if t := strings.TrimSpace(s); len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"' {
		var decoded string
		if err := json.Unmarshal([]byte(t), &decoded); err == nil {
			s = strings.TrimPrefix(decoded, "\uFEFF")
		}
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// DetectDelimiter：只统计表头行中各候选符号出现次数，取最多者
// 约束：并列时取 Delimiters 中靠前者；全部为 0 时为逗号
func DetectDelimiter(header string) rune {
	best, bestN := Delimiters[0], 0
	for _, d := range Delimiters {
		if n := strings.Count(header, string(d)); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// Parse：解析分隔文本
// 背景：主路径使用完整 CSV 语法（引号、内嵌分隔符）；主路径报错或无数据行时降级为逐行切分。
// 约束：两条路径都丢弃列数与表头不一致的行并计入 Dropped；逐行切分只去掉单元格外层引号，字段内含分隔符时结果会错位。
func Parse(raw []byte) (*Result, error) {
	text := Clean(string(raw))
	header := firstLine(text)
	if strings.TrimSpace(header) == "" {
		return nil, ErrEmpty
	}
	delim := DetectDelimiter(header)
	if res, ok := parseCSV(text, delim); ok {
		return res, nil
	}
	return parseNaive(text, delim), nil
}

func parseCSV(text string, delim rune) (*Result, bool) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	// FieldsPerRecord=-1：列数不一致的行单独丢弃，只有引号等语法错误才整体降级
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil || len(recs) < 2 {
		return nil, false
	}
	res := &Result{Header: trimAll(recs[0]), Delimiter: delim}
	for _, rec := range recs[1:] {
		if len(rec) != len(res.Header) {
			res.Dropped++
			continue
		}
		res.Rows = append(res.Rows, zip(res.Header, rec))
	}
	return res, true
}

func parseNaive(text string, delim rune) *Result {
	sep := string(delim)
	res := &Result{Delimiter: delim, Fallback: true}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := unquoteAll(strings.Split(line, sep))
		if res.Header == nil {
			res.Header = trimAll(fields)
			continue
		}
		if len(fields) != len(res.Header) {
			res.Dropped++
			continue
		}
		res.Rows = append(res.Rows, zip(res.Header, fields))
	}
	return res
}

// unquoteAll：去掉单元格外层的一对双引号，并还原其中的 ""
func unquoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, f := range in {
		t := strings.TrimSpace(f)
		if len(t) >= 2 && t[0] == '"' && t[len(t)-1] == '"' {
			f = strings.ReplaceAll(t[1:len(t)-1], `""`, `"`)
		}
		out[i] = f
	}
	return out
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func zip(header, fields []string) Row {
	row := make(Row, len(header))
	for i, h := range header {
		if i < len(fields) {
			row[h] = strings.TrimSpace(fields[i])
		} else {
			row[h] = ""
		}
	}
	return row
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
