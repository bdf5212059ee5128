package view

import (
	"paman-dede/internal/metrics"
	"paman-dede/internal/sheet"
)

// parseSheet：解析表格并记录回退与丢弃行数
func parseSheet(raw []byte) (*sheet.Result, error) {
	res, err := sheet.Parse(raw)
	if err != nil {
		return nil, err
	}
	if res.Fallback {
		metrics.SheetParseFallbackTotal.Inc()
	}
	if res.Dropped > 0 {
		metrics.SheetRowsDroppedTotal.Add(float64(res.Dropped))
	}
	return res, nil
}
