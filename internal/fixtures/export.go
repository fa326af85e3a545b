package fixtures

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
)

// ExportFormat は結果のエクスポート形式です。
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
)

// ParseExportFormat は形式名を検証します。空の場合は CSV です。
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(raw) {
	case "", ExportCSV:
		return ExportCSV, nil
	case ExportJSON:
		return ExportJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", raw)
	}
}

// ContentType は形式に対応する Content-Type を返します。
func (f ExportFormat) ContentType() string {
	if f == ExportJSON {
		return "application/json"
	}
	return "text/csv; charset=utf-8"
}

// Export は結果詳細を指定形式で書き出します。CSV は詳細結果テーブルのみです。
func Export(detail ResultDetail, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportJSON:
		return json.MarshalIndent(detail, "", "  ")
	case ExportCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		if err := w.Write([]string{"id", "category", "revenue", "growth", "status"}); err != nil {
			return nil, err
		}
		for _, row := range detail.Table {
			record := []string{
				strconv.Itoa(row.ID),
				row.Category,
				strconv.Itoa(row.Revenue),
				row.Growth,
				row.Status,
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %q", format)
	}
}
