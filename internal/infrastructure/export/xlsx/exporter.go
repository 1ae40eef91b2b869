package xlsx

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/error-review-admin/internal/core/domain"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	sheetName   = "Sheet1"
)

var header = []string{"id", "status", "language", "title", "slug", "created_at", "published_at", "raw_error"}

type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ContentType() string {
	return ContentType
}

// Export writes one header row and one row per record through the excelize
// stream writer.
func (e *Exporter) Export(w io.Writer, records []domain.ErrorRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}

	boldID, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	headerRow := make([]any, len(header))
	for i, name := range header {
		headerRow[i] = excelize.Cell{StyleID: boldID, Value: name}
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, recordRow(rec)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func recordRow(rec domain.ErrorRecord) []any {
	published := ""
	if rec.PublishedAt != nil {
		published = rec.PublishedAt.UTC().Format(time.RFC3339)
	}
	return []any{
		rec.ID,
		string(rec.Status),
		rec.Language,
		rec.Solution.Title,
		rec.FormattedSlug,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		published,
		truncateCell(rec.RawError),
	}
}

func truncateCell(s string) string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return s
	}
	return string([]rune(s)[:excelize.TotalCellChars])
}
