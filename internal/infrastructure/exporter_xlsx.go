package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/yourusername/vidcollect-go/internal/domain"
)

// XLSXExporter appends records to a spreadsheet with the fixed export
// columns. Existing rows are preserved; the header row is written when the
// sheet is created.
type XLSXExporter struct {
	path   string
	sheet  string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewXLSXExporter creates a new spreadsheet exporter
func NewXLSXExporter(config domain.ExportConfig, logger *zap.Logger) *XLSXExporter {
	sheet := config.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	return &XLSXExporter{
		path:   config.Path,
		sheet:  sheet,
		logger: logger,
	}
}

// Path returns the workbook location
func (e *XLSXExporter) Path() string {
	return e.path
}

// AppendRow implements domain.RecordExporter
func (e *XLSXExporter) AppendRow(record domain.AggregatedRecord) error {
	return e.AppendBatch([]domain.AggregatedRecord{record})
}

// AppendBatch implements domain.RecordExporter. All records land in one save.
func (e *XLSXExporter) AppendBatch(records []domain.AggregatedRecord) error {
	if len(records) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.open()
	if err != nil {
		return err
	}
	defer f.Close()

	next, err := e.prepareSheet(f)
	if err != nil {
		return err
	}

	for i, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, next+i)
		if err != nil {
			return err
		}
		row := record.Row()
		if err := f.SetSheetRow(e.sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", next+i, err)
		}
	}

	if err := e.save(f); err != nil {
		return err
	}

	e.logger.Info("Exported records",
		zap.String("path", e.path),
		zap.Int("rows", len(records)),
		zap.Int("first_row", next))
	return nil
}

func (e *XLSXExporter) open() (*excelize.File, error) {
	if _, err := os.Stat(e.path); err == nil {
		f, err := excelize.OpenFile(e.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open workbook: %w", err)
		}
		return f, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat workbook: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", e.sheet); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// prepareSheet makes sure the sheet exists with the expected header and
// returns the first free row number.
func (e *XLSXExporter) prepareSheet(f *excelize.File) (int, error) {
	idx, err := f.GetSheetIndex(e.sheet)
	if err != nil {
		return 0, err
	}
	if idx == -1 {
		if _, err := f.NewSheet(e.sheet); err != nil {
			return 0, fmt.Errorf("failed to create sheet %s: %w", e.sheet, err)
		}
	}

	rows, err := f.GetRows(e.sheet)
	if err != nil {
		return 0, fmt.Errorf("failed to read sheet %s: %w", e.sheet, err)
	}

	if len(rows) == 0 {
		if err := e.writeHeader(f); err != nil {
			return 0, err
		}
		return 2, nil
	}

	if !headerMatches(rows[0]) {
		return 0, fmt.Errorf("sheet %s of %s has an unexpected header: %v", e.sheet, e.path, rows[0])
	}
	return len(rows) + 1, nil
}

func (e *XLSXExporter) writeHeader(f *excelize.File) error {
	header := make([]interface{}, len(domain.ExportColumns))
	for i, col := range domain.ExportColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(e.sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(e.sheet, "A1", last, style)
}

// save writes the workbook next to its destination and renames it into
// place, so a crash never leaves a half-written file.
func (e *XLSXExporter) save(f *excelize.File) error {
	tmp := e.path + ".tmp.xlsx"
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace workbook: %w", err)
	}
	return nil
}

func headerMatches(row []string) bool {
	if len(row) < len(domain.ExportColumns) {
		return false
	}
	for i, col := range domain.ExportColumns {
		if row[i] != col {
			return false
		}
	}
	return true
}
