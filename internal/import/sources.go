package import_pkg

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/reicrm/internal/metrics"
)

// Supported upload formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// DetectFormat picks the upload format from a file name
func DetectFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// ProcessXLSX handles an Excel upload. The first sheet is read; its first
// row holds the headers and blank rows are skipped.
func (p *UploadProcessor) ProcessXLSX(ctx context.Context, name string, file io.Reader, mapping ColumnMapping) *UploadResult {
	id := uuid.New()

	headers, rows, err := readSheet(file)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(FormatXLSX, "failed").Inc()
		return failedUpload(id, err)
	}

	return p.run(ctx, id, name, FormatXLSX, headers, rows, mapping)
}

// ExtractSheetHeaders reads the header row of an Excel upload
func ExtractSheetHeaders(r io.Reader) ([]string, error) {
	headers, _, err := readSheet(r)
	return headers, err
}

func readSheet(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}

	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(all) == 0 {
		return []string{""}, nil, nil
	}

	var rows [][]string
	for _, row := range all[1:] {
		if blankRow(row) {
			continue
		}
		rows = append(rows, row)
	}
	return all[0], rows, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// FileImporter feeds files from disk through an UploadProcessor
type FileImporter struct {
	processor *UploadProcessor
	logger    *zap.Logger
}

// NewFileImporter creates a new file importer
func NewFileImporter(processor *UploadProcessor, logger *zap.Logger) *FileImporter {
	return &FileImporter{processor: processor, logger: logger}
}

// ImportFile imports a CSV or XLSX file, chosen by extension
func (fi *FileImporter) ImportFile(ctx context.Context, filename string, mapping ColumnMapping) (*UploadResult, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	name := filepath.Base(filename)
	format := DetectFormat(filename)
	fi.logger.Info("importing file", zap.String("file", filename), zap.String("format", format))

	var result *UploadResult
	if format == FormatXLSX {
		result = fi.processor.ProcessXLSX(ctx, name, file, mapping)
	} else {
		result = fi.processor.Process(ctx, name, file, mapping)
	}

	if !result.Success {
		return result, fmt.Errorf("import of %s failed: %s", filename, result.Message)
	}
	return result, nil
}

// ReadHeaders returns the header row of a file on disk
func (fi *FileImporter) ReadHeaders(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filename, err)
	}
	defer file.Close()

	if DetectFormat(filename) == FormatXLSX {
		return ExtractSheetHeaders(file)
	}
	return ExtractHeaders(file)
}
