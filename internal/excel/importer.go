package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/webvoca/internal/database"
	"github.com/example/webvoca/pkg/models"
)

// ErrNoWordColumn is returned for a file whose header has no word column
var ErrNoWordColumn = errors.New("excel: header has no word column")

// Record is one parsed data row
type Record struct {
	Line      int // 1-based row in the source file
	Selection models.Selection
}

// Registrar stores imported selections
type Registrar interface {
	Get(ctx context.Context, id string) (models.WordEntry, error)
	Register(ctx context.Context, sel models.Selection) (models.WordEntry, error)
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int      `json:"total_processed"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors,omitempty"`
}

// ReadFile parses a CSV or XLSX file. An empty sheet means DefaultSheet when the
// workbook has one, otherwise its first sheet.
func ReadFile(path, sheet string) ([]Record, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer file.Close()

	if format == FormatCSV {
		return ReadCSV(file)
	}
	return ReadXLSX(file, sheet)
}

// ReadCSV parses exported CSV. Columns are matched by header name.
func ReadCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return parseRows(rows)
}

// ReadXLSX parses an exported workbook
func ReadXLSX(r io.Reader, sheet string) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
		if slices.Contains(sheets, DefaultSheet) {
			sheet = DefaultSheet
		}
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	columns := columnIndex(rows[0])
	if _, ok := columns["word"]; !ok {
		return nil, ErrNoWordColumn
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cell := func(name string) (string, bool) {
			idx, ok := columns[name]
			if !ok || idx >= len(row) {
				return "", false
			}
			return strings.TrimSpace(row[idx]), true
		}

		word, _ := cell("word")
		sel := models.Selection{Word: cleanWord(word)}
		sel.Context, _ = cell("context")
		sel.URL, _ = cell("url")
		sel.Title, _ = cell("sourcetitle")
		sel.Language, _ = cell("language")
		if v, ok := cell("isfavorite"); ok && v != "" {
			fav := parseBool(v)
			sel.IsFavorite = &fav
		}
		if v, ok := cell("note"); ok {
			sel.Note = &v
		}
		records = append(records, Record{Line: i + 2, Selection: sel})
	}
	return records, nil
}

// columnIndex maps lowercased header names to column positions
func columnIndex(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, utf8BOM)))
		if _, dup := out[name]; !dup && name != "" {
			out[name] = i
		}
	}
	return out
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// cleanWord drops a parenthesized note such as "go (went, gone)"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

// Import registers every record. Rows without a word are skipped; rows that fail
// are reported in the result and do not stop the import. progress, when set, is
// called after each record.
func Import(ctx context.Context, records []Record, reg Registrar, progress func()) (*ImportResult, error) {
	result := &ImportResult{}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalProcessed++
		if err := importRecord(ctx, rec, reg, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rec.Line, err))
		}
		if progress != nil {
			progress()
		}
	}
	return result, nil
}

func importRecord(ctx context.Context, rec Record, reg Registrar, result *ImportResult) error {
	if models.NormalizeWord(rec.Selection.Word) == "" {
		result.Skipped++
		return nil
	}
	_, err := reg.Get(ctx, models.WordEntryID(rec.Selection.Word, rec.Selection.URL))
	exists := err == nil
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up word: %w", err)
	}
	if _, err := reg.Register(ctx, rec.Selection); err != nil {
		return fmt.Errorf("failed to save word: %w", err)
	}
	if exists {
		result.Updated++
	} else {
		result.Created++
	}
	return nil
}
