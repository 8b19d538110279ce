package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/example/webvoca/pkg/models"
)

// DefaultSheet is the worksheet written by exports, the default sheet of a new workbook
const DefaultSheet = "Sheet1"

const utf8BOM = "\ufeff"

// Header is the column layout of exported files
var Header = []string{"word", "context", "url", "createdAt", "sourceTitle", "language", "isFavorite", "note"}

// Row renders a word entry in Header order
func Row(w models.WordEntry) []string {
	favorite := "0"
	if w.IsFavorite {
		favorite = "1"
	}
	return []string{
		w.Word,
		w.Context,
		w.URL,
		models.FromMillis(w.CreatedAt).Format(time.RFC3339),
		w.SourceTitle,
		w.Language,
		favorite,
		w.Note,
	}
}

// WriteCSV writes words as UTF-8 CSV with a byte order mark so spreadsheets detect the encoding
func WriteCSV(w io.Writer, words []models.WordEntry) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, word := range words {
		if err := cw.Write(Row(word)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// WriteXLSX writes words to a single-sheet workbook
func WriteXLSX(w io.Writer, words []models.WordEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := setRow(f, 1, Header); err != nil {
		return err
	}
	for i, word := range words {
		if err := setRow(f, i+2, Row(word)); err != nil {
			return err
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf picks the format from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported file type %q", filepath.Ext(path))
}

// Write writes words in the given format
func Write(w io.Writer, format Format, words []models.WordEntry) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, words)
	case FormatXLSX:
		return WriteXLSX(w, words)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// ExportFile writes words to path, choosing the format from its extension
func ExportFile(path string, words []models.WordEntry) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	if err := Write(file, format, words); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
