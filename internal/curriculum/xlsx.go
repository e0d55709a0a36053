package curriculum

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXConfig maps spreadsheet columns to word-entry fields. Columns are
// given as letters ("A", "B", ...); an empty column letter disables that
// field.
type XLSXConfig struct {
	// Sheet is the worksheet to read.
	Sheet string

	WordColumn         string
	TranslationColumn  string
	PartOfSpeechColumn string
	LevelColumn        string
	TagsColumn         string
	ExamplesColumn     string

	// StartRow is the first data row, 1-based. Rows above it are treated
	// as headers and skipped.
	StartRow int
}

// DefaultXLSXConfig returns the conventional layout: one word per row,
// columns A through F, headers in row 1.
func DefaultXLSXConfig() XLSXConfig {
	return XLSXConfig{
		Sheet:              "Sheet1",
		WordColumn:         "A",
		TranslationColumn:  "B",
		PartOfSpeechColumn: "C",
		LevelColumn:        "D",
		TagsColumn:         "E",
		ExamplesColumn:     "F",
		StartRow:           2,
	}
}

// XLSXReport summarises an [ImportXLSX] run.
type XLSXReport struct {
	// Rows is the number of data rows examined.
	Rows int

	// Imported is the number of entries added to the list.
	Imported int

	// Skipped is the number of rows without a usable word.
	Skipped int

	// Problems lists per-row issues ("row 7: ..."), in row order.
	Problems []string
}

// ImportXLSX reads a word list from an XLSX spreadsheet. The import is
// best-effort: rows without a word are skipped and reported in the
// [XLSXReport] rather than aborting, and unrecognised levels are dropped
// with a note. The assembled list is validated before being returned.
func ImportXLSX(path string, meta ListMeta, cfg XLSXConfig) (*WordList, *XLSXReport, error) {
	if cfg.Sheet == "" {
		cfg.Sheet = "Sheet1"
	}
	if cfg.StartRow < 1 {
		cfg.StartRow = 1
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("curriculum: open spreadsheet %q: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(cfg.Sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("curriculum: read sheet %q: %w", cfg.Sheet, err)
	}

	report := &XLSXReport{}
	list := WordList{
		Name:        meta.Name,
		Language:    meta.Language,
		Description: meta.Description,
	}

	seen := make(map[string]bool)
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow {
			continue
		}
		report.Rows++

		word := cell(row, cfg.WordColumn)
		if word == "" {
			report.Skipped++
			report.Problems = append(report.Problems, fmt.Sprintf("row %d: empty word, skipped", rowNum))
			continue
		}
		if key := strings.ToLower(word); seen[key] {
			report.Skipped++
			report.Problems = append(report.Problems, fmt.Sprintf("row %d: duplicate word %q, skipped", rowNum, word))
			continue
		} else {
			seen[key] = true
		}

		entry := WordEntry{
			Word:         word,
			Translation:  cell(row, cfg.TranslationColumn),
			PartOfSpeech: cell(row, cfg.PartOfSpeechColumn),
			Tags:         splitCell(cell(row, cfg.TagsColumn), ","),
			Examples:     splitCell(cell(row, cfg.ExamplesColumn), ";"),
		}

		if raw := cell(row, cfg.LevelColumn); raw != "" {
			level := Level(strings.ToUpper(raw))
			if level.IsValid() {
				entry.Level = level
			} else {
				report.Problems = append(report.Problems, fmt.Sprintf("row %d: level %q is not a CEFR band, dropped", rowNum, raw))
			}
		}

		list.Words = append(list.Words, entry)
		report.Imported++
	}

	if err := Validate(list); err != nil {
		return nil, report, fmt.Errorf("curriculum: invalid word list %q: %w", list.Name, err)
	}
	return &list, report, nil
}

// cell returns the trimmed value of a lettered column in a row, or "" when
// the column is disabled or the row is too short.
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	idx := columnToIndex(column)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// splitCell splits a delimited cell value into trimmed, non-empty parts.
func splitCell(value, sep string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// columnToIndex converts an Excel column letter ("A", "Z", "AA") to a
// zero-based index.
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	idx := 0
	for i := 0; i < len(column); i++ {
		c := column[i]
		if c < 'A' || c > 'Z' {
			return -1
		}
		idx = idx*26 + int(c-'A'+1)
	}
	return idx - 1
}
