package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	columnsPerClass = 4
	maxSheetName    = 31

	pairFill       = "C7EFCF"
	separationFill = "FFC7CE"
)

var classColumns = []string{"Student Name", "Old Class", "Academic", "Behaviour"}

// WorkbookExporter renders documents as xlsx, one sheet per group with the
// classes laid out side by side.
type WorkbookExporter struct{}

// NewWorkbookExporter constructs an xlsx exporter.
func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{}
}

// RenderDocument builds the workbook. Each class spans four columns under a
// merged "Class N (k students)" heading and students are sorted by surname.
// Satisfied pairs are filled green and violated separations red.
func (e *WorkbookExporter) RenderDocument(doc Document) ([]byte, error) {
	if doc.Empty() {
		return nil, ErrEmptyDocument
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	styles, err := newSheetStyles(f)
	if err != nil {
		return nil, err
	}

	used := map[string]int{}
	first := true
	for _, group := range doc.Groups {
		if len(group.Classes) == 0 {
			continue
		}
		name := uniqueSheetName(SheetName(group.Name), used)
		if first {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeGroup(f, name, group, styles); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderTable writes a single sheet with a bold header row.
func (e *WorkbookExporter) RenderTable(sheet string, data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("workbook requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet = SheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	styles, err := newSheetStyles(f)
	if err != nil {
		return nil, err
	}
	for r, record := range data.Records() {
		for c, value := range record {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set %s: %w", cell, err)
			}
		}
	}
	last, err := excelize.CoordinatesToCellName(len(data.Headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", last, styles.header); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type sheetStyles struct {
	header     int
	pair       int
	separation int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	if s.pair, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{pairFill}},
	}); err != nil {
		return s, fmt.Errorf("pair style: %w", err)
	}
	if s.separation, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{separationFill}},
	}); err != nil {
		return s, fmt.Errorf("separation style: %w", err)
	}
	return s, nil
}

func writeGroup(f *excelize.File, sheet string, group GroupSheet, styles sheetStyles) error {
	for i, class := range group.Classes {
		left := i*columnsPerClass + 1

		start, _ := excelize.CoordinatesToCellName(left, 1)
		end, _ := excelize.CoordinatesToCellName(left+columnsPerClass-1, 1)
		if err := f.SetCellValue(sheet, start, class.Title()); err != nil {
			return fmt.Errorf("set %s: %w", start, err)
		}
		if err := f.MergeCell(sheet, start, end); err != nil {
			return fmt.Errorf("merge %s:%s: %w", start, end, err)
		}
		if err := f.SetCellStyle(sheet, start, end, styles.header); err != nil {
			return fmt.Errorf("style %s: %w", start, err)
		}

		for c, title := range classColumns {
			cell, _ := excelize.CoordinatesToCellName(left+c, 2)
			if err := f.SetCellValue(sheet, cell, title); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
		}

		for r, student := range class.Sorted() {
			row := r + 3
			values := []string{student.FullName, student.PriorClass, student.Academic, student.Behaviour}
			for c, value := range values {
				cell, _ := excelize.CoordinatesToCellName(left+c, row)
				if err := f.SetCellValue(sheet, cell, value); err != nil {
					return fmt.Errorf("set %s: %w", cell, err)
				}
			}
			style := 0
			switch student.Highlight {
			case HighlightPair:
				style = styles.pair
			case HighlightSeparation:
				style = styles.separation
			}
			if style != 0 {
				cell, _ := excelize.CoordinatesToCellName(left, row)
				if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
					return fmt.Errorf("style %s: %w", cell, err)
				}
			}
		}

		nameCol, _ := excelize.ColumnNumberToName(left)
		if err := f.SetColWidth(sheet, nameCol, nameCol, 24); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	return nil
}

// SheetName strips characters Excel rejects in sheet names and truncates to
// the 31 character limit. "Composite 3/4" becomes "Composite 3-4".
func SheetName(name string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-")
	cleaned := strings.TrimSpace(replacer.Replace(name))
	cleaned = strings.Trim(cleaned, "'")
	if cleaned == "" {
		cleaned = "Classes"
	}
	if runes := []rune(cleaned); len(runes) > maxSheetName {
		cleaned = string(runes[:maxSheetName])
	}
	return cleaned
}

// uniqueSheetName returns name, or name with the next free " (n)" suffix.
// Excel compares sheet names case-insensitively, so used is keyed by the
// lower-cased name and records the last suffix handed out for each base.
func uniqueSheetName(name string, used map[string]int) string {
	key := strings.ToLower(name)
	if used[key] == 0 {
		used[key] = 1
		return name
	}
	for n := used[key] + 1; ; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		candidate := string(runes) + suffix
		candidateKey := strings.ToLower(candidate)
		if used[candidateKey] == 0 {
			used[key] = n
			used[candidateKey] = 1
			return candidate
		}
	}
}
