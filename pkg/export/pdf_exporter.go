package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

var pdfColumnWidths = []float64{70, 40, 40, 40}

// PDFExporter renders class lists, one page per group.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderDocument prints every class of every group with its heading and the
// same highlight colours as the workbook.
func (e *PDFExporter) RenderDocument(doc Document) ([]byte, error) {
	if doc.Empty() {
		return nil, ErrEmptyDocument
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, group := range doc.Groups {
		if len(group.Classes) == 0 {
			continue
		}
		pdf.AddPage()
		if doc.Title != "" {
			pdf.SetFont("Arial", "", 9)
			pdf.CellFormat(0, 5, tr(doc.Title), "", 1, "R", false, 0, "")
		}
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(group.Name), "", 1, "C", false, 0, "")
		pdf.Ln(2)

		for _, class := range group.Classes {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, class.Title(), "", 1, "L", false, 0, "")

			pdf.SetFont("Arial", "B", 9)
			for i, title := range classColumns {
				pdf.CellFormat(pdfColumnWidths[i], 7, title, "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)

			pdf.SetFont("Arial", "", 9)
			for _, student := range class.Sorted() {
				fill := setHighlight(pdf, student.Highlight)
				pdf.CellFormat(pdfColumnWidths[0], 6, tr(student.FullName), "1", 0, "", fill, 0, "")
				pdf.CellFormat(pdfColumnWidths[1], 6, tr(student.PriorClass), "1", 0, "", false, 0, "")
				pdf.CellFormat(pdfColumnWidths[2], 6, tr(student.Academic), "1", 0, "", false, 0, "")
				pdf.CellFormat(pdfColumnWidths[3], 6, tr(student.Behaviour), "1", 0, "", false, 0, "")
				pdf.Ln(-1)
			}
			pdf.Ln(4)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func setHighlight(pdf *gofpdf.Fpdf, h Highlight) bool {
	switch h {
	case HighlightPair:
		pdf.SetFillColor(0xC7, 0xEF, 0xCF)
		return true
	case HighlightSeparation:
		pdf.SetFillColor(0xFF, 0xC7, 0xCE)
		return true
	default:
		return false
	}
}
