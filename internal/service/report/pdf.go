package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/jwalitptl/hospital-api/internal/model"
)

// column widths in mm, A4 landscape leaves 277mm between margins
var pdfColumns = []struct {
	title string
	width float64
}{
	{"Time", 18},
	{"Patient", 55},
	{"Phone", 35},
	{"Email", 60},
	{"Doctor", 45},
	{"Specialty", 37},
	{"Status", 27},
}

// ExportPDF writes a printable daily report for date and returns the resolved date.
func (s *Service) ExportPDF(ctx context.Context, date string, w io.Writer) (string, error) {
	report, err := s.Daily(ctx, date)
	if err != nil {
		return "", err
	}
	if err := WritePDF(w, report); err != nil {
		return "", err
	}
	return report.Date, nil
}

func WritePDF(w io.Writer, report *model.DailyReport) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Daily Appointments Report", "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, fmt.Sprintf("Date: %s", report.Date), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Appointments: %d", report.Count), "", 1, "L", false, 0, "")
	if len(report.Doctors) > 0 {
		pdf.CellFormat(0, 7, tr("Doctors: "+strings.Join(report.Doctors, ", ")), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 8, col.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, a := range report.Appointments {
		cells := []string{
			a.Time,
			a.FullName,
			a.Phone,
			model.StringValue(a.Email),
			a.Doctor,
			a.Specialty,
			string(a.Status),
		}
		for i, col := range pdfColumns {
			pdf.CellFormat(col.width, 7, tr(fit(pdf, cells[i], col.width-2)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return nil
}

// fit truncates s so that it prints within width.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
