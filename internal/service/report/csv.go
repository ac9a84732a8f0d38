package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/jwalitptl/hospital-api/internal/model"
)

var csvHeader = []string{"Patient", "Phone", "Email", "Doctor", "Specialty", "Date", "Time", "Status", "CreatedAt"}

// ExportCSV writes the daily report for date as CSV and returns the resolved date.
func (s *Service) ExportCSV(ctx context.Context, date string, w io.Writer) (string, error) {
	report, err := s.Daily(ctx, date)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(w, report.Appointments); err != nil {
		return "", err
	}
	return report.Date, nil
}

// WriteCSV writes one row per appointment after the header row.
func WriteCSV(w io.Writer, appointments []*model.Appointment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, a := range appointments {
		row := []string{
			a.FullName,
			a.Phone,
			model.StringValue(a.Email),
			a.Doctor,
			a.Specialty,
			a.Date,
			a.Time,
			string(a.Status),
			a.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
