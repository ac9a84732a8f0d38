package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
	"github.com/jwalitptl/hospital-api/pkg/validator"
)

const trendDays = 7

type Service struct {
	appointments repository.AppointmentRepository
	doctors      repository.DoctorRepository
	patients     repository.PatientRepository
	now          func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	doctors repository.DoctorRepository,
	patients repository.PatientRepository,
) *Service {
	return &Service{
		appointments: appointments,
		doctors:      doctors,
		patients:     patients,
		now:          time.Now,
	}
}

// SetClock replaces the time source used to resolve "today".
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns the current local date in the stored date format.
func (s *Service) Today() string {
	return s.now().Format(validator.DateLayout)
}

// Daily lists the appointments on date ordered by time, with the distinct
// doctors working that day. An empty date means today.
func (s *Service) Daily(ctx context.Context, date string) (*model.DailyReport, error) {
	date, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}

	appointments, err := s.appointments.List(ctx, &model.AppointmentFilter{
		Date:    date,
		OrderBy: model.OrderTimeAsc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	seen := map[string]bool{}
	doctors := []string{}
	for _, a := range appointments {
		if a.Doctor == "" || seen[a.Doctor] {
			continue
		}
		seen[a.Doctor] = true
		doctors = append(doctors, a.Doctor)
	}
	sort.Strings(doctors)

	return &model.DailyReport{
		Date:         date,
		Count:        len(appointments),
		Doctors:      doctors,
		Appointments: appointments,
	}, nil
}

// LastSevenDays returns one bucket per day from end-6 to end, oldest first.
func (s *Service) LastSevenDays(ctx context.Context, end string) ([]model.DayCount, error) {
	end, err := s.resolveDate(end)
	if err != nil {
		return nil, err
	}
	last, _ := time.Parse(validator.DateLayout, end)
	first := last.AddDate(0, 0, -(trendDays - 1))

	counts, err := s.appointments.CountByDate(ctx, first.Format(validator.DateLayout), end)
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}
	return BucketDays(last, trendDays, counts), nil
}

// BucketDays lays counts out over the n days ending at end. Days without an
// entry in counts are zero.
func BucketDays(end time.Time, n int, counts map[string]int) []model.DayCount {
	out := make([]model.DayCount, 0, n)
	for i := n - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, -i).Format(validator.DateLayout)
		out = append(out, model.DayCount{Date: day, Count: counts[day]})
	}
	return out
}

// Dashboard returns the headline counts of the admin landing page.
func (s *Service) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	patients, err := s.patients.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count patients: %w", err)
	}
	doctors, err := s.doctors.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count doctors: %w", err)
	}
	byStatus, err := s.appointments.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}
	today := s.Today()
	todayCounts, err := s.appointments.CountByDate(ctx, today, today)
	if err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}

	stats := &model.DashboardStats{
		Patients: patients,
		Doctors:  doctors,
		ByStatus: make(map[model.AppointmentStatus]int, len(model.AppointmentStatuses)),
		Today:    todayCounts[today],
	}
	for _, st := range model.AppointmentStatuses {
		stats.ByStatus[st] = byStatus[st]
		stats.Appointments += byStatus[st]
	}
	return stats, nil
}

func (s *Service) resolveDate(date string) (string, error) {
	if date == "" {
		return s.Today(), nil
	}
	if _, err := time.Parse(validator.DateLayout, date); err != nil {
		return "", apperrors.Validation(map[string]string{
			"date": "must be a date in YYYY-MM-DD format",
		}, err)
	}
	return date, nil
}
