package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository/memory"
	"github.com/jwalitptl/hospital-api/internal/service/report"
)

func seed(t *testing.T, store *memory.Store, appointments ...*model.Appointment) {
	t.Helper()
	for _, a := range appointments {
		require.NoError(t, store.Appointments().Create(context.Background(), a))
	}
}

func TestBucketDays(t *testing.T) {
	end := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	days := report.BucketDays(end, 7, map[string]int{
		"2024-02-25": 1,
		"2024-02-29": 4,
		"2024-03-02": 2,
		"2024-03-03": 9,
	})

	require.Len(t, days, 7)
	assert.Equal(t, "2024-02-25", days[0].Date)
	assert.Equal(t, 1, days[0].Count)
	assert.Equal(t, "2024-02-26", days[1].Date)
	assert.Equal(t, 0, days[1].Count)
	assert.Equal(t, "2024-02-29", days[4].Date)
	assert.Equal(t, 4, days[4].Count)
	assert.Equal(t, "2024-03-02", days[6].Date)
	assert.Equal(t, 2, days[6].Count)
}

func TestLastSevenDaysZeroFills(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		&model.Appointment{FullName: "A", Date: "2024-05-01", Time: "09:00"},
		&model.Appointment{FullName: "B", Date: "2024-05-01", Time: "10:00"},
		&model.Appointment{FullName: "C", Date: "2024-05-07", Time: "10:00"},
		&model.Appointment{FullName: "D", Date: "2024-04-30", Time: "10:00"},
	)
	svc := report.NewService(store.Appointments(), store.Doctors(), store.Patients())

	days, err := svc.LastSevenDays(context.Background(), "2024-05-07")
	require.NoError(t, err)
	require.Len(t, days, 7)

	assert.Equal(t, model.DayCount{Date: "2024-05-01", Count: 2}, days[0])
	for _, d := range days[1:6] {
		assert.Zero(t, d.Count, d.Date)
	}
	assert.Equal(t, model.DayCount{Date: "2024-05-07", Count: 1}, days[6])
}

func TestDailyOrdersByTime(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		&model.Appointment{FullName: "Late", Doctor: "Dr. Lee", Date: "2024-05-01", Time: "15:00"},
		&model.Appointment{FullName: "Early", Doctor: "Dr. Kim", Date: "2024-05-01", Time: "08:30"},
		&model.Appointment{FullName: "Mid", Doctor: "Dr. Lee", Date: "2024-05-01", Time: "11:15"},
		&model.Appointment{FullName: "Other day", Date: "2024-05-02", Time: "07:00"},
	)
	svc := report.NewService(store.Appointments(), store.Doctors(), store.Patients())

	daily, err := svc.Daily(context.Background(), "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 3, daily.Count)
	assert.Equal(t, []string{"Dr. Kim", "Dr. Lee"}, daily.Doctors)

	names := make([]string, 0, len(daily.Appointments))
	for _, a := range daily.Appointments {
		names = append(names, a.FullName)
	}
	assert.Equal(t, []string{"Early", "Mid", "Late"}, names)
}

func TestDailyDefaultsToToday(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, &model.Appointment{FullName: "A", Date: "2024-05-01", Time: "09:00"})
	svc := report.NewService(store.Appointments(), store.Doctors(), store.Patients())
	svc.SetClock(func() time.Time { return time.Date(2024, 5, 1, 18, 0, 0, 0, time.Local) })

	daily, err := svc.Daily(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", daily.Date)
	assert.Equal(t, 1, daily.Count)

	_, err = svc.Daily(context.Background(), "May 1st")
	assert.Error(t, err)
}

func TestExportCSVQuoting(t *testing.T) {
	store := memory.NewStore()
	store.SetClock(func() time.Time { return time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC) })
	seed(t, store, &model.Appointment{
		FullName:  `Smith, "Jr"`,
		Phone:     "555",
		Email:     model.StringPtr("j@x.io"),
		Doctor:    "Dr. Lee",
		Specialty: "Cardiology",
		Date:      "2024-05-01",
		Time:      "09:30",
	})
	svc := report.NewService(store.Appointments(), store.Doctors(), store.Patients())

	var buf bytes.Buffer
	date, err := svc.ExportCSV(context.Background(), "2024-05-01", &buf)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", date)
	assert.Contains(t, buf.String(), `"Smith, ""Jr"""`)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Patient", "Phone", "Email", "Doctor", "Specialty", "Date", "Time", "Status", "CreatedAt"}, records[0])
	assert.Equal(t, []string{
		`Smith, "Jr"`, "555", "j@x.io", "Dr. Lee", "Cardiology", "2024-05-01", "09:30", "Pending", "2024-04-30T12:00:00Z",
	}, records[1])
}

func TestExportPDF(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, &model.Appointment{FullName: "Ann", Doctor: "Dr. Lee", Date: "2024-05-01", Time: "09:30"})
	svc := report.NewService(store.Appointments(), store.Doctors(), store.Patients())

	var buf bytes.Buffer
	_, err := svc.ExportPDF(context.Background(), "2024-05-01", &buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seed(t, store,
		&model.Appointment{FullName: "A", Date: "2024-05-01", Time: "09:00"},
		&model.Appointment{FullName: "B", Date: "2024-05-01", Time: "10:00", Status: model.AppointmentStatusConfirmed},
		&model.Appointment{FullName: "C", Date: "2024-05-02", Time: "10:00", Status: model.AppointmentStatusCancelled},
	)
	require.NoError(t, store.Doctors().Create(ctx, &model.Doctor{FullName: "Dr. Lee", Email: "lee@x.io"}))
	require.NoError(t, store.Patients().Create(ctx, &model.Patient{FullName: "Ann", Email: "ann@x.io"}))

	svc := report.NewService(store.Appointments(), store.Doctors(), store.Patients())
	svc.SetClock(func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local) })

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Patients)
	assert.Equal(t, 1, stats.Doctors)
	assert.Equal(t, 3, stats.Appointments)
	assert.Equal(t, 2, stats.Today)
	assert.Equal(t, 1, stats.ByStatus[model.AppointmentStatusPending])
	assert.Equal(t, 0, stats.ByStatus[model.AppointmentStatusCompleted])
}
