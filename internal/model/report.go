package model

// DailyReport lists one day's appointments ordered by time.
type DailyReport struct {
	Date         string         `json:"date"`
	Count        int            `json:"count"`
	Doctors      []string       `json:"doctors"`
	Appointments []*Appointment `json:"appointments"`
}

// DayCount is one bucket of the seven day trend.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DashboardStats struct {
	Patients     int                       `json:"patients"`
	Doctors      int                       `json:"doctors"`
	Appointments int                       `json:"appointments"`
	ByStatus     map[AppointmentStatus]int `json:"by_status"`
	Today        int                       `json:"today"`
}
