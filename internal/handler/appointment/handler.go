package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/appointment"
	"github.com/jwalitptl/hospital-api/pkg/event"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutesWithEvents mounts the staff endpoints.
func (h *Handler) RegisterRoutesWithEvents(r *gin.RouterGroup, eventTracker *event.EventTrackerMiddleware) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", eventTracker.TrackEvent("appointment", "create"), h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", eventTracker.TrackEvent("appointment", "update"), h.UpdateAppointment)
		appointments.DELETE("/:id", eventTracker.TrackEvent("appointment", "delete"), h.DeleteAppointment)
		appointments.PUT("/:id/doctor", eventTracker.TrackEvent("appointment", "assign"), h.AssignDoctor)
		appointments.PUT("/:id/status", eventTracker.TrackEvent("appointment", "status"), h.ChangeStatus)
		appointments.PUT("/:id/reschedule", eventTracker.TrackEvent("appointment", "reschedule"), h.Reschedule)
		appointments.POST("/:id/cancel", eventTracker.TrackEvent("appointment", "cancel"), h.Cancel)
	}
}

// RegisterPatientRoutes mounts the endpoints a patient uses for their own bookings.
func (h *Handler) RegisterPatientRoutes(r *gin.RouterGroup, eventTracker *event.EventTrackerMiddleware) {
	r.POST("/appointments", eventTracker.TrackEvent("appointment", "create"), h.BookAppointment)
	r.GET("/appointments", h.ListOwnAppointments)
	r.GET("/appointments/:id", h.GetAppointment)
	r.PATCH("/appointments/:id", eventTracker.TrackEvent("appointment", "update"), h.UpdateOwnAppointment)
	r.POST("/appointments/:id/cancel", eventTracker.TrackEvent("appointment", "cancel"), h.Cancel)
	r.GET("/history", h.History)
}

// RegisterDoctorRoutes mounts the endpoints of the doctor workspace.
func (h *Handler) RegisterDoctorRoutes(r *gin.RouterGroup, eventTracker *event.EventTrackerMiddleware) {
	r.GET("/appointments", h.ListDoctorAppointments)
	r.GET("/appointments/:id", h.GetAppointment)
	r.GET("/patients", h.ListDoctorPatients)
	r.PUT("/appointments/:id/clinical", eventTracker.TrackEvent("appointment", "clinical"), h.UpdateClinical)
	r.DELETE("/appointments/:id/prescription", eventTracker.TrackEvent("appointment", "prescription"), h.ClearPrescription)
	r.PUT("/appointments/:id/status", eventTracker.TrackEvent("appointment", "status"), h.ChangeStatus)
	r.PUT("/appointments/:id/reschedule", eventTracker.TrackEvent("appointment", "reschedule"), h.Reschedule)
}

// CreateAppointment validates against the front desk or the administrator
// form depending on who is calling.
func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.AppointmentRequest = &model.ReceptionAppointmentRequest{}
	if p := handler.Principal(c); p != nil && p.Role == model.RoleAdmin {
		req = &model.AdminAppointmentRequest{}
	}
	if !handler.BindJSON(c, req) {
		return
	}
	h.create(c, req)
}

func (h *Handler) BookAppointment(c *gin.Context) {
	var req model.BookAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	h.create(c, &req)
}

func (h *Handler) create(c *gin.Context, req model.AppointmentRequest) {
	apt, err := h.service.Create(c.Request.Context(), handler.Principal(c), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if ctx := event.FromContext(c); ctx != nil {
		ctx.EventType = model.EventAppointmentCreated
		ctx.NewData = apt
		ctx.Additional = map[string]interface{}{
			"appointment_id": apt.ID,
			"status":         apt.Status,
		}
	}

	handler.SetVersionHeader(c, apt.Version)
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(apt))
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, ok := handler.ParseID(c, "id", "appointment")
	if !ok {
		return
	}

	apt, err := h.service.GetFor(c.Request.Context(), handler.Principal(c), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	handler.SetVersionHeader(c, apt.Version)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(apt))
}

func (h *Handler) ListAppointments(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	appointments, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) ListOwnAppointments(c *gin.Context) {
	appointments, err := h.service.ListForPatient(c.Request.Context(), handler.Principal(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) History(c *gin.Context) {
	appointments, err := h.service.HistoryForPatient(c.Request.Context(), handler.Principal(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) ListDoctorAppointments(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	appointments, err := h.service.ListForDoctor(c.Request.Context(), handler.Principal(c), filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(appointments))
}

func (h *Handler) ListDoctorPatients(c *gin.Context) {
	patients, err := h.service.PatientsForDoctor(c.Request.Context(), handler.Principal(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(patients))
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	var req model.UpdateAppointmentRequest
	h.mutate(c, &req, func(id uuid.UUID, version int) (*model.AppointmentChange, error) {
		req.Version = version
		return h.service.Update(c.Request.Context(), handler.Principal(c), id, &req)
	}, func() int { return req.Version })
}

func (h *Handler) UpdateOwnAppointment(c *gin.Context) {
	var req model.PatientAppointmentUpdate
	h.mutate(c, &req, func(id uuid.UUID, version int) (*model.AppointmentChange, error) {
		req.Version = version
		return h.service.UpdateOwn(c.Request.Context(), handler.Principal(c), id, &req)
	}, func() int { return req.Version })
}

func (h *Handler) AssignDoctor(c *gin.Context) {
	var req model.AssignDoctorRequest
	h.mutate(c, &req, func(id uuid.UUID, version int) (*model.AppointmentChange, error) {
		req.Version = version
		return h.service.AssignDoctor(c.Request.Context(), handler.Principal(c), id, &req)
	}, func() int { return req.Version })
}

func (h *Handler) ChangeStatus(c *gin.Context) {
	var req model.StatusChangeRequest
	h.mutate(c, &req, func(id uuid.UUID, version int) (*model.AppointmentChange, error) {
		req.Version = version
		return h.service.ChangeStatus(c.Request.Context(), handler.Principal(c), id, &req)
	}, func() int { return req.Version })
}

func (h *Handler) Reschedule(c *gin.Context) {
	var req model.RescheduleRequest
	h.mutate(c, &req, func(id uuid.UUID, version int) (*model.AppointmentChange, error) {
		req.Version = version
		return h.service.Reschedule(c.Request.Context(), handler.Principal(c), id, &req)
	}, func() int { return req.Version })
}

func (h *Handler) UpdateClinical(c *gin.Context) {
	var req model.ClinicalUpdate
	h.mutate(c, &req, func(id uuid.UUID, version int) (*model.AppointmentChange, error) {
		req.Version = version
		return h.service.UpdateClinical(c.Request.Context(), handler.Principal(c), id, &req)
	}, func() int { return req.Version })
}

func (h *Handler) Cancel(c *gin.Context) {
	var req model.VersionRequest
	h.mutate(c, optionalBody(c, &req), func(id uuid.UUID, version int) (*model.AppointmentChange, error) {
		return h.service.Cancel(c.Request.Context(), handler.Principal(c), id, version)
	}, func() int { return req.Version })
}

func (h *Handler) ClearPrescription(c *gin.Context) {
	var req model.VersionRequest
	h.mutate(c, optionalBody(c, &req), func(id uuid.UUID, version int) (*model.AppointmentChange, error) {
		return h.service.ClearPrescription(c.Request.Context(), handler.Principal(c), id, version)
	}, func() int { return req.Version })
}

// DeleteAppointment succeeds for ids that no longer exist.
func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, ok := handler.ParseID(c, "id", "appointment")
	if !ok {
		return
	}

	deleted, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if ctx := event.FromContext(c); ctx != nil && deleted != nil {
		ctx.EventType = model.EventAppointmentDeleted
		ctx.OldData = deleted
		ctx.Additional = map[string]interface{}{
			"appointment_id": id,
		}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}

// mutate binds body (when non-nil), resolves the expected version and runs apply.
func (h *Handler) mutate(
	c *gin.Context,
	body interface{},
	apply func(id uuid.UUID, version int) (*model.AppointmentChange, error),
	bodyVersion func() int,
) {
	id, ok := handler.ParseID(c, "id", "appointment")
	if !ok {
		return
	}
	if body != nil && !handler.BindJSON(c, body) {
		return
	}
	version, ok := handler.ExpectedVersion(c, bodyVersion())
	if !ok {
		return
	}

	change, err := apply(id, version)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if ctx := event.FromContext(c); ctx != nil {
		ctx.EventType = changeEvent(change)
		ctx.OldData = change.Before
		ctx.NewData = change.After
		ctx.Additional = map[string]interface{}{
			"appointment_id": id,
			"version":        change.After.Version,
		}
		if t := change.Transition; t != nil {
			ctx.Additional["from_status"] = t.From
			ctx.Additional["to_status"] = t.To
			ctx.Additional["flagged_transition"] = t.Flagged
		}
	}

	handler.SetVersionHeader(c, change.After.Version)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(change))
}

func changeEvent(change *model.AppointmentChange) string {
	before, after := change.Before, change.After
	switch {
	case before.Date != after.Date || before.Time != after.Time:
		return model.EventAppointmentRescheduled
	case change.Transition != nil:
		return model.EventAppointmentStatusChanged
	}
	return model.EventAppointmentUpdated
}

// optionalBody returns req when the request carries a body, nil otherwise.
func optionalBody(c *gin.Context, req interface{}) interface{} {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return req
}

func parseFilter(c *gin.Context) (*model.AppointmentFilter, bool) {
	filter := &model.AppointmentFilter{
		PatientEmail: c.Query("email"),
		DoctorName:   c.Query("doctor"),
		Date:         c.Query("date"),
		DateFrom:     c.Query("from"),
		DateTo:       c.Query("to"),
		Search:       c.Query("search"),
	}

	if id := c.Query("doctor_id"); id != "" {
		doctorID, err := uuid.Parse(id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid doctor ID"))
			return nil, false
		}
		filter.DoctorID = &doctorID
	}

	if status := c.Query("status"); status != "" {
		filter.Status = model.AppointmentStatus(status)
		if !filter.Status.Valid() {
			c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid status"))
			return nil, false
		}
	}

	switch order := model.AppointmentOrder(c.Query("order")); order {
	case "", model.OrderCreatedDesc, model.OrderTimeAsc, model.OrderDateDesc:
		filter.OrderBy = order
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, handler.NewErrorResponse("invalid order"))
		return nil, false
	}

	return filter, true
}
