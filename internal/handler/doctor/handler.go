package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/doctor"
	"github.com/jwalitptl/hospital-api/pkg/event"
)

type Handler struct {
	service *doctor.Service
}

func NewHandler(service *doctor.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutesWithEvents(r *gin.RouterGroup, eventTracker *event.EventTrackerMiddleware) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", eventTracker.TrackEvent("doctor", "create"), h.CreateDoctor)
		doctors.PUT("/:id", eventTracker.TrackEvent("doctor", "update"), h.UpdateDoctor)
		doctors.DELETE("/:id", eventTracker.TrackEvent("doctor", "delete"), h.DeleteDoctor)
		doctors.GET("", h.ListDoctors)
		doctors.GET("/:id", h.GetDoctor)
	}
}

// RegisterPublicRoutes mounts the unauthenticated directory listing.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.GET("/doctors", h.PublicListing)
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	d, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if ctx := event.FromContext(c); ctx != nil {
		ctx.NewData = d
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(d))
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id", "doctor")
	if !ok {
		return
	}

	d, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(d))
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.List(c.Request.Context(), &model.DoctorFilter{
		Specialty: c.Query("specialty"),
		Search:    c.Query("search"),
	})
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) PublicListing(c *gin.Context) {
	doctors, err := h.service.PublicListing(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

// UpdateDoctor does not touch appointments already booked with the doctor.
func (h *Handler) UpdateDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id", "doctor")
	if !ok {
		return
	}

	var req model.UpdateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	old, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	d, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	if ctx := event.FromContext(c); ctx != nil {
		ctx.OldData = old
		ctx.NewData = d
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(d))
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id", "doctor")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}

	if ctx := event.FromContext(c); ctx != nil {
		ctx.OldData = gin.H{"id": id}
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"id": id}))
}
