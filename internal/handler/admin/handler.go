package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/auth"
	"github.com/jwalitptl/hospital-api/internal/service/report"
)

type Handler struct {
	reports *report.Service
	auth    *auth.Service
}

func NewHandler(reports *report.Service, auth *auth.Service) *Handler {
	return &Handler{reports: reports, auth: auth}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.Dashboard)
	r.POST("/staff", h.CreateStaff)
}

func (h *Handler) Dashboard(c *gin.Context) {
	stats, err := h.reports.Dashboard(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(stats))
}

// CreateStaff registers another administrator or receptionist.
func (h *Handler) CreateStaff(c *gin.Context) {
	var req model.CreateStaffRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	staff, err := h.auth.CreateStaff(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, handler.NewSuccessResponse(gin.H{
		"role":  req.Role,
		"staff": staff,
	}))
}
