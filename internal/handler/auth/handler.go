package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/service/auth"
	"github.com/jwalitptl/hospital-api/internal/service/patient"
)

type Handler struct {
	svc      *auth.Service
	patients *patient.Service
}

func NewHandler(svc *auth.Service, patients *patient.Service) *Handler {
	return &Handler{svc: svc, patients: patients}
}

// RegisterRoutes mounts the public endpoints. authenticated must already
// resolve the principal.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, authenticated gin.HandlerFunc) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", h.Login)
		auth.POST("/signup", h.Signup)
		auth.GET("/me", authenticated, h.Me)
	}
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(tokens))
}

// Signup registers a patient with a login.
func (h *Handler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.patients.Signup(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) Me(c *gin.Context) {
	principal := handler.Principal(c)

	profile, err := h.svc.Profile(c.Request.Context(), principal)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"principal": principal,
		"profile":   profile,
	}))
}
