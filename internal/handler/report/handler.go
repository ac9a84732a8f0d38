package report

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/hospital-api/internal/handler"
	"github.com/jwalitptl/hospital-api/internal/service/report"
)

type Handler struct {
	service *report.Service
}

func NewHandler(service *report.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("/daily", h.Daily)
		reports.GET("/weekly", h.Weekly)
		reports.GET("/daily.csv", h.DailyCSV)
		reports.GET("/daily.pdf", h.DailyPDF)
	}
}

// Daily takes ?date=YYYY-MM-DD and defaults to today.
func (h *Handler) Daily(c *gin.Context) {
	daily, err := h.service.Daily(c.Request.Context(), c.Query("date"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(daily))
}

// Weekly returns the seven days ending at ?end=YYYY-MM-DD, today by default.
func (h *Handler) Weekly(c *gin.Context) {
	days, err := h.service.LastSevenDays(c.Request.Context(), c.Query("end"))
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(days))
}

func (h *Handler) DailyCSV(c *gin.Context) {
	var buf bytes.Buffer
	date, err := h.service.ExportCSV(c.Request.Context(), c.Query("date"), &buf)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="appointments-%s.csv"`, date))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) DailyPDF(c *gin.Context) {
	var buf bytes.Buffer
	date, err := h.service.ExportPDF(c.Request.Context(), c.Query("date"), &buf)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="appointments-%s.pdf"`, date))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
