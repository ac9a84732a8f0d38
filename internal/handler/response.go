package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hospital-api/internal/model"
	apperrors "github.com/jwalitptl/hospital-api/pkg/errors"
)

const principalKey = "principal"

type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// RespondError writes err in the error envelope with the status its AppError
// carries. Anything else is a 500.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp := NewErrorResponse(appErr.Message)
		resp.Fields = appErr.Fields
		c.AbortWithStatusJSON(appErr.StatusCode(), resp)
		return
	}

	log.Error().Err(err).
		Str("path", c.FullPath()).
		Str("request_id", c.GetString("request_id")).
		Msg("Request failed")
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, NewErrorResponse(err.Error()))
}

// BindJSON decodes the body into req and reports a malformed body as a 400.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// ParseID reads a uuid path parameter.
func ParseID(c *gin.Context, param, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid "+resource+" ID"))
		return uuid.Nil, false
	}
	return id, true
}

// ExpectedVersion returns the version a write is conditioned on. An If-Match
// header takes precedence over the body field; 0 means unconditional.
func ExpectedVersion(c *gin.Context, bodyVersion int) (int, bool) {
	header := strings.Trim(strings.TrimPrefix(c.GetHeader("If-Match"), "W/"), `"`)
	if header == "" {
		return bodyVersion, true
	}
	v, err := strconv.Atoi(header)
	if err != nil || v < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("If-Match must be an appointment version"))
		return 0, false
	}
	return v, true
}

// SetVersionHeader exposes the stored version as an ETag.
func SetVersionHeader(c *gin.Context, version int) {
	c.Header("ETag", strconv.Quote(strconv.Itoa(version)))
}

func SetPrincipal(c *gin.Context, p *model.Principal) {
	c.Set(principalKey, p)
}

// Principal returns the authenticated caller, or nil on public routes.
func Principal(c *gin.Context) *model.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*model.Principal)
	return p
}

// EventActor identifies the caller on recorded change events.
func EventActor(c *gin.Context) *model.EventActor {
	p := Principal(c)
	if p == nil {
		return nil
	}
	return &model.EventActor{ID: p.SubjectID.String(), Role: string(p.Role)}
}
