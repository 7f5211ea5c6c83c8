package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/grademonitor-api/internal/dto"
	"github.com/noah-isme/grademonitor-api/internal/middleware"
	"github.com/noah-isme/grademonitor-api/internal/models"
	"github.com/noah-isme/grademonitor-api/internal/projection"
	"github.com/noah-isme/grademonitor-api/internal/service"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
	"github.com/noah-isme/grademonitor-api/pkg/response"
)

// beaconBodyLimit caps how much of a page-departure body is read and discarded.
const beaconBodyLimit = 64 << 10

type monitorService interface {
	Open(ctx context.Context, scope models.MonitorScope) (*service.SessionView, error)
	View(id string) (*service.SessionView, error)
	Dispatch(id string, cmd projection.Command) (*service.CommandResult, error)
	Close(id string) error
}

type monitorExporter interface {
	Export(id, format string) (*service.ExportResult, error)
}

// MonitorHandler exposes the interactive grade monitor.
type MonitorHandler struct {
	monitors  monitorService
	exports   monitorExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMonitorHandler constructs the handler.
func NewMonitorHandler(monitors monitorService, exports monitorExporter, validate *validator.Validate, logger *zap.Logger) *MonitorHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitorHandler{monitors: monitors, exports: exports, validator: validate, logger: logger}
}

// OpenSession godoc
// @Summary Open a grade monitor session
// @Tags Monitor
// @Accept json
// @Produce json
// @Param payload body dto.OpenSessionRequest true "Student and course"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /api/v1/monitor/sessions [post]
func (h *MonitorHandler) OpenSession(c *gin.Context) {
	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	if req.Locale == "" {
		req.Locale = c.GetHeader("Accept-Language")
	}
	view, err := h.monitors.Open(c.Request.Context(), req.Scope())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, view, middleware.ExtractMeta(c))
}

// GetSession godoc
// @Summary Current view of a monitor session
// @Tags Monitor
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /api/v1/monitor/sessions/{id} [get]
func (h *MonitorHandler) GetSession(c *gin.Context) {
	view, err := h.monitors.View(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetPendingChanges(c, view.PendingChanges)
	response.JSON(c, http.StatusOK, view, middleware.ExtractMeta(c))
}

// Dispatch godoc
// @Summary Apply one edit to a monitor session
// @Tags Monitor
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.CommandRequest true "Command"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /api/v1/monitor/sessions/{id}/commands [post]
func (h *MonitorHandler) Dispatch(c *gin.Context) {
	var req dto.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	cmd, err := req.ToCommand()
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.monitors.Dispatch(c.Param("id"), cmd)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetPendingChanges(c, true)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// CloseSession godoc
// @Summary Flush and close a monitor session
// @Tags Monitor
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /api/v1/monitor/sessions/{id} [delete]
func (h *MonitorHandler) CloseSession(c *gin.Context) {
	if err := h.monitors.Close(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Beacon godoc
// @Summary Page departure signal
// @Description Accepts any body, including text/plain from navigator.sendBeacon, and closes the session.
// @Tags Monitor
// @Accept plain
// @Param id path string true "Session ID"
// @Success 204
// @Router /api/v1/monitor/sessions/{id}/beacon [post]
func (h *MonitorHandler) Beacon(c *gin.Context) {
	if c.Request.Body != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(c.Request.Body, beaconBodyLimit))
	}
	if err := h.monitors.Close(c.Param("id")); err != nil {
		h.logger.Debug("beacon for unknown session", zap.String("session_id", c.Param("id")), zap.Error(err))
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download the monitor table
// @Tags Monitor
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /api/v1/monitor/sessions/{id}/export [get]
func (h *MonitorHandler) Export(c *gin.Context) {
	result, err := h.exports.Export(c.Param("id"), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}
