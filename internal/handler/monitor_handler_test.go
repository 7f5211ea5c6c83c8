package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grademonitor-api/internal/models"
	"github.com/noah-isme/grademonitor-api/internal/projection"
	"github.com/noah-isme/grademonitor-api/internal/service"
	appErrors "github.com/noah-isme/grademonitor-api/pkg/errors"
)

type monitorServiceMock struct {
	openScope   models.MonitorScope
	openErr     error
	view        *service.SessionView
	viewErr     error
	dispatched  []projection.Command
	result      *service.CommandResult
	dispatchErr error
	closed      []string
	closeErr    error
}

func (m *monitorServiceMock) Open(ctx context.Context, scope models.MonitorScope) (*service.SessionView, error) {
	m.openScope = scope
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &service.SessionView{ID: "sess-1", Scope: scope}, nil
}

func (m *monitorServiceMock) View(id string) (*service.SessionView, error) {
	return m.view, m.viewErr
}

func (m *monitorServiceMock) Dispatch(id string, cmd projection.Command) (*service.CommandResult, error) {
	m.dispatched = append(m.dispatched, cmd)
	return m.result, m.dispatchErr
}

func (m *monitorServiceMock) Close(id string) error {
	m.closed = append(m.closed, id)
	return m.closeErr
}

type exporterMock struct {
	format string
	result *service.ExportResult
	err    error
}

func (e *exporterMock) Export(id, format string) (*service.ExportResult, error) {
	e.format = format
	return e.result, e.err
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestMonitorHandlerOpenSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &monitorServiceMock{}
	h := NewMonitorHandler(svc, nil, nil, nil)

	c, w := newGinContext(http.MethodPost, "/monitor/sessions", []byte(`{"userId":100,"courseId":7,"contextId":3}`))
	c.Request.Header.Set("Accept-Language", "de-AT")
	h.OpenSession(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.MonitorScope{UserID: 100, CourseID: 7, ContextID: 3, Locale: "de-AT"}, svc.openScope)
	assert.Contains(t, w.Body.String(), `"id":"sess-1"`)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestMonitorHandlerOpenSessionValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMonitorHandler(&monitorServiceMock{}, nil, nil, nil)

	c, w := newGinContext(http.MethodPost, "/monitor/sessions", []byte(`{"userId":100}`))
	h.OpenSession(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w))
}

func TestMonitorHandlerOpenSessionUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMonitorHandler(&monitorServiceMock{openErr: appErrors.ErrMonitorUnavailable}, nil, nil, nil)

	c, w := newGinContext(http.MethodPost, "/monitor/sessions", []byte(`{"userId":100,"courseId":7}`))
	h.OpenSession(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "MONITOR_UNAVAILABLE", decodeError(t, w))
}

func TestMonitorHandlerDispatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &monitorServiceMock{result: &service.CommandResult{Update: projection.Update{SelfEstimation: "2"}}}
	h := NewMonitorHandler(svc, nil, nil, nil)

	c, w := newGinContext(http.MethodPost, "/monitor/sessions/sess-1/commands", []byte(`{"type":"set_estimate","index":1,"percent":90}`))
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	h.Dispatch(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.dispatched, 1)
	assert.Equal(t, projection.SetEstimate{Index: 1, Percent: 90}, svc.dispatched[0])
	assert.Contains(t, w.Body.String(), `"selfEstimation":"2"`)
}

func TestMonitorHandlerDispatchErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad json", `{"type":`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"out of range", `{"type":"set_estimate","index":1,"percent":101}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing field", `{"type":"set_goal"}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"assessed", `{"type":"set_included","index":0,"included":false}`, appErrors.ErrItemAssessed, http.StatusUnprocessableEntity, "ITEM_ASSESSED"},
		{"unknown session", `{"type":"dismiss_scheme_notice"}`, appErrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewMonitorHandler(&monitorServiceMock{dispatchErr: tc.err}, nil, nil, nil)
			c, w := newGinContext(http.MethodPost, "/monitor/sessions/sess-1/commands", []byte(tc.body))
			c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
			h.Dispatch(c)
			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w))
		})
	}
}

func TestMonitorHandlerGetSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMonitorHandler(&monitorServiceMock{view: &service.SessionView{ID: "sess-1", PendingChanges: true}}, nil, nil, nil)

	c, w := newGinContext(http.MethodGet, "/monitor/sessions/sess-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	h.GetSession(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pendingChanges":true`)
}

func TestMonitorHandlerCloseAndBeacon(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &monitorServiceMock{}
	h := NewMonitorHandler(svc, nil, nil, nil)

	c, w := newGinContext(http.MethodDelete, "/monitor/sessions/sess-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	h.CloseSession(c)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/monitor/sessions/sess-2/beacon", strings.NewReader("bye"))
	c.Request.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	c.Params = gin.Params{{Key: "id", Value: "sess-2"}}
	h.Beacon(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"sess-1", "sess-2"}, svc.closed)

	svc.closeErr = appErrors.ErrNotFound
	c, w = newGinContext(http.MethodDelete, "/monitor/sessions/gone", nil)
	c.Params = gin.Params{{Key: "id", Value: "gone"}}
	h.CloseSession(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newGinContext(http.MethodPost, "/monitor/sessions/gone/beacon", nil)
	c.Params = gin.Params{{Key: "id", Value: "gone"}}
	h.Beacon(c)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMonitorHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := &exporterMock{result: &service.ExportResult{Filename: "grade-monitor-sess.csv", ContentType: "text/csv", Data: []byte("a,b\n")}}
	h := NewMonitorHandler(&monitorServiceMock{}, exporter, nil, nil)

	c, w := newGinContext(http.MethodGet, "/monitor/sessions/sess-1/export", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "grade-monitor-sess.csv")
	assert.Equal(t, "a,b\n", w.Body.String())

	exporter.err = errors.New("boom")
	c, w = newGinContext(http.MethodGet, "/monitor/sessions/sess-1/export?format=pdf", nil)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	h.Export(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "pdf", exporter.format)
}
