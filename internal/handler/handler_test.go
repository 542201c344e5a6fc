package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/health-registry-api/internal/models"
	"github.com/noah-isme/health-registry-api/internal/service"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

type programServiceMock struct {
	listResp   []models.Program
	lastFilter models.ProgramFilter
	deleteErr  error
	deleted    string
}

func (m *programServiceMock) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, &models.Pagination{Page: 1, PageSize: 100, TotalCount: len(m.listResp)}, nil
}

func (m *programServiceMock) Get(ctx context.Context, id string) (*models.Program, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
}

func (m *programServiceMock) Create(ctx context.Context, req service.ProgramRequest) (*models.Program, error) {
	return &models.Program{ID: "p1", Name: req.Name}, nil
}

func (m *programServiceMock) Update(ctx context.Context, id string, req service.ProgramRequest) (*models.Program, error) {
	return &models.Program{ID: id, Name: req.Name}, nil
}

func (m *programServiceMock) Patch(ctx context.Context, id string, req service.ProgramPatchRequest) (*models.Program, error) {
	return &models.Program{ID: id}, nil
}

func (m *programServiceMock) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return m.deleteErr
}

type enrollerMock struct {
	result    *models.EnrollResult
	err       error
	clientErr error
	called    bool
	clientID  string
	req       service.EnrollRequest
}

func (m *enrollerMock) RequireClient(ctx context.Context, clientID string) (*models.Client, error) {
	if m.clientErr != nil {
		return nil, m.clientErr
	}
	return &models.Client{ID: clientID}, nil
}

func (m *enrollerMock) Enroll(ctx context.Context, clientID string, req service.EnrollRequest) (*models.EnrollResult, error) {
	m.called = true
	m.clientID = clientID
	m.req = req
	return m.result, m.err
}

type enrollmentServiceMock struct {
	lastFilter models.EnrollmentFilter
	createErr  error
}

func (m *enrollmentServiceMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.EnrollmentDetail{}, &models.Pagination{Page: 1, PageSize: 100}, nil
}

func (m *enrollmentServiceMock) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id}}, nil
}

func (m *enrollmentServiceMock) Create(ctx context.Context, req service.CreateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return nil, m.createErr
}

func (m *enrollmentServiceMock) Update(ctx context.Context, id string, req service.UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return nil, nil
}

func (m *enrollmentServiceMock) Patch(ctx context.Context, id string, req service.PatchEnrollmentRequest) (*models.EnrollmentDetail, error) {
	return nil, nil
}

func (m *enrollmentServiceMock) Delete(ctx context.Context, id string) error {
	return nil
}

func newTestRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.RedirectTrailingSlash = false
	RegisterRoutes(r.Group("/api"), h)
	return r
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	return payload
}

func TestRoutesAcceptTrailingSlashAndBareForms(t *testing.T) {
	programs := &programServiceMock{listResp: []models.Program{{ID: "p1", Name: "HIV Program"}}}
	r := newTestRouter(Handlers{Programs: NewProgramHandler(programs)})

	for _, path := range []string{"/api/programs", "/api/programs/"} {
		w := perform(r, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		payload := decode(t, w)
		assert.Len(t, payload["data"], 1)
		assert.NotNil(t, payload["pagination"])
	}

	w := perform(r, http.MethodDelete, "/api/programs/p1/", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "p1", programs.deleted)
}

func TestProgramListPassesSearchAndPaging(t *testing.T) {
	programs := &programServiceMock{}
	r := newTestRouter(Handlers{Programs: NewProgramHandler(programs)})

	w := perform(r, http.MethodGet, "/api/programs/?search=%20hiv%20&page=2&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hiv", programs.lastFilter.Search)
	assert.Equal(t, 2, programs.lastFilter.Page)
	assert.Equal(t, 10, programs.lastFilter.PageSize)
}

func TestProgramListWithoutPagingParamsIsUnpaged(t *testing.T) {
	programs := &programServiceMock{}
	r := newTestRouter(Handlers{Programs: NewProgramHandler(programs)})

	w := perform(r, http.MethodGet, "/api/programs/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, programs.lastFilter.Page)
	assert.Zero(t, programs.lastFilter.PageSize)
}

func TestProgramGetNotFoundUsesEnvelope(t *testing.T) {
	r := newTestRouter(Handlers{Programs: NewProgramHandler(&programServiceMock{})})

	w := perform(r, http.MethodGet, "/api/programs/missing", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	errPayload := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "NOT_FOUND", errPayload["code"])
	assert.Equal(t, "program not found", errPayload["message"])
}

func TestProgramCreateRejectsMalformedJSON(t *testing.T) {
	r := newTestRouter(Handlers{Programs: NewProgramHandler(&programServiceMock{})})

	w := perform(r, http.MethodPost, "/api/programs/", `{"name":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errPayload := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, appErrors.ErrValidation.Code, errPayload["code"])
}

func TestEnrollReturnsFlatMessage(t *testing.T) {
	enroller := &enrollerMock{result: &models.EnrollResult{
		Outcome: models.EnrollOutcomeEnrolled,
		Message: "Client successfully enrolled in HIV Program",
	}}
	r := newTestRouter(Handlers{Clients: NewClientHandler(nil, enroller)})

	w := perform(r, http.MethodPost, "/api/clients/c1/enroll/", `{"program_id":"p1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Client successfully enrolled in HIV Program"}`, w.Body.String())
	assert.Equal(t, "c1", enroller.clientID)
	assert.Equal(t, "p1", enroller.req.ProgramID)
}

func TestEnrollRendersFlatErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "missing program id",
			err:    appErrors.Validation("Program ID is required"),
			status: http.StatusBadRequest,
			body:   `{"error":"Program ID is required"}`,
		},
		{
			name:   "unknown client",
			err:    appErrors.Clone(appErrors.ErrNotFound, "client not found"),
			status: http.StatusNotFound,
			body:   `{"error":"client not found"}`,
		},
		{
			name:   "storage failure",
			err:    appErrors.Internal(errors.New("disk full"), "failed to create enrollment"),
			status: http.StatusInternalServerError,
			body:   `{"error":"internal server error"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(Handlers{Clients: NewClientHandler(nil, &enrollerMock{err: tc.err})})
			w := perform(r, http.MethodPost, "/api/clients/c1/enroll", `{}`)
			require.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.body, w.Body.String())
		})
	}
}

func TestEnrollTreatsEmptyBodyAsMissingProgram(t *testing.T) {
	enroller := &enrollerMock{err: appErrors.Validation("Program ID is required")}
	r := newTestRouter(Handlers{Clients: NewClientHandler(nil, enroller)})

	w := perform(r, http.MethodPost, "/api/clients/c1/enroll/", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, enroller.called)
	assert.Empty(t, enroller.req.ProgramID)
}

func TestEnrollRejectsMalformedBody(t *testing.T) {
	enroller := &enrollerMock{}
	r := newTestRouter(Handlers{Clients: NewClientHandler(nil, enroller)})

	w := perform(r, http.MethodPost, "/api/clients/c1/enroll/", `{"program_id": 12}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid payload"}`, w.Body.String())
	assert.False(t, enroller.called)
}

func TestEnrollMalformedBodyForUnknownClientIsNotFound(t *testing.T) {
	enroller := &enrollerMock{clientErr: appErrors.Clone(appErrors.ErrNotFound, "client not found")}
	r := newTestRouter(Handlers{Clients: NewClientHandler(nil, enroller)})

	w := perform(r, http.MethodPost, "/api/clients/missing/enroll/", `{"program_id":`)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"client not found"}`, w.Body.String())
	assert.False(t, enroller.called)
}

func TestEnrollmentListParsesFilters(t *testing.T) {
	enrollments := &enrollmentServiceMock{}
	r := newTestRouter(Handlers{Enrollments: NewEnrollmentHandler(enrollments)})

	w := perform(r, http.MethodGet, "/api/enrollments/?client_id=c1&active=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", enrollments.lastFilter.ClientID)
	require.NotNil(t, enrollments.lastFilter.Active)
	assert.False(t, *enrollments.lastFilter.Active)

	w = perform(r, http.MethodGet, "/api/enrollments?active=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentCreateConstraintViolation(t *testing.T) {
	enrollments := &enrollmentServiceMock{createErr: appErrors.Clone(appErrors.ErrConstraintViolation, "client is already enrolled in this program")}
	r := newTestRouter(Handlers{Enrollments: NewEnrollmentHandler(enrollments)})

	w := perform(r, http.MethodPost, "/api/enrollments/", `{"client_id":"c1","program_id":"p1"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	errPayload := decode(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "CONSTRAINT_VIOLATION", errPayload["code"])
}

type pingerStub struct {
	err error
}

func (p pingerStub) PingContext(ctx context.Context) error {
	return p.err
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	NewMetricsHandler(service.NewMetricsService(), pingerStub{}, nil).Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	core, logs := observer.New(zap.WarnLevel)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	NewMetricsHandler(nil, pingerStub{err: errors.New("dial tcp 10.0.0.5:5432: connection refused")}, zap.New(core)).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.JSONEq(t, `{"status":"unavailable","error":"database unavailable"}`, w.Body.String())

	entries := logs.FilterMessage("readiness ping failed").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "connection refused")
}
