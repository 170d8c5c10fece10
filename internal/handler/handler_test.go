package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"programhub/internal/apperr"
	"programhub/internal/attendance"
	"programhub/internal/audit"
	"programhub/internal/auth"
	"programhub/internal/course"
	"programhub/internal/httpmiddleware"
	"programhub/internal/report"
	"programhub/internal/user"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testKey    = "test-key"
	testIssuer = "programhub"
)

type fakeUsers struct {
	UserService
	active     bool
	registered []*auth.Principal
}

func (f *fakeUsers) Register(_ context.Context, actor *auth.Principal, in user.RegisterInput) (user.User, error) {
	f.registered = append(f.registered, actor)
	return user.User{ID: "new", Name: in.Name, Email: in.Email}, nil
}

func (f *fakeUsers) IsActive(context.Context, string) (bool, error) { return f.active, nil }

func (f *fakeUsers) Login(_ context.Context, email, password string) (user.Session, error) {
	if password != "secret" {
		return user.Session{}, apperr.Unauthorized("Invalid user credentials")
	}
	return user.Session{User: user.User{ID: "u1", Email: email}, AccessToken: "tok"}, nil
}

type fakeAttendance struct {
	AttendanceService
	last    attendance.MarkInput
	created bool
}

func (f *fakeAttendance) Mark(_ context.Context, in attendance.MarkInput) (attendance.Record, bool, error) {
	f.last = in
	return attendance.Record{ID: "rec-1", UserID: in.UserID, ProgramID: in.ProgramID}, f.created, nil
}

type fakeCourses struct {
	CourseService
	last course.CreateCourseInput
}

func (f *fakeCourses) CreateCourse(_ context.Context, _ auth.Principal, in course.CreateCourseInput) (course.Course, error) {
	f.last = in
	if in.Document == nil {
		return course.Course{}, apperr.BadRequest("Course content document is required.")
	}
	return course.Course{ID: "c1", Title: in.Title}, nil
}

type fakeReports struct {
	ReportService
	lastFilter audit.Filter
}

func (f *fakeReports) ProgramPDF(_ context.Context, id string) ([]byte, error) {
	if id != "p1" {
		return nil, apperr.NotFound("Program not found.")
	}
	return []byte("%PDF-1.3 test"), nil
}

func (f *fakeReports) MasterLog(_ context.Context, flt audit.Filter) (audit.Page, error) {
	f.lastFilter = flt
	return audit.Page{Logs: []audit.Log{}, Page: 1, Limit: 20}, nil
}

func (f *fakeReports) Dashboard(context.Context) (report.Dashboard, error) {
	return report.Dashboard{TotalPrograms: 2}, nil
}

type nopReporter struct{}

func (nopReporter) Error(string, error, ...map[string]interface{}) {}

type fixture struct {
	router     *gin.Engine
	users      *fakeUsers
	attendance *fakeAttendance
	courses    *fakeCourses
	reports    *fakeReports
}

func newFixture() *fixture {
	f := &fixture{
		users:      &fakeUsers{active: true},
		attendance: &fakeAttendance{},
		courses:    &fakeCourses{},
		reports:    &fakeReports{},
	}
	h := New(Config{JWTSigningKey: testKey, JWTIssuer: testIssuer}, Services{
		Users:      f.users,
		Attendance: f.attendance,
		Courses:    f.courses,
		Reports:    f.reports,
	})
	r := gin.New()
	r.Use(httpmiddleware.ErrorResponder(nopReporter{}))
	h.Register(r)
	Docs(r)
	f.router = r
	return f
}

func token(t *testing.T, id string, role auth.Role) string {
	t.Helper()
	tok, err := auth.Issue(auth.Principal{ID: id, Role: role, Name: "n"}, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok.AccessToken
}

func (f *fixture) do(req *http.Request, authz string) *httptest.ResponseRecorder {
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestLogin(t *testing.T) {
	f := newFixture()

	rec := f.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"secret"}`), "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := envelope(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(200), body["statusCode"])
	assert.Equal(t, "tok", body["data"].(map[string]any)["accessToken"])

	rec = f.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co","password":"nope"}`), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, envelope(t, rec)["success"])

	rec = f.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"a@b.co"}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := envelope(t, rec)["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "password", errs[0].(map[string]any)["field"])
}

func TestAuthAndRoles(t *testing.T) {
	f := newFixture()
	get := func() *http.Request { return httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil) }

	assert.Equal(t, http.StatusUnauthorized, f.do(get(), "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(get(), token(t, "t1", auth.RoleTrainee)).Code)
	assert.Equal(t, http.StatusOK, f.do(get(), token(t, "a1", auth.RoleSuperAdmin)).Code)

	f.users.active = false
	assert.Equal(t, http.StatusUnauthorized, f.do(get(), token(t, "a1", auth.RoleSuperAdmin)).Code)
}

func TestRegisterIdentifiesCaller(t *testing.T) {
	f := newFixture()
	body := `{"name":"Root","email":"root@b.co","role":"SuperAdmin"}`
	post := func() *http.Request { return jsonRequest(http.MethodPost, "/api/v1/auth/register", body) }

	rec := f.do(post(), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.users.registered, 1)
	assert.Nil(t, f.users.registered[0])

	rec = f.do(post(), token(t, "a1", auth.RoleSuperAdmin))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, f.users.registered, 2)
	require.NotNil(t, f.users.registered[1])
	assert.Equal(t, "a1", f.users.registered[1].ID)

	f.users.active = false
	rec = f.do(post(), token(t, "a1", auth.RoleSuperAdmin))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account is deactivated.", envelope(t, rec)["message"])
	assert.Len(t, f.users.registered, 2)
}

func TestMarkAttendance(t *testing.T) {
	f := newFixture()
	body := `{"programId":"p1","method":"Geolocation","data":{"latitude":1.5,"longitude":2.5}}`

	f.attendance.created = true
	rec := f.do(jsonRequest(http.MethodPost, "/api/v1/attendance/mark", body), token(t, "t1", auth.RoleTrainee))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Check-in successful.", envelope(t, rec)["message"])
	assert.Equal(t, "t1", f.attendance.last.UserID)
	assert.Equal(t, attendance.MethodGeolocation, f.attendance.last.Method)
	require.NotNil(t, f.attendance.last.Data.Latitude)
	assert.Equal(t, 1.5, *f.attendance.last.Data.Latitude)

	f.attendance.created = false
	rec = f.do(jsonRequest(http.MethodPost, "/api/v1/attendance/mark", body), token(t, "t1", auth.RoleTrainee))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Check-out successful.", envelope(t, rec)["message"])

	rec = f.do(jsonRequest(http.MethodPost, "/api/v1/attendance/mark", body), token(t, "m1", auth.RoleProgramManager))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, fileName string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestCreateCourseUpload(t *testing.T) {
	f := newFixture()
	fields := map[string]string{"title": "Go", "programId": "p1"}

	req := multipartRequest(t, "/api/v1/courses", fields, "courseDocument", "syllabus.pdf", []byte("doc"))
	rec := f.do(req, token(t, "f1", auth.RoleFacilitator))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, f.courses.last.Document)
	assert.Equal(t, "syllabus.pdf", f.courses.last.Document.Name)
	assert.Equal(t, []byte("doc"), f.courses.last.Document.Data)
	assert.Equal(t, "p1", f.courses.last.ProgramID)

	req = multipartRequest(t, "/api/v1/courses", fields, "", "", nil)
	rec = f.do(req, token(t, "f1", auth.RoleFacilitator))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Course content document is required.", envelope(t, rec)["message"])
}

func TestProgramPDF(t *testing.T) {
	f := newFixture()
	authz := token(t, "m1", auth.RoleProgramManager)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/programs/p1/report/pdf", nil), authz)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=program-report-p1.pdf", rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/programs/p2/report/pdf", nil), authz)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMasterLogFilters(t *testing.T) {
	f := newFixture()
	authz := token(t, "a1", auth.RoleSuperAdmin)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/master-log?action=USER_LOGIN&startDate=2024-07-01&endDate=2024-07-31&page=2", nil)
	rec := f.do(req, authz)
	require.Equal(t, http.StatusOK, rec.Code)
	flt := f.reports.lastFilter
	assert.Equal(t, audit.ActionUserLogin, flt.Action)
	assert.Equal(t, 2, flt.Page)
	require.NotNil(t, flt.To)
	assert.Equal(t, time.Date(2024, 7, 31, 23, 59, 59, 999999999, time.UTC), *flt.To)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/master-log?startDate=July", nil)
	assert.Equal(t, http.StatusBadRequest, f.do(req, authz).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reports/master-log", nil)
	assert.Equal(t, http.StatusForbidden, f.do(req, token(t, "m1", auth.RoleProgramManager)).Code)
}

func TestDocs(t *testing.T) {
	f := newFixture()
	rec := f.do(httptest.NewRequest(http.MethodGet, "/api-docs", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}
