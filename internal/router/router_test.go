package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/handler"
	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type stubAuthenticator struct {
	principals map[string]*models.Principal
}

func (s stubAuthenticator) ExpiredSubject(string) string { return "" }

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*models.Principal, error) {
	if p, ok := s.principals[token]; ok {
		return p, nil
	}
	return nil, appErrors.ErrUnauthorized
}

func (s stubAuthenticator) SilentRefresh(context.Context, string, string) (*service.SilentRefreshResult, error) {
	return nil, appErrors.ErrSessionExpired
}

type deniedLog struct {
	entries []models.AuditEntry
}

func (d *deniedLog) Record(_ context.Context, entry models.AuditEntry) {
	d.entries = append(d.entries, entry)
}

func newTestRouter(t *testing.T) (*gin.Engine, *deniedLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	audit := &deniedLog{}
	Register(r, Options{
		Prefix: "/api/v1",
		Authenticator: stubAuthenticator{principals: map[string]*models.Principal{
			"teacher-token": {UserID: "t1", Username: "docente", Roles: []string{models.RoleTeacher}},
		}},
		Audit:  audit,
		Logger: zap.NewNop(),
	}, Handlers{
		Auth:           handler.NewAuthHandler(nil, middleware.Cookies{}),
		Users:          handler.NewUserHandler(nil),
		Roles:          handler.NewRoleHandler(nil),
		Periods:        handler.NewPeriodHandler(nil),
		Structure:      handler.NewStructureHandler(nil),
		Students:       handler.NewStudentHandler(nil),
		Guardians:      handler.NewGuardianHandler(nil),
		Teachers:       handler.NewTeacherHandler(nil),
		Enrollments:    handler.NewEnrollmentHandler(nil),
		Vacation:       handler.NewVacationHandler(nil),
		PreEnrollments: handler.NewPreEnrollmentHandler(nil),
		Activity:       handler.NewActivityHandler(nil),
	})
	return r, audit
}

func TestRoutesRequireAuthentication(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/api/v1/users", "/api/v1/enrollments", "/api/v1/auth/me", "/api/v1/periods/active"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRoutesEnforcePermissions(t *testing.T) {
	r, audit := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPut, "/api/v1/users/u1/roles"},
		{http.MethodPost, "/api/v1/users/u1/reset-password"},
		{http.MethodGet, "/api/v1/enrollments/export"},
		{http.MethodPost, "/api/v1/enrollments"},
		{http.MethodPatch, "/api/v1/enrollments/e1/status"},
		{http.MethodPost, "/api/v1/enrollments/auto"},
		{http.MethodPost, "/api/v1/vacation/enrollments/v1/verify-payment"},
		{http.MethodGet, "/api/v1/vacation/receipts"},
		{http.MethodPost, "/api/v1/pre-enrollments/p1/convert"},
		{http.MethodPut, "/api/v1/quotas"},
		{http.MethodGet, "/api/v1/activity-logs"},
		{http.MethodDelete, "/api/v1/sections/s1"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer teacher-token")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}

	require.Len(t, audit.entries, len(cases))
	assert.Equal(t, models.ActionAccessDenied, audit.entries[0].Action)
	assert.Equal(t, "t1", audit.entries[0].EntityID)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grades-report", nil)
	req.Header.Set("Authorization", "Bearer teacher-token")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
