package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthenticator struct {
	valid     map[string]*models.Principal
	expired   map[string]string
	refreshed *service.SilentRefreshResult
	gotUserID string
}

func (f *fakeAuthenticator) ExpiredSubject(token string) string {
	return f.expired[token]
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, token string) (*models.Principal, error) {
	if p, ok := f.valid[token]; ok {
		return p, nil
	}
	if _, ok := f.expired[token]; ok {
		return nil, appErrors.Wrap(jwt.ErrTokenExpired, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "token inválido")
	}
	return nil, appErrors.ErrUnauthorized
}

func (f *fakeAuthenticator) SilentRefresh(_ context.Context, refreshToken, userID string) (*service.SilentRefreshResult, error) {
	f.gotUserID = userID
	if f.refreshed == nil || refreshToken != "good-refresh" {
		return nil, appErrors.ErrSessionExpired
	}
	return f.refreshed, nil
}

type recordingAudit struct {
	entries []models.AuditEntry
}

func (r *recordingAudit) Record(_ context.Context, entry models.AuditEntry) {
	r.entries = append(r.entries, entry)
}

func protectedRouter(auth Authenticator, handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	chain := append([]gin.HandlerFunc{Auth(auth, Cookies{}, nil)}, handlers...)
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": PrincipalFrom(c).UserID})
	})
	r.GET("/secure", chain...)
	return r
}

func TestAuthAcceptsBearerAndCookie(t *testing.T) {
	auth := &fakeAuthenticator{valid: map[string]*models.Principal{"tok": {UserID: "u1"}}}
	r := protectedRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "u1")

	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "tok"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	r := protectedRouter(&fakeAuthenticator{})
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthSilentlyRefreshesExpiredCookie(t *testing.T) {
	auth := &fakeAuthenticator{
		expired: map[string]string{"old": "u1"},
		refreshed: &service.SilentRefreshResult{
			AccessToken: "new-token",
			ExpiresAt:   time.Now().Add(15 * time.Minute),
			Principal:   &models.Principal{UserID: "u1"},
		},
	}
	r := protectedRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "old"})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "good-refresh"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new-token", w.Header().Get(AccessTokenHeader))
	assert.Equal(t, "u1", auth.gotUserID)
	var found bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == AccessCookie {
			found = true
			assert.Equal(t, "new-token", ck.Value)
			assert.True(t, ck.HttpOnly)
			assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
		}
	}
	assert.True(t, found)
}

func TestAuthClearsCookiesWhenRefreshFails(t *testing.T) {
	auth := &fakeAuthenticator{expired: map[string]string{"old": "u1"}}
	r := protectedRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "old"})
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "bad"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	cleared := 0
	for _, ck := range w.Result().Cookies() {
		if ck.Value == "" && ck.MaxAge < 0 {
			cleared++
		}
	}
	assert.Equal(t, 2, cleared)
}

func clearedCookies(w *httptest.ResponseRecorder) int {
	n := 0
	for _, ck := range w.Result().Cookies() {
		if ck.Value == "" && ck.MaxAge < 0 {
			n++
		}
	}
	return n
}

func TestAuthClearsCookiesWhenBearerTokenFails(t *testing.T) {
	auth := &fakeAuthenticator{expired: map[string]string{"old": "u1"}}
	r := protectedRouter(auth)

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer old")
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "bad"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 2, clearedCookies(w))

	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Token abc")
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: "bad"})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 2, clearedCookies(w))
}

func TestRequirePermission(t *testing.T) {
	auth := &fakeAuthenticator{valid: map[string]*models.Principal{
		"reader": {UserID: "u1", Permissions: []string{"estudiantes.leer"}},
		"other":  {UserID: "u2", Permissions: []string{"docentes.leer"}},
		"root":   {UserID: "u3", Roles: []string{models.RoleSuperAdmin}},
	}}
	recorder := &recordingAudit{}
	r := protectedRouter(auth, RequirePermission(recorder, Perm(models.ModuleStudents, models.ActionRead)))

	cases := map[string]int{"reader": http.StatusOK, "other": http.StatusForbidden, "root": http.StatusOK}
	for token, status := range cases {
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, token)
	}

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.ActionAccessDenied, entry.Action)
	assert.Equal(t, models.OutcomeFailure, entry.Outcome)
	assert.Equal(t, "u2", entry.EntityID)
	assert.Contains(t, entry.ErrorMessage, "estudiantes.leer")
}

func TestRequireRole(t *testing.T) {
	auth := &fakeAuthenticator{valid: map[string]*models.Principal{
		"student": {UserID: "s1", Roles: []string{models.RoleStudent}},
		"teacher": {UserID: "t1", Roles: []string{models.RoleTeacher}},
	}}
	r := protectedRouter(auth, RequireRole(nil, models.RoleStudent))

	for token, status := range map[string]int{"student": http.StatusOK, "teacher": http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodGet, "/secure", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, status, w.Code, token)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".bin")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func uploadRouter(rules ...UploadRule) (*gin.Engine, *[]models.UploadedFile) {
	var got []models.UploadedFile
	r := gin.New()
	r.POST("/upload", Upload(rules...), func(c *gin.Context) {
		got = Files(c)
		c.Status(http.StatusOK)
	})
	return r, &got
}

func TestUploadSniffsContentType(t *testing.T) {
	r, got := uploadRouter(ImageRule("photo", true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, nil, map[string][]byte{"photo": pngBytes(t)}))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, *got, 1)
	assert.Equal(t, "image/png", (*got)[0].ContentType)
	assert.Equal(t, "photo", (*got)[0].Field)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, nil, map[string][]byte{"photo": []byte("plain text pretending to be a photo")}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrUpload.Code)
}

func TestUploadEnforcesRulesPerField(t *testing.T) {
	r, _ := uploadRouter(ImageRule("photo", true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, map[string]string{"a": "b"}, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code, "missing required file")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, nil, map[string][]byte{"photo": pngBytes(t), "cv": pngBytes(t)}))
	assert.Equal(t, http.StatusBadRequest, w.Code, "unexpected field")

	big := append(pngBytes(t), make([]byte, 5*mb)...)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, nil, map[string][]byte{"photo": big}))
	assert.Equal(t, http.StatusBadRequest, w.Code, "oversized file")
}

func TestUploadWildcardAcceptsDocumentsByField(t *testing.T) {
	r, got := uploadRouter(DocumentRule(AnyField))
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, multipartRequest(t, nil, map[string][]byte{"certificado_nacimiento": pdf, "foto": pngBytes(t)}))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, *got, 2)
	types := map[string]string{}
	for _, f := range *got {
		types[f.Field] = f.ContentType
	}
	assert.Equal(t, "application/pdf", types["certificado_nacimiento"])
	assert.Equal(t, "image/png", types["foto"])
}

type bindTarget struct {
	StudentID      string            `json:"student_id"`
	CI             string            `json:"ci"`
	IsScholarship  bool              `json:"is_scholarship"`
	ScholarshipPct float64           `json:"scholarship_pct"`
	Extra          map[string]string `json:"extra"`
}

func TestBindCoercesMultipartFields(t *testing.T) {
	var got bindTarget
	var bindErr error
	r := gin.New()
	r.POST("/upload", Upload(DocumentRule(AnyField)), FormPayload(), func(c *gin.Context) {
		bindErr = Bind(c, &got)
		c.Status(http.StatusOK)
	})

	req := multipartRequest(t, map[string]string{
		"student_id":      "abc",
		"ci":              "12345678",
		"is_scholarship":  "true",
		"scholarship_pct": "50",
		"extra":           `{"k":"v"}`,
	}, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.NoError(t, bindErr)
	assert.Equal(t, "abc", got.StudentID)
	assert.Equal(t, "12345678", got.CI)
	assert.True(t, got.IsScholarship)
	assert.Equal(t, 50.0, got.ScholarshipPct)
	assert.Equal(t, "v", got.Extra["k"])
}

func TestBindFallsBackToJSON(t *testing.T) {
	var got bindTarget
	var bindErr error
	r := gin.New()
	r.POST("/json", FormPayload(), func(c *gin.Context) {
		bindErr = Bind(c, &got)
		c.Status(http.StatusOK)
	})
	body, _ := json.Marshal(map[string]interface{}{"student_id": "x", "scholarship_pct": 10})
	req := httptest.NewRequest(http.MethodPost, "/json", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, bindErr)
	assert.Equal(t, "x", got.StudentID)

	req = httptest.NewRequest(http.MethodPost, "/json", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)
	var appErr *appErrors.Error
	require.True(t, errors.As(bindErr, &appErr), fmt.Sprint(bindErr))
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestMetricsLabelsRouteTemplates(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics, "/health"))
	r.GET("/students/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/students/a1", "/students/b2", "/health", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{method="GET",path="/students/:id",status="200"} 2`)
	assert.Contains(t, body, `path="unmatched",status="404"`)
	assert.NotContains(t, body, `path="/health"`)
}
