package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursely/coursely/internal/authz"
	"github.com/coursely/coursely/internal/catalog"
	"github.com/coursely/coursely/internal/guard"
	"github.com/coursely/coursely/internal/identity"
	"github.com/coursely/coursely/internal/media"
	"github.com/coursely/coursely/internal/profile"
	"github.com/coursely/coursely/internal/session"
)

const (
	testSecret = "router-test-secret-0123456789abcdef"
	testCookie = "coursely_access_token"
)

type fakeProfiles struct {
	mu    sync.Mutex
	roles map[string]string
	err   error
	calls atomic.Int32
}

func (f *fakeProfiles) GetProfileRole(_ context.Context, userID string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[userID]
	if !ok {
		return "", authz.ErrProfileNotFound
	}
	return role, nil
}

func (f *fakeProfiles) set(userID, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roles == nil {
		f.roles = make(map[string]string)
	}
	f.roles[userID] = role
}

type fakeCourses struct {
	courses []*catalog.Course
}

func (f *fakeCourses) ListPublished(_ context.Context, limit, offset int) ([]*catalog.Course, error) {
	if offset >= len(f.courses) {
		return nil, nil
	}
	end := min(offset+limit, len(f.courses))
	return f.courses[offset:end], nil
}

func (f *fakeCourses) GetPublishedBySlug(_ context.Context, slug string) (*catalog.Course, error) {
	for _, c := range f.courses {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, catalog.ErrCourseNotFound
}

// fakeLessons lets everyone read the preview lesson and only staff read the rest.
type fakeLessons struct{}

func (fakeLessons) ReadLessonMedia(_ context.Context, _ string, role authz.Role, lessonID string) (media.Lesson, error) {
	switch {
	case lessonID == "l-preview":
		return media.Lesson{ID: lessonID, CourseID: "c1", ObjectKey: "lessons/l-preview.mp4", Preview: true}, nil
	case lessonID == "l-paid" && role == authz.RoleAdmin:
		return media.Lesson{ID: lessonID, CourseID: "c1", ObjectKey: "lessons/l-paid.mp4"}, nil
	default:
		return media.Lesson{}, media.ErrNoAccess
	}
}

type fakeSigner struct{}

func (fakeSigner) Presign(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://media.test/" + key + "?sig=x", nil
}

// fakeRoleRequests applies approvals to profiles, as the database does.
type fakeRoleRequests struct {
	mu       sync.Mutex
	reqs     map[string]*profile.RoleRequest
	profiles *fakeProfiles
}

func (f *fakeRoleRequests) Create(_ context.Context, req *profile.RoleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.reqs[req.ID] = &cp
	return nil
}

func (f *fakeRoleRequests) GetByID(_ context.Context, id string) (*profile.RoleRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok {
		return nil, profile.ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (f *fakeRoleRequests) HasPending(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, req := range f.reqs {
		if req.UserID == userID && req.Status == profile.StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoleRequests) ListPending(_ context.Context, limit, offset int) ([]*profile.RoleRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*profile.RoleRequest
	for _, req := range f.reqs {
		if req.Status == profile.StatusPending {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (f *fakeRoleRequests) Approve(_ context.Context, id, reviewerID string, at time.Time) error {
	f.mu.Lock()
	req, ok := f.reqs[id]
	if !ok || req.Status != profile.StatusPending {
		f.mu.Unlock()
		return profile.ErrNotPending
	}
	req.Status = profile.StatusApproved
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &at
	f.mu.Unlock()

	f.profiles.set(req.UserID, req.RequestedRole.String())
	return nil
}

func (f *fakeRoleRequests) Reject(_ context.Context, id, reviewerID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.reqs[id]
	if !ok || req.Status != profile.StatusPending {
		return profile.ErrNotPending
	}
	req.Status = profile.StatusRejected
	req.ReviewedBy = &reviewerID
	req.ReviewedAt = &at
	return nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) Ping(context.Context) error { return f.err }

type testServer struct {
	router   *chi.Mux
	profiles *fakeProfiles
	health   *fakeHealth
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	verifier, err := identity.NewVerifier(testSecret, "", "authenticated")
	require.NoError(t, err)
	sessions := session.NewResolver(verifier, session.NewMemoryRevocationStore(), testCookie)

	profiles := &fakeProfiles{}
	roles := authz.NewRoleResolver(profiles, nil, nil, time.Second)

	courses := catalog.NewService(&fakeCourses{courses: []*catalog.Course{
		{ID: "c1", Slug: "go-101", Title: "Go 101", Currency: "USD", PriceMinor: 4900, DiscountPercent: 20, Published: true},
	}})
	mediaService := media.NewService(fakeLessons{}, fakeSigner{}, time.Hour, nil, nil)
	roleRequests := profile.NewService(&fakeRoleRequests{reqs: map[string]*profile.RoleRequest{}, profiles: profiles}, nil)
	health := &fakeHealth{}

	h := NewHandler(sessions, roles, courses, mediaService, roleRequests, healthProxy{health}, nil, CookieConfig{Name: testCookie})

	g, err := guard.New(guard.DefaultTable(), guard.Config{LoginPath: "/login", DashboardPath: "/dashboard"}, nil, nil)
	require.NoError(t, err)

	static := fstest.MapFS{
		"index.html":     {Data: []byte("<html>coursely</html>")},
		"assets/app.js":  {Data: []byte("console.log('app')")},
		"favicon.ico":    {Data: []byte{0}},
		"docs/readme.md": {Data: []byte("docs")},
	}
	return &testServer{
		router:   NewRouter(h, nil, g, RouterConfig{Static: static}),
		profiles: profiles,
		health:   health,
	}
}

// healthProxy lets a test swap the ping result after the router is built.
type healthProxy struct{ h *fakeHealth }

func (p healthProxy) Ping(ctx context.Context) error { return p.h.Ping(ctx) }

type tokenOpts struct {
	role      string
	sessionID string
	metadata  map[string]any
}

func signToken(t *testing.T, userID string, opts tokenOpts) string {
	t.Helper()
	if opts.sessionID == "" {
		opts.sessionID = "sess-" + userID
	}
	claims := identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:        userID + "@example.com",
		AppMetadata:  identity.AppMetadata{Role: opts.role, Provider: "email"},
		UserMetadata: opts.metadata,
		SessionID:    opts.sessionID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, target, token string, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// TestPurpose: A secure admin claim opens the admin area end to end.
// Scope: Integration Test
// Security: Server-issued claim is the highest trust source
// Expected: 200 with the frontend served and no profile lookup.
// Test Case ID: RTR-01
func TestRouter_ScenarioA(t *testing.T) {
	s := newTestServer(t)
	token := signToken(t, "u-admin", tokenOpts{role: "admin"})

	rec := s.do(http.MethodGet, "/admin/users", token, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coursely")
	assert.Equal(t, int32(0), s.profiles.calls.Load())
}

// TestPurpose: A profile-backed teacher is softly turned away from a grouped admin path.
// Scope: Integration Test
// Security: Route groups cannot bypass the admin rule (CWE-285)
// Expected: 303 redirect to /dashboard.
// Test Case ID: RTR-02
func TestRouter_ScenarioB(t *testing.T) {
	s := newTestServer(t)
	s.profiles.set("u-teacher", "teacher")
	token := signToken(t, "u-teacher", tokenOpts{})

	rec := s.do(http.MethodGet, "/dashboard/(admin)/users", token, "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

// TestPurpose: A failing profile lookup degrades to student without opening privileged areas.
// Scope: Integration Test
// Security: Fail closed to least privilege (CWE-636)
// Expected: Authenticated areas allowed as student; admin area redirects to /dashboard.
// Test Case ID: RTR-03
func TestRouter_ScenarioC(t *testing.T) {
	s := newTestServer(t)
	s.profiles.err = errors.New("connection refused")
	token := signToken(t, "u-c", tokenOpts{})

	rec := s.do(http.MethodGet, "/dashboard/student", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "student", body["role"])
	assert.Equal(t, "default", body["role_source"])

	rec = s.do(http.MethodGet, "/admin", token, "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

// TestPurpose: Anonymous visitors are sent to login with a return path.
// Scope: Integration Test
// Security: Authentication required for protected areas
// Expected: Pages get 303 with next; API gets 401 JSON with the same location.
// Test Case ID: RTR-04
func TestRouter_Unauthenticated(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/dashboard/teacher", "", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fdashboard%2Fteacher", rec.Header().Get("Location"))

	rec = s.do(http.MethodGet, "/api/v1/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "/login?next=%2Fapi%2Fv1%2Fme", body["location"])
}

// TestPurpose: An invalid credential is treated as no session at all.
// Scope: Integration Test
// Security: Tampered tokens never authenticate (CWE-347)
// Expected: Redirect to login rather than an error page.
// Test Case ID: RTR-05
func TestRouter_InvalidTokenIsAnonymous(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/dashboard", "not-a-jwt", "")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/login?next="))
}

// TestPurpose: Single-role areas answer not-found to other roles.
// Scope: Integration Test
// Security: Hard denial prevents area enumeration (CWE-204)
// Expected: 404 for a student on the teacher dashboard.
// Test Case ID: RTR-06
func TestRouter_HardDenial(t *testing.T) {
	s := newTestServer(t)
	token := signToken(t, "u-student", tokenOpts{role: "student"})

	rec := s.do(http.MethodGet, "/dashboard/teacher/courses", token, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

// TestPurpose: Guest-only pages bounce signed-in users to the dashboard.
// Scope: Integration Test
// Security: N/A
// Expected: 303 to /dashboard for /login and /register.
// Test Case ID: RTR-07
func TestRouter_GuestOnly(t *testing.T) {
	s := newTestServer(t)
	token := signToken(t, "u-student", tokenOpts{})

	for _, route := range []string{"/login", "/register"} {
		rec := s.do(http.MethodGet, route, token, "")
		assert.Equal(t, http.StatusSeeOther, rec.Code, route)
		assert.Equal(t, "/dashboard", rec.Header().Get("Location"), route)
	}

	rec := s.do(http.MethodGet, "/login", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestPurpose: Client-writable metadata cannot grant a role.
// Scope: Integration Test
// Security: Privilege escalation via user_metadata (CWE-639)
// Expected: Admin area denied despite user_metadata.role=admin.
// Test Case ID: RTR-08
func TestRouter_IgnoresUserMetadata(t *testing.T) {
	s := newTestServer(t)
	token := signToken(t, "u-sneaky", tokenOpts{metadata: map[string]any{"role": "admin", "full_name": "Sneaky"}})

	rec := s.do(http.MethodGet, "/api/v1/admin/role-requests", token, "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "/dashboard", body["location"])
}

// TestPurpose: The guard and the handler share one role resolution per request.
// Scope: Integration Test
// Security: N/A
// Expected: Exactly one profile lookup for an admin API call.
// Test Case ID: RTR-09
func TestRouter_SingleLookupPerRequest(t *testing.T) {
	s := newTestServer(t)
	s.profiles.set("u-admin", "admin")
	token := signToken(t, "u-admin", tokenOpts{})

	rec := s.do(http.MethodGet, "/api/v1/admin/role-requests", token, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), s.profiles.calls.Load())
}

// TestPurpose: Public catalog routes never touch the session.
// Scope: Integration Test
// Security: N/A
// Expected: 200 with discounted price for anonymous callers.
// Test Case ID: RTR-10
func TestRouter_PublicCatalog(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/v1/courses", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	courses := decode(t, rec)["courses"].([]any)
	require.Len(t, courses, 1)
	price := courses[0].(map[string]any)["price"].(map[string]any)
	assert.Equal(t, float64(3920), price["final_minor"])

	rec = s.do(http.MethodGet, "/api/v1/courses/missing", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode(t, rec)["error"])
}

// TestPurpose: Logout revokes the session and clears the cookie.
// Scope: Integration Test
// Security: Session termination (CWE-613)
// Expected: The same token is anonymous after logout.
// Test Case ID: RTR-11
func TestRouter_LogoutRevokes(t *testing.T) {
	s := newTestServer(t)
	token := signToken(t, "u-out", tokenOpts{})

	rec := s.do(http.MethodPost, "/api/v1/auth/logout", token, "", "X-CSRF-Token", "1")
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == testCookie && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	rec = s.do(http.MethodGet, "/api/v1/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestPurpose: Cookie-authenticated writes require the CSRF header.
// Scope: Integration Test
// Security: Cross-site request forgery (CWE-352)
// Expected: 403 without the header; bearer callers are exempt.
// Test Case ID: RTR-12
func TestRouter_CSRF(t *testing.T) {
	s := newTestServer(t)
	token := signToken(t, "u-csrf", tokenOpts{})
	body := `{"role":"teacher","reason":"I teach"}`

	rec := s.do(http.MethodPost, "/api/v1/role-requests", token, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/role-requests", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

// TestPurpose: Role requests flow from a student to an admin and change the resolved role.
// Scope: Integration Test
// Security: Only admins approve; no self review
// Expected: After approval the requester reaches the teacher dashboard.
// Test Case ID: RTR-13
func TestRouter_RoleRequestLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.profiles.set("u-admin", "admin")
	student := signToken(t, "u-learner", tokenOpts{})
	admin := signToken(t, "u-admin", tokenOpts{})

	rec := s.do(http.MethodPost, "/api/v1/role-requests", student, `{"role":"student"}`, "X-CSRF-Token", "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/role-requests", student, `{"role":"teacher","reason":"I teach Go"}`, "X-CSRF-Token", "1")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["id"].(string)

	rec = s.do(http.MethodPost, "/api/v1/role-requests", student, `{"role":"moderator"}`, "X-CSRF-Token", "1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/role-requests/"+id+"/approve", student, "", "X-CSRF-Token", "1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/dashboard/teacher", student, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/role-requests/"+id+"/approve", admin, "", "X-CSRF-Token", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "approved", decode(t, rec)["status"])

	rec = s.do(http.MethodPost, "/api/v1/admin/role-requests/"+id+"/reject", admin, "", "X-CSRF-Token", "1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/admin/role-requests/unknown/approve", admin, "", "X-CSRF-Token", "1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/dashboard/teacher", student, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestPurpose: Signed media URLs are issued only after the scoped read succeeds.
// Scope: Integration Test
// Security: Signed URL issuance is authorization-gated (CWE-862)
// Expected: 200 for a preview lesson, 403 for a paid lesson, no caching.
// Test Case ID: RTR-14
func TestRouter_MediaURL(t *testing.T) {
	s := newTestServer(t)
	token := signToken(t, "u-student", tokenOpts{})

	rec := s.do(http.MethodGet, "/api/v1/media/l-preview/url", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, decode(t, rec)["url"], "lessons/l-preview.mp4")

	rec = s.do(http.MethodGet, "/api/v1/media/l-paid/url", token, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := signToken(t, "u-admin", tokenOpts{role: "admin"})
	rec = s.do(http.MethodGet, "/api/v1/media/l-paid/url", admin, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/media/l-preview/url", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestPurpose: Health reflects the database ping.
// Scope: Unit Test
// Security: N/A
// Expected: 200 healthy, 503 unhealthy.
// Test Case ID: RTR-15
func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s.health.err = errors.New("down")
	rec = s.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])
}

func TestRouter_SPAFallback(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/courses/go-101", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coursely")
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	rec = s.do(http.MethodGet, "/assets/app.js", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	rec = s.do(http.MethodGet, "/docs", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coursely")
}

func TestRouter_Routes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/api/v1/courses"},
		{http.MethodGet, "/api/v1/courses/go-101"},
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodGet, "/api/v1/me"},
		{http.MethodGet, "/api/v1/media/l1/url"},
		{http.MethodPost, "/api/v1/role-requests"},
		{http.MethodGet, "/api/v1/admin/role-requests"},
		{http.MethodPost, "/api/v1/admin/role-requests/r1/approve"},
		{http.MethodPost, "/api/v1/admin/role-requests/r1/reject"},
	}
	for _, tt := range tests {
		rctx := chi.NewRouteContext()
		assert.True(t, s.router.Match(rctx, tt.method, tt.path), "%s %s", tt.method, tt.path)
	}
}
