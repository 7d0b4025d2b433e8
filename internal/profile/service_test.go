package profile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coursely/coursely/internal/audit"
	"github.com/coursely/coursely/internal/authz"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, req *RoleRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*RoleRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RoleRequest), args.Error(1)
}

func (m *mockRepo) HasPending(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) ListPending(ctx context.Context, limit, offset int) ([]*RoleRequest, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*RoleRequest), args.Error(1)
}

func (m *mockRepo) Approve(ctx context.Context, id, reviewerID string, at time.Time) error {
	args := m.Called(ctx, id, reviewerID, at)
	return args.Error(0)
}

func (m *mockRepo) Reject(ctx context.Context, id, reviewerID string, at time.Time) error {
	args := m.Called(ctx, id, reviewerID, at)
	return args.Error(0)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, e audit.Event) {
	m.Called(ctx, e)
}

func newService() (*Service, *mockRepo, *mockAudit) {
	repo, al := new(mockRepo), new(mockAudit)
	svc := NewService(repo, al)
	svc.clock = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }
	return svc, repo, al
}

func auditType(t string) any {
	return mock.MatchedBy(func(e audit.Event) bool { return e.Type == t })
}

// TestPurpose: Validates filing a role request.
// Scope: Unit Test
// Security: Privilege escalation only through reviewed requests
// Expected: A pending request with a v7 id is stored and audited.
// Test Case ID: PRF-01
func TestService_Request(t *testing.T) {
	svc, repo, al := newService()

	repo.On("HasPending", mock.Anything, "u1").Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*profile.RoleRequest")).Return(nil)
	al.On("Log", mock.Anything, auditType(audit.TypeRoleRequested)).Return()

	req, err := svc.Request(context.Background(), "u1", " Teacher ", "  I teach Go  ")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleTeacher, req.RequestedRole)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, "I teach Go", req.Reason)

	id, err := uuid.Parse(req.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	repo.AssertExpectations(t)
	al.AssertExpectations(t)
}

// TestPurpose: Validates role request input rules.
// Scope: Unit Test
// Expected: Invalid, student and duplicate requests are refused before any write.
// Test Case ID: PRF-02
func TestService_Request_Rejects(t *testing.T) {
	svc, repo, _ := newService()

	_, err := svc.Request(context.Background(), "u1", "owner", "")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.Request(context.Background(), "u1", "student", "")
	assert.ErrorIs(t, err, ErrStudentRole)

	_, err = svc.Request(context.Background(), "", "teacher", "")
	assert.ErrorIs(t, err, authz.ErrUnauthenticated)

	long := make([]byte, MaxReasonLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Request(context.Background(), "u1", "teacher", string(long))
	assert.ErrorIs(t, err, ErrReasonTooLong)

	repo.On("HasPending", mock.Anything, "u2").Return(true, nil)
	_, err = svc.Request(context.Background(), "u2", "moderator", "")
	assert.ErrorIs(t, err, ErrPendingExists)

	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// TestPurpose: Validates approving a pending request.
// Scope: Unit Test
// Security: Reviewed privilege changes are audited (CWE-778)
// Expected: Repository approve is called with the reviewer and the event is audited.
// Test Case ID: PRF-03
func TestService_Approve(t *testing.T) {
	svc, repo, al := newService()
	pending := &RoleRequest{ID: "r1", UserID: "u1", RequestedRole: authz.RoleTeacher, Status: StatusPending}

	repo.On("GetByID", mock.Anything, "r1").Return(pending, nil)
	repo.On("Approve", mock.Anything, "r1", "admin-1", mock.AnythingOfType("time.Time")).Return(nil)
	al.On("Log", mock.Anything, auditType(audit.TypeRoleRequestApproved)).Return()

	req, err := svc.Approve(context.Background(), "r1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, req.Status)
	require.NotNil(t, req.ReviewedBy)
	assert.Equal(t, "admin-1", *req.ReviewedBy)
	al.AssertExpectations(t)
}

// TestPurpose: Validates review preconditions.
// Scope: Unit Test
// Security: Segregation of duties
// Expected: Self review and already decided requests are refused.
// Test Case ID: PRF-04
func TestService_Review_Preconditions(t *testing.T) {
	svc, repo, _ := newService()

	repo.On("GetByID", mock.Anything, "mine").Return(&RoleRequest{ID: "mine", UserID: "admin-1", Status: StatusPending}, nil)
	_, err := svc.Approve(context.Background(), "mine", "admin-1")
	assert.ErrorIs(t, err, ErrSelfReview)

	repo.On("GetByID", mock.Anything, "done").Return(&RoleRequest{ID: "done", UserID: "u1", Status: StatusRejected}, nil)
	_, err = svc.Reject(context.Background(), "done", "admin-1")
	assert.ErrorIs(t, err, ErrNotPending)

	repo.On("GetByID", mock.Anything, "gone").Return(nil, ErrRequestNotFound)
	_, err = svc.Reject(context.Background(), "gone", "admin-1")
	assert.ErrorIs(t, err, ErrRequestNotFound)

	repo.AssertNotCalled(t, "Approve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Reject", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Reject(t *testing.T) {
	svc, repo, al := newService()

	repo.On("GetByID", mock.Anything, "r2").Return(&RoleRequest{ID: "r2", UserID: "u3", RequestedRole: authz.RoleModerator, Status: StatusPending}, nil)
	repo.On("Reject", mock.Anything, "r2", "admin-1", mock.AnythingOfType("time.Time")).Return(nil)
	al.On("Log", mock.Anything, auditType(audit.TypeRoleRequestRejected)).Return()

	req, err := svc.Reject(context.Background(), "r2", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, req.Status)
}

func TestService_ListPending_Bounds(t *testing.T) {
	svc, repo, _ := newService()
	repo.On("ListPending", mock.Anything, 50, 0).Return([]*RoleRequest{}, nil)

	_, err := svc.ListPending(context.Background(), 500, -3)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
