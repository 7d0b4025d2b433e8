package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-hs256"

func sign(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    "https://auth.coursely.test",
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			ID:        "jti-1",
		},
		Email:       "ada@example.com",
		AppMetadata: AppMetadata{Role: "admin", Provider: "email", Providers: []string{"email", "google"}},
		UserMetadata: map[string]any{
			"full_name": "Ada Lovelace",
			"role":      "student",
		},
		SessionID: "sess-1",
	}
}

// TestPurpose: Validates that a correctly signed token yields the claims and the principal built from them.
// Scope: Unit Test
// Security: Token integrity (CWE-347)
// Expected: Claims are returned and server-issued role is mapped to SecureRole.
// Test Case ID: IDN-01
func TestVerifier_Verify_Valid(t *testing.T) {
	now := time.Now()
	v, err := NewVerifier(testSecret, "https://auth.coursely.test", "authenticated")
	require.NoError(t, err)

	claims, err := v.Verify(sign(t, testSecret, jwt.SigningMethodHS256, validClaims(now)), now)
	require.NoError(t, err)

	p := claims.Principal()
	assert.Equal(t, "user-123", p.ID)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "admin", p.SecureRole)
	assert.Equal(t, "sess-1", p.SessionID)
	assert.Equal(t, []string{"email", "google"}, p.Providers)
	assert.Equal(t, "Ada Lovelace", p.DisplayName())
}

// TestPurpose: Validates that tampered, expired, mis-issued or wrongly signed tokens are rejected.
// Scope: Unit Test
// Security: Token validation (CWE-287, CWE-347)
// Expected: Verify returns ErrInvalidToken or ErrExpiredToken.
// Test Case ID: IDN-02
func TestVerifier_Verify_Rejects(t *testing.T) {
	now := time.Now()
	v, err := NewVerifier(testSecret, "https://auth.coursely.test", "authenticated")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   func() string
		wantErr error
	}{
		{
			name:    "wrong secret",
			token:   func() string { return sign(t, "another-secret-entirely-different", jwt.SigningMethodHS256, validClaims(now)) },
			wantErr: ErrInvalidToken,
		},
		{
			name:    "hs512 not accepted",
			token:   func() string { return sign(t, testSecret, jwt.SigningMethodHS512, validClaims(now)) },
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired beyond leeway",
			token: func() string {
				c := validClaims(now)
				c.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
				return sign(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "missing exp",
			token: func() string {
				c := validClaims(now)
				c.ExpiresAt = nil
				return sign(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func() string {
				c := validClaims(now)
				c.Issuer = "https://evil.test"
				return sign(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong audience",
			token: func() string {
				c := validClaims(now)
				c.Audience = jwt.ClaimStrings{"anon"}
				return sign(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing subject",
			token: func() string {
				c := validClaims(now)
				c.Subject = ""
				return sign(t, testSecret, jwt.SigningMethodHS256, c)
			},
			wantErr: ErrInvalidToken,
		},
		{
			name:    "garbage",
			token:   func() string { return "not.a.jwt" },
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token(), now)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// TestPurpose: Validates that tokens expired within the clock skew window are still accepted.
// Scope: Unit Test
// Expected: A token that expired 10 seconds ago verifies successfully.
// Test Case ID: IDN-03
func TestVerifier_Verify_Leeway(t *testing.T) {
	now := time.Now()
	v, err := NewVerifier(testSecret, "", "")
	require.NoError(t, err)

	c := validClaims(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(-10 * time.Second))

	_, err = v.Verify(sign(t, testSecret, jwt.SigningMethodHS256, c), now)
	assert.NoError(t, err)
}

// TestPurpose: Validates that a verifier cannot be built without a secret.
// Scope: Unit Test
// Security: Fail-closed configuration
// Expected: NewVerifier returns ErrMissingSecret.
// Test Case ID: IDN-04
func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier("", "", "")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
