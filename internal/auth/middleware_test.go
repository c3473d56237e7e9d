package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newProtectedRouter(audience string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/private", JWTMiddleware(testSecret, audience, zap.NewNop()), func(c *gin.Context) {
		subject, _ := GetSubject(c.Request.Context())
		c.String(http.StatusOK, subject)
	})
	return router
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestJWTMiddleware(t *testing.T) {
	valid := jwt.RegisteredClaims{
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{"palette"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noSubject := valid
	noSubject.Subject = ""

	tests := []struct {
		name       string
		audience   string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid", "palette", "Bearer " + signToken(t, testSecret, valid), http.StatusOK, "user-1"},
		{"no audience check", "", "Bearer " + signToken(t, testSecret, valid), http.StatusOK, "user-1"},
		{"missing header", "", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "", "Basic abc", http.StatusUnauthorized, ""},
		{"wrong secret", "", "Bearer " + signToken(t, "other", valid), http.StatusUnauthorized, ""},
		{"expired", "", "Bearer " + signToken(t, testSecret, expired), http.StatusUnauthorized, ""},
		{"wrong audience", "other", "Bearer " + signToken(t, testSecret, valid), http.StatusUnauthorized, ""},
		{"missing subject", "", "Bearer " + signToken(t, testSecret, noSubject), http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()
			newProtectedRouter(tt.audience).ServeHTTP(resp, req)

			if resp.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.wantStatus, resp.Code, resp.Body.String())
			}
			if tt.wantBody != "" && resp.Body.String() != tt.wantBody {
				t.Fatalf("expected body %q, got %q", tt.wantBody, resp.Body.String())
			}
		})
	}
}

func TestGetSubjectWithoutValue(t *testing.T) {
	if _, ok := GetSubject(httptest.NewRequest(http.MethodGet, "/", nil).Context()); ok {
		t.Fatal("expected no subject")
	}
}

func TestWithSubjectRoundTrip(t *testing.T) {
	ctx := WithSubject(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "user-7")
	subject, ok := GetSubject(ctx)
	if !ok || subject != "user-7" {
		t.Fatalf("expected user-7, got %q (%v)", subject, ok)
	}

	if _, ok := GetSubject(WithSubject(ctx, "")); ok {
		t.Fatal("an empty subject must not count as authenticated")
	}
}
