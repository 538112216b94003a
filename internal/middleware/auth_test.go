package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicflow/queue-api/pkg/auth"
)

const testSecret = "test-secret"

func signToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		UserID: "user-1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewAuthMiddleware(auth.NewTokenVerifier(testSecret))

	r := gin.New()
	protected := r.Group("/", m.RequireAuth())
	protected.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"role": Role(c)})
	})
	admin := protected.Group("/admin", m.RequireRole("admin"))
	admin.GET("/config", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuthMissingHeader(t *testing.T) {
	w := get(authTestRouter(), "/whoami", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthMalformedToken(t *testing.T) {
	w := get(authTestRouter(), "/whoami", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{Role: "staff"})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	w := get(authTestRouter(), "/whoami", signed)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuthExposesRole(t *testing.T) {
	w := get(authTestRouter(), "/whoami", signToken(t, "staff"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"role":"staff"}`, w.Body.String())
}

func TestRequireRoleForbidsNonAdmins(t *testing.T) {
	r := authTestRouter()

	assert.Equal(t, http.StatusForbidden, get(r, "/admin/config", signToken(t, "staff")).Code)
	assert.Equal(t, http.StatusOK, get(r, "/admin/config", signToken(t, "admin")).Code)
}
