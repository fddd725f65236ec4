package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DSQL-MONGKEY/e-email-kemtan/config"
	"github.com/DSQL-MONGKEY/e-email-kemtan/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func identityEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		id, _ := utils.GetUserIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": id, "actor": utils.ActorFromContext(c.Request.Context())})
	})
	r.POST("/write", RequireIdentity(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	r := identityEngine()

	token, err := utils.JwtGenerate("u-42", "clerk@agency.test", "Clerk", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"id":"u-42","actor":"clerk@agency.test"}`, w.Body.String())
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	r := identityEngine()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := utils.JwtGenerate("u-42", "clerk@agency.test", "Clerk", -time.Minute)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	t.Setenv("AUTH_JWT_SECRET", "other-secret")
	token, err := utils.JwtGenerate("u-42", "", "", time.Hour)
	require.NoError(t, err)
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_AnonymousPassesThrough(t *testing.T) {
	r := identityEngine()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"id":"","actor":""}`, w.Body.String())
}

func TestRequireIdentity(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	r := identityEngine()

	t.Setenv("AUTH_REQUIRED", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
	require.Equal(t, http.StatusOK, w.Code)

	t.Setenv("AUTH_REQUIRED", "true")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/write", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := utils.JwtGenerate("u-1", "", "", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func sessionEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(), SessionMiddleware())
	r.GET("/whoami", func(c *gin.Context) {
		username, _ := utils.GetUsernameFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"actor": utils.ActorFromContext(c.Request.Context()), "username": username})
	})
	return r
}

func TestSessionMiddleware(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	config.SetRedisDB(nil)
	r := sessionEngine()

	// no session store: opaque tokens cannot be resolved
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("token", "opaque-session")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// a verified bearer identity wins over the session header
	token, err := utils.JwtGenerate("u-42", "clerk@agency.test", "Clerk", time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("token", "opaque-session")
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"actor":"clerk@agency.test","username":""}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"actor":"","username":""}`, w.Body.String())
}
