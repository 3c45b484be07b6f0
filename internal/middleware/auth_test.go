package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/LVQT-ss/SHOPC-sub000/config"
	"github.com/LVQT-ss/SHOPC-sub000/internal/models"
	"github.com/LVQT-ss/SHOPC-sub000/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setTestConfig() {
	config.AppConfig = &config.Config{
		Server: config.ServerConfig{
			JWTSecret:          "middleware-test-secret",
			JWTExpirationHours: 1,
		},
	}
}

func guardedRouter(roles ...string) *gin.Engine {
	r := gin.New()
	r.GET("/guarded", AuthMiddleware(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.MustGet("userID"),
			"role":    c.MustGet("role"),
		})
	})
	return r
}

func request(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareRejectsMissingOrMalformedHeader(t *testing.T) {
	setTestConfig()
	r := guardedRouter()

	if w := request(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing header status = %d, want 401", w.Code)
	}
	if w := request(r, "Basic dXNlcjpwYXNz"); w.Code != http.StatusUnauthorized {
		t.Errorf("non-bearer header status = %d, want 401", w.Code)
	}
	if w := request(r, "Bearer not-a-token"); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", w.Code)
	}
}

func TestAuthMiddlewareEnforcesRoleAllowList(t *testing.T) {
	setTestConfig()

	token, err := utils.GenerateToken(3, models.RoleStaff, "staff@example.com", "staffer", "")
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}

	// No role restriction: any valid token passes.
	if w := request(guardedRouter(), "Bearer "+token); w.Code != http.StatusOK {
		t.Errorf("unrestricted route status = %d, want 200", w.Code)
	}

	// Staff is on the allow-list.
	r := guardedRouter(models.RoleAdmin, models.RoleStaff)
	if w := request(r, "Bearer "+token); w.Code != http.StatusOK {
		t.Errorf("allowed role status = %d, want 200", w.Code)
	}

	// Staff is not an admin.
	r = guardedRouter(models.RoleAdmin)
	if w := request(r, "Bearer "+token); w.Code != http.StatusForbidden {
		t.Errorf("denied role status = %d, want 403", w.Code)
	}
}
