package apiauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(key, "/info"))
	r.GET("/info", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/list", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestInfoIsExemptFromAuth(t *testing.T) {
	r := newRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/info", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for /info without a key, got %d", w.Code)
	}
}

func TestProtectedRouteRejectsMissingKey(t *testing.T) {
	r := newRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a key, got %d", w.Code)
	}
}

func TestProtectedRouteAcceptsCorrectKey(t *testing.T) {
	r := newRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	req.Header.Set(HeaderName, "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct key, got %d", w.Code)
	}
}

func TestProtectedRouteRejectsWrongKey(t *testing.T) {
	r := newRouter("secret")
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	req.Header.Set(HeaderName, "nope")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", w.Code)
	}
}

func TestEmptyKeyDisablesAuth(t *testing.T) {
	r := newRouter("")
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 when auth disabled, got %d", w.Code)
	}
}
