package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func preflight(t *testing.T, h gin.HandlerFunc, origin string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.Use(h)
	r.PATCH("/api/posts/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/posts/abc", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"local vite", nil, "http://localhost:5173", true},
		{"loopback", nil, "http://127.0.0.1:5174", true},
		{"unknown site", nil, "https://evil.example", false},
		{"configured", []string{"https://blog.example"}, "https://blog.example", true},
		{"defaults replaced", []string{"https://blog.example"}, "http://localhost:5173", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := preflight(t, CORS(tc.origins...), tc.origin)
			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tc.allowed && got != tc.origin {
				t.Fatalf("allow-origin=%q status=%d", got, rec.Code)
			}
			if !tc.allowed && got != "" {
				t.Fatalf("origin %q unexpectedly allowed", tc.origin)
			}
		})
	}
}
