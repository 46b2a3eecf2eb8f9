package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"km-backend/internal/auth"
	"km-backend/internal/config"
)

func testJWT() *auth.JWTManager {
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "km-backend"
	return auth.NewJWTManager(cfg)
}

func TestRequireRole(t *testing.T) {
	jwt := testJWT()
	adminToken, _ := jwt.GenerateToken("admin-1", auth.RoleAdmin, time.Hour)
	curatorToken, _ := jwt.GenerateToken("cur-1", auth.RoleCurator, time.Hour)

	var seen string
	handler := NewAuthMiddleware(jwt).RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFromRequest(r)
		seen = actor.UserID + "/" + actor.Role + "/" + actor.IPAddress
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		query      string
		upgrade    bool
		wantStatus int
	}{
		{"admin", "Bearer " + adminToken, "", false, http.StatusNoContent},
		{"curator", "Bearer " + curatorToken, "", false, http.StatusForbidden},
		{"missing", "", "", false, http.StatusUnauthorized},
		{"bad format", "Token " + adminToken, "", false, http.StatusUnauthorized},
		{"bad token", "Bearer nope", "", false, http.StatusUnauthorized},
		{"query token on websocket", "", adminToken, true, http.StatusNoContent},
		{"query token on plain request", "", adminToken, false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/admin/payments"
			if tt.query != "" {
				target += "?access_token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			req.RemoteAddr = "10.1.2.3:5555"
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.upgrade {
				req.Header.Set("Upgrade", "websocket")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if seen != "admin-1/ADMIN/10.1.2.3" {
		t.Errorf("actor = %s", seen)
	}
}

func TestGetClientIP(t *testing.T) {
	SetTrustedProxies([]string{"10.0.0.0/8", "192.168.1.1", "bogus"})
	t.Cleanup(func() { SetTrustedProxies(nil) })

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list behind proxy", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "10.0.0.5:1", "2.2.2.2"},
		{"trusted hops skipped", map[string]string{"X-Forwarded-For": "1.1.1.1, 10.2.2.2"}, "192.168.1.1:1", "1.1.1.1"},
		{"real ip behind proxy", map[string]string{"X-Real-IP": " 3.3.3.3 "}, "10.0.0.5:1", "3.3.3.3"},
		{"garbage real ip", map[string]string{"X-Real-IP": "nope"}, "10.0.0.5:1", "10.0.0.5"},
		{"forwarded from untrusted peer", map[string]string{"X-Forwarded-For": "1.1.1.1"}, "9.9.9.9:1", "9.9.9.9"},
		{"real ip from untrusted peer", map[string]string{"X-Real-IP": "3.3.3.3"}, "9.9.9.9:1", "9.9.9.9"},
		{"remote addr", nil, "9.9.9.9:1234", "9.9.9.9"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		for k, v := range tt.headers {
			req.Header.Set(k, v)
		}
		if got := GetClientIP(req); got != tt.want {
			t.Errorf("%s: GetClientIP() = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestRateLimiterIgnoresSpoofedForwarding(t *testing.T) {
	limiter := NewRateLimiter(60, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var codes []int
	for _, forwarded := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/payment-gateway/callback/click", nil)
		req.RemoteAddr = "7.7.7.7:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want one 200 then 429s", codes)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(60, 2)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/payment-gateway/callback/click", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if call("5.5.5.5") != http.StatusOK || call("5.5.5.5") != http.StatusOK {
		t.Fatal("burst requests were rejected")
	}
	if got := call("5.5.5.5"); got != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", got)
	}
	if got := call("6.6.6.6"); got != http.StatusOK {
		t.Errorf("other client status = %d, want 200", got)
	}

	limiter.evictIdle(time.Now().Add(time.Hour))
	if len(limiter.clients) != 0 {
		t.Errorf("idle clients kept: %d", len(limiter.clients))
	}
}

func TestPanicRecovery(t *testing.T) {
	handler := PanicRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}
