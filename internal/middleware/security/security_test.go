package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPExtract(t *testing.T) {
	c, err := NewClientIP("203.0.113.0/24")
	if err != nil {
		t.Fatalf("NewClientIP: %v", err)
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public", "198.51.100.7:4000", "1.2.3.4", "", "198.51.100.7"},
		{"trusted proxy xff", "10.0.0.2:4000", "1.2.3.4, 10.0.0.2", "", "1.2.3.4"},
		{"trusted proxy real ip", "127.0.0.1:4000", "", "5.6.7.8", "5.6.7.8"},
		{"extra trusted cidr", "203.0.113.9:80", "9.9.9.9", "", "9.9.9.9"},
		{"garbage xff", "10.0.0.2:4000", "not-an-ip", "", "10.0.0.2"},
		{"no port", "198.51.100.7", "", "", "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := c.Extract(r); got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClientIPRejectsBadCIDR(t *testing.T) {
	if _, err := NewClientIP("nope"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseCIDRList(t *testing.T) {
	got := ParseCIDRList(" 10.1.0.0/16, ,192.0.2.0/24 ")
	if len(got) != 2 || got[0] != "10.1.0.0/16" || got[1] != "192.0.2.0/24" {
		t.Fatalf("ParseCIDRList = %v", got)
	}
}

func TestHeaders(t *testing.T) {
	h := Headers(DefaultHeadersConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be set over plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", rec.Header().Get("Strict-Transport-Security"))
	}
}
