package helpers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		xff    string
		real   string
		remote string
		want   string
	}{
		{"forwarded first hop", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:4000", "203.0.113.7"},
		{"garbage forwarded falls back", "unknown", "198.51.100.4", "10.0.0.2:4000", "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.10:5555", "192.0.2.10"},
		{"ipv6 remote", "", "", "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.real != "" {
				r.Header.Set("X-Real-IP", tc.real)
			}
			require.Equal(t, tc.want, ClientIP(r))
		})
	}
}
