package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "exact match", allowed: []string{"http://example.com"}, origin: "http://example.com", want: true},
		{name: "case insensitive", allowed: []string{"http://example.com"}, origin: "HTTP://Example.COM", want: true},
		{name: "configured with path", allowed: []string{"http://example.com/chat"}, origin: "http://example.com", want: true},
		{name: "port must match", allowed: []string{"http://example.com"}, origin: "http://example.com:8081", want: false},
		{name: "scheme must match", allowed: []string{"http://example.com"}, origin: "https://example.com", want: false},
		{name: "missing origin", allowed: []string{"http://example.com"}, origin: "", want: false},
		{name: "malformed origin", allowed: []string{"http://example.com"}, origin: "not-a-url", want: false},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://anything.test", want: true},
		{name: "wildcard still needs a valid origin", allowed: []string{"*"}, origin: "http://", want: false},
		{name: "invalid configured entries are skipped", allowed: []string{"garbage", " ", "http://ok.test"}, origin: "http://ok.test", want: true},
		{name: "empty allow list", allowed: nil, origin: "http://example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOriginPolicy(tt.allowed, zap.NewNop())
			r, err := http.NewRequest(http.MethodGet, "/ws", http.NoBody)
			assert.NoError(t, err)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}

			assert.Equal(t, tt.want, p.checkOrigin(r))
		})
	}
}
