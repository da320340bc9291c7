package signal

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{" https://app.example.com/ ", ""})
	cases := map[string]bool{
		"":                         true,
		"https://app.example.com":  true,
		"HTTPS://APP.EXAMPLE.COM/": true,
		"https://evil.example.com": false,
		"http://app.example.com":   false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, check(r), origin)
	}

	open := originChecker(nil)
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Origin", "https://anything.example")
	assert.True(t, open(r))

	wildcard := originChecker([]string{"*"})
	assert.True(t, wildcard(r))
}
